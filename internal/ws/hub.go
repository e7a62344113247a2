package ws

import (
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the router level
	},
}

// Hub tracks the open sockets of users waiting in the matchmaking queue
type Hub struct {
	mu      sync.RWMutex
	clients map[int64][]*websocket.Conn
}

var QueueHub = &Hub{clients: make(map[int64][]*websocket.Conn)}

func (h *Hub) register(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = append(h.clients[userID], conn)
}

func (h *Hub) unregister(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.clients[userID]
	for i, c := range conns {
		if c == conn {
			h.clients[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Send pushes one JSON message to every open socket of userID
func (h *Hub) Send(userID int64, payload interface{}) {
	h.mu.RLock()
	conns := append([]*websocket.Conn(nil), h.clients[userID]...)
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("[WS] Failed to push to user %d: %v", userID, err)
		}
	}
}

// HandleQueueSocket upgrades the connection and parks it until the client
// disconnects. Pushed messages come from the Redis match-events subscriber.
func HandleQueueSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid user_id required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed for user %d: %v", userID, err)
			return
		}

		QueueHub.register(userID, conn)
		log.Printf("[WS] User %d connected for queue events", userID)

		defer func() {
			QueueHub.unregister(userID, conn)
			conn.Close()
			log.Printf("[WS] User %d disconnected", userID)
		}()

		// Drain client frames; we only push
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
