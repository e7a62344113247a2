package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/stakearena/backend/internal/queue"
)

// StartMatchEventSubscriber subscribes to the match_events channel and
// forwards each event to the addressed user's open sockets.
func StartMatchEventSubscriber(ctx context.Context, rdb *redis.Client) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; match event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, queue.MatchEventsChannel)
	ch := pubsub.Channel()
	go func() {
		log.Println("[WS] match_events subscriber started")
		for msg := range ch {
			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				log.Printf("[WS] invalid match event payload: %v", err)
				continue
			}

			userField, ok := payload["user_id"].(float64)
			if !ok {
				log.Printf("[WS] match event missing user_id: %s", msg.Payload)
				continue
			}

			QueueHub.Send(int64(userField), payload)
		}
	}()
}
