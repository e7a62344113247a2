package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/api/handlers"
	"github.com/stakearena/backend/internal/audit"
	"github.com/stakearena/backend/internal/config"
	"github.com/stakearena/backend/internal/match"
	"github.com/stakearena/backend/internal/middleware"
	"github.com/stakearena/backend/internal/queue"
	"github.com/stakearena/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, store *queue.Store, matches *match.Manager, auditLog *audit.Logger, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(db))

		// Matchmaking queue
		q := v1.Group("/queue")
		{
			q.POST("/join", handlers.JoinQueue(store, cfg))
			q.POST("/cancel", handlers.CancelQueue(store))
			q.GET("/status", handlers.QueueStatus(store))
			q.GET("/stats", handlers.QueueStats(store))
		}

		// Match lifecycle. Create and settle are called by the game-session
		// layer, never by browsers, so they require a service token.
		m := v1.Group("/matches")
		{
			m.GET("/:id", handlers.GetMatch(matches))
			m.GET("/:id/ledger", handlers.GetMatchLedger(db))
			m.POST("", handlers.ServiceAuth(cfg), handlers.CreateMatch(matches, cfg))
			m.POST("/:id/settle", handlers.ServiceAuth(cfg), handlers.SettleMatch(matches))
		}

		// Wallet reads for display collaborators
		v1.GET("/wallet/:userID", handlers.GetWallet(db))

		// Audit trail reads, admin only
		v1.GET("/audit", handlers.AdminAuth(db), handlers.GetAuditLog(auditLog))
	}

	// WebSocket push of match-found events
	router.GET("/ws", middleware.WebSocketCORSCheck(cfg), ws.HandleQueueSocket())
}
