package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stakearena/backend/internal/config"
	"github.com/stakearena/backend/internal/models"
	"github.com/stakearena/backend/internal/queue"
)

// JoinQueue enqueues a player, pairing immediately when a compatible
// opponent is already waiting.
func JoinQueue(store *queue.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID   int64   `json:"user_id" binding:"required"`
			GameType string  `json:"game_type" binding:"required"`
			Stake    float64 `json:"stake" binding:"required"`
			Currency string  `json:"currency" binding:"required"`
		}

		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, game_type, stake and currency required"})
			return
		}

		if !validGameType(req.GameType, cfg.AllowedGameTypes) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown game type"})
			return
		}
		if req.Currency != models.CurrencyReal && req.Currency != models.CurrencyVirtual {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Currency must be real or virtual"})
			return
		}
		if req.Stake < cfg.MinStakeAmount {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Stake below minimum"})
			return
		}

		result, err := store.Enqueue(c.Request.Context(), req.UserID, req.GameType, req.Stake, req.Currency)
		if err != nil {
			log.Printf("[QUEUE] Join failed for user %d: %v", req.UserID, err)
			respondError(c, err)
			return
		}

		if result.Matched {
			c.JSON(http.StatusOK, gin.H{
				"status":      "matched",
				"match_id":    result.MatchID,
				"opponent_id": result.OpponentID,
				"message":     "Opponent found!",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":        "queued",
			"position":      result.Position,
			"total_waiting": result.TotalWaiting,
			"message":       "Finding opponent...",
		})
	}
}

// CancelQueue removes the caller's pending entry
func CancelQueue(store *queue.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID int64 `json:"user_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
			return
		}

		if !store.Cancel(req.UserID) {
			c.JSON(http.StatusOK, gin.H{"status": "not_queued", "cancelled": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled", "cancelled": true})
	}
}

// QueueStatus returns the caller's position in their queue
func QueueStatus(store *queue.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid user_id required"})
			return
		}

		status := store.Status(userID)
		if status == nil {
			c.JSON(http.StatusOK, gin.H{"status": "not_queued"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":        "queued",
			"game_type":     status.GameType,
			"stake":         status.Stake,
			"currency":      status.Currency,
			"position":      status.Position,
			"total_waiting": status.TotalWaiting,
			"joined_at":     status.JoinedAt,
		})
	}
}

// QueueStats returns waiting counts per queue key
func QueueStats(store *queue.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"queue_by_key": store.Depths()})
	}
}
