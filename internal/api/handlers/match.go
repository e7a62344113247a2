package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/config"
	"github.com/stakearena/backend/internal/match"
	"github.com/stakearena/backend/internal/wallet"
)

// CreateMatch creates a match directly, bypassing the queue but not
// escrow. Used by the game-session layer for rematches and invitations.
func CreateMatch(matches *match.Manager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Player1ID       int64   `json:"player1_id" binding:"required"`
			Player2ID       int64   `json:"player2_id" binding:"required"`
			GameType        string  `json:"game_type" binding:"required"`
			Stake           float64 `json:"stake" binding:"required"`
			Currency        string  `json:"currency" binding:"required"`
			ExternalMatchID string  `json:"external_match_id,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "player1_id, player2_id, game_type, stake and currency required"})
			return
		}

		if !validGameType(req.GameType, cfg.AllowedGameTypes) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown game type"})
			return
		}

		created, err := matches.CreateMatch(c.Request.Context(), req.Player1ID, req.Player2ID, req.GameType, req.Stake, req.Currency, req.ExternalMatchID)
		if err != nil {
			log.Printf("[MATCH] Direct create failed (%d vs %d): %v", req.Player1ID, req.Player2ID, err)
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, created)
	}
}

// GetMatch returns one match by id
func GetMatch(matches *match.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		found, err := matches.Get(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, found)
	}
}

// SettleMatch consumes the terminal game-over signal from the game
// engine. A null/absent winner_id settles the match as a draw.
func SettleMatch(matches *match.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID := c.Param("id")

		var req struct {
			WinnerID *int64 `json:"winner_id"`
			Draw     bool   `json:"draw"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settle payload"})
			return
		}
		if !req.Draw && req.WinnerID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "winner_id required unless draw"})
			return
		}
		if req.Draw {
			req.WinnerID = nil
		}

		settled, err := matches.Settle(c.Request.Context(), matchID, req.WinnerID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, settled)
	}
}

// GetMatchLedger returns every ledger entry for a match. Once a match is
// settled its entries sum to zero; the sum is included so audit tooling
// can verify cheaply.
func GetMatchLedger(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID := c.Param("id")

		entries, err := wallet.EntriesForMatch(db, matchID)
		if err != nil {
			log.Printf("[LEDGER] Failed to fetch entries for match %s: %v", matchID, err)
			respondError(c, err)
			return
		}

		var sum float64
		for _, e := range entries {
			sum += e.Amount
		}

		resp := gin.H{"match_id": matchID, "entries": entries, "sum": sum}
		if rev, err := wallet.RevenueForMatch(db, matchID); err == nil {
			resp["platform_revenue"] = rev
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetWallet returns a user's balances in both currencies
func GetWallet(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid userID required"})
			return
		}

		u, err := wallet.GetUser(db, userID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user_id":         u.ID,
			"display_name":    u.DisplayName,
			"real_balance":    u.RealBalance,
			"virtual_balance": u.VirtualBalance,
		})
	}
}
