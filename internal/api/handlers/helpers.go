package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stakearena/backend/internal/escrow"
	"github.com/stakearena/backend/internal/queue"
)

// respondError maps the domain error taxonomy onto HTTP statuses. Unknown
// errors are 500s with a generic body; the detail stays in the server log.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrDuplicateQueueEntry):
		c.JSON(http.StatusConflict, gin.H{"error": "You are already searching for a match"})
	case errors.Is(err, escrow.ErrInsufficientStake):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient balance for this stake"})
	case errors.Is(err, escrow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, escrow.ErrSettlementFailure):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Settlement failed; match remains unsettled"})
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// validGameType reports whether gameType is one the platform accepts
func validGameType(gameType string, allowed []string) bool {
	for _, t := range allowed {
		if t == gameType {
			return true
		}
	}
	return false
}
