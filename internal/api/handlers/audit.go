package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stakearena/backend/internal/audit"
)

// GetAuditLog returns paginated audit records, newest first
func GetAuditLog(auditLog *audit.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit > 200 {
			limit = 200
		}

		records, err := auditLog.Recent(limit, offset)
		if err != nil {
			log.Printf("[AUDIT] Failed to fetch audit records: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit records"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"records": records, "limit": limit, "offset": offset})
	}
}
