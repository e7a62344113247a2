package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/admin"
	"github.com/stakearena/backend/internal/config"
)

// ServiceAuth guards internal endpoints (match create, settle) that only
// the game-session layer may call. It expects a Bearer HS256 token signed
// with the shared service secret and carrying svc=game-session.
func ServiceAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "service token required"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(cfg.ServiceTokenSecret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid service token"})
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok || claims["svc"] != "game-session" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token not authorized for this endpoint"})
			return
		}

		c.Next()
	}
}

// AdminAuth guards admin read endpoints. Callers present their admin
// account id and plain token in headers; the token is checked against the
// stored bcrypt hash.
func AdminAuth(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, err := strconv.ParseInt(c.GetHeader("X-Admin-ID"), 10, 64)
		token := c.GetHeader("X-Admin-Token")
		if err != nil || adminID <= 0 || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin credentials required"})
			return
		}

		acct, err := admin.ValidateAdminToken(db, adminID, token)
		if err != nil {
			log.Printf("[ADMIN] Auth failed for admin %d: %v", adminID, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
			return
		}

		c.Set("admin_id", acct.ID)
		c.Next()
	}
}

// IssueServiceToken mints a service token. Exposed for tooling and tests,
// not over HTTP.
func IssueServiceToken(secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"svc": "game-session"})
	return token.SignedString([]byte(secret))
}
