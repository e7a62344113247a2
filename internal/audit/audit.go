package audit

import (
	"database/sql"
	"encoding/json"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/models"
)

// Logger appends audit records consumed by external audit tooling.
// Writes are best-effort: an audit failure is logged but never blocks the
// operation that produced it.
type Logger struct {
	db *sqlx.DB
}

func NewLogger(db *sqlx.DB) *Logger {
	return &Logger{db: db}
}

// Log records one action in the audit trail
func (l *Logger) Log(action string, actorID int64, details map[string]interface{}) {
	if l == nil || l.db == nil {
		return
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("[AUDIT] Failed to marshal details for %s: %v", action, err)
		detailsJSON = []byte("{}")
	}

	actor := sql.NullInt64{Int64: actorID, Valid: actorID > 0}
	if _, err := l.db.Exec(`INSERT INTO audit_log (action, actor_id, details, created_at) VALUES ($1,$2,$3,NOW())`, action, actor, detailsJSON); err != nil {
		log.Printf("[AUDIT] Failed to record %s for actor %d: %v", action, actorID, err)
	}
}

// Recent returns the newest audit records, newest first
func (l *Logger) Recent(limit, offset int) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := l.db.Select(&records, `
		SELECT id, action, actor_id, details, created_at
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return records, err
}
