package wallet

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stakearena/backend/internal/models"
)

// GetPlatformOwner returns the distinguished owner account. Settlement
// never creates the owner inline; BootstrapOwner must have run first.
func GetPlatformOwner(db *sqlx.DB) (*models.User, error) {
	var u models.User
	err := db.Get(&u, `SELECT id, display_name, real_balance, virtual_balance, is_admin, is_platform_owner, is_system, admin_token_hash, created_at, updated_at FROM users WHERE is_platform_owner LIMIT 1`)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// BootstrapOwner ensures exactly one platform owner exists. Resolution
// order: an existing owner, then promotion of the oldest admin, then a
// fresh system account. The partial unique index on is_platform_owner
// makes concurrent bootstraps safe: the loser of the race sees a unique
// violation and re-reads the winner's row.
func BootstrapOwner(db *sqlx.DB, displayName string) (*models.User, error) {
	if owner, err := GetPlatformOwner(db); err == nil {
		return owner, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}

	// Promote the oldest admin if one exists
	var promotedID int64
	err := db.Get(&promotedID, `
		UPDATE users SET is_platform_owner=TRUE, updated_at=NOW()
		WHERE id = (SELECT id FROM users WHERE is_admin AND NOT is_platform_owner ORDER BY id LIMIT 1)
		RETURNING id
	`)
	if err == nil {
		log.Printf("[OWNER] Promoted admin user %d to platform owner", promotedID)
		return GetUser(db, promotedID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if isUniqueViolation(err) {
			return GetPlatformOwner(db)
		}
		return nil, fmt.Errorf("promote admin to owner: %w", err)
	}

	// No admin either: create a system-owned account
	var createdID int64
	err = db.Get(&createdID, `
		INSERT INTO users (display_name, is_platform_owner, is_system, created_at, updated_at)
		VALUES ($1, TRUE, TRUE, NOW(), NOW())
		RETURNING id
	`, displayName)
	if err != nil {
		if isUniqueViolation(err) {
			return GetPlatformOwner(db)
		}
		return nil, fmt.Errorf("create owner account: %w", err)
	}

	log.Printf("[OWNER] Created platform owner system account %d (%s)", createdID, displayName)
	return GetUser(db, createdID)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
