package admin

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// GetAdmin retrieves an admin account by id
func GetAdmin(db *sqlx.DB, id int64) (*models.User, error) {
	var u models.User
	err := db.Get(&u, `SELECT id, display_name, real_balance, virtual_balance, is_admin, is_platform_owner, is_system, admin_token_hash, created_at, updated_at FROM users WHERE id=$1 AND is_admin`, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// VerifyAdminToken checks if the provided token matches the stored hash
func VerifyAdminToken(hashedToken, plainToken string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken))
	return err == nil
}

// ValidateAdminToken validates an admin id + token combination
func ValidateAdminToken(db *sqlx.DB, id int64, token string) (*models.User, error) {
	acct, err := GetAdmin(db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin account not found")
		}
		return nil, fmt.Errorf("load admin account: %w", err)
	}
	if !acct.AdminTokenHash.Valid || !VerifyAdminToken(acct.AdminTokenHash.String, token) {
		return nil, fmt.Errorf("invalid admin token")
	}
	return acct, nil
}

// CreateAdminAccount creates or refreshes an admin account (used for
// seeding). The plain token is hashed with bcrypt before storage.
func CreateAdminAccount(db *sqlx.DB, displayName, plainToken string) (int64, error) {
	hashedToken, err := bcrypt.GenerateFromPassword([]byte(plainToken), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash token: %w", err)
	}

	var id int64
	err = db.Get(&id, `
		INSERT INTO users (display_name, is_admin, admin_token_hash, created_at, updated_at)
		VALUES ($1, TRUE, $2, NOW(), NOW())
		RETURNING id
	`, displayName, string(hashedToken))
	if err != nil {
		return 0, err
	}
	return id, nil
}
