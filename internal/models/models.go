package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Currency names select which balance column an operation touches
const (
	CurrencyReal    = "real"
	CurrencyVirtual = "virtual"
)

// Match status values
const (
	MatchActive    = "active"
	MatchCompleted = "completed"
	MatchCancelled = "cancelled"
)

// Ledger entry types
const (
	TxGameBet     = "GAME_BET"
	TxGameWin     = "GAME_WIN"
	TxGameRefund  = "GAME_REFUND"
	TxPlatformFee = "PLATFORM_FEE"
)

// User represents a balance-holding identity (player, admin or system account)
type User struct {
	ID              int64          `db:"id" json:"id"`
	DisplayName     string         `db:"display_name" json:"display_name"`
	RealBalance     float64        `db:"real_balance" json:"real_balance"`
	VirtualBalance  float64        `db:"virtual_balance" json:"virtual_balance"`
	IsAdmin         bool           `db:"is_admin" json:"is_admin"`
	IsPlatformOwner bool           `db:"is_platform_owner" json:"is_platform_owner"`
	IsSystem        bool           `db:"is_system" json:"is_system"`
	AdminTokenHash  sql.NullString `db:"admin_token_hash" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Balance returns the balance for the given currency.
func (u *User) Balance(currency string) float64 {
	if currency == CurrencyVirtual {
		return u.VirtualBalance
	}
	return u.RealBalance
}

// Match represents a 1v1 wagered game between two players
type Match struct {
	ID              string          `db:"id" json:"id"`
	GameType        string          `db:"game_type" json:"game_type"`
	Player1ID       int64           `db:"player1_id" json:"player1_id"`
	Player2ID       int64           `db:"player2_id" json:"player2_id"`
	Stake           float64         `db:"stake" json:"stake"`
	Currency        string          `db:"currency" json:"currency"`
	Status          string          `db:"status" json:"status"`
	WinnerID        sql.NullInt64   `db:"winner_id" json:"winner_id,omitempty"`
	GameState       json.RawMessage `db:"game_state" json:"game_state"`
	ExternalMatchID sql.NullString  `db:"external_match_id" json:"external_match_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	StartedAt       sql.NullTime    `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     sql.NullTime    `db:"completed_at" json:"completed_at,omitempty"`
}

// Transaction is a single append-only ledger entry. For any settled match
// the entry amounts sum to zero.
type Transaction struct {
	ID              string    `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	TransactionType string    `db:"transaction_type" json:"transaction_type"`
	Amount          float64   `db:"amount" json:"amount"`
	Status          string    `db:"status" json:"status"`
	MatchID         string    `db:"match_id" json:"match_id"`
	Currency        string    `db:"currency" json:"currency"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// PlatformRevenue records the commission outcome of one settled match
type PlatformRevenue struct {
	ID          int64         `db:"id" json:"id"`
	MatchID     string        `db:"match_id" json:"match_id"`
	GameType    string        `db:"game_type" json:"game_type"`
	Amount      float64       `db:"amount" json:"amount"`
	Currency    string        `db:"currency" json:"currency"`
	Player1ID   int64         `db:"player1_id" json:"player1_id"`
	Player2ID   int64         `db:"player2_id" json:"player2_id"`
	WinnerID    sql.NullInt64 `db:"winner_id" json:"winner_id,omitempty"`
	PlatformCut float64       `db:"platform_cut" json:"platform_cut"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// AuditRecord is a generic audit trail entry
type AuditRecord struct {
	ID        int64           `db:"id" json:"id"`
	Action    string          `db:"action" json:"action"`
	ActorID   sql.NullInt64   `db:"actor_id" json:"actor_id,omitempty"`
	Details   json.RawMessage `db:"details" json:"details"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
