package wallet

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/models"
)

// AppendEntry inserts one ledger row inside tx. Entries are append-only;
// nothing in this package ever updates or deletes them.
func AppendEntry(tx *sqlx.Tx, userID int64, txType string, amount float64, matchID, currency string) error {
	if tx == nil {
		return fmt.Errorf("tx is nil")
	}
	_, err := tx.Exec(`INSERT INTO transactions (id, user_id, transaction_type, amount, status, match_id, currency, created_at) VALUES ($1,$2,$3,$4,'COMPLETED',$5,$6,NOW())`,
		uuid.NewString(), userID, txType, amount, matchID, currency)
	return err
}

// InsertRevenue writes the one platform_revenue row for a settled match.
func InsertRevenue(tx *sqlx.Tx, matchID, gameType string, totalPot float64, currency string, player1ID, player2ID int64, winnerID sql.NullInt64, platformCut float64) error {
	_, err := tx.Exec(`INSERT INTO platform_revenue (match_id, game_type, amount, currency, player1_id, player2_id, winner_id, platform_cut, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`,
		matchID, gameType, totalPot, currency, player1ID, player2ID, winnerID, platformCut)
	return err
}

// ClaimOp inserts the idempotency row for (matchID, op). It returns false
// when the op was already claimed by an earlier call, in which case the
// caller must not apply the operation again.
func ClaimOp(tx *sqlx.Tx, matchID, op string) (bool, error) {
	res, err := tx.Exec(`INSERT INTO match_ops (match_id, op, created_at) VALUES ($1,$2,NOW()) ON CONFLICT (match_id, op) DO NOTHING`, matchID, op)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// EntriesForMatch returns every ledger entry tagged with matchID, oldest
// first. After settlement these sum to zero.
func EntriesForMatch(db *sqlx.DB, matchID string) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := db.Select(&entries, `SELECT id, user_id, transaction_type, amount, status, match_id, currency, created_at FROM transactions WHERE match_id=$1 ORDER BY created_at, id`, matchID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// RevenueForMatch returns the platform_revenue row for a settled match
func RevenueForMatch(db *sqlx.DB, matchID string) (*models.PlatformRevenue, error) {
	var rev models.PlatformRevenue
	err := db.Get(&rev, `SELECT id, match_id, game_type, amount, currency, player1_id, player2_id, winner_id, platform_cut, created_at FROM platform_revenue WHERE match_id=$1`, matchID)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}
