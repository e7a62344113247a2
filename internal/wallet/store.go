package wallet

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/models"
)

// BalanceColumn maps a currency name to its users column. Unknown
// currencies fail loudly rather than defaulting, since the column name is
// interpolated into SQL.
func BalanceColumn(currency string) (string, error) {
	switch currency {
	case models.CurrencyReal:
		return "real_balance", nil
	case models.CurrencyVirtual:
		return "virtual_balance", nil
	default:
		return "", fmt.Errorf("unknown currency %q", currency)
	}
}

// GetUser loads a user row by id
func GetUser(db *sqlx.DB, id int64) (*models.User, error) {
	var u models.User
	err := db.Get(&u, `SELECT id, display_name, real_balance, virtual_balance, is_admin, is_platform_owner, is_system, admin_token_hash, created_at, updated_at FROM users WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LockBalances row-locks the given users inside tx and returns their
// balances in the given currency. Rows are locked in id order so two
// concurrent operations touching the same pair cannot deadlock. Repeated
// ids lock the row once (the winner can be the platform owner).
func LockBalances(tx *sqlx.Tx, currency string, ids ...int64) (map[int64]float64, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx is nil")
	}
	col, err := BalanceColumn(currency)
	if err != nil {
		return nil, err
	}

	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	query, args, err := sqlx.In(fmt.Sprintf(`SELECT id, %s AS balance FROM users WHERE id IN (?) ORDER BY id FOR UPDATE`, col), unique)
	if err != nil {
		return nil, err
	}
	query = tx.Rebind(query)

	var rows []struct {
		ID      int64   `db:"id"`
		Balance float64 `db:"balance"`
	}
	if err := tx.Select(&rows, query, args...); err != nil {
		return nil, err
	}
	if len(rows) != len(unique) {
		return nil, fmt.Errorf("expected %d user rows, locked %d", len(unique), len(rows))
	}

	balances := make(map[int64]float64, len(rows))
	for _, r := range rows {
		balances[r.ID] = r.Balance
	}
	return balances, nil
}

// Credit adds amount to a user's balance inside tx
func Credit(tx *sqlx.Tx, id int64, currency string, amount float64) error {
	col, err := BalanceColumn(currency)
	if err != nil {
		return err
	}
	res, err := tx.Exec(fmt.Sprintf(`UPDATE users SET %s = %s + $1, updated_at=NOW() WHERE id=$2`, col, col), amount, id)
	if err != nil {
		return err
	}
	return requireOneRow(res, id)
}

// Debit subtracts amount from a user's balance inside tx. The CHECK
// constraint on the column is the last line of defense; callers must have
// verified the locked balance first.
func Debit(tx *sqlx.Tx, id int64, currency string, amount float64) error {
	col, err := BalanceColumn(currency)
	if err != nil {
		return err
	}
	res, err := tx.Exec(fmt.Sprintf(`UPDATE users SET %s = %s - $1, updated_at=NOW() WHERE id=$2`, col, col), amount, id)
	if err != nil {
		return err
	}
	return requireOneRow(res, id)
}

func requireOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}
