package escrow

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/pgtest"
)

func seedPlayer(t *testing.T, db *sqlx.DB, balance float64) int64 {
	t.Helper()
	var id int64
	err := db.Get(&id, `INSERT INTO users (display_name, real_balance, created_at, updated_at) VALUES ('', $1, NOW(), NOW()) RETURNING id`, balance)
	if err != nil {
		t.Fatalf("seed player: %v", err)
	}
	return id
}

func seedOwner(t *testing.T, db *sqlx.DB, balance float64) int64 {
	t.Helper()
	var id int64
	err := db.Get(&id, `INSERT INTO users (display_name, real_balance, is_platform_owner, is_system, created_at, updated_at) VALUES ('platform', $1, TRUE, TRUE, NOW(), NOW()) RETURNING id`, balance)
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	return id
}

func insertMatchRow(t *testing.T, db *sqlx.DB, matchID string, player1ID, player2ID int64, stake float64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO matches (id, game_type, player1_id, player2_id, stake, currency, status, created_at, started_at) VALUES ($1,'dice',$2,$3,$4,'real','active',NOW(),NOW())`,
		matchID, player1ID, player2ID, stake)
	if err != nil {
		t.Fatalf("insert match row: %v", err)
	}
}

func realBalance(t *testing.T, db *sqlx.DB, id int64) float64 {
	t.Helper()
	var balance float64
	if err := db.Get(&balance, `SELECT real_balance FROM users WHERE id=$1`, id); err != nil {
		t.Fatalf("read balance of user %d: %v", id, err)
	}
	return balance
}

func ledgerSum(t *testing.T, db *sqlx.DB, matchID string) float64 {
	t.Helper()
	var sum float64
	if err := db.Get(&sum, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE match_id=$1`, matchID); err != nil {
		t.Fatalf("sum ledger for match %s: %v", matchID, err)
	}
	return sum
}

func ledgerCount(t *testing.T, db *sqlx.DB, matchID string) int {
	t.Helper()
	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM transactions WHERE match_id=$1`, matchID); err != nil {
		t.Fatalf("count ledger for match %s: %v", matchID, err)
	}
	return count
}

func TestLockInsufficientStakeLeavesNoTrace(t *testing.T) {
	db := pgtest.NewDB(t)
	engine := NewEngine(db, 90)
	ctx := context.Background()

	poor := seedPlayer(t, db, 5)
	rich := seedPlayer(t, db, 100)
	matchID := uuid.NewString()

	err := engine.Lock(ctx, poor, rich, 10, "real", matchID)
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}

	if got := realBalance(t, db, poor); got != 5 {
		t.Errorf("poor player balance mutated: %v", got)
	}
	if got := realBalance(t, db, rich); got != 100 {
		t.Errorf("rich player balance mutated: %v", got)
	}
	if n := ledgerCount(t, db, matchID); n != 0 {
		t.Errorf("failed lock left %d ledger entries", n)
	}

	// The escrow claim rolled back with everything else, so funding the
	// player and retrying the same match succeeds.
	if _, err := db.Exec(`UPDATE users SET real_balance=50 WHERE id=$1`, poor); err != nil {
		t.Fatalf("top up player: %v", err)
	}
	if err := engine.Lock(ctx, poor, rich, 10, "real", matchID); err != nil {
		t.Fatalf("retry after top-up failed: %v", err)
	}
}

func TestLockDebitsBothAndIsNotRepeatable(t *testing.T) {
	db := pgtest.NewDB(t)
	engine := NewEngine(db, 90)
	ctx := context.Background()

	p1 := seedPlayer(t, db, 50)
	p2 := seedPlayer(t, db, 50)
	matchID := uuid.NewString()

	if err := engine.Lock(ctx, p1, p2, 10, "real", matchID); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	if got := realBalance(t, db, p1); got != 40 {
		t.Errorf("p1 balance = %v, want 40", got)
	}
	if got := realBalance(t, db, p2); got != 40 {
		t.Errorf("p2 balance = %v, want 40", got)
	}
	if n := ledgerCount(t, db, matchID); n != 2 {
		t.Errorf("lock wrote %d ledger entries, want 2", n)
	}
	if sum := ledgerSum(t, db, matchID); sum != -20 {
		t.Errorf("ledger sum after lock = %v, want -20", sum)
	}

	err := engine.Lock(ctx, p1, p2, 10, "real", matchID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("repeated lock should be ErrInvalidTransition, got %v", err)
	}
	if got := realBalance(t, db, p1); got != 40 {
		t.Errorf("repeated lock mutated p1 balance: %v", got)
	}
}

func TestSettleDrawRefundsBothStakes(t *testing.T) {
	db := pgtest.NewDB(t)
	engine := NewEngine(db, 90)
	ctx := context.Background()

	p1 := seedPlayer(t, db, 50)
	p2 := seedPlayer(t, db, 50)
	matchID := uuid.NewString()

	if err := engine.Lock(ctx, p1, p2, 10, "real", matchID); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	insertMatchRow(t, db, matchID, p1, p2, 10)

	if err := engine.Settle(ctx, matchID, "dice", p1, p2, 10, "real", nil); err != nil {
		t.Fatalf("draw settle failed: %v", err)
	}

	if got := realBalance(t, db, p1); got != 50 {
		t.Errorf("p1 not made whole: %v", got)
	}
	if got := realBalance(t, db, p2); got != 50 {
		t.Errorf("p2 not made whole: %v", got)
	}
	if sum := ledgerSum(t, db, matchID); sum != 0 {
		t.Errorf("ledger sum after draw = %v, want 0", sum)
	}

	var revAmount, revCut float64
	var winnerNull bool
	err := db.QueryRow(`SELECT amount, platform_cut, winner_id IS NULL FROM platform_revenue WHERE match_id=$1`, matchID).Scan(&revAmount, &revCut, &winnerNull)
	if err != nil {
		t.Fatalf("draw should still write a revenue row: %v", err)
	}
	if revAmount != 0 || revCut != 0 || !winnerNull {
		t.Errorf("draw revenue row = (amount=%v cut=%v winnerNull=%v), want zeros with null winner", revAmount, revCut, winnerNull)
	}
}

func TestSettleWinSplitsPotExactly(t *testing.T) {
	db := pgtest.NewDB(t)
	engine := NewEngine(db, 90)
	ctx := context.Background()

	owner := seedOwner(t, db, 0)
	p1 := seedPlayer(t, db, 50)
	p2 := seedPlayer(t, db, 50)
	matchID := uuid.NewString()

	// stake 1.11 forces a rounding remainder: pot 2.22, winner 1.99,
	// platform 0.23
	if err := engine.Lock(ctx, p1, p2, 1.11, "real", matchID); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	insertMatchRow(t, db, matchID, p1, p2, 1.11)

	if err := engine.Settle(ctx, matchID, "dice", p1, p2, 1.11, "real", &p1); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	const eps = 1e-9
	if got := realBalance(t, db, p1); math.Abs(got-50.88) > eps {
		t.Errorf("winner balance = %v, want 50.88", got)
	}
	if got := realBalance(t, db, p2); math.Abs(got-48.89) > eps {
		t.Errorf("loser balance = %v, want 48.89", got)
	}
	if got := realBalance(t, db, owner); math.Abs(got-0.23) > eps {
		t.Errorf("owner balance = %v, want 0.23", got)
	}
	if sum := ledgerSum(t, db, matchID); sum != 0 {
		t.Errorf("ledger sum after settle = %v, want 0", sum)
	}

	var revAmount, revCut float64
	var winnerID int64
	err := db.QueryRow(`SELECT amount, platform_cut, winner_id FROM platform_revenue WHERE match_id=$1`, matchID).Scan(&revAmount, &revCut, &winnerID)
	if err != nil {
		t.Fatalf("revenue row missing: %v", err)
	}
	if math.Abs(revAmount-2.22) > eps || math.Abs(revCut-0.23) > eps || winnerID != p1 {
		t.Errorf("revenue row = (amount=%v cut=%v winner=%d), want (2.22, 0.23, %d)", revAmount, revCut, winnerID, p1)
	}
}

func TestSettleTwiceIsNoOp(t *testing.T) {
	db := pgtest.NewDB(t)
	engine := NewEngine(db, 90)
	ctx := context.Background()

	seedOwner(t, db, 0)
	p1 := seedPlayer(t, db, 50)
	p2 := seedPlayer(t, db, 50)
	matchID := uuid.NewString()

	if err := engine.Lock(ctx, p1, p2, 10, "real", matchID); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	insertMatchRow(t, db, matchID, p1, p2, 10)

	if err := engine.Settle(ctx, matchID, "dice", p1, p2, 10, "real", &p1); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}
	balanceAfter := realBalance(t, db, p1)
	entriesAfter := ledgerCount(t, db, matchID)

	// A repeat, even naming the other player, must not move money again
	if err := engine.Settle(ctx, matchID, "dice", p1, p2, 10, "real", &p2); err != nil {
		t.Fatalf("repeated settle should be a no-op, got %v", err)
	}
	if got := realBalance(t, db, p1); got != balanceAfter {
		t.Errorf("repeated settle moved money: %v -> %v", balanceAfter, got)
	}
	if n := ledgerCount(t, db, matchID); n != entriesAfter {
		t.Errorf("repeated settle wrote ledger entries: %d -> %d", entriesAfter, n)
	}
}

func TestSettleRejectsNonParticipantWinner(t *testing.T) {
	db := pgtest.NewDB(t)
	engine := NewEngine(db, 90)
	ctx := context.Background()

	seedOwner(t, db, 0)
	p1 := seedPlayer(t, db, 50)
	p2 := seedPlayer(t, db, 50)
	stranger := seedPlayer(t, db, 50)
	matchID := uuid.NewString()

	if err := engine.Lock(ctx, p1, p2, 10, "real", matchID); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	insertMatchRow(t, db, matchID, p1, p2, 10)

	err := engine.Settle(ctx, matchID, "dice", p1, p2, 10, "real", &stranger)
	if !errors.Is(err, ErrSettlementFailure) {
		t.Fatalf("expected ErrSettlementFailure, got %v", err)
	}
	if n := ledgerCount(t, db, matchID); n != 2 {
		t.Errorf("rejected settle mutated the ledger: %d entries", n)
	}

	// The match is still settleable with a real participant
	if err := engine.Settle(ctx, matchID, "dice", p1, p2, 10, "real", &p2); err != nil {
		t.Fatalf("settle after rejection failed: %v", err)
	}
}

// An admin promoted to platform owner can play matches; settling one they
// won must not deadlock on locking their row twice.
func TestSettleWinWhenWinnerIsOwner(t *testing.T) {
	db := pgtest.NewDB(t)
	engine := NewEngine(db, 90)
	ctx := context.Background()

	owner := seedOwner(t, db, 50)
	p2 := seedPlayer(t, db, 50)
	matchID := uuid.NewString()

	if err := engine.Lock(ctx, owner, p2, 10, "real", matchID); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	insertMatchRow(t, db, matchID, owner, p2, 10)

	if err := engine.Settle(ctx, matchID, "dice", owner, p2, 10, "real", &owner); err != nil {
		t.Fatalf("settle with owner as winner failed: %v", err)
	}

	// Owner receives the winner share and the platform cut: the whole pot
	if got := realBalance(t, db, owner); got != 60 {
		t.Errorf("owner balance = %v, want 60", got)
	}
	if got := realBalance(t, db, p2); got != 40 {
		t.Errorf("loser balance = %v, want 40", got)
	}
	if sum := ledgerSum(t, db, matchID); sum != 0 {
		t.Errorf("ledger sum = %v, want 0", sum)
	}
}
