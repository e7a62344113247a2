package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/models"
	"github.com/stakearena/backend/internal/wallet"
)

var (
	// ErrInsufficientStake means one of the players cannot cover the stake.
	// Nothing is mutated when it is returned.
	ErrInsufficientStake = errors.New("insufficient balance for stake")

	// ErrInvalidTransition means the operation does not apply to the match's
	// current state (escrow on an already-escrowed match, settle on a match
	// that is not active).
	ErrInvalidTransition = errors.New("invalid match state transition")

	// ErrSettlementFailure wraps any internal settle error. The whole unit
	// rolled back; the match remains unpaid and must be reconciled.
	ErrSettlementFailure = errors.New("settlement failed")
)

// Idempotency op tags recorded in match_ops
const (
	opEscrow = "escrow"
	opSettle = "settle"
)

// Engine performs the two atomic money operations of a match: locking both
// stakes at match start and resolving the pot at game end.
type Engine struct {
	db                 *sqlx.DB
	winnerSharePercent int
}

// NewEngine creates an escrow engine. winnerSharePercent is the winner's
// share of the pot (the platform keeps the rest plus rounding remainder).
func NewEngine(db *sqlx.DB, winnerSharePercent int) *Engine {
	return &Engine{db: db, winnerSharePercent: winnerSharePercent}
}

// Lock atomically deducts stake from both players and appends the two
// GAME_BET ledger entries. Either everything applies or nothing does.
func (e *Engine) Lock(ctx context.Context, player1ID, player2ID int64, stake float64, currency, matchID string) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin escrow tx: %w", err)
	}
	defer tx.Rollback()

	if err := e.LockInTx(tx, player1ID, player2ID, stake, currency, matchID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit escrow tx: %w", err)
	}
	return nil
}

// LockInTx performs the escrow work inside a caller-owned transaction so
// the lifecycle layer can persist the match row in the same atomic unit.
func (e *Engine) LockInTx(tx *sqlx.Tx, player1ID, player2ID int64, stake float64, currency, matchID string) error {
	if stake <= 0 {
		return fmt.Errorf("stake must be positive, got %.2f", stake)
	}
	if player1ID == player2ID {
		return fmt.Errorf("cannot escrow a player against themselves")
	}

	claimed, err := wallet.ClaimOp(tx, matchID, opEscrow)
	if err != nil {
		return fmt.Errorf("claim escrow op: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: match %s already escrowed", ErrInvalidTransition, matchID)
	}

	balances, err := wallet.LockBalances(tx, currency, player1ID, player2ID)
	if err != nil {
		return fmt.Errorf("lock balances: %w", err)
	}
	if balances[player1ID] < stake || balances[player2ID] < stake {
		return ErrInsufficientStake
	}

	for _, playerID := range []int64{player1ID, player2ID} {
		if err := wallet.Debit(tx, playerID, currency, stake); err != nil {
			return fmt.Errorf("debit stake from player %d: %w", playerID, err)
		}
		if err := wallet.AppendEntry(tx, playerID, models.TxGameBet, -stake, matchID, currency); err != nil {
			return fmt.Errorf("append GAME_BET for player %d: %w", playerID, err)
		}
	}

	log.Printf("[ESCROW] Locked %.2f %s from players %d and %d for match %s", stake, currency, player1ID, player2ID, matchID)
	return nil
}

// Settle resolves a finished match in one atomic unit: winner payout plus
// platform fee, or a full refund on draw. A repeated call for the same
// match is a logged no-op. Any internal failure rolls the whole unit back
// and surfaces as ErrSettlementFailure.
func (e *Engine) Settle(ctx context.Context, matchID, gameType string, player1ID, player2ID int64, stake float64, currency string, winnerID *int64) error {
	if winnerID != nil && *winnerID != player1ID && *winnerID != player2ID {
		return fmt.Errorf("%w: winner %d is not a participant of match %s", ErrSettlementFailure, *winnerID, matchID)
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrSettlementFailure, err)
	}
	defer tx.Rollback()

	claimed, err := wallet.ClaimOp(tx, matchID, opSettle)
	if err != nil {
		return fmt.Errorf("%w: claim settle op: %w", ErrSettlementFailure, err)
	}
	if !claimed {
		log.Printf("[SETTLE] Match %s already settled, skipping", matchID)
		return nil
	}

	if winnerID == nil {
		err = e.settleDraw(tx, matchID, gameType, player1ID, player2ID, stake, currency)
	} else {
		err = e.settleWin(tx, matchID, gameType, player1ID, player2ID, stake, currency, *winnerID)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSettlementFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrSettlementFailure, err)
	}
	return nil
}

// settleDraw refunds both stakes, an exact reversal of Lock.
func (e *Engine) settleDraw(tx *sqlx.Tx, matchID, gameType string, player1ID, player2ID int64, stake float64, currency string) error {
	if _, err := wallet.LockBalances(tx, currency, player1ID, player2ID); err != nil {
		return fmt.Errorf("lock balances: %w", err)
	}

	for _, playerID := range []int64{player1ID, player2ID} {
		if err := wallet.Credit(tx, playerID, currency, stake); err != nil {
			return fmt.Errorf("refund player %d: %w", playerID, err)
		}
		if err := wallet.AppendEntry(tx, playerID, models.TxGameRefund, stake, matchID, currency); err != nil {
			return fmt.Errorf("append GAME_REFUND for player %d: %w", playerID, err)
		}
	}

	if err := wallet.InsertRevenue(tx, matchID, gameType, 0, currency, player1ID, player2ID, sql.NullInt64{}, 0); err != nil {
		return fmt.Errorf("insert revenue row: %w", err)
	}

	log.Printf("[SETTLE] Draw for match %s: refunded %.2f %s to players %d and %d", matchID, stake, currency, player1ID, player2ID)
	return nil
}

// settleWin credits the floored winner share and moves the remainder to
// the platform owner account.
func (e *Engine) settleWin(tx *sqlx.Tx, matchID, gameType string, player1ID, player2ID int64, stake float64, currency string, winnerID int64) error {
	owner, err := wallet.GetPlatformOwner(e.db)
	if err != nil {
		return fmt.Errorf("resolve platform owner: %w", err)
	}

	totalPot, winnerAmount, platformAmount := WinnerSplit(stake, e.winnerSharePercent)

	if _, err := wallet.LockBalances(tx, currency, winnerID, owner.ID); err != nil {
		return fmt.Errorf("lock balances: %w", err)
	}

	if err := wallet.Credit(tx, winnerID, currency, winnerAmount); err != nil {
		return fmt.Errorf("credit winner %d: %w", winnerID, err)
	}
	if err := wallet.AppendEntry(tx, winnerID, models.TxGameWin, winnerAmount, matchID, currency); err != nil {
		return fmt.Errorf("append GAME_WIN: %w", err)
	}

	if err := wallet.Credit(tx, owner.ID, currency, platformAmount); err != nil {
		return fmt.Errorf("credit platform owner %d: %w", owner.ID, err)
	}
	if err := wallet.AppendEntry(tx, owner.ID, models.TxPlatformFee, platformAmount, matchID, currency); err != nil {
		return fmt.Errorf("append PLATFORM_FEE: %w", err)
	}

	if err := wallet.InsertRevenue(tx, matchID, gameType, totalPot, currency, player1ID, player2ID,
		sql.NullInt64{Int64: winnerID, Valid: true}, platformAmount); err != nil {
		return fmt.Errorf("insert revenue row: %w", err)
	}

	log.Printf("[SETTLE] Match %s won by player %d: pot=%.2f winner=%.2f platform=%.2f (%s)",
		matchID, winnerID, totalPot, winnerAmount, platformAmount, currency)
	return nil
}
