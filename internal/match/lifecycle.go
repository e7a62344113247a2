package match

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stakearena/backend/internal/audit"
	"github.com/stakearena/backend/internal/escrow"
	"github.com/stakearena/backend/internal/models"
	"github.com/stakearena/backend/internal/wallet"
)

// Manager owns the Match entity: it creates matches (only after escrow
// succeeds) and drives their status transitions.
type Manager struct {
	db     *sqlx.DB
	engine *escrow.Engine
	states *StateRegistry
	audit  *audit.Logger
}

func NewManager(db *sqlx.DB, engine *escrow.Engine, states *StateRegistry, auditLog *audit.Logger) *Manager {
	return &Manager{db: db, engine: engine, states: states, audit: auditLog}
}

// CreateMatch escrows both stakes and persists the match in one atomic
// unit. The match row only exists once escrow has succeeded, so a failed
// escrow can never leave an orphaned active match. externalID is optional
// and used for matches arranged outside the queue (rematches etc.) that
// bypass pairing but never escrow.
func (m *Manager) CreateMatch(ctx context.Context, player1ID, player2ID int64, gameType string, stake float64, currency, externalID string) (*models.Match, error) {
	// Pre-check both balances so the common failure mode is cheap and
	// produces no side effects at all.
	for _, playerID := range []int64{player1ID, player2ID} {
		player, err := wallet.GetUser(m.db, playerID)
		if err != nil {
			return nil, fmt.Errorf("load player %d: %w", playerID, err)
		}
		if player.Balance(currency) < stake {
			return nil, escrow.ErrInsufficientStake
		}
	}

	matchID := uuid.NewString()

	gameState, err := m.states.Init(gameType, player1ID, player2ID)
	if err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin match tx: %w", err)
	}
	defer tx.Rollback()

	if err := m.engine.LockInTx(tx, player1ID, player2ID, stake, currency, matchID); err != nil {
		return nil, err
	}

	extID := sql.NullString{String: externalID, Valid: externalID != ""}
	var created models.Match
	err = tx.Get(&created, `
		INSERT INTO matches (id, game_type, player1_id, player2_id, stake, currency, status, game_state, external_match_id, created_at, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
		RETURNING id, game_type, player1_id, player2_id, stake, currency, status, winner_id, game_state, external_match_id, created_at, started_at, completed_at
	`, matchID, gameType, player1ID, player2ID, stake, currency, models.MatchActive, []byte(gameState), extID)
	if err != nil {
		return nil, fmt.Errorf("persist match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit match tx: %w", err)
	}

	log.Printf("[MATCH] Created match %s: %s players=[%d,%d] stake=%.2f %s", matchID, gameType, player1ID, player2ID, stake, currency)

	for _, playerID := range []int64{player1ID, player2ID} {
		m.audit.Log("match_start", playerID, map[string]interface{}{
			"match_id":  matchID,
			"game_type": gameType,
			"stake":     stake,
			"currency":  currency,
		})
	}

	return &created, nil
}

// Get loads a match by id
func (m *Manager) Get(id string) (*models.Match, error) {
	var match models.Match
	err := m.db.Get(&match, `SELECT id, game_type, player1_id, player2_id, stake, currency, status, winner_id, game_state, external_match_id, created_at, started_at, completed_at FROM matches WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// Settle consumes the terminal game-over signal for an active match.
// winnerID nil means a draw. On engine failure the match stays active and
// the condition is recorded as an operational incident: the game concluded
// but the pot is unpaid, which needs manual reconciliation.
func (m *Manager) Settle(ctx context.Context, matchID string, winnerID *int64) (*models.Match, error) {
	match, err := m.Get(matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: match %s not found", escrow.ErrInvalidTransition, matchID)
		}
		return nil, fmt.Errorf("load match %s: %w", matchID, err)
	}
	if match.Status != models.MatchActive {
		return nil, fmt.Errorf("%w: cannot settle match %s in status %s", escrow.ErrInvalidTransition, matchID, match.Status)
	}

	err = m.engine.Settle(ctx, matchID, match.GameType, match.Player1ID, match.Player2ID, match.Stake, match.Currency, winnerID)
	if err != nil {
		log.Printf("[SETTLE ERROR] Match %s concluded but settlement failed, payout pending reconciliation: %v", matchID, err)
		m.audit.Log("settlement_failed", 0, map[string]interface{}{
			"match_id": matchID,
			"error":    err.Error(),
		})
		return nil, err
	}

	winner := sql.NullInt64{}
	if winnerID != nil {
		winner = sql.NullInt64{Int64: *winnerID, Valid: true}
	}
	var settled models.Match
	err = m.db.Get(&settled, `
		UPDATE matches SET status=$1, winner_id=$2, completed_at=NOW()
		WHERE id=$3
		RETURNING id, game_type, player1_id, player2_id, stake, currency, status, winner_id, game_state, external_match_id, created_at, started_at, completed_at
	`, models.MatchCompleted, winner, matchID)
	if err != nil {
		// The money already moved and the settle op row guards re-entry, so
		// a retried Settle call will no-op the engine and land here again.
		return nil, fmt.Errorf("mark match %s completed: %w", matchID, err)
	}

	m.audit.Log("match_settled", winner.Int64, map[string]interface{}{
		"match_id": matchID,
		"draw":     winnerID == nil,
	})

	log.Printf("[MATCH] Match %s completed (draw=%v)", matchID, winnerID == nil)
	return &settled, nil
}
