package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stakearena/backend/internal/models"
)

// ErrDuplicateQueueEntry means the user already has a pending entry in
// some queue. Recoverable; the caller should surface "already searching".
var ErrDuplicateQueueEntry = errors.New("user already has a pending queue entry")

// MatchEventsChannel is the Redis pub/sub channel carrying match-found
// events for the WebSocket layer.
const MatchEventsChannel = "match_events"

// Key identifies one queue: only entries sharing all three fields are
// compatible opponents.
type Key struct {
	GameType string
	Stake    float64
	Currency string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%.2f:%s", k.GameType, k.Stake, k.Currency)
}

// Entry is one waiting player. Ephemeral: it lives only in memory and is
// destroyed on match, cancel or staleness sweep.
type Entry struct {
	UserID   int64     `json:"user_id"`
	GameType string    `json:"game_type"`
	Stake    float64   `json:"stake"`
	Currency string    `json:"currency"`
	JoinedAt time.Time `json:"joined_at"`
}

// MatchCreator is the lifecycle contract the queue pairs into.
type MatchCreator interface {
	CreateMatch(ctx context.Context, player1ID, player2ID int64, gameType string, stake float64, currency, externalID string) (*models.Match, error)
}

// Result is the outcome of an Enqueue call
type Result struct {
	Matched      bool           `json:"matched"`
	MatchID      string         `json:"match_id,omitempty"`
	OpponentID   int64          `json:"opponent_id,omitempty"`
	Match        *models.Match  `json:"match,omitempty"`
	Position     int            `json:"position,omitempty"`
	TotalWaiting int            `json:"total_waiting,omitempty"`
}

// Status describes a user's current queue entry
type Status struct {
	GameType     string    `json:"game_type"`
	Stake        float64   `json:"stake"`
	Currency     string    `json:"currency"`
	Position     int       `json:"position"`
	TotalWaiting int       `json:"total_waiting"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Store is the in-memory matchmaking queue. One mutex serializes every
// queue mutation, so the check-then-pop-or-insert sequence in Enqueue is
// a single critical section: a waiting entry can never be popped twice
// and a user can never hold two entries. The mutex is NOT held across
// match creation; users whose pairing is in flight are reserved in the
// pairing set instead.
type Store struct {
	mu      sync.Mutex
	queues  map[Key][]*Entry
	byUser  map[int64]Key
	pairing map[int64]bool
	creator MatchCreator
	rdb     *redis.Client
}

func NewStore(creator MatchCreator, rdb *redis.Client) *Store {
	return &Store{
		queues:  make(map[Key][]*Entry),
		byUser:  make(map[int64]Key),
		pairing: make(map[int64]bool),
		creator: creator,
		rdb:     rdb,
	}
}

// Enqueue pairs the caller with the longest-waiting compatible entry, or
// inserts the caller as a new waiting entry. Pairing is strictly FIFO
// within a key; there is no skill ranking. The escrow transaction runs
// with the mutex released so a slow pairing never stalls cancels, status
// reads or the sweeper on other entries.
func (s *Store) Enqueue(ctx context.Context, userID int64, gameType string, stake float64, currency string) (*Result, error) {
	s.mu.Lock()

	if _, pending := s.byUser[userID]; pending || s.pairing[userID] {
		s.mu.Unlock()
		return nil, ErrDuplicateQueueEntry
	}

	key := Key{GameType: gameType, Stake: stake, Currency: currency}
	waiting := s.queues[key]

	if len(waiting) == 0 {
		entry := &Entry{
			UserID:   userID,
			GameType: gameType,
			Stake:    stake,
			Currency: currency,
			JoinedAt: time.Now(),
		}
		s.queues[key] = append(s.queues[key], entry)
		s.byUser[userID] = key
		s.syncStats(key)
		position := len(s.queues[key])
		s.mu.Unlock()

		log.Printf("[QUEUE] User %d queued on %s (waiting=%d)", userID, key, position)

		return &Result{
			Matched:      false,
			Position:     position,
			TotalWaiting: position,
		}, nil
	}

	// Pop the longest-waiting opponent and reserve both users while the
	// escrow transaction runs outside the lock. Reserved users cannot
	// re-enqueue, and the popped opponent is invisible to Cancel and the
	// sweeper until pairing resolves.
	opponent := waiting[0]
	s.queues[key] = waiting[1:]
	delete(s.byUser, opponent.UserID)
	s.pairing[opponent.UserID] = true
	s.pairing[userID] = true
	s.syncStats(key)
	s.mu.Unlock()

	created, err := s.creator.CreateMatch(ctx, opponent.UserID, userID, gameType, stake, currency, "")

	s.mu.Lock()
	delete(s.pairing, opponent.UserID)
	delete(s.pairing, userID)
	if err != nil {
		// Escrow failed after the pop. The waiting opponent did nothing
		// wrong: put them back at the front so they keep their FIFO spot,
		// and surface the error to the caller.
		s.queues[key] = append([]*Entry{opponent}, s.queues[key]...)
		s.byUser[opponent.UserID] = key
		s.syncStats(key)
		s.mu.Unlock()
		log.Printf("[QUEUE] Pairing %d vs %d failed, opponent requeued: %v", userID, opponent.UserID, err)
		return nil, err
	}
	s.mu.Unlock()

	log.Printf("[QUEUE] Matched user %d with %d on %s (match %s)", userID, opponent.UserID, key, created.ID)
	s.publishMatchFound(created, opponent.UserID, userID)

	return &Result{
		Matched:    true,
		MatchID:    created.ID,
		OpponentID: opponent.UserID,
		Match:      created,
	}, nil
}

// Cancel removes the caller's pending entry. Returns false when the user
// was not queued. Active matches are unaffected.
func (s *Store) Cancel(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byUser[userID]
	if !ok {
		return false
	}
	s.removeLocked(key, userID)
	log.Printf("[QUEUE] User %d cancelled from %s", userID, key)
	return true
}

// Status returns the caller's queue position, or nil if not queued
func (s *Store) Status(userID int64) *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byUser[userID]
	if !ok {
		return nil
	}
	waiting := s.queues[key]
	for i, entry := range waiting {
		if entry.UserID == userID {
			return &Status{
				GameType:     key.GameType,
				Stake:        key.Stake,
				Currency:     key.Currency,
				Position:     i + 1,
				TotalWaiting: len(waiting),
				JoinedAt:     entry.JoinedAt,
			}
		}
	}
	return nil
}

// SweepStale removes every entry older than maxAge and returns the count.
// Meant for the periodic sweeper, not per-request paths.
func (s *Store) SweepStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for key, waiting := range s.queues {
		kept := waiting[:0]
		for _, entry := range waiting {
			if entry.JoinedAt.Before(cutoff) {
				delete(s.byUser, entry.UserID)
				removed++
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == 0 {
			delete(s.queues, key)
		} else {
			s.queues[key] = kept
		}
		s.syncStats(key)
	}
	if removed > 0 {
		log.Printf("[SWEEP] Removed %d stale queue entries (older than %v)", removed, maxAge)
	}
	return removed
}

// Depths returns the number of waiting entries per queue key
func (s *Store) Depths() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	depths := make(map[string]int, len(s.queues))
	for key, waiting := range s.queues {
		if len(waiting) > 0 {
			depths[key.String()] = len(waiting)
		}
	}
	return depths
}

// StartSweeper runs SweepStale on a ticker until ctx is cancelled
func (s *Store) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[SWEEP] Queue sweeper started (every %v, max age %v)", interval, maxAge)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SWEEP] Queue sweeper stopped")
			return
		case <-ticker.C:
			s.SweepStale(maxAge)
		}
	}
}

// caller must hold s.mu
func (s *Store) removeLocked(key Key, userID int64) {
	delete(s.byUser, userID)
	waiting := s.queues[key]
	for i, entry := range waiting {
		if entry.UserID == userID {
			s.queues[key] = append(waiting[:i], waiting[i+1:]...)
			break
		}
	}
	if len(s.queues[key]) == 0 {
		delete(s.queues, key)
	}
	s.syncStats(key)
}

// publishMatchFound notifies the WS layer about a new pairing, one event
// per player. Best-effort: matchmaking never fails on a pub/sub error.
func (s *Store) publishMatchFound(created *models.Match, player1ID, player2ID int64) {
	if s.rdb == nil {
		return
	}
	for userID, opponentID := range map[int64]int64{player1ID: player2ID, player2ID: player1ID} {
		payload, err := json.Marshal(map[string]interface{}{
			"type":        "match_found",
			"match_id":    created.ID,
			"user_id":     userID,
			"opponent_id": opponentID,
			"game_type":   created.GameType,
			"stake":       created.Stake,
			"currency":    created.Currency,
		})
		if err != nil {
			continue
		}
		if err := s.rdb.Publish(context.Background(), MatchEventsChannel, payload).Err(); err != nil {
			log.Printf("[QUEUE] Failed to publish match_found for user %d: %v", userID, err)
		}
	}
}

// syncStats mirrors one key's depth into Redis for dashboards.
// caller must hold s.mu
func (s *Store) syncStats(key Key) {
	if s.rdb == nil {
		return
	}
	ctx := context.Background()
	depth := len(s.queues[key])
	var err error
	if depth == 0 {
		err = s.rdb.HDel(ctx, "queue_stats", key.String()).Err()
	} else {
		err = s.rdb.HSet(ctx, "queue_stats", key.String(), depth).Err()
	}
	if err != nil {
		log.Printf("[QUEUE] Failed to sync stats for %s: %v", key, err)
	}
}
