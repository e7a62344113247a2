package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stakearena/backend/internal/models"
)

// stubCreator records pairings and can be told to fail
type stubCreator struct {
	mu      sync.Mutex
	pairs   [][2]int64
	nextErr error
}

func (s *stubCreator) CreateMatch(_ context.Context, player1ID, player2ID int64, gameType string, stake float64, currency, _ string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextErr != nil {
		err := s.nextErr
		s.nextErr = nil
		return nil, err
	}
	s.pairs = append(s.pairs, [2]int64{player1ID, player2ID})
	return &models.Match{
		ID:        fmt.Sprintf("match_%d", len(s.pairs)),
		GameType:  gameType,
		Player1ID: player1ID,
		Player2ID: player2ID,
		Stake:     stake,
		Currency:  currency,
		Status:    models.MatchActive,
	}, nil
}

func TestEnqueuePairsFIFO(t *testing.T) {
	creator := &stubCreator{}
	store := NewStore(creator, nil)
	ctx := context.Background()

	r1, err := store.Enqueue(ctx, 1, "connect_four", 10, "real")
	if err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if r1.Matched {
		t.Fatal("first entry should wait, not match")
	}

	// A third player on a different stake must not pair with user 1
	r2, err := store.Enqueue(ctx, 2, "connect_four", 20, "real")
	if err != nil || r2.Matched {
		t.Fatalf("different stake must not match (res=%+v err=%v)", r2, err)
	}

	r3, err := store.Enqueue(ctx, 3, "connect_four", 10, "real")
	if err != nil {
		t.Fatalf("compatible enqueue failed: %v", err)
	}
	if !r3.Matched || r3.OpponentID != 1 {
		t.Fatalf("expected user 3 to match user 1, got %+v", r3)
	}
	if len(creator.pairs) != 1 || creator.pairs[0] != [2]int64{1, 3} {
		t.Fatalf("unexpected pairings: %v", creator.pairs)
	}

	// Both matched users are gone from the queue
	if store.Status(1) != nil || store.Status(3) != nil {
		t.Error("matched users should not remain queued")
	}
	if store.Status(2) == nil {
		t.Error("user 2 should still be waiting")
	}
}

func TestEnqueueRejectsDuplicate(t *testing.T) {
	store := NewStore(&stubCreator{}, nil)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, 7, "dice", 5, "virtual"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	// Same user, even on a different key, is rejected
	if _, err := store.Enqueue(ctx, 7, "chess", 50, "real"); !errors.Is(err, ErrDuplicateQueueEntry) {
		t.Fatalf("expected ErrDuplicateQueueEntry, got %v", err)
	}
}

func TestCancelRemovesEntry(t *testing.T) {
	store := NewStore(&stubCreator{}, nil)
	ctx := context.Background()

	if store.Cancel(9) {
		t.Error("cancel of unqueued user should return false")
	}

	store.Enqueue(ctx, 9, "chess", 25, "real")
	if !store.Cancel(9) {
		t.Error("cancel of queued user should return true")
	}
	if store.Status(9) != nil {
		t.Error("cancelled user should not have a status")
	}

	// A cancelled entry must not be matchable
	res, err := store.Enqueue(ctx, 10, "chess", 25, "real")
	if err != nil || res.Matched {
		t.Errorf("user 10 should wait, not pair with a cancelled entry (res=%+v err=%v)", res, err)
	}
}

func TestStatusReportsPosition(t *testing.T) {
	store := NewStore(&stubCreator{nextErr: errors.New("escrow down")}, nil)
	ctx := context.Background()

	store.Enqueue(ctx, 1, "dice", 5, "real")
	// Pairing fails, so user 2's enqueue errors and user 1 stays queued
	store.Enqueue(ctx, 2, "dice", 5, "real")

	st := store.Status(1)
	if st == nil {
		t.Fatal("user 1 should be queued")
	}
	if st.Position != 1 || st.TotalWaiting != 1 {
		t.Errorf("user 1 position = %d/%d, want 1/1", st.Position, st.TotalWaiting)
	}
	if st.GameType != "dice" || st.Stake != 5 || st.Currency != "real" {
		t.Errorf("unexpected status key: %+v", st)
	}
}

func TestPairingFailureRequeuesOpponentAtFront(t *testing.T) {
	creator := &stubCreator{}
	store := NewStore(creator, nil)
	ctx := context.Background()

	store.Enqueue(ctx, 1, "connect_four", 10, "real")

	creator.nextErr = errors.New("insufficient balance for stake")
	if _, err := store.Enqueue(ctx, 2, "connect_four", 10, "real"); err == nil {
		t.Fatal("expected pairing error to surface to the caller")
	}

	// User 1 keeps their spot; user 2 holds no entry
	st := store.Status(1)
	if st == nil || st.Position != 1 {
		t.Fatalf("user 1 should be back at position 1, got %+v", st)
	}
	if store.Status(2) != nil {
		t.Error("failed caller must not be left queued")
	}

	// Next compatible enqueue pairs with the requeued opponent
	res, err := store.Enqueue(ctx, 3, "connect_four", 10, "real")
	if err != nil || !res.Matched || res.OpponentID != 1 {
		t.Fatalf("expected user 3 to pair with requeued user 1, got %+v err=%v", res, err)
	}
}

func TestSweepStaleRemovesOldEntries(t *testing.T) {
	store := NewStore(&stubCreator{}, nil)
	ctx := context.Background()

	store.Enqueue(ctx, 1, "chess", 10, "real")
	store.Enqueue(ctx, 2, "chess", 20, "real")

	// Age user 1's entry past the threshold
	store.mu.Lock()
	for _, waiting := range store.queues {
		for _, entry := range waiting {
			if entry.UserID == 1 {
				entry.JoinedAt = time.Now().Add(-6 * time.Minute)
			}
		}
	}
	store.mu.Unlock()

	removed := store.SweepStale(5 * time.Minute)
	if removed != 1 {
		t.Fatalf("SweepStale removed %d entries, want 1", removed)
	}
	if store.Status(1) != nil {
		t.Error("stale entry should be gone")
	}
	if store.Status(2) == nil {
		t.Error("fresh entry should survive the sweep")
	}

	// The swept entry must not be matchable afterwards
	res, err := store.Enqueue(ctx, 3, "chess", 10, "real")
	if err != nil || res.Matched {
		t.Errorf("user 3 should wait, not pair with a swept entry (res=%+v err=%v)", res, err)
	}
}

// blockingCreator parks inside CreateMatch until released, standing in
// for a slow escrow transaction.
type blockingCreator struct {
	stubCreator
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCreator) CreateMatch(ctx context.Context, player1ID, player2ID int64, gameType string, stake float64, currency, externalID string) (*models.Match, error) {
	close(b.entered)
	<-b.release
	return b.stubCreator.CreateMatch(ctx, player1ID, player2ID, gameType, stake, currency, externalID)
}

// A pairing stuck in escrow must not stall the rest of the queue: other
// users can still join, cancel and read status, and the two users being
// paired stay reserved.
func TestSlowPairingDoesNotBlockQueueOps(t *testing.T) {
	creator := &blockingCreator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	store := NewStore(creator, nil)
	ctx := context.Background()

	store.Enqueue(ctx, 1, "dice", 5, "real")

	type enqueueResult struct {
		res *Result
		err error
	}
	resultCh := make(chan enqueueResult, 1)
	go func() {
		res, err := store.Enqueue(ctx, 2, "dice", 5, "real")
		resultCh <- enqueueResult{res, err}
	}()

	select {
	case <-creator.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("pairing never reached match creation")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		// Both in-flight users are reserved
		if _, err := store.Enqueue(ctx, 1, "dice", 5, "real"); !errors.Is(err, ErrDuplicateQueueEntry) {
			t.Errorf("user 1 mid-pairing should be rejected, got %v", err)
		}
		if _, err := store.Enqueue(ctx, 2, "chess", 10, "real"); !errors.Is(err, ErrDuplicateQueueEntry) {
			t.Errorf("user 2 mid-pairing should be rejected, got %v", err)
		}
		// The popped opponent cannot be cancelled out of the pairing
		if store.Cancel(1) {
			t.Error("cancel of a user mid-pairing should return false")
		}

		// Unrelated queue traffic proceeds
		if res, err := store.Enqueue(ctx, 3, "chess", 25, "real"); err != nil || res.Matched {
			t.Errorf("unrelated enqueue should wait, got res=%+v err=%v", res, err)
		}
		if st := store.Status(3); st == nil || st.Position != 1 {
			t.Errorf("unrelated status should be readable, got %+v", st)
		}
		if !store.Cancel(3) {
			t.Error("unrelated cancel should succeed")
		}
		if store.SweepStale(time.Minute) != 0 {
			t.Error("sweep should find nothing stale")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue operations blocked behind an in-flight pairing")
	}

	close(creator.release)
	select {
	case r := <-resultCh:
		if r.err != nil || !r.res.Matched || r.res.OpponentID != 1 {
			t.Fatalf("pairing should complete after escrow, got res=%+v err=%v", r.res, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pairing never completed")
	}

	// Reservations are released once the pairing resolves
	if _, err := store.Enqueue(ctx, 1, "dice", 5, "real"); err != nil {
		t.Errorf("user 1 should be free to queue again, got %v", err)
	}
}

// Concurrent joins on one key must produce exactly one pairing per two
// entries; a waiting entry may never be popped into two matches.
func TestConcurrentEnqueueNoDoublePairing(t *testing.T) {
	creator := &stubCreator{}
	store := NewStore(creator, nil)
	ctx := context.Background()

	const users = 100
	var wg sync.WaitGroup
	for i := 1; i <= users; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if _, err := store.Enqueue(ctx, userID, "dice", 5, "real"); err != nil {
				t.Errorf("enqueue %d failed: %v", userID, err)
			}
		}(int64(i))
	}
	wg.Wait()

	if len(creator.pairs) != users/2 {
		t.Fatalf("got %d pairings for %d users, want %d", len(creator.pairs), users, users/2)
	}

	seen := make(map[int64]bool)
	for _, pair := range creator.pairs {
		for _, userID := range []int64{pair[0], pair[1]} {
			if seen[userID] {
				t.Fatalf("user %d appears in more than one match", userID)
			}
			seen[userID] = true
		}
	}

	if depths := store.Depths(); len(depths) != 0 {
		t.Errorf("queue should be drained, still has %v", depths)
	}
}
