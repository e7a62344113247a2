package match

import (
	"encoding/json"
	"fmt"
	"sync"
)

// StateInitializer builds the opaque initial game-state payload for one
// game type. The payload shape belongs to the game engine that consumes
// it; this core only stores and returns it.
type StateInitializer func(player1ID, player2ID int64) (json.RawMessage, error)

// StateRegistry maps game types to their initializers. Game engines
// register their own; a few built-ins cover the launch games.
type StateRegistry struct {
	mu    sync.RWMutex
	inits map[string]StateInitializer
}

func NewStateRegistry() *StateRegistry {
	r := &StateRegistry{inits: make(map[string]StateInitializer)}
	r.Register("connect_four", initConnectFour)
	r.Register("chess", initChess)
	r.Register("dice", initDice)
	return r
}

func (r *StateRegistry) Register(gameType string, fn StateInitializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits[gameType] = fn
}

// Init builds the initial state for gameType, falling back to a minimal
// generic payload for unregistered types.
func (r *StateRegistry) Init(gameType string, player1ID, player2ID int64) (json.RawMessage, error) {
	r.mu.RLock()
	fn, ok := r.inits[gameType]
	r.mu.RUnlock()
	if !ok {
		return json.Marshal(map[string]any{
			"game_type": gameType,
			"players":   []int64{player1ID, player2ID},
		})
	}
	state, err := fn(player1ID, player2ID)
	if err != nil {
		return nil, fmt.Errorf("init %s state: %w", gameType, err)
	}
	return state, nil
}

func initConnectFour(player1ID, player2ID int64) (json.RawMessage, error) {
	grid := make([][]int, 6)
	for i := range grid {
		grid[i] = make([]int, 7)
	}
	return json.Marshal(map[string]any{
		"grid":       grid,
		"turn":       player1ID,
		"players":    []int64{player1ID, player2ID},
		"moves_made": 0,
	})
}

func initChess(player1ID, player2ID int64) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"fen":     "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"white":   player1ID,
		"black":   player2ID,
		"history": []string{},
	})
}

func initDice(player1ID, player2ID int64) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"players": []int64{player1ID, player2ID},
		"rolls":   map[string][]int{},
		"round":   1,
	})
}
