package conversation

import (
	"fmt"
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Store is the session's append-only conversation log.
type Store interface {
	Append(turn Turn) error
	History() []Turn
	Len() int
}

type MemoryStore struct {
	mu    sync.RWMutex
	turns []Turn
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("invalid turn role %q", turn.Role)
	}
	if turn.At.IsZero() {
		turn.At = s.now().UTC()
	}
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
	return nil
}

// History returns a copy of the full log, oldest first.
func (s *MemoryStore) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Window returns the most recent maxExchanges user/assistant exchanges of
// history. A window never starts on an assistant turn. maxExchanges <= 0
// returns history unchanged.
func Window(history []Turn, maxExchanges int) []Turn {
	// Compared by halves so very large limits cannot overflow.
	if maxExchanges <= 0 || (len(history)+1)/2 <= maxExchanges {
		return history
	}
	window := history[len(history)-2*maxExchanges:]
	for len(window) > 0 && window[0].Role != RoleUser {
		window = window[1:]
	}
	return window
}
