package ledger

import "sync"

// MemoryStore keeps ledger state in memory, for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	state  State
	loaded bool

	// SaveErr, when set, is returned by Save to simulate storage failures.
	SaveErr error
	// Saves counts successful Save calls.
	Saves int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed pre-populates the store as if a previous process had saved state.
func (s *MemoryStore) Seed(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.loaded = true
}

// Load returns the last saved state, if any.
func (s *MemoryStore) Load() (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.loaded, nil
}

// Save replaces the stored state.
func (s *MemoryStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	cp := state
	cp.UsageCounts = append([]int(nil), state.UsageCounts...)
	s.state = cp
	s.loaded = true
	s.Saves++
	return nil
}
