// Package ledger persists per-key usage state across restarts.
package ledger

// State is the persisted usage document. Counts are positional: index i
// belongs to the i-th key in the configured pool.
type State struct {
	CurrentKeyIndex int   `json:"currentKeyIndex"`
	UsageCounts     []int `json:"usageCounts"`
	LastResetMonth  int   `json:"lastResetMonth"`
}

// Store loads and saves ledger state. Save overwrites the previous
// document; callers treat failures as non-fatal.
type Store interface {
	Load() (State, bool, error)
	Save(state State) error
}

// Normalize fits a loaded state to a pool of the given size, truncating or
// zero-padding the counts and clamping the cursor into range.
func Normalize(state State, poolSize int) State {
	counts := make([]int, poolSize)
	copy(counts, state.UsageCounts)
	state.UsageCounts = counts
	if state.CurrentKeyIndex < 0 || state.CurrentKeyIndex >= poolSize {
		state.CurrentKeyIndex = 0
	}
	return state
}
