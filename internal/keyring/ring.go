// Package keyring rotates upstream API keys under a monthly usage cap.
package keyring

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/ledger"
	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/relay"
)

// DefaultMonthlyCap is the per-key request budget per calendar month.
const DefaultMonthlyCap = 1000

// Config controls Ring behavior.
type Config struct {
	Keys       []string
	MonthlyCap int
}

// Ring owns the key pool and its usage ledger. Select and RecordUsage
// share one mutex, and Select holds a reservation against the cap for
// each in-flight fetch, so two concurrent requests can neither
// double-select a near-exhausted key past its budget nor race the
// persisted-state write.
type Ring struct {
	mu       sync.Mutex
	keys     []string
	counts   []int
	reserved []int
	cursor   int
	month    int
	cap      int

	store  ledger.Store
	clock  relay.Clock
	logger *zap.Logger
}

// New builds a Ring, resuming from persisted state when present.
func New(cfg Config, store ledger.Store, clock relay.Clock, logger *zap.Logger) *Ring {
	if logger == nil {
		logger = zap.NewNop()
	}
	monthlyCap := cfg.MonthlyCap
	if monthlyCap <= 0 {
		monthlyCap = DefaultMonthlyCap
	}
	r := &Ring{
		keys:     append([]string(nil), cfg.Keys...),
		counts:   make([]int, len(cfg.Keys)),
		reserved: make([]int, len(cfg.Keys)),
		month:    int(clock.Now().Month()) - 1,
		cap:      monthlyCap,
		store:    store,
		clock:    clock,
		logger:   logger,
	}
	if store == nil {
		return r
	}
	state, ok, err := store.Load()
	if err != nil {
		logger.Warn("key ledger load failed, starting fresh", zap.Error(err))
		return r
	}
	if ok {
		state = ledger.Normalize(state, len(r.keys))
		r.counts = state.UsageCounts
		r.cursor = state.CurrentKeyIndex
		r.month = state.LastResetMonth
		for i, count := range r.counts {
			metrics.SetKeyUsage(i, count)
		}
	}
	return r
}

// Empty reports whether any keys are configured.
func (r *Ring) Empty() bool {
	return len(r.keys) == 0
}

// Select returns the index and value of the next key whose committed
// count plus in-flight reservations sits below the cap, scanning from
// the cursor and wrapping once. The cursor advances to the selected
// index so consecutive calls spread load across the pool. The month
// rollover is checked on every call; a stale month zeroes all counts
// before scanning. The selection holds a reservation until the caller
// settles it with RecordUsage or Release.
func (r *Ring) Select() (int, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) == 0 {
		return 0, "", relay.ErrNoCredentials
	}
	r.rollPeriodLocked(int(r.clock.Now().Month()) - 1)

	idx, ok := nextIndex(r.effectiveCounts(), r.cursor, r.cap)
	if !ok {
		return 0, "", relay.ErrQuotaExhausted
	}
	r.cursor = idx
	r.reserved[idx]++
	return idx, r.keys[idx], nil
}

// RecordUsage converts a reservation into a committed count and persists
// the ledger. Persistence failures are logged, never surfaced.
func (r *Ring) RecordUsage(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.counts) {
		return
	}
	if r.reserved[index] > 0 {
		r.reserved[index]--
	}
	r.counts[index]++
	metrics.SetKeyUsage(index, r.counts[index])
	r.persistLocked()
}

// Release drops a reservation without charging the key, for fetches
// that failed before the service served anything.
func (r *Ring) Release(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.reserved) {
		return
	}
	if r.reserved[index] > 0 {
		r.reserved[index]--
	}
}

// Usage returns a copy of the current counts.
func (r *Ring) Usage() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.counts...)
}

// MaybeRollPeriod zeroes the counts when now's month differs from the
// stored one. Exposed for startup; Select performs the same check itself.
func (r *Ring) MaybeRollPeriod(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollPeriodLocked(int(now.Month()) - 1)
}

func (r *Ring) rollPeriodLocked(nowMonth int) {
	if nowMonth == r.month {
		return
	}
	for i := range r.counts {
		r.counts[i] = 0
		metrics.SetKeyUsage(i, 0)
	}
	r.month = nowMonth
	r.logger.Info("monthly quota reset", zap.Int("month", nowMonth))
	r.persistLocked()
}

func (r *Ring) persistLocked() {
	if r.store == nil {
		return
	}
	state := ledger.State{
		CurrentKeyIndex: r.cursor,
		UsageCounts:     append([]int(nil), r.counts...),
		LastResetMonth:  r.month,
	}
	if err := r.store.Save(state); err != nil {
		r.logger.Warn("key ledger save failed", zap.Error(err))
	}
}

func (r *Ring) effectiveCounts() []int {
	out := make([]int, len(r.counts))
	for i := range r.counts {
		out[i] = r.counts[i] + r.reserved[i]
	}
	return out
}

// nextIndex scans counts starting at the cursor, wrapping exactly once,
// and returns the first index below the cap. Returns false when every
// key is at or above the cap.
func nextIndex(counts []int, cursor int, cap int) (int, bool) {
	n := len(counts)
	if n == 0 {
		return 0, false
	}
	if cursor < 0 || cursor >= n {
		cursor = 0
	}
	for offset := 0; offset < n; offset++ {
		i := (cursor + offset) % n
		if counts[i] < cap {
			return i, true
		}
	}
	return 0, false
}
