package download

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
)

// RetryState tracks a resource through the background retry tier.
type RetryState int

const (
	StatePending RetryState = iota
	StateAttempting
	StateDone
	StatePermanentlyFailed
)

func (s RetryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateDone:
		return "done"
	case StatePermanentlyFailed:
		return "permanently_failed"
	default:
		return "unknown"
	}
}

const (
	// DefaultRetrierAttempts bounds the background tier per resource.
	DefaultRetrierAttempts = 10
	// DefaultRetrierInterval is the pause before each background attempt.
	// Server-side faults behind transient errors tend to persist for a
	// while, so the background tier waits far longer than the inline one.
	DefaultRetrierInterval = time.Hour
)

// Retrier is the background retry tier. Resources whose inline retries were
// exhausted by a transient error are handed here; each gets a bounded number
// of widely spaced attempts on its own timer. A resource that eventually
// succeeds has its error-bucket entry removed from the run stats.
type Retrier struct {
	maxAttempts int
	interval    time.Duration
	sync        func(ctx context.Context, acronym string) error
	stats       *Stats

	mu     sync.Mutex
	states map[string]RetryState
	wg     sync.WaitGroup
}

// NewRetrier builds a background tier driving the given per-resource sync
// function. Non-positive attempts or interval fall back to the defaults.
func NewRetrier(attempts int, interval time.Duration, syncFn func(ctx context.Context, acronym string) error, stats *Stats) *Retrier {
	if attempts <= 0 {
		attempts = DefaultRetrierAttempts
	}
	if interval <= 0 {
		interval = DefaultRetrierInterval
	}
	return &Retrier{
		maxAttempts: attempts,
		interval:    interval,
		sync:        syncFn,
		stats:       stats,
		states:      make(map[string]RetryState),
	}
}

// Submit hands a resource to the background tier. Duplicate submissions for
// a resource already in flight are ignored.
func (r *Retrier) Submit(ctx context.Context, acronym string, cause error) {
	r.mu.Lock()
	if _, exists := r.states[acronym]; exists {
		r.mu.Unlock()
		return
	}
	r.states[acronym] = StatePending
	r.mu.Unlock()

	slog.Info("Scheduling background retries for ontology",
		"acronym", acronym, "cause", cause, "max_attempts", r.maxAttempts, "interval", r.interval)
	r.wg.Add(1)
	go r.retryLoop(ctx, acronym)
}

// Wait blocks until every submitted resource has reached a terminal state.
func (r *Retrier) Wait() {
	r.wg.Wait()
}

// State returns the current state for a resource and whether it was ever
// submitted.
func (r *Retrier) State(acronym string) (RetryState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[acronym]
	return state, ok
}

func (r *Retrier) setState(acronym string, state RetryState) {
	r.mu.Lock()
	r.states[acronym] = state
	r.mu.Unlock()
}

func (r *Retrier) retryLoop(ctx context.Context, acronym string) {
	defer r.wg.Done()

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			r.setState(acronym, StatePermanentlyFailed)
			r.stats.AddError(acronym, ctx.Err())
			return
		case <-timer.C:
		}

		r.setState(acronym, StateAttempting)
		err := r.sync(ctx, acronym)
		if err == nil {
			slog.Info("Background retry succeeded", "acronym", acronym, "attempt", attempt)
			r.setState(acronym, StateDone)
			r.stats.RemoveError(acronym)
			return
		}

		if errors.IsPermanent(err) {
			slog.Warn("Background retry hit a permanent error, giving up",
				"acronym", acronym, "attempt", attempt, "error", err)
			r.setState(acronym, StatePermanentlyFailed)
			r.stats.AddError(acronym, err)
			return
		}

		slog.Warn("Background retry failed",
			"acronym", acronym, "attempt", attempt, "max_attempts", r.maxAttempts, "error", err)
		r.setState(acronym, StatePending)
		r.stats.AddError(acronym, err)
		timer.Reset(r.interval)
	}

	slog.Error("Background retries exhausted", "acronym", acronym, "attempts", r.maxAttempts)
	r.setState(acronym, StatePermanentlyFailed)
}
