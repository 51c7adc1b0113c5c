// Package resilience guards the primary tier of the analysis pipelines with a
// circuit breaker.
//
// [Breaker] is a three-state breaker (closed → open → half-open). While open,
// calls are rejected with [ErrCircuitOpen] without touching the provider, so a
// failing generative model costs one fast rejection instead of a full timeout
// before the deterministic fallback runs.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] when the breaker is open and
// the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successes close the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds tuning knobs for a [Breaker].
type Config struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is both the number of probe calls admitted in the half-open
	// state and the number of successes required to close. Default: 1.
	HalfOpenMax int

	// IsFailure decides whether an error returned by the guarded function
	// counts against the breaker. Default: every non-nil error except
	// context.Canceled, which means the caller gave up rather than the
	// provider failing.
	IsFailure func(error) bool

	// OnStateChange, if set, is called after every transition with the
	// breaker's mutex released.
	OnStateChange func(name string, from, to State)
}

// Breaker implements the three-state circuit breaker pattern.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	probes          int
	probeSuccesses  int
}

// New creates a [Breaker]. Zero-value config fields take their defaults.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Execute runs fn if the breaker admits the call, and records its outcome.
// A rejected call returns [ErrCircuitOpen] and fn is not invoked.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(probe, err)
	return err
}

// admit decides whether a call may proceed and reports whether it is a
// half-open probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	var from State
	changed := false
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		from, changed = b.state, true
		b.state = StateHalfOpen
		b.probes, b.probeSuccesses = 0, 0
	}
	switch b.state {
	case StateOpen:
		b.mu.Unlock()
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenMax {
			b.mu.Unlock()
			b.notify(changed, from, StateHalfOpen)
			return false, ErrCircuitOpen
		}
		b.probes++
		b.mu.Unlock()
		b.notify(changed, from, StateHalfOpen)
		return true, nil
	default:
		b.mu.Unlock()
		return false, nil
	}
}

func (b *Breaker) record(probe bool, err error) {
	failed := b.cfg.IsFailure(err)

	b.mu.Lock()
	from := b.state
	switch {
	case probe && failed:
		b.trip()
	case probe:
		b.probeSuccesses++
		if b.probeSuccesses >= b.cfg.HalfOpenMax {
			b.state = StateClosed
			b.consecutiveFail = 0
		}
	case failed:
		b.consecutiveFail++
		if b.state == StateClosed && b.consecutiveFail >= b.cfg.MaxFailures {
			b.trip()
		}
	default:
		if b.state == StateClosed {
			b.consecutiveFail = 0
		}
	}
	to := b.state
	failures := b.consecutiveFail
	b.mu.Unlock()

	if from != to {
		slog.Warn("circuit breaker state changed",
			"name", b.cfg.Name,
			"from", from.String(),
			"to", to.String(),
			"consecutive_failures", failures)
	}
	b.notify(from != to, from, to)
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
}

func (b *Breaker) notify(changed bool, from, to State) {
	if changed && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State returns the current [State]. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [Breaker.Execute].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [StateClosed].
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFail = 0
	b.probes, b.probeSuccesses = 0, 0
	slog.Info("circuit breaker manually reset", "name", b.cfg.Name)
}
