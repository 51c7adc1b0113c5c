// Package analysis runs a two-tier analysis with explicit fallback.
//
// Every analysis task (grammar, speech, concept) has a primary tier backed by
// a generative model and a fallback tier backed by a deterministic engine.
// [Run] drives the state machine
//
//	TryingPrimary → {Succeeded, FallingBack} → {Succeeded, Failed}
//
// A primary failure of any kind (transport, timeout, open circuit, output that
// does not parse or validate) is logged and absorbed. A fallback failure, or
// no fallback at all, ends in [StateFailed] with an error wrapping
// [apperr.ErrPipelineExhausted]. The tier that succeeds supplies the whole
// result; tiers are never merged.
package analysis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/observe"
	"github.com/lingoloop/lingoloop/internal/resilience"
)

// TierName identifies which tier produced a result.
type TierName string

const (
	Primary  TierName = "primary"
	Fallback TierName = "fallback"
)

// State is a pipeline state.
type State int

const (
	StateTryingPrimary State = iota
	StateFallingBack
	StateSucceeded
	StateFailed
)

// String returns a lowercase name for s.
func (s State) String() string {
	switch s {
	case StateTryingPrimary:
		return "trying_primary"
	case StateFallingBack:
		return "falling_back"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Tier is one ranked way of producing R.
type Tier[R any] struct {
	// Provider labels logs, spans and metrics.
	Provider string

	// Run produces a validated result. A nil Run means the tier is not
	// configured.
	Run func(ctx context.Context) (R, error)

	// Timeout bounds Run. Zero adds no bound beyond the caller's context.
	Timeout time.Duration

	// Breaker, if set, guards Run. An open breaker counts as a tier failure.
	Breaker *resilience.Breaker
}

// Configured reports whether the tier can run.
func (t Tier[R]) Configured() bool { return t.Run != nil }

// Outcome is the result of a successful [Run].
type Outcome[R any] struct {
	Result R

	// Tier is the tier that produced Result.
	Tier TierName

	// Provider is the producing tier's provider label.
	Provider string

	// Partial is always false: a single tier's validated output is a complete
	// result.
	Partial bool

	// Transitions lists the states visited, ending in [StateSucceeded].
	Transitions []State
}

// Pipeline names the task being run and where its metrics go.
type Pipeline struct {
	Task    string
	Metrics *observe.Metrics
}

// Run executes primary and, if needed, fallback. It returns an error only
// when no tier produced a result; that error wraps
// [apperr.ErrPipelineExhausted] and the last tier failure.
func Run[R any](ctx context.Context, p Pipeline, primary, fallback Tier[R]) (Outcome[R], error) {
	metrics := p.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	ctx, span := observe.StartSpan(ctx, "analysis."+p.Task)
	defer span.End()

	var out Outcome[R]
	enter := func(s State) { out.Transitions = append(out.Transitions, s) }

	succeed := func(res R, tier TierName, provider string) (Outcome[R], error) {
		enter(StateSucceeded)
		out.Result, out.Tier, out.Provider = res, tier, provider
		span.SetAttributes(attribute.String("tier", string(tier)), attribute.String("provider", provider))
		metrics.RecordAnalysisOutcome(ctx, p.Task, string(tier))
		return out, nil
	}
	fail := func(cause error) (Outcome[R], error) {
		enter(StateFailed)
		err := apperr.Exhausted(p.Task, cause)
		observe.Fail(span, err)
		metrics.RecordAnalysisOutcome(ctx, p.Task, "none")
		return out, err
	}

	var cause error
	if primary.Configured() {
		enter(StateTryingPrimary)
		res, err := invoke(ctx, p.Task, primary, metrics)
		if err == nil {
			return succeed(res, Primary, primary.Provider)
		}
		if ctx.Err() != nil {
			return fail(err)
		}
		observe.Logger(ctx).Warn("primary analysis tier failed, falling back",
			"task", p.Task,
			"provider", primary.Provider,
			"err", err)
		cause = err
	}

	enter(StateFallingBack)
	if !fallback.Configured() {
		return fail(cause)
	}
	res, err := invoke(ctx, p.Task, fallback, metrics)
	if err != nil {
		observe.Logger(ctx).Error("fallback analysis tier failed",
			"task", p.Task,
			"provider", fallback.Provider,
			"err", err)
		return fail(err)
	}
	return succeed(res, Fallback, fallback.Provider)
}

// invoke runs one tier under its timeout and breaker and records latency.
func invoke[R any](ctx context.Context, task string, t Tier[R], metrics *observe.Metrics) (R, error) {
	callCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var res R
	run := func(ctx context.Context) error {
		r, err := t.Run(ctx)
		if err != nil {
			return err
		}
		res = r
		return nil
	}

	start := time.Now()
	var err error
	if t.Breaker != nil {
		err = t.Breaker.Execute(callCtx, run)
	} else {
		err = run(callCtx)
	}
	metrics.ObserveProvider(ctx, t.Provider, task, start, err)
	return res, err
}
