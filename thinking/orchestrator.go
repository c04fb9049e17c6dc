package thinking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/resilio/metrics"
)

const (
	// DefaultGlobalTimeout bounds a whole run when the caller passes none.
	DefaultGlobalTimeout = 60 * time.Second
	// DefaultStepTimeout bounds a step that declares no timeout of its own.
	DefaultStepTimeout = 30 * time.Second
)

// genericConclusion is returned when no conclusion-bearing step produced
// output. Absence of a conclusion is not an error.
const genericConclusion = "analysis completed without an explicit conclusion; see step outputs"

// Orchestrator executes step graphs sequentially. One Orchestrator is
// constructed at startup and may serve many runs; counters accumulate across
// runs for the process lifetime.
type Orchestrator struct {
	fallbacks          *FallbackRegistry
	logger             *slog.Logger
	defaultStepTimeout time.Duration

	mu    sync.Mutex
	state RunState
	stats Stats
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the orchestrator logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithFallbacks sets the fallback strategy registry.
func WithFallbacks(reg *FallbackRegistry) OrchestratorOption {
	return func(o *Orchestrator) {
		if reg != nil {
			o.fallbacks = reg
		}
	}
}

// WithDefaultStepTimeout overrides the per-step timeout default.
func WithDefaultStepTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.defaultStepTimeout = d
		}
	}
}

// NewOrchestrator creates an orchestrator in the Idle state.
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		fallbacks:          NewFallbackRegistry(),
		logger:             slog.Default(),
		defaultStepTimeout: DefaultStepTimeout,
		state:              StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Fallbacks returns the strategy registry for registration.
func (o *Orchestrator) Fallbacks() *FallbackRegistry { return o.fallbacks }

// State returns the most recent run state.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Stats returns a snapshot of run counters. The read is idempotent.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Execute runs steps strictly in declared order under globalTimeout
// (<= 0 uses the default). It returns an error only for a malformed step
// graph; every execution outcome, including aborts and timeouts, is reported
// through the RunResult.
func (o *Orchestrator) Execute(ctx context.Context, steps []Step, globalTimeout time.Duration) (RunResult, error) {
	if err := validateSteps(steps); err != nil {
		return RunResult{}, err
	}
	if globalTimeout <= 0 {
		globalTimeout = DefaultGlobalTimeout
	}

	start := time.Now()
	o.setState(StateRunning)

	runCtx, cancel := context.WithTimeout(ctx, globalTimeout)
	defer cancel()

	res := RunResult{
		ProcessID:   uuid.NewString(),
		State:       StateRunning,
		StepOutputs: make(map[string]string),
		Timestamp:   start,
	}
	completed := make(map[string]struct{})
	requiredUnmet := false
	timedOut := false

	o.logger.Info("thinking run started",
		"process_id", res.ProcessID, "steps", len(steps), "global_timeout", globalTimeout)

	for i, st := range steps {
		if runCtx.Err() != nil {
			timedOut = true
			requiredUnmet = requiredUnmet || anyRequired(steps[i:])
			res.Errors = append(res.Errors,
				fmt.Sprintf("%v after %d of %d steps", ErrRunTimeout, i, len(steps)))
			break
		}

		if missing := missingDeps(st, completed); len(missing) > 0 {
			if st.Required {
				requiredUnmet = true
				res.Failed = append(res.Failed, st.Description)
				res.Errors = append(res.Errors, fmt.Sprintf("required step %q: %v: missing %s",
					st.Description, ErrDependencyNotMet, strings.Join(missing, ", ")))
				o.logger.Warn("aborting run: required step dependency not met",
					"process_id", res.ProcessID, "step", st.Description, "missing", missing)
				break
			}
			o.logger.Debug("skipping optional step: dependency not met",
				"process_id", res.ProcessID, "step", st.Description, "missing", missing)
			continue
		}

		stepStart := time.Now()
		out, err := o.runStep(runCtx, st)
		metrics.StepDuration.WithLabelValues(string(st.Kind)).Observe(time.Since(stepStart).Seconds())

		if err == nil {
			o.countStep(st, "success")
			completed[st.Description] = struct{}{}
			res.Completed = append(res.Completed, st.Description)
			res.StepOutputs[st.Description] = out
			continue
		}

		o.countStep(st, "failure")
		res.Failed = append(res.Failed, st.Description)
		res.Errors = append(res.Errors, fmt.Sprintf("step %q: %v", st.Description, err))
		o.logger.Warn("step failed",
			"process_id", res.ProcessID, "step", st.Description, "error", err)

		if errors.Is(err, ErrRunTimeout) {
			timedOut = true
			requiredUnmet = requiredUnmet || st.Required || anyRequired(steps[i+1:])
			break
		}

		if st.FallbackStrategy != "" {
			fbOut, fbErr := o.fallbacks.run(runCtx, st.FallbackStrategy, st, err)
			if fbErr == nil {
				o.recordFallbackRecovery()
				// The bare description enters the completed set so that
				// dependents of the failed step still run.
				completed[st.Description] = struct{}{}
				res.Completed = append(res.Completed, st.Description+FallbackSuffix)
				res.StepOutputs[st.Description+FallbackSuffix] = fbOut
				o.logger.Info("step recovered via fallback",
					"process_id", res.ProcessID, "step", st.Description, "strategy", st.FallbackStrategy)
				continue
			}
			res.Errors = append(res.Errors, fmt.Sprintf("step %q: %v", st.Description, fbErr))
		}

		if st.Required {
			requiredUnmet = true
			res.Errors = append(res.Errors,
				fmt.Sprintf("aborting run: required step %q has no successful primary or fallback", st.Description))
			break
		}
	}

	res.Duration = time.Since(start)
	res.Conclusion = synthesizeConclusion(steps, res.StepOutputs)
	res.Success = len(res.Completed) > 0 && !requiredUnmet

	switch {
	case timedOut:
		res.State = StateTimedOut
	case res.Success:
		res.State = StateSucceeded
	default:
		res.State = StateFailed
	}
	o.finishRun(res.State)
	metrics.ThinkingRunsTotal.WithLabelValues(res.State.String()).Inc()

	o.logger.Info("thinking run finished",
		"process_id", res.ProcessID, "state", res.State.String(), "success", res.Success,
		"completed", len(res.Completed), "failed", len(res.Failed), "duration", res.Duration)

	return res, nil
}

// runStep executes one step body under its own timeout, retrying per the
// step's MaxRetries. A parent (global) deadline maps to ErrRunTimeout, a
// step-local deadline to ErrStepTimeout.
func (o *Orchestrator) runStep(ctx context.Context, st Step) (string, error) {
	timeout := st.Timeout
	if timeout <= 0 {
		timeout = o.defaultStepTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= st.MaxRetries; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := runBody(stepCtx, st.Run)
		cancel()

		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrRunTimeout, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = fmt.Errorf("%w after %v", ErrStepTimeout, timeout)
		} else {
			lastErr = err
		}
	}
	return "", lastErr
}

// runBody runs fn in its own goroutine so that a body ignoring ctx cannot
// stall the run; an overrunning body is abandoned.
func runBody(ctx context.Context, fn StepFunc) (string, error) {
	type bodyResult struct {
		out string
		err error
	}
	ch := make(chan bodyResult, 1)
	go func() {
		out, err := fn(ctx)
		ch <- bodyResult{out, err}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// synthesizeConclusion concatenates conclusion-bearing outputs in declaration
// order, honoring fallback-suffixed entries. Absence yields a generic string.
func synthesizeConclusion(steps []Step, outputs map[string]string) string {
	var parts []string
	for _, st := range steps {
		if !st.Kind.ConclusionBearing() {
			continue
		}
		if out, ok := outputs[st.Description]; ok && out != "" {
			parts = append(parts, out)
		} else if out, ok := outputs[st.Description+FallbackSuffix]; ok && out != "" {
			parts = append(parts, out)
		}
	}
	if len(parts) == 0 {
		return genericConclusion
	}
	return strings.Join(parts, "\n\n")
}

func missingDeps(st Step, completed map[string]struct{}) []string {
	var missing []string
	for _, dep := range st.DependsOn {
		if _, ok := completed[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	return missing
}

func anyRequired(steps []Step) bool {
	for _, st := range steps {
		if st.Required {
			return true
		}
	}
	return false
}

func validateSteps(steps []Step) error {
	seen := make(map[string]struct{}, len(steps))
	for _, st := range steps {
		if st.Description == "" {
			return fmt.Errorf("%w: step with empty description", ErrInvalidSteps)
		}
		if !st.Kind.Valid() {
			return fmt.Errorf("%w: step %q has unknown kind %q", ErrInvalidSteps, st.Description, st.Kind)
		}
		if st.Run == nil {
			return fmt.Errorf("%w: step %q has no body", ErrInvalidSteps, st.Description)
		}
		if _, dup := seen[st.Description]; dup {
			return fmt.Errorf("%w: duplicate step description %q", ErrInvalidSteps, st.Description)
		}
		seen[st.Description] = struct{}{}
	}
	return nil
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *Orchestrator) finishRun(s RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	o.stats.Runs++
	switch s {
	case StateSucceeded:
		o.stats.Succeeded++
	case StateFailed:
		o.stats.Failed++
	case StateTimedOut:
		o.stats.TimedOut++
	}
}

func (o *Orchestrator) countStep(st Step, outcome string) {
	o.mu.Lock()
	o.stats.StepsExecuted++
	if outcome == "failure" {
		o.stats.StepsFailed++
	}
	o.mu.Unlock()
	metrics.StepsTotal.WithLabelValues(string(st.Kind), outcome).Inc()
}

func (o *Orchestrator) recordFallbackRecovery() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.FallbacksRecovered++
}
