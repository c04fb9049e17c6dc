package thinking

import "time"

// RunState is the orchestrator's run state machine.
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateTimedOut
)

// String returns the state name.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// RunResult is the structured outcome of one Execute call. It is always
// produced, including on abort and timeout: partial progress is never
// discarded.
type RunResult struct {
	// ProcessID uniquely identifies the run.
	ProcessID string

	// Success is true iff at least one step completed and no required step
	// is missing without a successful fallback.
	Success bool

	// State is the terminal run state.
	State RunState

	// Completed lists step descriptions in completion order. Steps recovered
	// via fallback carry the " (fallback)" suffix.
	Completed []string

	// Failed lists descriptions of steps whose primary body failed.
	Failed []string

	// Conclusion is synthesized from conclusion-bearing step outputs.
	Conclusion string

	// StepOutputs maps step description to output for every completed step.
	StepOutputs map[string]string

	// Errors carries diagnostic messages accumulated during the run.
	Errors []string

	Duration  time.Duration
	Timestamp time.Time
}

// Stats is a snapshot of orchestrator counters. Reads are idempotent.
type Stats struct {
	Runs               uint64 `json:"runs"`
	Succeeded          uint64 `json:"succeeded"`
	Failed             uint64 `json:"failed"`
	TimedOut           uint64 `json:"timed_out"`
	StepsExecuted      uint64 `json:"steps_executed"`
	StepsFailed        uint64 `json:"steps_failed"`
	FallbacksRecovered uint64 `json:"fallbacks_recovered"`
}
