package thinking

import "errors"

// Orchestrator-level failure taxonomy. These wrap into step and run error
// messages and are checkable with errors.Is.
var (
	// ErrDependencyNotMet marks a step whose declared dependencies did not
	// all complete.
	ErrDependencyNotMet = errors.New("dependency not met")

	// ErrStepTimeout marks a step body that exceeded its own timeout.
	ErrStepTimeout = errors.New("step timed out")

	// ErrFallbackFailed marks a fallback strategy that failed or was unknown.
	ErrFallbackFailed = errors.New("fallback failed")

	// ErrRunTimeout marks a run aborted by the global timeout.
	ErrRunTimeout = errors.New("run timed out")

	// ErrInvalidSteps is a programmer error: a malformed step graph
	// (duplicate descriptions, unknown kinds, missing bodies).
	ErrInvalidSteps = errors.New("invalid step graph")
)
