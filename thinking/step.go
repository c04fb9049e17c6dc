// Package thinking implements a dependency-aware, timeout-bounded sequential
// step orchestrator.
//
// Steps are declared up front and executed strictly in declaration order.
// Dependencies are checked, never used to schedule: the orchestrator is not a
// DAG scheduler. A failed step may recover through a named fallback strategy;
// a required step with no successful primary or fallback aborts the run. The
// whole run is bounded by a global timeout, and partial results are always
// returned.
package thinking

import (
	"context"
	"time"
)

// Kind identifies the kind of a thinking step.
type Kind string

const (
	KindProblemDefinition Kind = "problem_definition"
	KindDataCollection    Kind = "data_collection"
	KindAnalysis          Kind = "analysis"
	KindSynthesis         Kind = "synthesis"
	KindValidation        Kind = "validation"
	KindConclusion        Kind = "conclusion"
)

// Valid reports whether k is a known step kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProblemDefinition, KindDataCollection, KindAnalysis,
		KindSynthesis, KindValidation, KindConclusion:
		return true
	}
	return false
}

// ConclusionBearing reports whether the step's output feeds the final
// conclusion synthesis.
func (k Kind) ConclusionBearing() bool {
	return k == KindSynthesis || k == KindConclusion
}

// StepFunc is a step body. It must honor ctx cancellation; bodies that block
// past their deadline are abandoned, not interrupted.
type StepFunc func(ctx context.Context) (string, error)

// Step declares one unit of sequential work. Description doubles as the
// step's unique identifier within a run.
type Step struct {
	Kind        Kind
	Description string

	// Timeout bounds this step's execution. Zero uses the orchestrator default.
	Timeout time.Duration

	// MaxRetries reruns the body on failure before the fallback is consulted.
	MaxRetries int

	// DependsOn lists descriptions of steps that must have completed first.
	DependsOn []string

	// Required aborts the whole run if this step cannot complete.
	Required bool

	// FallbackStrategy names a registered fallback handler, or "" for none.
	// An unknown name is a runtime failure, not a declaration error.
	FallbackStrategy string

	// Run is the step body.
	Run StepFunc
}
