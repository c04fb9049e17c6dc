package thinking

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/resilio/fetch"
)

// Fetcher is the slice of the fetch engine the builder needs for
// data-collection steps.
type Fetcher interface {
	FetchMany(ctx context.Context, resources []string, maxConcurrent int) []fetch.Outcome
}

// Default fallback strategy names.
const (
	// StrategySkipDataCollection lets a run continue without external data.
	StrategySkipDataCollection = "skip_data_collection"
	// StrategyStaticSummary substitutes a placeholder summary for a failed
	// analysis or synthesis step.
	StrategyStaticSummary = "static_summary"
)

// RegisterDefaultStrategies installs the built-in fallback handlers.
func RegisterDefaultStrategies(reg *FallbackRegistry) {
	reg.Register(StrategySkipDataCollection, func(_ context.Context, _ Step, cause error) (string, error) {
		return fmt.Sprintf("data collection skipped: %v", cause), nil
	})
	reg.Register(StrategyStaticSummary, func(_ context.Context, step Step, cause error) (string, error) {
		return fmt.Sprintf("placeholder summary for %q (primary failed: %v)", step.Description, cause), nil
	})
}

// ScenarioConfig describes the canonical scenario step chain.
type ScenarioConfig struct {
	Scenario   string
	StepCount  int // number of analysis steps; min 1
	Iterations int // analysis passes folded into each analysis step; min 1
	URLs       []string

	StepTimeout   time.Duration // zero uses the orchestrator default
	MaxConcurrent int           // fan-out bound for data collection
}

// Step descriptions of the canonical chain.
const (
	stepProblemDefinition = "problem definition"
	stepDataCollection    = "data collection"
	stepSynthesis         = "synthesis"
	stepConclusion        = "conclusion"
)

// BuildScenarioSteps builds the default sequential chain for a scenario:
// problem definition, optional data collection over the given URLs, the
// requested number of analysis steps, then synthesis and conclusion. The
// data-collection step is optional and declares the skip fallback, so dead
// sources degrade the run instead of aborting it.
func BuildScenarioSteps(cfg ScenarioConfig, fetcher Fetcher) []Step {
	if cfg.StepCount < 1 {
		cfg.StepCount = 1
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = 1
	}
	scenario := cfg.Scenario

	steps := []Step{{
		Kind:        KindProblemDefinition,
		Description: stepProblemDefinition,
		Timeout:     cfg.StepTimeout,
		Required:    true,
		Run: func(context.Context) (string, error) {
			return fmt.Sprintf("scenario under analysis: %s", scenario), nil
		},
	}}

	if len(cfg.URLs) > 0 && fetcher != nil {
		urls := cfg.URLs
		maxConcurrent := cfg.MaxConcurrent
		steps = append(steps, Step{
			Kind:             KindDataCollection,
			Description:      stepDataCollection,
			Timeout:          cfg.StepTimeout,
			DependsOn:        []string{stepProblemDefinition},
			Required:         false,
			FallbackStrategy: StrategySkipDataCollection,
			Run: func(ctx context.Context) (string, error) {
				outcomes := fetcher.FetchMany(ctx, urls, maxConcurrent)
				var ok int
				var bytes int
				for _, out := range outcomes {
					if out.Success {
						ok++
						bytes += len(out.Body)
					}
				}
				if ok == 0 {
					return "", fmt.Errorf("all %d sources failed", len(outcomes))
				}
				return fmt.Sprintf("collected %d/%d sources (%d bytes)", ok, len(outcomes), bytes), nil
			},
		})
	}

	analysisDeps := make([]string, 0, cfg.StepCount)
	for i := 1; i <= cfg.StepCount; i++ {
		desc := fmt.Sprintf("analysis step %d", i)
		analysisDeps = append(analysisDeps, desc)
		steps = append(steps, Step{
			Kind:             KindAnalysis,
			Description:      desc,
			Timeout:          cfg.StepTimeout,
			DependsOn:        []string{stepProblemDefinition},
			FallbackStrategy: StrategyStaticSummary,
			Run: func(context.Context) (string, error) {
				return fmt.Sprintf("analysis step %d: %d iteration(s) evaluated for %q",
					i, cfg.Iterations, scenario), nil
			},
		})
	}

	steps = append(steps, Step{
		Kind:        KindSynthesis,
		Description: stepSynthesis,
		Timeout:     cfg.StepTimeout,
		DependsOn:   analysisDeps,
		Required:    true,
		Run: func(context.Context) (string, error) {
			return fmt.Sprintf("synthesis: %d analysis step(s) combined for %q",
				cfg.StepCount, scenario), nil
		},
	})

	steps = append(steps, Step{
		Kind:        KindConclusion,
		Description: stepConclusion,
		Timeout:     cfg.StepTimeout,
		DependsOn:   []string{stepSynthesis},
		Required:    true,
		Run: func(context.Context) (string, error) {
			return fmt.Sprintf("conclusion: %q evaluated across %d analysis step(s) and %d iteration(s)",
				scenario, cfg.StepCount, cfg.Iterations), nil
		},
	})

	return steps
}
