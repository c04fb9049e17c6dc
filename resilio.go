// Package resilio provides a fault-tolerant outbound fetch layer and a
// dependency-aware sequential thinking orchestrator.
//
// The fetch layer wraps every outbound HTTP call with:
//   - Per-resource circuit breakers (closed, open, half-open)
//   - Error classification and kind-aware retry with exponential backoff
//   - A blacklist for repeatedly failing resources
//   - Concurrency-bounded batch fetching
//
// The thinking layer runs ordered step chains with per-step and global
// timeouts, dependency checks, and named fallback strategies, always
// returning whatever partial results were produced.
//
// # Quick Start
//
//	import "github.com/vietddude/resilio"
//
//	cfg := resilio.DefaultAppConfig()
//	resilio.InitLogging(cfg.Logging)
//
//	app, err := resilio.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//
//	out := app.Fetch(ctx, "https://api.example.com/data")
//	if out.Success {
//	    process(out.Body)
//	}
//
//	result, err := app.RunSequentialThinking(ctx, "cache stampede", 3, 2, urls)
//
// # Package Structure
//
// The module is organized into sub-packages for maintainability:
//
//   - fetch/    - Engine, outcomes, blacklist (breaker/, retry/, classify/)
//   - thinking/ - Orchestrator, steps, fallback strategies, scenario builder
//   - config/   - YAML configuration with env substitution
//   - stats/    - HTTP stats/health/metrics server
//
// The most common types are re-exported at the root level for convenience.
package resilio

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/resilio/config"
	"github.com/vietddude/resilio/fetch"
	"github.com/vietddude/resilio/fetch/retry"
	"github.com/vietddude/resilio/stats"
	"github.com/vietddude/resilio/thinking"
)

// =============================================================================
// Re-exported types from fetch package
// =============================================================================

// Outcome is the result of one fetch call.
type Outcome = fetch.Outcome

// FetchStats is a snapshot of fetch-layer counters.
type FetchStats = fetch.Stats

// RequestOption customizes a single fetch request.
type RequestOption = fetch.RequestOption

// WithHeader sets a request header on one fetch.
func WithHeader(key, value string) RequestOption { return fetch.WithHeader(key, value) }

// WithBody sets the request body of one fetch.
func WithBody(body []byte) RequestOption { return fetch.WithBody(body) }

// =============================================================================
// Re-exported types from thinking package
// =============================================================================

// Step is one unit of a thinking chain.
type Step = thinking.Step

// RunResult is the outcome of one orchestrated run.
type RunResult = thinking.RunResult

// ThinkingStats is a snapshot of orchestrator counters.
type ThinkingStats = thinking.Stats

// AppConfig is the top-level YAML configuration.
type AppConfig = config.AppConfig

// LoadConfig reads configuration from a YAML file.
func LoadConfig(path string) (*AppConfig, error) { return config.Load(path) }

// DefaultAppConfig returns the built-in defaults.
func DefaultAppConfig() *AppConfig { return config.Default() }

// =============================================================================
// App
// =============================================================================

// App bundles the fetch engine, the orchestrator, and the optional stats
// server behind one lifecycle.
type App struct {
	cfg          *config.AppConfig
	engine       *fetch.Engine
	orchestrator *thinking.Orchestrator
	statsServer  *stats.Server
	logger       *slog.Logger
}

// Option customizes App construction.
type Option func(*App)

// WithLogger sets the logger for both layers.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// New builds an App from cfg. A nil cfg uses the defaults. When the stats
// server is enabled it starts serving in the background.
func New(cfg *config.AppConfig, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	a := &App{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	a.engine = fetch.NewEngine(fetch.Config{
		Timeout: cfg.Fetch.Timeout.Duration,
		Retry: retry.Policy{
			MaxRetries:  cfg.Fetch.MaxRetries,
			BaseDelay:   cfg.Fetch.RetryDelay.Duration,
			MaxBackoff:  cfg.Fetch.MaxBackoff.Duration,
			Exponential: cfg.Fetch.ExponentialEnabled(),
		},
		BreakerThreshold: cfg.Fetch.CircuitBreakerThreshold,
		BreakerRecovery:  cfg.Fetch.CircuitBreakerTimeout.Duration,
		BlacklistTTL:     cfg.Fetch.BlacklistTTL.Duration,
		MaxContentLength: cfg.Fetch.MaxContentLength,
		MaxConcurrent:    cfg.Fetch.MaxConcurrent,
	}, fetch.WithLogger(a.logger))

	a.orchestrator = thinking.NewOrchestrator(
		thinking.WithLogger(a.logger),
		thinking.WithDefaultStepTimeout(cfg.Thinking.StepTimeout.Duration),
	)
	thinking.RegisterDefaultStrategies(a.orchestrator.Fallbacks())

	if cfg.StatsServer.Enabled {
		a.statsServer = stats.NewServer(a, cfg.StatsServer.Port)
		go func() {
			if err := a.statsServer.Start(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("stats server stopped", "error", err)
			}
		}()
		a.logger.Info("stats server listening", "port", cfg.StatsServer.Port)
	}

	return a, nil
}

// Fetch performs one resilient GET of resource.
func (a *App) Fetch(ctx context.Context, resource string, opts ...RequestOption) Outcome {
	return a.engine.Fetch(ctx, resource, http.MethodGet, opts...)
}

// FetchWithMethod performs one resilient fetch with an explicit HTTP method.
func (a *App) FetchWithMethod(ctx context.Context, resource, method string, opts ...RequestOption) Outcome {
	return a.engine.Fetch(ctx, resource, method, opts...)
}

// FetchMany fetches resources concurrently, bounded by the configured
// max_concurrent, returning outcomes in input order.
func (a *App) FetchMany(ctx context.Context, resources []string) []Outcome {
	return a.engine.FetchMany(ctx, resources, a.cfg.Fetch.MaxConcurrent)
}

// FetchWithFallback tries primary, then each fallback in order, returning the
// first success or the last outcome when every resource fails.
func (a *App) FetchWithFallback(ctx context.Context, primary string, fallbacks []string) Outcome {
	return a.engine.FetchWithFallback(ctx, primary, fallbacks)
}

// RunSequentialThinking builds the canonical step chain for scenario and
// executes it under the configured global timeout. stepCount is the number
// of analysis steps, iterations the analysis passes folded into each, and
// urls the optional data-collection sources.
func (a *App) RunSequentialThinking(ctx context.Context, scenario string, stepCount, iterations int, urls []string) (RunResult, error) {
	if scenario == "" {
		return RunResult{}, fmt.Errorf("scenario must not be empty")
	}

	steps := thinking.BuildScenarioSteps(thinking.ScenarioConfig{
		Scenario:      scenario,
		StepCount:     stepCount,
		Iterations:    iterations,
		URLs:          urls,
		StepTimeout:   a.cfg.Thinking.StepTimeout.Duration,
		MaxConcurrent: a.cfg.Fetch.MaxConcurrent,
	}, a.engine)

	return a.orchestrator.Execute(ctx, steps, a.cfg.Thinking.GlobalTimeout.Duration)
}

// RunSteps executes a caller-built step chain under the configured global
// timeout.
func (a *App) RunSteps(ctx context.Context, steps []Step) (RunResult, error) {
	return a.orchestrator.Execute(ctx, steps, a.cfg.Thinking.GlobalTimeout.Duration)
}

// FetchStats returns a snapshot of the fetch-layer counters.
func (a *App) FetchStats() FetchStats { return a.engine.Stats() }

// BreakerStates reports the current state of every tracked circuit breaker,
// keyed by resource.
func (a *App) BreakerStates() map[string]string {
	states := a.engine.Breakers().States()
	out := make(map[string]string, len(states))
	for key, st := range states {
		out[key] = st.String()
	}
	return out
}

// BlacklistSize reports how many resources are currently blacklisted.
func (a *App) BlacklistSize() int { return a.engine.Blacklist().Len() }

// ThinkingStats returns a snapshot of the orchestrator counters.
func (a *App) ThinkingStats() ThinkingStats { return a.orchestrator.Stats() }

// Close releases the App's resources and stops the stats server.
func (a *App) Close() error {
	if a.statsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.statsServer.Stop(ctx); err != nil {
			return err
		}
	}
	a.engine.Close()
	return nil
}
