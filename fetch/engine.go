// Package fetch implements a fault-tolerant outbound fetch engine.
//
// Every fetch runs through three gates before touching the network: the
// blacklist (long-lived denial of persistently dead resources), the
// per-resource circuit breaker, and the retry policy. Failures are classified
// into a fixed taxonomy which drives both retry decisions and breaker
// accounting. The engine never returns an error from Fetch; every call
// produces an Outcome with a success flag and diagnostic message.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/resilio/fetch/breaker"
	"github.com/vietddude/resilio/fetch/classify"
	"github.com/vietddude/resilio/fetch/retry"
	"github.com/vietddude/resilio/metrics"
)

// ErrContentTooLarge marks a response body that exceeded MaxContentLength.
// Oversize bodies are terminal: the same resource would overflow again, so
// the failure is never retried.
var ErrContentTooLarge = errors.New("fetch: content length exceeds limit")

// Config holds engine settings. Zero values fall back to defaults.
type Config struct {
	// Timeout bounds each individual attempt, not the whole retry sequence.
	Timeout time.Duration

	// Retry decides whether and when failed attempts are retried.
	Retry retry.Policy

	// BreakerThreshold is the consecutive failure count that opens a
	// resource's circuit breaker.
	BreakerThreshold int

	// BreakerRecovery is how long an open breaker blocks before a probe.
	BreakerRecovery time.Duration

	// BlacklistTTL is how long an exhausted resource stays blacklisted.
	BlacklistTTL time.Duration

	// MaxContentLength is a hard cap on response body size in bytes.
	MaxContentLength int64

	// MaxConcurrent bounds FetchMany fan-out when the caller passes <= 0.
	MaxConcurrent int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		Retry:            retry.DefaultPolicy,
		BreakerThreshold: breaker.DefaultFailureThreshold,
		BreakerRecovery:  breaker.DefaultRecoveryTimeout,
		BlacklistTTL:     DefaultBlacklistTTL,
		MaxContentLength: 10 << 20, // 10 MiB
		MaxConcurrent:    5,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Retry == (retry.Policy{}) {
		c.Retry = d.Retry
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = d.BreakerThreshold
	}
	if c.BreakerRecovery <= 0 {
		c.BreakerRecovery = d.BreakerRecovery
	}
	if c.BlacklistTTL <= 0 {
		c.BlacklistTTL = d.BlacklistTTL
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = d.MaxContentLength
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
}

// Engine orchestrates fetches through the blacklist, breakers, and retry
// policy. One Engine is constructed at startup and shared; all methods are
// safe for concurrent use. Close releases idle connections.
type Engine struct {
	cfg       Config
	client    *http.Client
	breakers  *breaker.Registry
	blacklist *Blacklist
	logger    *slog.Logger
	counters  counters
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. The client's own
// Timeout is ignored; the engine applies per-attempt timeouts via context.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.client = client
		}
	}
}

// NewEngine creates a fetch engine.
func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breakers:  breaker.NewRegistry(cfg.BreakerThreshold, cfg.BreakerRecovery),
		blacklist: NewBlacklist(cfg.BlacklistTTL),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close releases idle connections held by the engine's HTTP client.
func (e *Engine) Close() {
	e.client.CloseIdleConnections()
}

// Breakers exposes the breaker registry for inspection and manual resets.
func (e *Engine) Breakers() *breaker.Registry { return e.breakers }

// Blacklist exposes the blacklist for inspection and manual overrides.
func (e *Engine) Blacklist() *Blacklist { return e.blacklist }

// Stats returns a snapshot of engine counters. The read is idempotent.
func (e *Engine) Stats() Stats {
	return e.counters.snapshot()
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers http.Header
	body    []byte
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Add(key, value)
	}
}

// WithBody sets the request body, re-sent as-is on every retry.
func WithBody(body []byte) RequestOption {
	return func(o *requestOptions) {
		o.body = body
	}
}

// Fetch performs one resilient fetch of resource. It checks the blacklist and
// the resource's circuit breaker, then attempts the request up to
// 1+MaxRetries times per the retry policy. The returned Outcome always
// carries the total retry count and, on failure, the last classified error.
func (e *Engine) Fetch(ctx context.Context, resource, method string, opts ...RequestOption) Outcome {
	start := time.Now()
	if method == "" {
		method = http.MethodGet
	}

	var ropts requestOptions
	for _, opt := range opts {
		opt(&ropts)
	}

	key := ResourceKey(resource)

	if e.blacklist.Contains(key) {
		e.logger.Debug("fetch rejected: resource blacklisted", "resource", resource, "key", key)
		e.counters.recordFailure(classify.KindUnknown)
		metrics.FetchesTotal.WithLabelValues(method, "failure").Inc()
		return e.failure(resource, start, 0, 0, classify.KindUnknown,
			fmt.Sprintf("resource %s is blacklisted", key))
	}

	br := e.breakers.Get(key)
	if !br.CanAttempt() {
		e.logger.Debug("fetch rejected: circuit breaker open", "resource", resource, "key", key)
		e.counters.recordBreakerTrip()
		metrics.BreakerRejectionsTotal.WithLabelValues(key).Inc()
		metrics.FetchesTotal.WithLabelValues(method, "failure").Inc()
		return e.failure(resource, start, 0, 0, classify.KindUnknown,
			fmt.Sprintf("circuit breaker open for %s", key))
	}

	var (
		lastKind   classify.Kind
		lastMsg    string
		lastStatus int
		retries    int
	)

	for attempt := 0; ; attempt++ {
		retries = attempt
		status, body, headers, err := e.doAttempt(ctx, method, resource, &ropts)

		if err == nil && status < 400 {
			e.recordBreakerResult(br, key, true)
			e.counters.recordSuccess()
			metrics.FetchesTotal.WithLabelValues(method, "success").Inc()
			metrics.FetchLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
			return Outcome{
				Resource:   resource,
				Success:    true,
				StatusCode: status,
				Body:       body,
				Headers:    headers,
				Elapsed:    time.Since(start),
				RetryCount: attempt,
				Timestamp:  time.Now(),
			}
		}

		kind, msg := e.classifyFailure(err, status)
		lastKind, lastMsg, lastStatus = kind, msg, status
		e.recordBreakerResult(br, key, false)
		metrics.FetchErrorsTotal.WithLabelValues(kind.String()).Inc()

		e.logger.Debug("fetch attempt failed",
			"resource", resource, "attempt", attempt, "kind", kind.String(), "error", msg)

		if errors.Is(err, ErrContentTooLarge) {
			break
		}
		if !e.cfg.Retry.ShouldRetry(kind, attempt) {
			break
		}

		delay := e.cfg.Retry.Delay(attempt)
		select {
		case <-ctx.Done():
			lastMsg = fmt.Sprintf("%s (aborted: %v)", lastMsg, ctx.Err())
		case <-time.After(delay):
			continue
		}
		break
	}

	if br.FailureCount() >= 2*e.cfg.BreakerThreshold {
		e.blacklist.Add(key)
		e.logger.Warn("resource blacklisted after repeated failures",
			"resource", resource, "key", key, "failures", br.FailureCount(), "ttl", e.cfg.BlacklistTTL)
	}

	e.counters.recordFailure(lastKind)
	metrics.FetchesTotal.WithLabelValues(method, "failure").Inc()
	metrics.FetchLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	return e.failure(resource, start, lastStatus, retries, lastKind, lastMsg)
}

// FetchMany fetches all resources with bounded concurrency. Outcomes are
// returned in input order regardless of completion order, and one resource's
// failure never aborts the batch. maxConcurrent <= 0 uses the configured
// default.
func (e *Engine) FetchMany(ctx context.Context, resources []string, maxConcurrent int) []Outcome {
	if maxConcurrent <= 0 {
		maxConcurrent = e.cfg.MaxConcurrent
	}

	sem := make(chan struct{}, maxConcurrent)
	outcomes := make([]Outcome, len(resources))

	var wg sync.WaitGroup
	for i, resource := range resources {
		wg.Add(1)
		go func(i int, resource string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = e.Fetch(ctx, resource, http.MethodGet)
		}(i, resource)
	}
	wg.Wait()

	return outcomes
}

// FetchWithFallback tries primary, then each fallback in order, returning the
// first successful outcome. If every resource fails, the LAST outcome is
// returned: it carries the most recent diagnostic.
func (e *Engine) FetchWithFallback(ctx context.Context, primary string, fallbacks []string) Outcome {
	out := e.Fetch(ctx, primary, http.MethodGet)
	if out.Success {
		return out
	}

	for _, fb := range fallbacks {
		e.logger.Debug("trying fallback resource", "primary", primary, "fallback", fb)
		out = e.Fetch(ctx, fb, http.MethodGet)
		if out.Success {
			return out
		}
	}
	return out
}

// doAttempt performs one bounded-time request and enforces the content cap.
func (e *Engine) doAttempt(ctx context.Context, method, resource string, ropts *requestOptions) (int, []byte, http.Header, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if ropts.body != nil {
		bodyReader = bytes.NewReader(ropts.body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, resource, bodyReader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range ropts.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > e.cfg.MaxContentLength {
		return resp.StatusCode, nil, resp.Header,
			fmt.Errorf("%w: declared %d > %d", ErrContentTooLarge, resp.ContentLength, e.cfg.MaxContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxContentLength+1))
	if err != nil {
		return resp.StatusCode, nil, resp.Header, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > e.cfg.MaxContentLength {
		return resp.StatusCode, nil, resp.Header,
			fmt.Errorf("%w: body exceeds %d bytes", ErrContentTooLarge, e.cfg.MaxContentLength)
	}

	return resp.StatusCode, body, resp.Header, nil
}

func (e *Engine) classifyFailure(err error, status int) (classify.Kind, string) {
	if err != nil {
		return classify.Classify(err, status), err.Error()
	}
	return classify.Classify(nil, status), fmt.Sprintf("http %d", status)
}

// recordBreakerResult records the attempt on the breaker and logs/counts any
// resulting state transition.
func (e *Engine) recordBreakerResult(br *breaker.Breaker, key string, success bool) {
	before := br.State()
	if success {
		br.RecordSuccess()
	} else {
		br.RecordFailure()
	}
	after := br.State()
	if after != before {
		metrics.BreakerTransitionsTotal.WithLabelValues(key, after.String()).Inc()
		e.logger.Info("circuit breaker state changed",
			"resource", key, "from", before.String(), "to", after.String())
	}
}

func (e *Engine) failure(resource string, start time.Time, status, retries int, kind classify.Kind, msg string) Outcome {
	return Outcome{
		Resource:     resource,
		Success:      false,
		StatusCode:   status,
		ErrorKind:    kind,
		ErrorMessage: msg,
		Elapsed:      time.Since(start),
		RetryCount:   retries,
		Timestamp:    time.Now(),
	}
}
