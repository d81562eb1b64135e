// Package client fetches the raw weather payload with bounded retry.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-ticker/internal/circuitbreaker"
	"github.com/kjstillabower/weather-ticker/internal/observability"
)

var (
	// ErrTransport marks connect-stage failures (dial, DNS, reset, attempt deadline,
	// body read). Only these are retried.
	ErrTransport = errors.New("transport error")
	// ErrTimedOut is returned when the overall window ends without a response.
	ErrTimedOut = errors.New("fetch timed out")

	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// maxBodyBytes caps the payload read; a j1 response is around 50 KiB.
const maxBodyBytes = 1 << 20

// OutcomeKind tags a fetch window result.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	TransientFailure
	TimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case TransientFailure:
		return "transient"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the result of one fetch window. Body is set only on Success and is
// never inspected here.
type Outcome struct {
	ID       string
	Kind     OutcomeKind
	Body     []byte
	Err      error
	Category ErrorCategory
	Attempts int
	Elapsed  time.Duration
}

// Config bounds a fetch window.
type Config struct {
	// AttemptTimeout is the budget of a single GET, clipped to what is left of
	// OverallTimeout.
	AttemptTimeout time.Duration
	// OverallTimeout bounds the whole window including backoff sleeps.
	OverallTimeout time.Duration
	// Backoff is the fixed pause after a transport error.
	Backoff   time.Duration
	UserAgent string
	// Client overrides the HTTP client; nil uses a fresh one without its own timeout.
	Client *http.Client
}

func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 5 * time.Second,
		OverallTimeout: 10 * time.Second,
		Backoff:        time.Second,
		UserAgent:      "curl/8.5.0",
	}
}

// Fetcher performs GETs with fixed-backoff retry on transport errors inside a
// bounded window.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	def := DefaultConfig()
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = def.OverallTimeout
	}
	if cfg.AttemptTimeout <= 0 || cfg.AttemptTimeout > cfg.OverallTimeout {
		cfg.AttemptTimeout = cfg.OverallTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, client: client, logger: logger}
}

// SetCircuitBreaker puts cb in front of every fetch window not marked with
// WithoutBreaker.
func (f *Fetcher) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	f.breaker = cb
}

type bypassBreakerKey struct{}

// WithoutBreaker marks ctx so Fetch neither consults nor feeds the circuit breaker.
func WithoutBreaker(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassBreakerKey{}, true)
}

func breakerBypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassBreakerKey{}).(bool)
	return v
}

// Fetch runs one fetch window against url. It blocks for at most OverallTimeout and
// never returns a bare error: failures are TransientFailure or TimedOut.
func (f *Fetcher) Fetch(ctx context.Context, url string) Outcome {
	id := uuid.NewString()
	var out Outcome
	if f.breaker == nil || breakerBypassed(ctx) {
		out = f.window(ctx, id, url)
	} else {
		err := f.breaker.Call(ctx, func(ctx context.Context) error {
			out = f.window(ctx, id, url)
			return out.Err
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			out = Outcome{Kind: TransientFailure, Err: err}
		}
	}
	out.ID = id
	out.Category = CategorizeError(out.Err)

	observability.FetchOutcomesTotal.WithLabelValues(out.Kind.String()).Inc()
	if out.Err != nil {
		observability.FetchErrorsTotal.WithLabelValues(string(out.Category)).Inc()
	}
	return out
}

func (f *Fetcher) window(ctx context.Context, id, url string) Outcome {
	start := time.Now()
	windowCtx, cancel := context.WithTimeout(ctx, f.cfg.OverallTimeout)
	defer cancel()

	logger := f.logger.With(zap.String("fetch_id", id))
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			observability.FetchRetriesTotal.Inc()
		}
		body, err := f.attempt(windowCtx, url)
		if err == nil {
			return Outcome{Kind: Success, Body: body, Attempts: attempt, Elapsed: time.Since(start)}
		}
		logger.Debug("fetch attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		failed := func(kind OutcomeKind, err error) Outcome {
			return Outcome{Kind: kind, Err: err, Attempts: attempt, Elapsed: time.Since(start)}
		}
		if !errors.Is(err, ErrTransport) {
			return failed(TransientFailure, err)
		}
		if ctx.Err() != nil {
			return failed(TransientFailure, ctx.Err())
		}
		timedOut := fmt.Errorf("%w after %d attempts: %w", ErrTimedOut, attempt, err)
		if windowCtx.Err() != nil || time.Since(start)+f.cfg.Backoff >= f.cfg.OverallTimeout {
			return failed(TimedOut, timedOut)
		}

		timer := time.NewTimer(f.cfg.Backoff)
		select {
		case <-windowCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return failed(TransientFailure, ctx.Err())
			}
			return failed(TimedOut, timedOut)
		case <-timer.C:
		}
	}
}

// attempt performs one GET. The response body is closed on every path.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		observe("error", start)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		observe(statusLabel(resp.StatusCode), start)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		observe("error", start)
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	observe("success", start)
	return body, nil
}

func observe(result string, start time.Time) {
	observability.FetchAttemptsTotal.WithLabelValues(result).Inc()
	observability.FetchAttemptDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, code)
	}
}

func statusLabel(statusCode int) string {
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
