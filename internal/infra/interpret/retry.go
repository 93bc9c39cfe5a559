package interpret

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/metrics"
	"github.com/plano-ai/plano/internal/logger"
)

// StatusError is a non-2xx answer from a service. It unwraps to
// domain.ErrServiceUnavailable.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%v: %s request failed with status %d", domain.ErrServiceUnavailable, e.Op, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *StatusError) Unwrap() error { return domain.ErrServiceUnavailable }

// ─── Retry ──────────────────────────────────────────────────────────────────

// RetryConfig controls how transient failures are retried.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt; 0 disables
	BaseDelay  time.Duration // doubles each retry
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (1-based):
// BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if c.MaxDelay > 0 && delay > c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// Retryable reports whether err is worth another attempt: transport
// failures, 429 and 5xx. Rejections and bad payloads are final.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return errors.Is(err, domain.ErrServiceUnavailable)
}

// Retrying wraps a Backend and retries transient failures with
// exponential backoff.
type Retrying struct {
	backend Backend
	cfg     RetryConfig
	log     *zap.Logger
}

// WithRetry wraps b. A nil backend or MaxRetries <= 0 returns b unchanged.
func WithRetry(b Backend, cfg RetryConfig) Backend {
	if b == nil || cfg.MaxRetries <= 0 {
		return b
	}
	return &Retrying{backend: b, cfg: cfg, log: logger.Named("interpret")}
}

func (r *Retrying) InterpretPlan(ctx context.Context, doc domain.Document) (domain.RawDietPlan, error) {
	var out domain.RawDietPlan
	err := r.do(ctx, "interpret_plan", func() error {
		var err error
		out, err = r.backend.InterpretPlan(ctx, doc)
		return err
	})
	return out, err
}

func (r *Retrying) AnalyzeMeal(ctx context.Context, req domain.AnalysisRequest) (domain.MealAnalysis, error) {
	var out domain.MealAnalysis
	err := r.do(ctx, "analyze_meal", func() error {
		var err error
		out, err = r.backend.AnalyzeMeal(ctx, req)
		return err
	})
	return out, err
}

func (r *Retrying) do(ctx context.Context, op string, call func() error) error {
	err := call()
	for attempt := 1; attempt <= r.cfg.MaxRetries && Retryable(err); attempt++ {
		delay := r.cfg.Backoff(attempt)
		r.log.Warn("retrying service call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}

		metrics.ServiceRetries.WithLabelValues(op).Inc()
		err = call()
	}
	return err
}
