// File: internal/brain/retry.go
package brain

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy is a value type describing capped exponential backoff. The same
// policy governs connection establishment and per-call retries; the caller
// can hold two distinct values if those paths ever need different patience.
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultRetryPolicy matches the backend's documented client contract:
// 100ms starting delay, doubled per attempt, capped at 10s, five attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Second,
		MaxAttempts:  5,
	}
}

// DelayForAttempt returns the backoff slept after the given failed attempt
// (1-based): min(initial * multiplier^(attempt-1), ceiling).
func (p RetryPolicy) DelayForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if ceil := float64(p.MaxDelay); d > ceil {
		d = ceil
	}
	return time.Duration(d)
}

// Retryable classifies an error as transient. Only unavailable, internal and
// deadline-exceeded statuses are worth another attempt; everything else
// (including malformed requests the backend rejects) is terminal.
func Retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.Internal, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// retrySleep is swapped out by tests to observe backoff without wall time.
var retrySleep = sleepCtx

// Do runs fn under the policy. Terminal errors propagate after a single
// attempt; retryable errors are retried with capped exponential backoff until
// MaxAttempts, at which point the last error is returned. Every attempt is
// logged with its number and classification.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("Operation recovered after retries",
					zap.String("op", op),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}

		code := status.Code(err)
		if !Retryable(err) {
			logger.Error("Terminal failure, not retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.String("code", code.String()),
				zap.Error(err),
			)
			return err
		}

		if attempt >= p.MaxAttempts {
			logger.Error("Retries exhausted",
				zap.String("op", op),
				zap.Int("attempts", attempt),
				zap.String("code", code.String()),
				zap.Error(err),
			)
			return err
		}

		backoff := p.DelayForAttempt(attempt)
		logger.Warn("Retryable failure, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.String("code", code.String()),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if serr := retrySleep(ctx, backoff); serr != nil {
			return serr
		}
	}
}

// sleepCtx pauses for d, honoring context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
