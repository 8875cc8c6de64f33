package resilience

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy describes a bounded exponential backoff schedule without jitter.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// Multiplier scales the delay after every retry.
	Multiplier float64

	// MaxInterval caps the delay between two attempts.
	MaxInterval time.Duration
}

// DefaultRetryPolicy returns the directions retry schedule: 3 retries waiting 5s, 10s and 20s,
// never more than a minute apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 5 * time.Second,
		Multiplier:      2,
		MaxInterval:     60 * time.Second,
	}
}

// Delay returns the wait before the given retry (1-based).
// Delay(1) is InitialInterval; every following retry multiplies it until MaxInterval.
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	d := float64(p.InitialInterval) * math.Pow(p.multiplier(), float64(retry-1))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

func (p RetryPolicy) multiplier() float64 {
	if p.Multiplier < 1 {
		return 1
	}
	return p.Multiplier
}

// NewBackOff builds a backoff.BackOff following the policy, bound to ctx.
func (p RetryPolicy) NewBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.Multiplier = p.multiplier()
	bo.MaxInterval = p.MaxInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // Unlimited, retries are bounded by WithMaxRetries
	bo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx)
}

// Retry runs op until it succeeds, returns a backoff.Permanent error, or the policy is exhausted.
// notify is called before every wait; timer may be nil to use real time.
func (p RetryPolicy) Retry(ctx context.Context, op backoff.Operation, notify backoff.Notify, timer backoff.Timer) error {
	return backoff.RetryNotifyWithTimer(op, p.NewBackOff(ctx), notify, timer)
}
