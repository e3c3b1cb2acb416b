package transcription

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a chunk is re-sent after a transient failure.
// MaxRetries counts retries after the first attempt.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryPolicy mirrors the hosted endpoint's warm-up behaviour.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 5, Delay: 5 * time.Second}
}

// BackOff returns a fresh fixed-delay schedule bound to ctx.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOff {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(retries)),
		ctx,
	)
}
