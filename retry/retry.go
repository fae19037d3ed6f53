/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package retry runs storage operations that may fail transiently
// (a locked database, a file held by another process) under a bounded backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable tells if the error is transient. Nil means every error is.
type IsRetryable func(err error) bool

// Notify is called before every retry with the error of the failed attempt and the delay before the next one.
type Notify func(err error, attempt int, delay time.Duration)

// Policy creates a fresh backoff for every Do call.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// Do calls fn until it succeeds, returns a non-retryable error, the policy gives up or ctx is done.
// The error of the last attempt is returned.
func Do(ctx context.Context, p Policy, isRetryable IsRetryable, notify Notify, fn func(ctx context.Context) error) error {
	b := backoff.WithContext(p.NewBackOff(), ctx)
	attempt := 0
	op := func() error {
		attempt++
		err := fn(ctx)
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, delay time.Duration) { notify(err, attempt, delay) }
	}
	return backoff.RetryNotify(op, b, onRetry)
}

// ConstantPolicy retries up to MaxRetries times with the same Interval between attempts.
type ConstantPolicy struct {
	Interval   time.Duration
	MaxRetries int
}

// NewBackOff implements Policy.
func (p ConstantPolicy) NewBackOff() backoff.BackOff {
	return withMaxRetries(backoff.NewConstantBackOff(p.Interval), p.MaxRetries)
}

// ExponentialPolicy retries up to MaxRetries times, growing the delay from InitialInterval up to MaxInterval.
type ExponentialPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
}

// NewBackOff implements Policy.
func (p ExponentialPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	return withMaxRetries(eb, p.MaxRetries)
}

func withMaxRetries(b backoff.BackOff, maxRetries int) backoff.BackOff {
	if maxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(maxRetries))
	}
	b.Reset()
	return b
}
