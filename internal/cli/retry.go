// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sigauth.
//
// go-sigauth is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.


package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jeremyhahn/go-sigauth/pkg/auth"
	"github.com/jeremyhahn/go-sigauth/pkg/logging"
)

// retryPolicy controls caller-side retries of a complete handshake. Each
// attempt fetches a fresh challenge.
type retryPolicy struct {
	// Retries is the number of additional attempts after the first.
	Retries int

	// Wait is the initial interval between attempts. It grows
	// exponentially with jitter.
	Wait time.Duration

	// MaxWait caps a single interval.
	MaxWait time.Duration
}

func (p retryPolicy) validate() error {
	if p.Retries < 0 {
		return fmt.Errorf("retries must be non-negative, got %d", p.Retries)
	}
	if p.Wait < 0 {
		return fmt.Errorf("retry wait must be non-negative, got %s", p.Wait)
	}
	return nil
}

func (p retryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Wait > 0 {
		b.InitialInterval = p.Wait
	}
	if p.MaxWait > 0 {
		b.MaxInterval = p.MaxWait
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Retries)), ctx)
}

// withRetry runs op until it succeeds, fails with an error auth.IsRetryable
// rejects, or the policy is exhausted.
func withRetry[T any](ctx context.Context, p retryPolicy, logger *logging.Logger, op func() (T, error)) (T, error) {
	if err := p.validate(); err != nil {
		var zero T
		return zero, err
	}

	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && !auth.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		logger.Warn("Handshake attempt failed, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err)
	})
}
