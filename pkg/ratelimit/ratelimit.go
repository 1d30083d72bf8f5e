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


package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outgoing requests with a token bucket. A disabled
// limiter admits every request. Safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
	enabled bool
}

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerMinute sets the sustained rate. Zero disables limiting.
	RequestsPerMinute int

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to 1.
	Burst int
}

// New creates a limiter. A nil config or a zero rate yields a disabled
// limiter.
func New(config *Config) (*Limiter, error) {
	if config == nil || config.RequestsPerMinute == 0 {
		return &Limiter{}, nil
	}
	if config.RequestsPerMinute < 0 {
		return nil, fmt.Errorf("ratelimit: requests per minute must not be negative, got %d", config.RequestsPerMinute)
	}
	if config.Burst < 0 {
		return nil, fmt.Errorf("ratelimit: burst must not be negative, got %d", config.Burst)
	}

	burst := config.Burst
	if burst == 0 {
		burst = 1
	}
	every := time.Minute / time.Duration(config.RequestsPerMinute)
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(every), burst),
		enabled: true,
	}, nil
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || !l.enabled {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil || !l.enabled {
		return true
	}
	return l.limiter.Allow()
}

// IsEnabled returns whether rate limiting is active.
func (l *Limiter) IsEnabled() bool {
	return l != nil && l.enabled
}
