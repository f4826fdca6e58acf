// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm provides request rate limiting shared by all provider clients.
package llm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiterConfig configures the shared request rate limiter.
type RateLimiterConfig struct {
	// Enabled enables rate limiting. When false, Do calls through directly.
	Enabled bool

	// RequestsPerSecond is the sustained request rate across all clients.
	// Default: 2.
	RequestsPerSecond float64

	// BurstCapacity is the maximum burst of requests allowed.
	// Default: 5.
	BurstCapacity int

	// MinDelay is the minimum delay between requests. Overrides
	// RequestsPerSecond when larger. Default: 0.
	MinDelay time.Duration

	// Logger for throttle events. Defaults to a nop logger.
	Logger *zap.Logger
}

// DefaultRateLimiterConfig returns conservative defaults suitable for
// free-tier upstream APIs.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Enabled:           true,
		RequestsPerSecond: 2,
		BurstCapacity:     5,
	}
}

// RateLimiter is a token-bucket request limiter. A single instance is
// shared across provider clients so the process-wide request rate stays
// under upstream limits regardless of how many sessions are active.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastCall   time.Time
}

// NewRateLimiter creates a rate limiter from config.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 2
	}
	if config.BurstCapacity <= 0 {
		config.BurstCapacity = 5
	}

	return &RateLimiter{
		config:     config,
		tokens:     float64(config.BurstCapacity),
		maxTokens:  float64(config.BurstCapacity),
		refillRate: config.RequestsPerSecond,
		lastRefill: time.Now(),
	}
}

// Do executes call, blocking first until the bucket permits a request.
// Context cancellation aborts the wait.
func (rl *RateLimiter) Do(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	if !rl.config.Enabled {
		return call(ctx)
	}

	for {
		wait := rl.reserve()
		if wait <= 0 {
			break
		}

		rl.config.Logger.Debug("rate limiter throttling request",
			zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return call(ctx)
}

// reserve attempts to take one token. It returns zero when the request
// may proceed immediately, otherwise the duration to wait before retrying.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.config.MinDelay > 0 && !rl.lastCall.IsZero() {
		if since := now.Sub(rl.lastCall); since < rl.config.MinDelay {
			return rl.config.MinDelay - since
		}
	}

	if rl.tokens < 1 {
		deficit := 1 - rl.tokens
		return time.Duration(deficit / rl.refillRate * float64(time.Second))
	}

	rl.tokens--
	rl.lastCall = now
	return 0
}
