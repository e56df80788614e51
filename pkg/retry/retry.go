// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry runs operations with exponential backoff.
//
// A Policy describes how often and how fast an operation is retried. Do
// executes the operation under a policy: cancellation is terminal and
// propagates immediately, every other failure is retried uniformly until
// the attempt budget is exhausted. The delay between attempt i and i+1 is
// Delay(i), capped at the policy's MaxDelay.
package retry

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/statekit/pkg/metrics"
	"github.com/united-manufacturing-hub/statekit/pkg/state"
)

// Policy controls the retry behavior of Do.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialDelay is the delay after the first failed attempt.
	InitialDelay time.Duration
	// MaxDelay caps the exponentially growing delay.
	MaxDelay time.Duration
	// Multiplier is the factor the delay grows by per attempt.
	Multiplier float64
}

// DefaultPolicy is the standard policy for interactive loads.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// AggressivePolicy retries more often with shorter delays, for operations
// where fast recovery matters more than backend load.
func AggressivePolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		Multiplier:   1.5,
	}
}

// ConservativePolicy retries rarely with long delays, for operations against
// rate-limited or fragile backends.
func ConservativePolicy() Policy {
	return Policy{
		MaxAttempts:  2,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   3.0,
	}
}

// Delay returns the backoff delay after the given zero-based attempt.
// The delay grows by Multiplier per attempt and never exceeds MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Compare as float64 before converting, so large exponents cap at
	// MaxDelay instead of overflowing time.Duration.
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))

	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}

	return time.Duration(delay)
}

// Do runs op under the given policy and returns its first successful result.
//
// Cancellation is terminal: if the context is done, or op returns an error
// that classifies as cancelled, Do returns immediately without sleeping and
// without further attempts. Every other error is retried uniformly. The error
// of the final attempt is returned, classified into the state error taxonomy.
//
// name is the instance label used for attempt metrics.
func Do[T any](ctx context.Context, policy Policy, log *zap.SugaredLogger, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr error

	for attempt := range policy.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return zero, state.Classify(err)
		}

		value, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Debugw("Operation succeeded after retry", "name", name, "attempt", attempt+1)
			}

			return value, nil
		}

		classified := state.Classify(err)
		if state.IsCancelledError(classified) {
			log.Debugw("Operation cancelled, not retrying", "name", name, "attempt", attempt+1)

			return zero, classified
		}

		lastErr = classified

		// Last attempt failed, nothing left to wait for.
		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := policy.Delay(attempt)
		log.Warnw("Operation failed, retrying",
			"name", name,
			"attempt", attempt+1,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"error", err)
		metrics.IncRetryAttempt(metrics.ComponentRetry, name)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()

			return zero, state.Classify(ctx.Err())
		case <-timer.C:
		}
	}

	log.Warnw("Operation failed, attempts exhausted",
		"name", name,
		"max_attempts", policy.MaxAttempts,
		"error", lastErr)

	return zero, lastErr
}
