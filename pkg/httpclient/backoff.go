// Copyright 2025 Kadir Pekel
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

package httpclient

import (
	"context"
	"time"
)

// Backoff computes exponential retry delays: Base·2^(attempt-1), capped at
// Max, and never below RateLimitMin when the failure was a rate limit.
type Backoff struct {
	Base         time.Duration
	Max          time.Duration
	RateLimitMin time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:         time.Second,
		Max:          30 * time.Second,
		RateLimitMin: 5 * time.Second,
	}
}

// Delay returns the wait before retry number attempt (1-based). A server
// supplied RetryAfter wins when it is longer than the computed delay.
func (b Backoff) Delay(attempt int, rateLimited bool, info RateLimitInfo) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := b.Max
	if shift := attempt - 1; shift < 32 {
		if d := b.Base << shift; d > 0 && d < b.Max {
			delay = d
		}
	}

	if rateLimited {
		delay = max(delay, b.RateLimitMin)
		delay = max(delay, info.RetryAfter)
	}
	return delay
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
