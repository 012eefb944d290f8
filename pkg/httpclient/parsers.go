// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitInfo is what the Messages API reports about the caller's limits.
type RateLimitInfo struct {
	RetryAfter            time.Duration
	ResetTime             time.Time
	RequestsRemaining     int
	InputTokensRemaining  int
	OutputTokensRemaining int
}

var anthropicResetHeaders = []string{
	"anthropic-ratelimit-requests-reset",
	"anthropic-ratelimit-input-tokens-reset",
	"anthropic-ratelimit-output-tokens-reset",
}

// ParseAnthropicHeaders extracts rate limit info from Messages API headers.
// Missing or malformed headers leave the corresponding field zero; remaining
// counters are -1 when absent.
func ParseAnthropicHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{
		RequestsRemaining:     intHeader(headers, "anthropic-ratelimit-requests-remaining"),
		InputTokensRemaining:  intHeader(headers, "anthropic-ratelimit-input-tokens-remaining"),
		OutputTokensRemaining: intHeader(headers, "anthropic-ratelimit-output-tokens-remaining"),
	}

	if v := headers.Get("retry-after"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			info.RetryAfter = time.Duration(seconds) * time.Second
		} else if at, err := http.ParseTime(v); err == nil {
			info.RetryAfter = max(time.Until(at), 0)
		}
	}

	for _, h := range anthropicResetHeaders {
		if t, err := time.Parse(time.RFC3339, headers.Get(h)); err == nil {
			info.ResetTime = t
			break
		}
	}
	return info
}

func intHeader(headers http.Header, key string) int {
	n, err := strconv.Atoi(headers.Get(key))
	if err != nil {
		return -1
	}
	return n
}
