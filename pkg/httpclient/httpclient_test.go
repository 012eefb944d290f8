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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.Nil(t, c.limiter)

	c, err = New(WithTimeout(5*time.Second), WithRateLimit(2, 0))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Timeout())
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())
}

func TestNew_BadCACertificate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a cert"), 0o644))

	_, err := New(WithTLSConfig(&TLSConfig{CACertificate: path}))
	assert.ErrorContains(t, err, "failed to parse CA certificate")

	_, err = New(WithTLSConfig(&TLSConfig{CACertificate: filepath.Join(t.TempDir(), "missing.pem")}))
	assert.ErrorContains(t, err, "failed to read CA certificate")
}

func TestConfigureTLS_Insecure(t *testing.T) {
	transport, err := ConfigureTLS(&TLSConfig{InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestClient_Do(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := New()
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_Do_RateLimitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	c, err := New(WithRateLimit(0.01, 1))
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err, "first request uses the burst")
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	_, err = c.Do(req)
	assert.ErrorContains(t, err, "rate limiter")
}

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		name        string
		attempt     int
		rateLimited bool
		info        RateLimitInfo
		want        time.Duration
	}{
		{name: "first", attempt: 1, want: time.Second},
		{name: "second", attempt: 2, want: 2 * time.Second},
		{name: "fifth", attempt: 5, want: 16 * time.Second},
		{name: "capped", attempt: 6, want: 30 * time.Second},
		{name: "far beyond cap", attempt: 80, want: 30 * time.Second},
		{name: "zero attempt treated as first", attempt: 0, want: time.Second},
		{name: "rate limit minimum", attempt: 1, rateLimited: true, want: 5 * time.Second},
		{name: "rate limit above minimum", attempt: 4, rateLimited: true, want: 8 * time.Second},
		{name: "retry-after wins", attempt: 1, rateLimited: true, info: RateLimitInfo{RetryAfter: 12 * time.Second}, want: 12 * time.Second},
		{name: "retry-after ignored without rate limit", attempt: 1, info: RateLimitInfo{RetryAfter: 12 * time.Second}, want: time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Delay(tt.attempt, tt.rateLimited, tt.info))
		})
	}
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestParseAnthropicHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("retry-after", "7")
	h.Set("anthropic-ratelimit-requests-remaining", "42")
	h.Set("anthropic-ratelimit-input-tokens-remaining", "1000")
	h.Set("anthropic-ratelimit-input-tokens-reset", "2025-06-01T12:00:00Z")

	info := ParseAnthropicHeaders(h)
	assert.Equal(t, 7*time.Second, info.RetryAfter)
	assert.Equal(t, 42, info.RequestsRemaining)
	assert.Equal(t, 1000, info.InputTokensRemaining)
	assert.Equal(t, -1, info.OutputTokensRemaining)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), info.ResetTime.UTC())

	empty := ParseAnthropicHeaders(http.Header{})
	assert.Zero(t, empty.RetryAfter)
	assert.True(t, empty.ResetTime.IsZero())
}
