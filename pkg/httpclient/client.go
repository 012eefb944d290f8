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

// Package httpclient wraps net/http with the pieces model clients share:
// a client-side request rate limit, optional TLS overrides, rate-limit header
// parsing and backoff computation for retries.
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const DefaultTimeout = 120 * time.Second

type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	tls     *TLSConfig
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the per-request timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRateLimit allows rps requests per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithTLSConfig(config *TLSConfig) Option {
	return func(c *Client) {
		c.tls = config
	}
}

func New(opts ...Option) (*Client, error) {
	c := &Client{
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tls != nil {
		transport, err := ConfigureTLS(c.tls)
		if err != nil {
			return nil, err
		}
		c.client.Transport = transport
	}
	return c, nil
}

// Do sends req once, waiting on the rate limiter first. The wait honors the
// request's context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	return c.client.Do(req)
}

func (c *Client) Timeout() time.Duration {
	return c.client.Timeout
}
