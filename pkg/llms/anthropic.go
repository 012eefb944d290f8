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

package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/forge/pkg/httpclient"
	"github.com/kadirpekel/forge/pkg/observability"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultMaxTokens = 4096
	APIVersion       = "2023-06-01"

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 64 << 10
)

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

type Config struct {
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries after the first attempt for
	// retryable failures. Zero disables retrying.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	RateLimit RateLimitConfig       `yaml:"rate_limit" mapstructure:"rate_limit"`
	TLS       *httpclient.TLSConfig `yaml:"tls,omitempty" mapstructure:"tls"`
}

func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = httpclient.DefaultTimeout
	}
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.requests_per_second must not be negative")
	}
	return nil
}

// AnthropicClient is a Client for the Messages API.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	maxTokens  int
	maxRetries int
	backoff    httpclient.Backoff
	http       *httpclient.Client
	metrics    observability.Metrics
	tracer     trace.Tracer
}

type Option func(*AnthropicClient)

// WithBackoff replaces the retry delay schedule.
func WithBackoff(b httpclient.Backoff) Option {
	return func(c *AnthropicClient) {
		c.backoff = b
	}
}

func WithMetrics(m observability.Metrics) Option {
	return func(c *AnthropicClient) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *AnthropicClient) {
		c.tracer = t
	}
}

func NewAnthropicClient(cfg Config, opts ...Option) (*AnthropicClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}

	hc, err := httpclient.New(
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		httpclient.WithTLSConfig(cfg.TLS),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	c := &AnthropicClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		backoff:    httpclient.DefaultBackoff(),
		http:       hc,
		metrics:    observability.GetGlobalMetrics(),
		tracer:     observability.Tracer("forge/llms"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *AnthropicClient) MaxTokens() int {
	return c.maxTokens
}

// SendMessage posts req, retrying retryable failures up to the configured
// limit. A zero MaxTokens in req is replaced by the client's default.
func (c *AnthropicClient) SendMessage(ctx context.Context, req *Request) (*Response, error) {
	if req.MaxTokens == 0 {
		r := *req
		r.MaxTokens = c.maxTokens
		req = &r
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Kind: ErrJSON, Err: err}
	}

	ctx, span := c.tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(observability.AttrLLMModel, req.Model)),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.sendWithRetry(ctx, body)
	if err != nil {
		c.metrics.RecordLLMCall(ctx, req.Model, time.Since(start), 0, 0, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.metrics.RecordLLMCall(ctx, req.Model, time.Since(start), resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)
	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, resp.Usage.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, resp.Usage.OutputTokens),
	)
	return resp, nil
}

func (c *AnthropicClient) sendWithRetry(ctx context.Context, body []byte) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, info, err := c.send(ctx, body)
		if err == nil {
			return resp, nil
		}

		var ce *ClientError
		if c.maxRetries == 0 || !errors.As(err, &ce) || !ce.IsRetryable() {
			return nil, err
		}
		if attempt >= c.maxRetries {
			slog.Error("Model request failed after retries", "retries", c.maxRetries, "error", err)
			return nil, &ClientError{Kind: ErrMaxRetriesExceeded, Message: err.Error(), Err: err}
		}

		delay := c.backoff.Delay(attempt+1, ce.Kind == ErrRateLimitExceeded, info)
		slog.Warn("Model request failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		if err := httpclient.Sleep(ctx, delay); err != nil {
			return nil, transportError(err)
		}
	}
}

func (c *AnthropicClient) send(ctx context.Context, body []byte) (*Response, httpclient.RateLimitInfo, error) {
	var info httpclient.RateLimitInfo

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, info, &ClientError{Kind: ErrHTTP, Err: err}
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, info, transportError(err)
	}
	defer httpResp.Body.Close()

	info = httpclient.ParseAnthropicHeaders(httpResp.Header)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		if err != nil {
			return nil, info, transportError(err)
		}
		return nil, info, statusError(httpResp.StatusCode, apiErrorMessage(data))
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, info, transportError(err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, info, &ClientError{Kind: ErrJSON, Err: err}
	}
	return &resp, info, nil
}
