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

// Package webtool provides the opt-in web_fetch tool.
package webtool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kadirpekel/forge/pkg/httpclient"
	"github.com/kadirpekel/forge/pkg/tool"
	"github.com/kadirpekel/forge/pkg/tool/functiontool"
)

const (
	Name = "web_fetch"

	DefaultTimeout         = 30 * time.Second
	DefaultMaxResponseSize = 1 << 20
	userAgent              = "forge-web-fetch/1.0"
)

type Config struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// AllowedDomains restricts requests to these hosts. "*.example.com"
	// matches subdomains. Empty allows any host not denied.
	AllowedDomains []string `yaml:"allowed_domains,omitempty"`

	// DeniedDomains wins over AllowedDomains.
	DeniedDomains []string `yaml:"denied_domains,omitempty"`

	Timeout         time.Duration `yaml:"timeout,omitempty"`
	MaxResponseSize int64         `yaml:"max_response_size,omitempty"`

	// RequestsPerSecond throttles all fetches across runs. Zero disables.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResponseSize <= 0 {
		c.MaxResponseSize = DefaultMaxResponseSize
	}
}

type FetchArgs struct {
	URL    string `json:"url" jsonschema:"required,description=http or https URL to fetch"`
	Method string `json:"method,omitempty" jsonschema:"description=GET or POST (default GET),enum=GET,enum=POST"`
	Body   string `json:"body,omitempty" jsonschema:"description=Request body for POST"`
}

// New creates the web_fetch tool.
func New(cfg Config) (tool.Tool, error) {
	cfg.SetDefaults()

	hc, err := httpclient.New(
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRateLimit(cfg.RequestsPerSecond, 1),
	)
	if err != nil {
		return nil, err
	}

	return functiontool.NewWithValidation(
		functiontool.Config{
			Name:        Name,
			Description: "Fetch a URL over HTTP and return the status line and response body.",
		},
		func(ctx context.Context, args FetchArgs) (string, error) {
			return fetch(ctx, cfg, hc, args)
		},
		func(args FetchArgs) error {
			return validate(cfg, args)
		},
	)
}

func validate(cfg Config, args FetchArgs) error {
	u, err := url.Parse(args.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	switch method(args) {
	case http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("unsupported method %q", args.Method)
	}
	return checkDomain(cfg, u.Hostname())
}

func fetch(ctx context.Context, cfg Config, hc *httpclient.Client, args FetchArgs) (string, error) {
	var body io.Reader
	if args.Body != "" {
		body = strings.NewReader(args.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method(args), args.URL, body)
	if err != nil {
		return "", tool.InvalidInput("%v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return "", tool.CommandFailed("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, cfg.MaxResponseSize+1))
	if err != nil {
		return "", tool.CommandFailed("failed to read response: %v", err)
	}
	truncated := int64(len(data)) > cfg.MaxResponseSize
	if truncated {
		data = data[:cfg.MaxResponseSize]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP %s\n", resp.Status)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		fmt.Fprintf(&b, "Content-Type: %s\n", ct)
	}
	b.WriteString("\n")
	b.Write(data)
	if truncated {
		fmt.Fprintf(&b, "\n[truncated at %d bytes]", cfg.MaxResponseSize)
	}

	if resp.StatusCode >= 400 {
		return "", tool.CommandFailed("%s", b.String())
	}
	return b.String(), nil
}

func method(args FetchArgs) string {
	if args.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(args.Method)
}

func checkDomain(cfg Config, host string) error {
	for _, denied := range cfg.DeniedDomains {
		if matchesDomain(host, denied) {
			return fmt.Errorf("domain not allowed: %s", host)
		}
	}
	if len(cfg.AllowedDomains) == 0 {
		return nil
	}
	for _, allowed := range cfg.AllowedDomains {
		if matchesDomain(host, allowed) {
			return nil
		}
	}
	return fmt.Errorf("domain not allowed: %s", host)
}

func matchesDomain(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)
	if host == pattern {
		return true
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(host, suffix)
	}
	return false
}
