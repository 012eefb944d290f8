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

package webtool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/forge/pkg/tool"
)

func call(t *testing.T, cfg Config, args map[string]any) (string, error) {
	t.Helper()
	ft, err := New(cfg)
	require.NoError(t, err)
	input, err := json.Marshal(args)
	require.NoError(t, err)
	return ft.Call(context.Background(), input)
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprintf(w, "%s %s", r.Method, body)
		case "/big":
			fmt.Fprint(w, strings.Repeat("a", 100))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	t.Run("get", func(t *testing.T) {
		out, err := call(t, Config{}, map[string]any{"url": ts.URL + "/echo"})
		require.NoError(t, err)
		assert.Contains(t, out, "HTTP 200 OK\n")
		assert.Contains(t, out, "Content-Type: text/plain")
		assert.True(t, strings.HasSuffix(out, "GET "))
	})

	t.Run("post", func(t *testing.T) {
		out, err := call(t, Config{}, map[string]any{"url": ts.URL + "/echo", "method": "post", "body": "payload"})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(out, "POST payload"))
	})

	t.Run("truncated", func(t *testing.T) {
		out, err := call(t, Config{MaxResponseSize: 10}, map[string]any{"url": ts.URL + "/big"})
		require.NoError(t, err)
		assert.Contains(t, out, "\naaaaaaaaaa\n[truncated at 10 bytes]")
	})

	t.Run("not found is a failure", func(t *testing.T) {
		_, err := call(t, Config{}, map[string]any{"url": ts.URL + "/missing"})
		require.Error(t, err)
		assert.ErrorIs(t, err, tool.ErrCommandFailed)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestFetch_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		args    map[string]any
		wantErr string
	}{
		{"missing url", Config{}, map[string]any{}, "url"},
		{"bad scheme", Config{}, map[string]any{"url": "file:///etc/passwd"}, "unsupported scheme"},
		{"bad method", Config{}, map[string]any{"url": "http://x.test", "method": "DELETE"}, "unsupported method"},
		{"denied", Config{DeniedDomains: []string{"*.evil.test"}}, map[string]any{"url": "http://a.evil.test/x"}, "domain not allowed"},
		{"not allowed", Config{AllowedDomains: []string{"good.test"}}, map[string]any{"url": "http://other.test"}, "domain not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, tt.cfg, tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, tool.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMatchesDomain(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"example.com", "example.com", true},
		{"API.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"badexample.com", "*.example.com", false},
		{"other.com", "example.com", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesDomain(tt.host, tt.pattern), "%s ~ %s", tt.host, tt.pattern)
	}
}
