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

// Package server exposes the agent executor over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /agents
//	POST /agents/{name}/run   {"prompt": "..."}
//	POST /runs                {"tasks": [{"agent": "...", "prompt": "..."}]}
//	GET  /metrics             when metrics are enabled
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/forge/pkg/agent"
	"github.com/kadirpekel/forge/pkg/config"
	"github.com/kadirpekel/forge/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg        config.ServerConfig
	executor   *agent.Executor
	obs        *observability.Manager
	httpServer *http.Server
}

type Option func(*Server)

// WithObservability traces requests and mounts the metrics endpoint.
func WithObservability(m *observability.Manager) Option {
	return func(s *Server) {
		s.obs = m
	}
}

func New(cfg config.ServerConfig, executor *agent.Executor, opts ...Option) *Server {
	if cfg.Address == "" {
		cfg.Address = config.DefaultServerAddress
	}
	s := &Server{cfg: cfg, executor: executor}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	if s.obs != nil {
		r.Use(observability.HTTPMiddleware(s.obs.Tracer("forge/server")))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/agents", s.handleListAgents)
	r.Post("/agents/{name}/run", s.handleRunAgent)
	r.Post("/runs", s.handleRunBatch)

	if s.obs != nil {
		if h := s.obs.MetricsHandler(); h != nil {
			r.Handle(s.obs.MetricsPath(), h)
		}
	}

	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.cfg.Address)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}
