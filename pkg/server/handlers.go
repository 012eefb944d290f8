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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/forge/pkg/agent"
)

const maxBodyBytes = 1 << 20

type agentInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Model       string   `json:"model"`
	MaxTurns    int      `json:"max_turns"`
	Allowed     []string `json:"allowed_tools,omitempty"`
	Denied      []string `json:"denied_tools,omitempty"`
}

type runRequest struct {
	Prompt string `json:"prompt"`
}

type batchRequest struct {
	Tasks []agent.Task `json:"tasks"`
}

type taskResponse struct {
	Agent  string           `json:"agent"`
	Prompt string           `json:"prompt"`
	Result *agent.RunResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type errorResponse struct {
	Error  string        `json:"error"`
	Events []agent.Event `json:"events,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	names := s.executor.ListAgents()
	infos := make([]agentInfo, 0, len(names))
	for _, name := range names {
		def, ok := s.executor.GetAgent(name)
		if !ok {
			continue
		}
		infos = append(infos, agentInfo{
			Name:        def.Name,
			Description: def.Description,
			Model:       def.ResolvedModel(),
			MaxTurns:    def.Behavior.MaxTurns,
			Allowed:     def.Tools.Allowed,
			Denied:      def.Tools.Denied,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": infos})
}

func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req runRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, errors.New("prompt is required"))
		return
	}

	result, err := s.executor.ExecuteAgent(r.Context(), name, req.Prompt)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Agent run failed", "agent", name, "error", err)
		}
		resp := errorResponse{Error: err.Error()}
		var ae *agent.Error
		if errors.As(err, &ae) {
			resp.Events = ae.Events
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for i, t := range req.Tasks {
		if t.Agent == "" || strings.TrimSpace(t.Prompt) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("tasks[%d]: agent and prompt are required", i))
			return
		}
	}

	results := s.executor.ExecuteAgentsParallel(r.Context(), req.Tasks)
	out := make([]taskResponse, len(results))
	for i, tr := range results {
		out[i] = taskResponse{
			Agent:  tr.Task.Agent,
			Prompt: tr.Task.Prompt,
			Result: tr.Result,
		}
		if tr.Err != nil {
			out[i].Error = tr.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, agent.ErrInvalidConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, agent.ErrStoppedOnError):
		return http.StatusUnprocessableEntity
	case errors.Is(err, agent.ErrClient):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
