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

// Package server exposes the tutoring backend over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/sensei/pkg/agents"
	"github.com/kadirpekel/sensei/pkg/cache"
	"github.com/kadirpekel/sensei/pkg/config"
	"github.com/kadirpekel/sensei/pkg/retrieval"
	"github.com/kadirpekel/sensei/pkg/supervisor"
)

// Server wires the supervisor and its supporting services to HTTP routes.
type Server struct {
	sup       *supervisor.Supervisor
	retriever *retrieval.Service
	cache     *cache.SemanticCache
	registry  *prometheus.Registry
	logger    *slog.Logger

	httpServer *http.Server
}

// New creates the HTTP server. Retriever, cache and registry may be nil;
// their routes degrade accordingly.
func New(cfg *config.ServerConfig, sup *supervisor.Supervisor, retriever *retrieval.Service, semCache *cache.SemanticCache, registry *prometheus.Registry) (*Server, error) {
	if sup == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if cfg == nil {
		cfg = &config.ServerConfig{}
		cfg.SetDefaults()
	}

	s := &Server{
		sup:       sup,
		retriever: retriever,
		cache:     semCache,
		registry:  registry,
		logger:    slog.Default().With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.RequestTimeout) * time.Second))
	r.Use(s.logRequests)

	r.Post("/v1/tutor", s.handleTutor)
	r.Post("/v1/passages", s.handleIndexPassage)
	r.Get("/v1/cache/stats", s.handleCacheStats)
	r.Get("/healthz", s.handleHealth)

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: r,
	}

	return s, nil
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains connections and waits for pending cache writes.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.sup.Flush()
	return err
}

type tutorRequest struct {
	TenantID        string         `json:"tenant_id"`
	UserQuery       string         `json:"user_query"`
	SubmittedAnswer string         `json:"submitted_answer,omitempty"`
	History         []string       `json:"history,omitempty"`
	StudentProfile  profilePayload `json:"student_profile"`
}

type profilePayload struct {
	Grade              int                `json:"grade"`
	Subject            string             `json:"subject"`
	PerformanceSignals map[string]float64 `json:"performance_signals,omitempty"`
}

type tutorResponse struct {
	Specialist string          `json:"specialist"`
	Payload    responsePayload `json:"payload"`
	Provenance string          `json:"provenance"`
	LatencyMS  int64           `json:"latency_ms"`
}

type responsePayload struct {
	Text            string            `json:"text"`
	Score           *float64          `json:"score,omitempty"`
	Steps           []string          `json:"steps,omitempty"`
	Quiz            []agents.QuizItem `json:"quiz,omitempty"`
	Recommendations string            `json:"recommendations,omitempty"`
	Tokens          int               `json:"tokens,omitempty"`
	StepLog         []string          `json:"step_log,omitempty"`
}

type errorResponse struct {
	Error      string   `json:"error"`
	Specialist string   `json:"specialist,omitempty"`
	Providers  []string `json:"providers_attempted,omitempty"`
}

func (s *Server) handleTutor(w http.ResponseWriter, r *http.Request) {
	var req tutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.TenantID == "" || req.UserQuery == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenant_id and user_query are required"})
		return
	}

	query := agents.Query{
		TenantID:        req.TenantID,
		Text:            req.UserQuery,
		SubmittedAnswer: req.SubmittedAnswer,
		History:         req.History,
		RequestID:       middleware.GetReqID(r.Context()),
	}
	profile := agents.StudentProfile{
		Grade:              req.StudentProfile.Grade,
		Subject:            req.StudentProfile.Subject,
		PerformanceSignals: req.StudentProfile.PerformanceSignals,
	}

	resp, err := s.sup.Handle(r.Context(), query, profile)
	if err != nil {
		var orchErr *supervisor.OrchestrationError
		if errors.As(err, &orchErr) {
			writeJSON(w, http.StatusBadGateway, errorResponse{
				Error:      orchErr.Error(),
				Specialist: orchErr.Specialist,
				Providers:  orchErr.Providers,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, tutorResponse{
		Specialist: resp.Specialist,
		Payload: responsePayload{
			Text:            resp.Text,
			Score:           resp.Score,
			Steps:           resp.Steps,
			Quiz:            resp.Quiz,
			Recommendations: resp.Recommendations,
			Tokens:          resp.Tokens,
			StepLog:         resp.StepLog,
		},
		Provenance: resp.Provenance,
		LatencyMS:  resp.LatencyMS,
	})
}

type indexPassageRequest struct {
	TenantID string `json:"tenant_id"`
	Subject  string `json:"subject"`
	SourceID string `json:"source_id,omitempty"`
	Text     string `json:"text"`
}

func (s *Server) handleIndexPassage(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "retrieval is not configured"})
		return
	}

	var req indexPassageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.TenantID == "" || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenant_id and text are required"})
		return
	}

	id, err := s.retriever.IndexPassage(r.Context(), req.Text, req.SourceID, retrieval.Scope{
		TenantID: req.TenantID,
		Subject:  req.Subject,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, cache.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logRequests logs one line per request with status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
