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

// Package supervisor orchestrates query handling: intent classification,
// semantic cache lookups, grounding retrieval, specialist dispatch and the
// final response assembly with provenance.
//
// Every non-LLM dependency failure degrades the request instead of failing
// it. Only total provider exhaustion surfaces to the caller, as a
// structured OrchestrationError.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/kadirpekel/sensei/pkg/agents"
	"github.com/kadirpekel/sensei/pkg/cache"
	"github.com/kadirpekel/sensei/pkg/config"
	"github.com/kadirpekel/sensei/pkg/llms"
	"github.com/kadirpekel/sensei/pkg/retrieval"
)

// Cache is the semantic cache surface the supervisor consumes.
type Cache interface {
	Lookup(ctx context.Context, key cache.Key) (*cache.Entry, bool)
	Store(ctx context.Context, key cache.Key, response agents.AgentResponse) error
}

// Retriever is the grounding retrieval surface the supervisor consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string, scope retrieval.Scope) retrieval.Context
}

// Specialists bundles the four agents the supervisor routes to.
type Specialists struct {
	Content agents.Specialist
	Solver  agents.Specialist
	Grader  agents.Specialist
	Analyst agents.Specialist
}

// Supervisor coordinates the full handling of one query. It holds no
// per-request state: concurrent queries share only the injected cache and
// retrieval backends.
type Supervisor struct {
	classifier       *Classifier
	cache            Cache
	retriever        Retriever
	routes           map[Intent][]agents.Specialist
	maxRegenerations int
	storeTimeout     time.Duration
	metrics          *Metrics
	tracer           trace.Tracer
	logger           *slog.Logger

	// flight collapses concurrent generations for the same cache key.
	flight singleflight.Group

	// storeWG tracks in-flight cache writes for graceful shutdown.
	storeWG sync.WaitGroup
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithCache injects the semantic cache. Without it every query generates.
func WithCache(c Cache) Option {
	return func(s *Supervisor) {
		s.cache = c
	}
}

// WithRetriever injects the retrieval service. Without it grounded intents
// run with an empty context.
func WithRetriever(r Retriever) Option {
	return func(s *Supervisor) {
		s.retriever = r
	}
}

// WithMetrics injects a shared metrics set.
func WithMetrics(m *Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// New creates a supervisor over the given specialists.
func New(cfg *config.SupervisorConfig, specs Specialists, opts ...Option) (*Supervisor, error) {
	if specs.Content == nil || specs.Solver == nil || specs.Grader == nil || specs.Analyst == nil {
		return nil, fmt.Errorf("all four specialists are required")
	}
	if cfg == nil {
		cfg = &config.SupervisorConfig{}
		cfg.SetDefaults()
	}

	s := &Supervisor{
		classifier: NewClassifier(cfg.DefaultIntent, cfg.GroundedIntents),
		routes: map[Intent][]agents.Specialist{
			IntentExplain: {specs.Content},
			IntentSolve:   {specs.Solver},
			IntentGrade:   {specs.Grader},
			IntentAnalyze: {specs.Analyst},
		},
		maxRegenerations: cfg.MaxRegenerations,
		storeTimeout:     time.Duration(cfg.StoreTimeout) * time.Second,
		tracer:           otel.Tracer("github.com/kadirpekel/sensei/pkg/supervisor"),
		logger:           slog.Default().With("component", "supervisor"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}

	return s, nil
}

// Handle processes one query end to end and returns exactly one response.
// It fails only when every downstream path has been exhausted.
func (s *Supervisor) Handle(ctx context.Context, query agents.Query, profile agents.StudentProfile) (*agents.AgentResponse, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "supervisor.handle",
		trace.WithAttributes(attribute.String("tenant", query.TenantID)))
	defer span.End()

	result := s.classifier.Classify(query)
	span.SetAttributes(
		attribute.String("intent", string(result.Intent)),
		attribute.Float64("classification_confidence", result.Confidence))

	key := cache.NewKey(query.TenantID, string(result.Intent), query.Text, profile.Subject, profile.Grade)

	if s.cache != nil {
		if entry, ok := s.cache.Lookup(ctx, key); ok {
			s.metrics.cacheHits.Inc()
			span.SetAttributes(attribute.Bool("cache_hit", true))

			resp := entry.Response
			resp.Provenance = agents.ProvenanceCacheHit
			resp.StepLog = append(resp.StepLog, "cache_hit")
			s.finish(&resp, result.Intent, start)
			return &resp, nil
		}
		s.metrics.cacheMiss.Inc()
	}

	// Concurrent misses for the same key generate once and share the
	// result; each caller still gets its own copy.
	v, err, _ := s.flight.Do(key.ID(), func() (any, error) {
		return s.generate(ctx, query, profile, result, key)
	})
	if err != nil {
		s.metrics.failures.WithLabelValues(string(result.Intent)).Inc()
		span.RecordError(err)
		return nil, err
	}

	resp := *(v.(*agents.AgentResponse))
	if resp.Provenance == agents.ProvenanceFallbackDegraded {
		s.metrics.fallbacks.Inc()
	}
	s.finish(&resp, result.Intent, start)
	return &resp, nil
}

// Flush waits for in-flight cache writes. Called on shutdown.
func (s *Supervisor) Flush() {
	s.storeWG.Wait()
}

// generate runs the cache-miss path: retrieval, dispatch, validation and
// the fire-and-forget cache write.
func (s *Supervisor) generate(ctx context.Context, query agents.Query, profile agents.StudentProfile, result ClassificationResult, key cache.Key) (*agents.AgentResponse, error) {
	req := agents.Request{Query: query, Profile: profile}

	if result.RequiresGrounding && s.retriever != nil {
		rctx, span := s.tracer.Start(ctx, "supervisor.retrieve")
		req.Context = s.retriever.Retrieve(rctx, query.Text, retrieval.Scope{
			TenantID: query.TenantID,
			Subject:  profile.Subject,
		})
		span.SetAttributes(attribute.Int("passages", len(req.Context.Passages)))
		span.End()

		if req.Context.Empty() {
			s.logger.Info("no grounding found, proceeding with empty context",
				"tenant", query.TenantID,
				"intent", result.Intent)
		}
	}

	resp, err := s.dispatch(ctx, result.Intent, req)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxRegenerations; attempt++ {
		issues := validateResponse(resp)
		if len(issues) == 0 {
			break
		}

		s.logger.Warn("response failed validation, regenerating",
			"attempt", attempt,
			"issues", strings.Join(issues, "; "))

		regen, err := s.dispatch(ctx, result.Intent, req)
		if err != nil {
			// Keep the prior response rather than failing a request that
			// already has one.
			break
		}
		regen.StepLog = append(regen.StepLog, fmt.Sprintf("regenerated_attempt_%d", attempt))
		resp = regen
	}

	resp.StepLog = append([]string{"classified:" + string(result.Intent)}, resp.StepLog...)

	if s.cache != nil {
		s.storeAsync(ctx, key, *resp)
	}

	return resp, nil
}

// dispatch routes the request to the specialist(s) mapped to the intent.
func (s *Supervisor) dispatch(ctx context.Context, intent Intent, req agents.Request) (*agents.AgentResponse, error) {
	if intent == IntentAnalyze {
		return s.dispatchAnalyze(ctx, req)
	}

	spec, err := s.pick(intent)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "specialist."+spec.Name())
	defer span.End()

	resp, err := spec.Run(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, s.orchestrationError(spec.Name(), err)
	}
	return resp, nil
}

// dispatchAnalyze runs the chained analyze path: Grader first when an
// answer was submitted, its structured score feeding the Analyst. The two
// outputs merge deterministically into one response.
func (s *Supervisor) dispatchAnalyze(ctx context.Context, req agents.Request) (*agents.AgentResponse, error) {
	analyst, err := s.pick(IntentAnalyze)
	if err != nil {
		return nil, err
	}

	var gradeResp *agents.AgentResponse
	if req.Query.SubmittedAnswer != "" {
		grader, err := s.pick(IntentGrade)
		if err == nil {
			gctx, span := s.tracer.Start(ctx, "specialist."+grader.Name())
			resp, gerr := grader.Run(gctx, req)
			span.End()

			if gerr != nil {
				// Analysis can proceed without a fresh grade.
				s.logger.Warn("grader failed on analyze path, proceeding without grade",
					"error", gerr)
			} else {
				gradeResp = resp
				req.Grade = agents.GradeFromResponse(resp)
			}
		}
	}

	ctx, span := s.tracer.Start(ctx, "specialist."+analyst.Name())
	defer span.End()

	resp, err := analyst.Run(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, s.orchestrationError(analyst.Name(), err)
	}

	if gradeResp != nil {
		resp.Score = gradeResp.Score
		resp.Tokens += gradeResp.Tokens
		resp.StepLog = append(gradeResp.StepLog, resp.StepLog...)
		if gradeResp.Provenance == agents.ProvenanceFallbackDegraded {
			resp.Provenance = agents.ProvenanceFallbackDegraded
		}
	}

	return resp, nil
}

// pick selects the specialist for an intent. With more than one eligible
// the first in registration order wins and the ambiguity is logged, never
// a silent double dispatch.
func (s *Supervisor) pick(intent Intent) (agents.Specialist, error) {
	eligible := s.routes[intent]
	if len(eligible) == 0 {
		return nil, &OrchestrationError{
			Specialist: string(intent),
			Err:        fmt.Errorf("no specialist mapped to intent %q", intent),
		}
	}
	if len(eligible) > 1 {
		s.logger.Warn("multiple specialists eligible for intent, picking first",
			"intent", intent,
			"selected", eligible[0].Name())
	}
	return eligible[0], nil
}

// storeAsync writes the cache entry off the response path. The write
// survives caller cancellation but is bounded by the store timeout.
func (s *Supervisor) storeAsync(ctx context.Context, key cache.Key, resp agents.AgentResponse) {
	wctx := context.WithoutCancel(ctx)
	s.storeWG.Add(1)
	go func() {
		defer s.storeWG.Done()

		wctx, cancel := context.WithTimeout(wctx, s.storeTimeout)
		defer cancel()

		if err := s.cache.Store(wctx, key, resp); err != nil {
			s.logger.Warn("cache store failed",
				"tenant", key.TenantID,
				"intent", key.Intent,
				"error", err)
		}
	}()
}

func (s *Supervisor) finish(resp *agents.AgentResponse, intent Intent, start time.Time) {
	resp.LatencyMS = time.Since(start).Milliseconds()
	s.metrics.requests.WithLabelValues(string(intent), resp.Provenance).Inc()
	s.metrics.latency.WithLabelValues(string(intent)).Observe(time.Since(start).Seconds())
}

// orchestrationError wraps a specialist failure, lifting the attempted
// provider list out of the underlying provider error when present.
func (s *Supervisor) orchestrationError(specialist string, err error) error {
	var provErr *llms.ProviderError
	var providers []string
	if errors.As(err, &provErr) {
		providers = provErr.Attempted
	}
	return &OrchestrationError{
		Specialist: specialist,
		Providers:  providers,
		Err:        err,
	}
}

// validateResponse checks a generated response for structural defects that
// warrant regeneration.
func validateResponse(resp *agents.AgentResponse) []string {
	var issues []string
	if strings.TrimSpace(resp.Text) == "" {
		issues = append(issues, "empty response text")
	}
	for _, q := range resp.Quiz {
		if strings.TrimSpace(q.Question) == "" {
			issues = append(issues, "quiz item with empty question")
			break
		}
	}
	return issues
}
