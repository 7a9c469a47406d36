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

// Package agents implements the four specialist agents: Content, Solver,
// Grader and Analyst. Each is a pure function from (query, profile,
// retrieved context) to a structured response; all model access goes
// through an injected llms.Completer.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/sensei/pkg/llms"
	"github.com/kadirpekel/sensei/pkg/retrieval"
)

// Provenance tags on an AgentResponse.
const (
	// ProvenanceCacheHit marks a response served from the semantic cache.
	ProvenanceCacheHit = "cache-hit"

	// ProvenanceGenerated marks a response freshly generated by the
	// primary provider.
	ProvenanceGenerated = "generated"

	// ProvenanceFallbackDegraded marks a response generated through a
	// fallback provider.
	ProvenanceFallbackDegraded = "fallback-degraded"
)

// Query is an incoming student request. Immutable once received.
type Query struct {
	// TenantID identifies the school or organization.
	TenantID string `json:"tenant_id"`

	// Text is the raw query text.
	Text string `json:"text"`

	// SubmittedAnswer is the student's answer, when grading is requested.
	SubmittedAnswer string `json:"submitted_answer,omitempty"`

	// History holds prior conversation turns, oldest first.
	History []string `json:"history,omitempty"`

	// RequestID correlates log lines for one request.
	RequestID string `json:"request_id,omitempty"`
}

// StudentProfile is read-only input to agents, never mutated by the core.
type StudentProfile struct {
	// Grade is the school grade level.
	Grade int `json:"grade"`

	// Subject the student is working on.
	Subject string `json:"subject"`

	// PerformanceSignals are named prior-performance scores in [0, 1].
	PerformanceSignals map[string]float64 `json:"performance_signals,omitempty"`
}

// QuizItem is a single generated quiz question.
type QuizItem struct {
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Type          string   `json:"type,omitempty"`
}

// GradeResult is the Grader's structured output, consumed by the Analyst
// on the chained analyze path.
type GradeResult struct {
	// Score in [0, MaxScore].
	Score float64 `json:"score"`

	// MaxScore is the grading scale (10 by default).
	MaxScore float64 `json:"max_score"`

	// Correct is true when the score clears the passing threshold.
	Correct bool `json:"correct"`

	// Feedback is the full grading explanation.
	Feedback string `json:"feedback"`
}

// AgentResponse is the structured result of a specialist run. Exactly one
// is returned per query.
type AgentResponse struct {
	// Specialist that produced the response.
	Specialist string `json:"specialist"`

	// Text is the main free-text payload.
	Text string `json:"text"`

	// Score is set by the Grader.
	Score *float64 `json:"score,omitempty"`

	// Steps holds the Solver's worked solution steps.
	Steps []string `json:"steps,omitempty"`

	// Quiz holds questions generated by the Content specialist.
	Quiz []QuizItem `json:"quiz,omitempty"`

	// Recommendations is the Analyst's study advice.
	Recommendations string `json:"recommendations,omitempty"`

	// Provenance is one of cache-hit, generated, fallback-degraded.
	Provenance string `json:"provenance"`

	// LatencyMS is the end-to-end handling latency, set by the caller.
	LatencyMS int64 `json:"latency_ms"`

	// Tokens consumed across the specialist's model calls.
	Tokens int `json:"tokens,omitempty"`

	// StepLog records the orchestration steps taken, in order.
	StepLog []string `json:"step_log,omitempty"`
}

// Request bundles a specialist's inputs.
type Request struct {
	Query   Query
	Profile StudentProfile
	Context retrieval.Context

	// Grade carries the Grader's output into the Analyst on the chained
	// analyze path. Nil otherwise.
	Grade *GradeResult
}

// Specialist is the fixed interface every agent implements.
type Specialist interface {
	// Name returns the specialist identity used in responses and logs.
	Name() string

	// Run produces a response from the request. It never mutates the
	// request.
	Run(ctx context.Context, req Request) (*AgentResponse, error)
}

// formatPassages renders up to limit passages for prompt inclusion. Long
// passages are truncated so grounding never dominates the token budget.
func formatPassages(rc retrieval.Context, limit, maxLen int) string {
	if rc.Empty() {
		return "(no reference material found)"
	}

	var b strings.Builder
	for i, p := range rc.Passages {
		if i >= limit {
			break
		}
		text := p.Text
		if len(text) > maxLen {
			text = text[:maxLen] + "..."
		}
		fmt.Fprintf(&b, "- %s\n", text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// maxHistoryTurns bounds how many prior conversation turns enter a prompt.
const maxHistoryTurns = 6

// withHistory prepends bounded conversation history to the final user
// prompt. Turns alternate user/assistant starting from the oldest kept
// turn, which is always a user turn.
func withHistory(history []string, prompt string) []llms.Message {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history)%2 != 0 {
		history = history[1:]
	}

	messages := make([]llms.Message, 0, len(history)+1)
	for i, turn := range history {
		role := llms.RoleUser
		if i%2 != 0 {
			role = llms.RoleAssistant
		}
		messages = append(messages, llms.Message{Role: role, Content: turn})
	}
	return append(messages, llms.Message{Role: llms.RoleUser, Content: prompt})
}

// provenanceFor maps a completion's degraded flag to a provenance tag.
func provenanceFor(degraded bool) string {
	if degraded {
		return ProvenanceFallbackDegraded
	}
	return ProvenanceGenerated
}
