package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kadirpekel/sensei/pkg/llms"
)

const analystSystemPrompt = "You are a pedagogical analyst. Assess the student's strengths, " +
	"weaknesses and progress from their profile and results."

const analystPromptTemplate = `Analyze this student's performance.

Subject: %s
Grade level: %d
Performance signals: %s
Latest grading result: %s

Describe strengths, weaknesses and the student's current level.`

const recommenderSystemPrompt = "You are a pedagogical advisor. Produce personalized study " +
	"recommendations for the student."

const recommenderPromptTemplate = `Based on this analysis, write recommendations for the student.

Analysis: %s
Subject: %s
Grade level: %d

Cover: study recommendations, additional material, practice exercises, and improvement strategies.`

// AnalystAgent analyzes student performance and produces recommendations.
// On the chained analyze path it consumes the Grader's structured output.
type AnalystAgent struct {
	llm    llms.Completer
	logger *slog.Logger
}

// NewAnalystAgent creates the Analyst specialist.
func NewAnalystAgent(llm llms.Completer) *AnalystAgent {
	return &AnalystAgent{
		llm:    llm,
		logger: slog.Default().With("specialist", "analyst"),
	}
}

func (a *AnalystAgent) Name() string {
	return "analyst"
}

func (a *AnalystAgent) Run(ctx context.Context, req Request) (*AgentResponse, error) {
	a.logger.Info("analyzing student profile",
		"tenant", req.Query.TenantID,
		"subject", req.Profile.Subject)

	analysis, err := a.llm.Complete(ctx, llms.CompletionRequest{
		System: analystSystemPrompt,
		Messages: []llms.Message{{
			Role: llms.RoleUser,
			Content: fmt.Sprintf(analystPromptTemplate,
				req.Profile.Subject,
				req.Profile.Grade,
				formatSignals(req.Profile.PerformanceSignals),
				formatGrade(req.Grade)),
		}},
		Temperature: 0.4,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("performance analysis failed: %w", err)
	}

	resp := &AgentResponse{
		Specialist: a.Name(),
		Text:       analysis.Text,
		Tokens:     analysis.Tokens,
		Provenance: provenanceFor(analysis.Degraded),
		StepLog:    []string{"performance_analyzed"},
	}

	recommendations, err := a.llm.Complete(ctx, llms.CompletionRequest{
		System: recommenderSystemPrompt,
		Messages: []llms.Message{{
			Role: llms.RoleUser,
			Content: fmt.Sprintf(recommenderPromptTemplate,
				analysis.Text,
				req.Profile.Subject,
				req.Profile.Grade),
		}},
		Temperature: 0.6,
		MaxTokens:   1024,
	})
	if err != nil {
		// The analysis alone is still useful.
		a.logger.Warn("recommendation generation failed, returning analysis only", "error", err)
		resp.StepLog = append(resp.StepLog, "recommendations_skipped")
		return resp, nil
	}

	resp.Recommendations = recommendations.Text
	resp.Tokens += recommendations.Tokens
	if recommendations.Degraded {
		resp.Provenance = ProvenanceFallbackDegraded
	}
	resp.StepLog = append(resp.StepLog, "recommendations_generated")

	a.logger.Info("analysis completed")
	return resp, nil
}

// formatSignals renders performance signals deterministically (sorted by
// name) so identical profiles build identical prompts.
func formatSignals(signals map[string]float64) string {
	if len(signals) == 0 {
		return "(none recorded)"
	}

	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%.2f", name, signals[name]))
	}
	return strings.Join(parts, ", ")
}

func formatGrade(grade *GradeResult) string {
	if grade == nil {
		return "(no grading result available)"
	}
	return fmt.Sprintf("score %.1f/%.0f, correct=%t", grade.Score, grade.MaxScore, grade.Correct)
}

// Ensure AnalystAgent implements Specialist.
var _ Specialist = (*AnalystAgent)(nil)
