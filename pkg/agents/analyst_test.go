package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kadirpekel/sensei/pkg/llms"
)

func TestFormatSignals(t *testing.T) {
	if got := formatSignals(nil); got != "(none recorded)" {
		t.Errorf("formatSignals(nil) = %q", got)
	}

	got := formatSignals(map[string]float64{
		"geometry": 0.4,
		"algebra":  0.85,
	})
	want := "algebra=0.85, geometry=0.40"
	if got != want {
		t.Errorf("formatSignals() = %q, want %q", got, want)
	}
}

func TestFormatGrade(t *testing.T) {
	if got := formatGrade(nil); got != "(no grading result available)" {
		t.Errorf("formatGrade(nil) = %q", got)
	}

	got := formatGrade(&GradeResult{Score: 7.5, MaxScore: 10, Correct: true})
	if got != "score 7.5/10, correct=true" {
		t.Errorf("formatGrade() = %q", got)
	}
}

func TestAnalystAgentRun(t *testing.T) {
	llm := completions("The student is strong in algebra.", "Practice more geometry.")
	agent := NewAnalystAgent(llm)

	resp, err := agent.Run(context.Background(), Request{
		Query: Query{TenantID: "t1", Text: "How am I doing?"},
		Profile: StudentProfile{
			Grade:              8,
			Subject:            "math",
			PerformanceSignals: map[string]float64{"algebra": 0.9},
		},
		Grade: &GradeResult{Score: 8, MaxScore: 10, Correct: true},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.Specialist != "analyst" {
		t.Errorf("Specialist = %q, want analyst", resp.Specialist)
	}
	if resp.Text != "The student is strong in algebra." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Recommendations != "Practice more geometry." {
		t.Errorf("Recommendations = %q", resp.Recommendations)
	}
	if resp.Tokens != 20 {
		t.Errorf("Tokens = %d, want 20", resp.Tokens)
	}

	if len(llm.requests) != 2 {
		t.Fatalf("Expected 2 model calls, got %d", len(llm.requests))
	}
	// The grade and signals feed the analysis prompt.
	prompt := llm.requests[0].Messages[0].Content
	if !strings.Contains(prompt, "algebra=0.90") {
		t.Error("Expected performance signals in analysis prompt")
	}
	if !strings.Contains(prompt, "score 8.0/10") {
		t.Error("Expected grading result in analysis prompt")
	}
}

func TestAnalystAgentRecommendationFailureKeepsAnalysis(t *testing.T) {
	llm := &stubCompleter{results: []stubCompletion{
		{completion: &llms.Completion{Text: "Analysis.", Tokens: 10}},
		{err: errors.New("recommendation call failed")},
	}}
	agent := NewAnalystAgent(llm)

	resp, err := agent.Run(context.Background(), Request{
		Query: Query{TenantID: "t1", Text: "How am I doing?"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.Text != "Analysis." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Recommendations != "" {
		t.Error("Expected no recommendations on failure")
	}

	found := false
	for _, step := range resp.StepLog {
		if step == "recommendations_skipped" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected recommendations_skipped in step log, got %v", resp.StepLog)
	}
}
