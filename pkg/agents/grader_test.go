package agents

import (
	"context"
	"testing"
)

func TestParseGrade(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantScore   float64
		wantCorrect bool
	}{
		{
			name:        "standard_format",
			text:        "Score: 8/10\nGood work overall.",
			wantScore:   8,
			wantCorrect: true,
		},
		{
			name:        "failing_score",
			text:        "Score: 4/10\nSeveral mistakes.",
			wantScore:   4,
			wantCorrect: false,
		},
		{
			name:        "decimal_score",
			text:        "Score: 7.5/10\nAlmost there.",
			wantScore:   7.5,
			wantCorrect: true,
		},
		{
			name:        "score_on_later_line",
			text:        "Let me review.\nScore: 9/10\nExcellent.",
			wantScore:   9,
			wantCorrect: true,
		},
		{
			name:        "clamped_to_max",
			text:        "Score: 15/10",
			wantScore:   10,
			wantCorrect: true,
		},
		{
			name:        "no_score_gets_fallback",
			text:        "This answer shows understanding.",
			wantScore:   5,
			wantCorrect: false,
		},
		{
			name:        "exactly_passing",
			text:        "Score: 7/10",
			wantScore:   7,
			wantCorrect: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseGrade(tt.text)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", got.Score, tt.wantScore)
			}
			if got.Correct != tt.wantCorrect {
				t.Errorf("Correct = %v, want %v", got.Correct, tt.wantCorrect)
			}
			if got.MaxScore != 10 {
				t.Errorf("MaxScore = %v, want 10", got.MaxScore)
			}
			if got.Feedback != tt.text {
				t.Errorf("Feedback should carry the full reply")
			}
		})
	}
}

func TestGraderAgentRequiresAnswer(t *testing.T) {
	agent := NewGraderAgent(completions("unused"))

	if _, err := agent.Run(context.Background(), Request{
		Query: Query{TenantID: "t1", Text: "What is 2+2?"},
	}); err == nil {
		t.Error("Expected error without a submitted answer")
	}
}

func TestGraderAgentRun(t *testing.T) {
	llm := completions("Score: 8/10\nWell reasoned.")
	agent := NewGraderAgent(llm)

	resp, err := agent.Run(context.Background(), Request{
		Query:   Query{TenantID: "t1", Text: "What is 2+2?", SubmittedAnswer: "4"},
		Profile: StudentProfile{Grade: 3, Subject: "math"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.Specialist != "grader" {
		t.Errorf("Specialist = %q, want grader", resp.Specialist)
	}
	if resp.Score == nil || *resp.Score != 8 {
		t.Errorf("Score = %v, want 8", resp.Score)
	}
	if llm.requests[0].Temperature != 0.2 || llm.requests[0].MaxTokens != 512 {
		t.Errorf("Grader call params = %v/%d", llm.requests[0].Temperature, llm.requests[0].MaxTokens)
	}
}

func TestGradeFromResponse(t *testing.T) {
	if got := GradeFromResponse(nil); got != nil {
		t.Error("Expected nil for nil response")
	}
	if got := GradeFromResponse(&AgentResponse{}); got != nil {
		t.Error("Expected nil when no score is set")
	}

	score := 8.0
	got := GradeFromResponse(&AgentResponse{Score: &score, Text: "feedback"})
	if got == nil {
		t.Fatal("Expected grade result")
	}
	if got.Score != 8 || got.MaxScore != 10 || !got.Correct || got.Feedback != "feedback" {
		t.Errorf("GradeFromResponse() = %+v", got)
	}
}
