package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/kadirpekel/sensei/pkg/llms"
)

func TestParseQuiz(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantQuestions int
		wantFirst     string
	}{
		{
			name:          "json_array",
			text:          `[{"question":"What is 2+2?","options":["3","4"],"correct_answer":"4","type":"multiple_choice"}]`,
			wantQuestions: 1,
			wantFirst:     "What is 2+2?",
		},
		{
			name:          "fenced_code_block",
			text:          "```json\n[{\"question\":\"Q1\"},{\"question\":\"Q2\"}]\n```",
			wantQuestions: 2,
			wantFirst:     "Q1",
		},
		{
			name:          "single_object",
			text:          `{"question":"Only one","type":"open"}`,
			wantQuestions: 1,
			wantFirst:     "Only one",
		},
		{
			name:          "plain_text_fallback",
			text:          "Here is a question: what is gravity?",
			wantQuestions: 1,
			wantFirst:     "Here is a question: what is gravity?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := parseQuiz(tt.text)
			if len(items) != tt.wantQuestions {
				t.Fatalf("parseQuiz() returned %d items, want %d", len(items), tt.wantQuestions)
			}
			if items[0].Question != tt.wantFirst {
				t.Errorf("First question = %q, want %q", items[0].Question, tt.wantFirst)
			}
		})
	}
}

func TestParseQuizFallbackType(t *testing.T) {
	items := parseQuiz("not json at all")
	if items[0].Type != "text" {
		t.Errorf("Fallback item type = %q, want text", items[0].Type)
	}
}

func TestContentAgentRun(t *testing.T) {
	llm := completions(
		"A lesson about gravity.",
		`[{"question":"What pulls objects down?","correct_answer":"gravity"}]`,
	)
	agent := NewContentAgent(llm)

	resp, err := agent.Run(context.Background(), Request{
		Query:   Query{TenantID: "t1", Text: "Explain gravity"},
		Profile: StudentProfile{Grade: 6, Subject: "physics"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.Specialist != "content" {
		t.Errorf("Specialist = %q, want content", resp.Specialist)
	}
	if resp.Text != "A lesson about gravity." {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.Quiz) != 1 || resp.Quiz[0].Question != "What pulls objects down?" {
		t.Errorf("Quiz = %+v", resp.Quiz)
	}
	if resp.Tokens != 20 {
		t.Errorf("Tokens = %d, want 20", resp.Tokens)
	}
	if resp.Provenance != ProvenanceGenerated {
		t.Errorf("Provenance = %q", resp.Provenance)
	}

	if len(llm.requests) != 2 {
		t.Fatalf("Expected 2 model calls, got %d", len(llm.requests))
	}
	if llm.requests[0].Temperature != 0.7 || llm.requests[0].MaxTokens != 2048 {
		t.Errorf("Lesson call params = %v/%d", llm.requests[0].Temperature, llm.requests[0].MaxTokens)
	}
	if llm.requests[1].Temperature != 0.6 || llm.requests[1].MaxTokens != 1024 {
		t.Errorf("Quiz call params = %v/%d", llm.requests[1].Temperature, llm.requests[1].MaxTokens)
	}
}

func TestContentAgentQuizFailureKeepsLesson(t *testing.T) {
	llm := &stubCompleter{results: []stubCompletion{
		{completion: &llms.Completion{Text: "The lesson.", Tokens: 10}},
		{err: errors.New("quiz call failed")},
	}}
	agent := NewContentAgent(llm)

	resp, err := agent.Run(context.Background(), Request{
		Query:   Query{TenantID: "t1", Text: "Explain gravity"},
		Profile: StudentProfile{Grade: 6, Subject: "physics"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if resp.Text != "The lesson." {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.Quiz) != 0 {
		t.Errorf("Expected no quiz, got %+v", resp.Quiz)
	}

	found := false
	for _, step := range resp.StepLog {
		if step == "quiz_skipped" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected quiz_skipped in step log, got %v", resp.StepLog)
	}
}

func TestContentAgentLessonFailureFails(t *testing.T) {
	llm := &stubCompleter{results: []stubCompletion{
		{err: errors.New("all providers down")},
	}}
	agent := NewContentAgent(llm)

	if _, err := agent.Run(context.Background(), Request{
		Query: Query{TenantID: "t1", Text: "Explain gravity"},
	}); err == nil {
		t.Error("Expected error when lesson generation fails")
	}
}

func TestContentAgentDegradedQuizDegradesProvenance(t *testing.T) {
	llm := &stubCompleter{results: []stubCompletion{
		{completion: &llms.Completion{Text: "Lesson.", Tokens: 10}},
		{completion: &llms.Completion{Text: `[{"question":"Q"}]`, Tokens: 5, Degraded: true}},
	}}
	agent := NewContentAgent(llm)

	resp, err := agent.Run(context.Background(), Request{
		Query: Query{TenantID: "t1", Text: "Explain gravity"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Provenance != ProvenanceFallbackDegraded {
		t.Errorf("Provenance = %q, want %q", resp.Provenance, ProvenanceFallbackDegraded)
	}
}
