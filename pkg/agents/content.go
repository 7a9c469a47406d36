package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/sensei/pkg/llms"
)

const lessonSystemPrompt = "You are an expert at producing school lesson material. " +
	"Write clear, age-appropriate explanations grounded in the provided reference material."

const lessonPromptTemplate = `Write a lesson on the following topic.

Topic: %s
Subject: %s
Grade level: %d

Reference material:
%s

Structure the lesson with a short introduction, the core explanation, and one worked example.`

const quizSystemPrompt = "You are an expert at writing school quizzes. " +
	"Respond with a JSON array only, no surrounding prose."

const quizPromptTemplate = `Write 3 quiz questions testing understanding of this lesson.

Subject: %s
Grade level: %d

Lesson:
%s

Return a JSON array of objects with fields "question", "options" (array of strings, empty for open questions), "correct_answer" and "type" ("multiple_choice" or "open").`

// maxLessonForQuiz bounds how much lesson text feeds the quiz prompt.
const maxLessonForQuiz = 1000

// ContentAgent generates lesson material plus a short quiz.
type ContentAgent struct {
	llm    llms.Completer
	logger *slog.Logger
}

// NewContentAgent creates the Content specialist.
func NewContentAgent(llm llms.Completer) *ContentAgent {
	return &ContentAgent{
		llm:    llm,
		logger: slog.Default().With("specialist", "content"),
	}
}

func (a *ContentAgent) Name() string {
	return "content"
}

// Run generates a lesson, then a quiz over the lesson. The quiz is best
// effort: a malformed quiz payload degrades to a single free-text item
// rather than failing the lesson.
func (a *ContentAgent) Run(ctx context.Context, req Request) (*AgentResponse, error) {
	a.logger.Info("generating lesson",
		"tenant", req.Query.TenantID,
		"subject", req.Profile.Subject,
		"grade", req.Profile.Grade)

	lesson, err := a.llm.Complete(ctx, llms.CompletionRequest{
		System: lessonSystemPrompt,
		Messages: withHistory(req.Query.History, fmt.Sprintf(lessonPromptTemplate,
			req.Query.Text,
			req.Profile.Subject,
			req.Profile.Grade,
			formatPassages(req.Context, 3, 200))),
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, fmt.Errorf("lesson generation failed: %w", err)
	}

	resp := &AgentResponse{
		Specialist: a.Name(),
		Text:       lesson.Text,
		Tokens:     lesson.Tokens,
		Provenance: provenanceFor(lesson.Degraded),
		StepLog:    []string{"lesson_generated"},
	}

	lessonExcerpt := lesson.Text
	if len(lessonExcerpt) > maxLessonForQuiz {
		lessonExcerpt = lessonExcerpt[:maxLessonForQuiz]
	}

	quiz, err := a.llm.Complete(ctx, llms.CompletionRequest{
		System: quizSystemPrompt,
		Messages: []llms.Message{{
			Role: llms.RoleUser,
			Content: fmt.Sprintf(quizPromptTemplate,
				req.Profile.Subject,
				req.Profile.Grade,
				lessonExcerpt),
		}},
		Temperature: 0.6,
		MaxTokens:   1024,
	})
	if err != nil {
		// The lesson alone is still a valid response.
		a.logger.Warn("quiz generation failed, returning lesson only", "error", err)
		resp.StepLog = append(resp.StepLog, "quiz_skipped")
		return resp, nil
	}

	resp.Quiz = parseQuiz(quiz.Text)
	resp.Tokens += quiz.Tokens
	if quiz.Degraded {
		resp.Provenance = ProvenanceFallbackDegraded
	}
	resp.StepLog = append(resp.StepLog, "quiz_generated")

	a.logger.Info("content generated",
		"lesson_length", len(resp.Text),
		"quiz_questions", len(resp.Quiz))
	return resp, nil
}

// parseQuiz decodes the model's quiz JSON. A payload that is not valid
// JSON becomes a single free-text item.
func parseQuiz(text string) []QuizItem {
	trimmed := strings.TrimSpace(text)

	// Models sometimes wrap JSON in a fenced code block.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var items []QuizItem
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return items
	}

	var single QuizItem
	if err := json.Unmarshal([]byte(trimmed), &single); err == nil {
		return []QuizItem{single}
	}

	return []QuizItem{{Question: text, Type: "text"}}
}

// Ensure ContentAgent implements Specialist.
var _ Specialist = (*ContentAgent)(nil)
