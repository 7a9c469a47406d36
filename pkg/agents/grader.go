package agents

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kadirpekel/sensei/pkg/llms"
)

const graderSystemPrompt = "You are a teacher grading student answers. Be fair and detailed. " +
	"Start your reply with a line of the form \"Score: X/10\", then explain the grade."

const graderPromptTemplate = `Grade the student's answer.

Question: %s
Student's answer: %s
Subject: %s
Grade level: %d

Reference material:
%s

Reply with "Score: X/10" on the first line, then your feedback.`

const (
	graderMaxScore = 10.0

	// passingRatio is the fraction of graderMaxScore counted as correct.
	passingRatio = 0.7

	// fallbackScore is assigned when no score can be parsed from the
	// model's reply.
	fallbackScore = 5.0
)

var scorePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// GraderAgent scores a submitted answer against the question.
type GraderAgent struct {
	llm    llms.Completer
	logger *slog.Logger
}

// NewGraderAgent creates the Grader specialist.
func NewGraderAgent(llm llms.Completer) *GraderAgent {
	return &GraderAgent{
		llm:    llm,
		logger: slog.Default().With("specialist", "grader"),
	}
}

func (a *GraderAgent) Name() string {
	return "grader"
}

func (a *GraderAgent) Run(ctx context.Context, req Request) (*AgentResponse, error) {
	if req.Query.SubmittedAnswer == "" {
		return nil, fmt.Errorf("grading requires a submitted answer")
	}

	a.logger.Info("grading answer",
		"tenant", req.Query.TenantID,
		"subject", req.Profile.Subject)

	// Low temperature for consistent grading.
	completion, err := a.llm.Complete(ctx, llms.CompletionRequest{
		System: graderSystemPrompt,
		Messages: []llms.Message{{
			Role: llms.RoleUser,
			Content: fmt.Sprintf(graderPromptTemplate,
				req.Query.Text,
				req.Query.SubmittedAnswer,
				req.Profile.Subject,
				req.Profile.Grade,
				formatPassages(req.Context, 3, 200)),
		}},
		Temperature: 0.2,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("grading failed: %w", err)
	}

	result := parseGrade(completion.Text)
	a.logger.Info("answer graded",
		"score", result.Score,
		"correct", result.Correct)

	score := result.Score
	return &AgentResponse{
		Specialist: a.Name(),
		Text:       result.Feedback,
		Score:      &score,
		Tokens:     completion.Tokens,
		Provenance: provenanceFor(completion.Degraded),
		StepLog:    []string{"answer_graded"},
	}, nil
}

// GradeFromResponse reconstructs the structured grade carried by a grader
// response, for callers chaining the grade into the Analyst.
func GradeFromResponse(resp *AgentResponse) *GradeResult {
	if resp == nil || resp.Score == nil {
		return nil
	}
	return &GradeResult{
		Score:    *resp.Score,
		MaxScore: graderMaxScore,
		Correct:  *resp.Score >= graderMaxScore*passingRatio,
		Feedback: resp.Text,
	}
}

// parseGrade extracts a numeric score from the model's reply. The reply is
// expected to contain a "Score: X/10" line; a reply without one gets the
// fallback middle score.
func parseGrade(text string) GradeResult {
	result := GradeResult{
		Score:    fallbackScore,
		MaxScore: graderMaxScore,
		Feedback: text,
	}

	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(strings.ToLower(line), "score") {
			continue
		}
		if m := scorePattern.FindString(line); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				if v > graderMaxScore {
					v = graderMaxScore
				}
				result.Score = v
			}
		}
		break
	}

	result.Correct = result.Score >= graderMaxScore*passingRatio
	return result
}

// Ensure GraderAgent implements Specialist.
var _ Specialist = (*GraderAgent)(nil)
