package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kadirpekel/sensei/pkg/llms"
)

const solverSystemPrompt = "You are an expert at solving school math and logic problems. " +
	"Show every step of your reasoning and number the steps."

const solverPromptTemplate = `Solve the following problem.

Problem: %s
Subject: %s
Grade level: %d

Reference material:
%s

Number each step of the solution and state the final answer on the last line.`

// SolverAgent produces step-by-step worked solutions.
type SolverAgent struct {
	llm    llms.Completer
	logger *slog.Logger
}

// NewSolverAgent creates the Solver specialist.
func NewSolverAgent(llm llms.Completer) *SolverAgent {
	return &SolverAgent{
		llm:    llm,
		logger: slog.Default().With("specialist", "solver"),
	}
}

func (a *SolverAgent) Name() string {
	return "solver"
}

func (a *SolverAgent) Run(ctx context.Context, req Request) (*AgentResponse, error) {
	a.logger.Info("solving problem",
		"tenant", req.Query.TenantID,
		"subject", req.Profile.Subject)

	// Low temperature for accurate solving.
	completion, err := a.llm.Complete(ctx, llms.CompletionRequest{
		System: solverSystemPrompt,
		Messages: withHistory(req.Query.History, fmt.Sprintf(solverPromptTemplate,
			req.Query.Text,
			req.Profile.Subject,
			req.Profile.Grade,
			formatPassages(req.Context, 3, 200))),
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("problem solving failed: %w", err)
	}

	steps := extractSteps(completion.Text)
	a.logger.Info("problem solved", "steps", len(steps))

	return &AgentResponse{
		Specialist: a.Name(),
		Text:       completion.Text,
		Steps:      steps,
		Tokens:     completion.Tokens,
		Provenance: provenanceFor(completion.Degraded),
		StepLog:    []string{"problem_solved"},
	}, nil
}

// extractSteps pulls numbered lines out of a worked solution. A solution
// without numbered lines yields no steps; the full text still carries it.
func extractSteps(solution string) []string {
	var steps []string
	for _, line := range strings.Split(solution, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if unicode.IsDigit(rune(trimmed[0])) {
			steps = append(steps, trimmed)
		}
	}
	return steps
}

// Ensure SolverAgent implements Specialist.
var _ Specialist = (*SolverAgent)(nil)
