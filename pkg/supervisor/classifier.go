package supervisor

import (
	"log/slog"
	"strings"

	"github.com/kadirpekel/sensei/pkg/agents"
)

// Intent is the classified purpose of a query, driving specialist routing.
type Intent string

const (
	IntentExplain Intent = "explain"
	IntentSolve   Intent = "solve"
	IntentGrade   Intent = "grade"
	IntentAnalyze Intent = "analyze"
)

// intentPriority is the fixed tie-break order. When a query matches two
// intents equally, the earlier one wins and the ambiguity is logged.
var intentPriority = []Intent{IntentExplain, IntentSolve, IntentGrade, IntentAnalyze}

// intentKeywords drives rule-based classification. Matching is on the
// lowercased query text; each matched keyword counts one point.
var intentKeywords = map[Intent][]string{
	IntentExplain: {"explain", "what is", "what are", "why", "describe", "teach", "help me understand"},
	IntentSolve:   {"solve", "calculate", "compute", "equation", "how much", "how many", "find the"},
	IntentGrade:   {"grade", "check my answer", "is this correct", "mark my", "did i get"},
	IntentAnalyze: {"analyze", "progress", "performance", "how am i doing", "recommend", "weak"},
}

// ClassificationResult is produced once per query and consumed immediately.
type ClassificationResult struct {
	// Intent label.
	Intent Intent

	// Confidence in [0, 1]. Zero means the default intent was applied.
	Confidence float64

	// RequiresGrounding is true when the intent needs retrieval before
	// dispatch.
	RequiresGrounding bool
}

// Classifier assigns an intent to a query using deterministic keyword
// rules. It never fails: an unclassifiable query gets the default intent.
type Classifier struct {
	defaultIntent Intent
	grounded      map[Intent]bool
	logger        *slog.Logger
}

// NewClassifier creates a classifier with the given default intent and the
// set of intents that require grounding.
func NewClassifier(defaultIntent string, groundedIntents []string) *Classifier {
	grounded := make(map[Intent]bool, len(groundedIntents))
	for _, intent := range groundedIntents {
		grounded[Intent(intent)] = true
	}

	return &Classifier{
		defaultIntent: Intent(defaultIntent),
		grounded:      grounded,
		logger:        slog.Default().With("component", "classifier"),
	}
}

// Classify determines the intent for a query. A submitted answer forces
// the grade intent unless the query itself asks for analysis, in which
// case the answer flows into the chained grade-then-analyze path.
func (c *Classifier) Classify(query agents.Query) ClassificationResult {
	text := strings.ToLower(query.Text)

	scores := make(map[Intent]int, len(intentKeywords))
	for intent, keywords := range intentKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				scores[intent]++
			}
		}
	}

	if query.SubmittedAnswer != "" {
		if scores[IntentAnalyze] > 0 {
			return c.result(IntentAnalyze, 1.0)
		}
		return c.result(IntentGrade, 1.0)
	}

	best := Intent("")
	bestScore := 0
	tied := false
	for _, intent := range intentPriority {
		score := scores[intent]
		if score > bestScore {
			best = intent
			bestScore = score
			tied = false
		} else if score == bestScore && score > 0 {
			tied = true
		}
	}

	if bestScore == 0 {
		c.logger.Debug("query unclassifiable, applying default intent",
			"default", c.defaultIntent)
		return c.result(c.defaultIntent, 0)
	}

	if tied {
		c.logger.Warn("ambiguous intent classification, picking by priority order",
			"intent", best)
	}

	// Confidence saturates at three keyword matches.
	confidence := float64(bestScore) / 3
	if confidence > 1 {
		confidence = 1
	}
	return c.result(best, confidence)
}

func (c *Classifier) result(intent Intent, confidence float64) ClassificationResult {
	return ClassificationResult{
		Intent:            intent,
		Confidence:        confidence,
		RequiresGrounding: c.grounded[intent],
	}
}
