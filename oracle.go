package afflow

import (
	"context"
	"strings"
)

// Oracle is the text-generation backend consumed by the stages that score
// prospects, personalize outreach copy, and draft optimization suggestions.
// Implementations receive a prompt and return raw text; callers are
// responsible for extracting any structure from the response.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Oracle.
func (f OracleFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// cannedOracle is the default offline oracle. It returns neutral scores for
// scoring prompts and echoes the base template otherwise, so a pipeline runs
// end to end with no model behind it.
type cannedOracle struct{}

// NewCannedOracle returns an oracle that needs no external model.
func NewCannedOracle() Oracle { return cannedOracle{} }

// cannedScores gives distinct demo ratings to the stock mock prospects so
// ranking behavior is observable offline.
var cannedScores = map[string]string{
	"AI Insights Hub": `{"content_quality_score": 8.0, "relevance_score": 9.0}`,
	"ML For Everyone": `{"content_quality_score": 7.0, "relevance_score": 7.5}`,
	"SaaS Guru":       `{"content_quality_score": 8.5, "relevance_score": 8.0}`,
	"CloudReviewer":   `{"content_quality_score": 6.0, "relevance_score": 6.5}`,
}

func (cannedOracle) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "content_quality_score") {
		for name, scores := range cannedScores {
			if strings.Contains(prompt, name) {
				return scores, nil
			}
		}
		return `{"content_quality_score": 5.0, "relevance_score": 5.0}`, nil
	}
	return "", nil
}

// extractJSON returns the first {...} or [...] block embedded in an oracle
// response, or "" when none is present. Model responses often wrap JSON in
// prose or fences, so callers cut the block out before unmarshaling.
func extractJSON(text string) string {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	best := ""
	bestStart := len(text)
	for _, pair := range [2][2]string{{"{", "}"}, {"[", "]"}} {
		open := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if open >= 0 && end > open && open < bestStart {
			best = text[open : end+1]
			bestStart = open
		}
	}
	return best
}
