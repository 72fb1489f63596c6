package kb

import (
	"context"
	"fmt"
	"strings"

	"finstack/types"
)

// DefaultScoreThreshold is the relevance cutoff below which results are
// excluded from the assembled context.
const DefaultScoreThreshold = 0.3

// NoRelevantInfo is the fixed sentinel returned when nothing relevant was
// found. Callers must get this exact string rather than fabricated context.
const NoRelevantInfo = "No relevant information found in knowledge base."

const contextHeader = "Here is relevant information from the knowledge base:\n"

// BuildContext assembles a bounded context block from results that are
// already sorted by descending score. It truncates at the first result
// below threshold, so it never includes a result ranked under one it
// excluded. Pure and deterministic: same input, same output.
func BuildContext(results []types.SearchResult, threshold float64) string {
	if len(results) == 0 || results[0].Score < threshold {
		return NoRelevantInfo
	}

	parts := []string{contextHeader}
	for i, r := range results {
		if r.Score < threshold {
			break
		}
		parts = append(parts, fmt.Sprintf("\n[Source %d] (Relevance: %.2f)", i+1, r.Score))
		parts = append(parts, r.Content)

		if level, ok := r.Metadata["access_level"].(string); ok && level != "" {
			parts = append(parts, fmt.Sprintf("[Access Level: %s]", level))
		}
	}
	return strings.Join(parts, "\n")
}

// ContextForLLM retrieves passages for query and assembles them into the
// single text block handed to prompt construction.
func (s *Service) ContextForLLM(ctx context.Context, query string, maxResults int) (string, error) {
	if maxResults <= 0 {
		maxResults = 3
	}
	results, err := s.Search(ctx, query, WithTopK(maxResults))
	if err != nil {
		return "", err
	}
	return BuildContext(results, s.defaults.ScoreThreshold), nil
}
