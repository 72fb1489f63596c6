package kb

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finstack/store"
	"finstack/types"
)

func result(content string, score float64, meta map[string]any) types.SearchResult {
	if meta == nil {
		meta = map[string]any{}
	}
	return types.SearchResult{ID: content, Content: content, Score: score, Metadata: meta}
}

func TestBuildContextEmptyResults(t *testing.T) {
	assert.Equal(t, NoRelevantInfo, BuildContext(nil, DefaultScoreThreshold))
	assert.Equal(t, NoRelevantInfo, BuildContext([]types.SearchResult{}, DefaultScoreThreshold))
}

func TestBuildContextTopResultBelowThreshold(t *testing.T) {
	results := []types.SearchResult{result("weak match", 0.29, nil)}

	first := BuildContext(results, 0.3)
	second := BuildContext(results, 0.3)

	assert.Equal(t, NoRelevantInfo, first)
	// Byte-for-byte stable across calls.
	assert.Equal(t, first, second)
}

func TestBuildContextTruncatesAtFirstSubThresholdResult(t *testing.T) {
	results := []types.SearchResult{
		result("strong", 0.9, nil),
		result("decent", 0.31, nil),
		result("weak", 0.29, nil),
	}

	out := BuildContext(results, 0.3)
	assert.Contains(t, out, "[Source 1] (Relevance: 0.90)")
	assert.Contains(t, out, "strong")
	assert.Contains(t, out, "[Source 2] (Relevance: 0.31)")
	assert.Contains(t, out, "decent")
	assert.NotContains(t, out, "weak")
	assert.NotContains(t, out, "[Source 3]")
}

func TestBuildContextIncludesAccessLevelTag(t *testing.T) {
	results := []types.SearchResult{
		result("salary data", 0.8, map[string]any{"access_level": "confidential"}),
	}

	out := BuildContext(results, 0.3)
	assert.Contains(t, out, "[Access Level: confidential]")
	assert.True(t, strings.HasPrefix(out, contextHeader))
}

func TestBuildContextIsPure(t *testing.T) {
	results := []types.SearchResult{
		result("a", 0.8, nil),
		result("b", 0.5, nil),
	}

	first := BuildContext(results, 0.3)
	second := BuildContext(results, 0.3)
	assert.Equal(t, first, second)

	// Input order untouched.
	assert.Equal(t, "a", results[0].Content)
	assert.Equal(t, "b", results[1].Content)
}

func TestContextForLLMEndToEnd(t *testing.T) {
	const dim = 64
	mem := store.NewMemoryStore(dim)
	svc := New(hashEmbedder{dim: dim}, mem, nil, Defaults{})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "The platform migration project ships in the fourth quarter.",
		types.DocumentMeta{Filename: "proj.txt", DocType: "project", AccessLevel: "internal"})
	require.NoError(t, err)

	out, err := svc.ContextForLLM(ctx, "platform migration project quarter", 3)
	require.NoError(t, err)
	assert.Contains(t, out, "[Source 1]")
	assert.Contains(t, out, "platform migration")
	assert.Contains(t, out, "[Access Level: internal]")
}

func TestContextForLLMNoIndex(t *testing.T) {
	svc := New(hashEmbedder{dim: 64}, unavailableStore{}, nil, Defaults{})

	out, err := svc.ContextForLLM(context.Background(), "anything", 3)
	require.NoError(t, err)
	// Sentinel result scores 0.0, below threshold.
	assert.Equal(t, NoRelevantInfo, out)
}
