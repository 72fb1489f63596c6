package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finstack/types"
)

func record(id string, values []float32, meta map[string]any) types.VectorRecord {
	return types.VectorRecord{ID: id, Values: values, Metadata: meta}
}

func TestMemoryStoreUpsertIsIdempotentByID(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.VectorRecord{
		record("a", []float32{1, 0}, map[string]any{types.MetaContent: "one"}),
	}))
	require.NoError(t, s.Upsert(ctx, []types.VectorRecord{
		record("a", []float32{0, 1}, map[string]any{types.MetaContent: "one updated"}),
	}))

	stats, err := s.Describe(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalRecords)

	results, err := s.Query(ctx, []float32{0, 1}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "one updated", results[0].Content)
}

func TestMemoryStoreQueryOrdersByScore(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.VectorRecord{
		record("far", []float32{0, 1}, map[string]any{types.MetaContent: "far"}),
		record("near", []float32{1, 0}, map[string]any{types.MetaContent: "near"}),
		record("mid", []float32{0.7, 0.7}, map[string]any{types.MetaContent: "mid"}),
	}))

	results, err := s.Query(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Content)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestMemoryStoreFilterIsExactMatchConjunction(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.VectorRecord{
		record("e1", []float32{1, 0}, map[string]any{
			types.MetaContent: "alice", "doc_type": "employee", "filename": "emp.txt",
		}),
		record("c1", []float32{1, 0}, map[string]any{
			types.MetaContent: "acme", "doc_type": "customer", "filename": "cust.txt",
		}),
	}))

	results, err := s.Query(ctx, []float32{1, 0}, 5, types.Filter{"doc_type": "employee"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice", results[0].Content)

	// Conjunction: both predicates must hold.
	results, err = s.Query(ctx, []float32{1, 0}, 5, types.Filter{
		"doc_type": "employee", "filename": "cust.txt",
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreEmptyIndexReturnsEmptyNotError(t *testing.T) {
	s := NewMemoryStore(2)
	results, err := s.Query(context.Background(), []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	s := NewMemoryStore(3)
	_, err := s.Query(context.Background(), []float32{1, 0}, 5, nil)
	require.Error(t, err)

	var dimErr types.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestMemoryStoreDeleteByFilter(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.VectorRecord{
		record("a0", []float32{1, 0}, map[string]any{types.MetaContent: "x", "filename": "a.pdf"}),
		record("a1", []float32{0, 1}, map[string]any{types.MetaContent: "y", "filename": "a.pdf"}),
		record("b0", []float32{1, 0}, map[string]any{types.MetaContent: "z", "filename": "b.pdf"}),
	}))

	require.NoError(t, s.Delete(ctx, types.Filter{"filename": "a.pdf"}))

	stats, err := s.Describe(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalRecords)

	// Empty filter would match everything; it must be refused.
	assert.Error(t, s.Delete(ctx, nil))
}

func TestMemoryStoreSkipsRecordsWithoutContent(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []types.VectorRecord{
		record("good", []float32{1, 0}, map[string]any{types.MetaContent: "ok"}),
		record("bad", []float32{1, 0}, map[string]any{"filename": "orphan.txt"}),
	}))

	results, err := s.Query(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].ID)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.01))
	assert.Equal(t, 1.0, ClampScore(1.2))
	assert.Equal(t, 0.5, ClampScore(0.5))
}
