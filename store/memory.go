package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"finstack/types"
)

// MemoryStore is a brute-force in-memory VectorStorer used for tests and
// local development without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	records map[string]types.VectorRecord
	order   []string
}

func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{
		dim:     dim,
		records: make(map[string]types.VectorRecord),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, records []types.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if len(r.Values) != s.dim {
			return types.DimensionError{Want: s.dim, Got: len(r.Values)}
		}
	}
	for _, r := range records {
		if _, exists := s.records[r.ID]; !exists {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int, filter types.Filter) ([]types.SearchResult, error) {
	if len(vector) != s.dim {
		return nil, types.DimensionError{Want: s.dim, Got: len(vector)}
	}
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]types.SearchResult, 0, len(s.records))
	for _, id := range s.order {
		r := s.records[id]
		if !matches(r.Metadata, filter) {
			continue
		}
		content, ok := r.Metadata[types.MetaContent].(string)
		if !ok {
			continue
		}
		results = append(results, types.SearchResult{
			ID:       r.ID,
			Content:  content,
			Score:    ClampScore(cosine(r.Values, vector)),
			Metadata: r.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) Delete(_ context.Context, filter types.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing to delete with an empty filter")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		if matches(s.records[id].Metadata, filter) {
			delete(s.records, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

func (s *MemoryStore) Describe(_ context.Context) (types.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.IndexStats{TotalRecords: int64(len(s.records))}, nil
}

// matches applies the exact-match conjunction: every filter key must be
// present in the payload with the same stringified value.
func matches(metadata map[string]any, filter types.Filter) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func cosine(a []float32, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
