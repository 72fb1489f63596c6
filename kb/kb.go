// Package kb is the retrieval-augmented-generation core: it chunks and
// embeds documents into the vector store and retrieves scored passages to
// ground an LLM answer.
package kb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"finstack/chunker"
	"finstack/model"
	"finstack/store"
	"finstack/types"
)

// maxParallelEmbeds bounds concurrent embedding calls within one ingestion.
const maxParallelEmbeds = 4

// maxParallelUpserts bounds concurrent upsert batches within one ingestion.
const maxParallelUpserts = 4

// Defaults are the per-call-overridable knobs of the engine.
type Defaults struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	ScoreThreshold float64
}

func (d Defaults) withFallbacks() Defaults {
	if d.ChunkSize == 0 {
		d.ChunkSize = chunker.DefaultChunkSize
	}
	if d.ChunkOverlap == 0 {
		d.ChunkOverlap = chunker.DefaultChunkOverlap
	}
	if d.TopK == 0 {
		d.TopK = 5
	}
	if d.ScoreThreshold == 0 {
		d.ScoreThreshold = DefaultScoreThreshold
	}
	return d
}

// Service is the knowledge-base engine. It is constructed once at process
// start and is safe for concurrent use: the embedder and store handle are
// the only shared state and both are read-only after construction.
type Service struct {
	embedder model.Embedder
	store    store.VectorStorer
	logger   *slog.Logger
	defaults Defaults
}

func New(embedder model.Embedder, storer store.VectorStorer, logger *slog.Logger, defaults Defaults) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder: embedder,
		store:    storer,
		logger:   logger,
		defaults: defaults.withFallbacks(),
	}
}

type ingestConfig struct {
	chunkSize    int
	chunkOverlap int
}

type IngestOption func(*ingestConfig)

func WithChunkSize(n int) IngestOption {
	return func(c *ingestConfig) { c.chunkSize = n }
}

func WithChunkOverlap(n int) IngestOption {
	return func(c *ingestConfig) { c.chunkOverlap = n }
}

type searchConfig struct {
	topK   int
	filter types.Filter
}

type SearchOption func(*searchConfig)

func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter adds one exact-match predicate; multiple calls AND together.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(types.Filter)
		}
		c.filter[key] = value
	}
}

// Ingest chunks text, embeds every chunk and upserts the resulting records.
// The record metadata is the caller's document metadata plus the reserved
// content/chunk_index/total_chunks keys, which always win on collision.
//
// Indexing in the store may be eventually consistent: a successful return
// means the records were accepted, not that they are already searchable.
// Any failure aborts the whole document; there is no partial success.
func (s *Service) Ingest(ctx context.Context, text string, meta types.DocumentMeta, opts ...IngestOption) (types.IngestResult, error) {
	filename := meta.Filename
	if filename == "" {
		filename = "doc"
	}

	cfg := ingestConfig{
		chunkSize:    s.defaults.ChunkSize,
		chunkOverlap: s.defaults.ChunkOverlap,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return types.IngestResult{}, types.IngestError{Filename: filename, Err: types.ErrEmptyDocument}
	}

	c, err := chunker.New(cfg.chunkSize, cfg.chunkOverlap)
	if err != nil {
		return types.IngestResult{}, types.IngestError{Filename: filename, Err: err}
	}
	chunks := c.Chunk(trimmed)
	if len(chunks) == 0 {
		return types.IngestResult{}, types.IngestError{Filename: filename, Err: types.ErrEmptyDocument}
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		s.logger.Error("chunk embedding failed", "filename", filename, "error", err)
		return types.IngestResult{}, types.IngestError{Filename: filename, Err: err}
	}

	records := make([]types.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		metadata := meta.Payload()
		metadata[types.MetaContent] = chunk
		metadata[types.MetaChunkIndex] = i
		metadata[types.MetaTotalChunks] = len(chunks)

		records[i] = types.VectorRecord{
			ID:       recordID(filename, i),
			Values:   vectors[i],
			Metadata: metadata,
		}
	}

	if err := s.upsertBatches(ctx, filename, records); err != nil {
		return types.IngestResult{}, types.IngestError{Filename: filename, Err: err}
	}

	s.logger.Info("ingested document",
		"filename", filename,
		"chunks", len(chunks),
		"vectors", len(records))

	return types.IngestResult{
		Filename:        filename,
		ChunksCreated:   len(chunks),
		VectorsUpserted: len(records),
	}, nil
}

// embedChunks embeds every chunk under a bounded worker pool. The first
// embedding failure wins and fails the whole document.
func (s *Service) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	sem := make(chan struct{}, maxParallelEmbeds)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed {
				return
			}

			vec, err := s.embedder.Embed(ctx, chunk)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = types.EmbeddingError{Source: "ingest", TextLen: len(chunk), Err: err}
				}
				mu.Unlock()
				return
			}
			vectors[i] = vec
		}(i, chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

// upsertBatches splits records into store-sized batches and issues them
// concurrently. Each batch's outcome stays individually attributable; any
// failed batch fails the ingestion with the failed indices.
func (s *Service) upsertBatches(ctx context.Context, filename string, records []types.VectorRecord) error {
	var batches [][]types.VectorRecord
	for start := 0; start < len(records); start += store.UpsertBatchSize {
		end := start + store.UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}

	sem := make(chan struct{}, maxParallelUpserts)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []int
	var firstErr error

	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []types.VectorRecord) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := s.store.Upsert(ctx, batch); err != nil {
				mu.Lock()
				failed = append(failed, i)
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i, batch)
	}
	wg.Wait()

	if len(failed) > 0 {
		return types.BatchUpsertError{
			Filename:      filename,
			FailedBatches: failed,
			TotalBatches:  len(batches),
			Err:           firstErr,
		}
	}
	return nil
}

// recordID builds a globally unique record id. The random middle part
// guards against collisions across repeated ingestions of same-named files.
func recordID(filename string, chunkIndex int) string {
	u := uuid.New()
	return fmt.Sprintf("%s_%x_%d", filename, u[:4], chunkIndex)
}

// Search embeds the query and returns the store's matches verbatim, in
// descending score order. When no index exists it degrades to a single
// sentinel result (score 0, kb_unavailable metadata flag) instead of
// failing the caller's whole chat turn.
func (s *Service) Search(ctx context.Context, query string, opts ...SearchOption) ([]types.SearchResult, error) {
	cfg := searchConfig{topK: s.defaults.TopK}
	for _, opt := range opts {
		opt(&cfg)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Error("query embedding failed", "query_len", len(query), "error", err)
		return nil, types.EmbeddingError{Source: "query", TextLen: len(query), Err: err}
	}

	results, err := s.store.Query(ctx, vec, cfg.topK, cfg.filter)
	if err != nil {
		if errors.Is(err, types.ErrIndexUnavailable) {
			s.logger.Warn("vector index unavailable, returning sentinel result")
			return []types.SearchResult{{
				Content:  "Knowledge base not available. Please run the ingestion first.",
				Score:    0.0,
				Metadata: map[string]any{types.MetaUnavailable: true},
			}}, nil
		}
		return nil, err
	}
	return results, nil
}

// Category is the closed set of doc_type filter presets. Category searches
// are parameterizations of Search, not separate algorithms.
type Category string

const (
	CategoryEmployee  Category = "employee"
	CategoryCustomer  Category = "customer"
	CategoryFinancial Category = "financial"
	CategoryProject   Category = "project"
	CategoryKnowledge Category = "knowledge"
)

// SearchCategory runs Search fixed to one doc_type with topK 5.
func (s *Service) SearchCategory(ctx context.Context, query string, cat Category) ([]types.SearchResult, error) {
	return s.Search(ctx, query, WithTopK(5), WithFilter("doc_type", string(cat)))
}

func (s *Service) SearchEmployees(ctx context.Context, query string) ([]types.SearchResult, error) {
	return s.SearchCategory(ctx, query, CategoryEmployee)
}

func (s *Service) SearchCustomers(ctx context.Context, query string) ([]types.SearchResult, error) {
	return s.SearchCategory(ctx, query, CategoryCustomer)
}

func (s *Service) SearchFinancials(ctx context.Context, query string) ([]types.SearchResult, error) {
	return s.SearchCategory(ctx, query, CategoryFinancial)
}

func (s *Service) SearchProjects(ctx context.Context, query string) ([]types.SearchResult, error) {
	return s.SearchCategory(ctx, query, CategoryProject)
}

// DeleteDocument removes every record ingested under the given filename.
func (s *Service) DeleteDocument(ctx context.Context, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("filename must not be empty")
	}
	return s.store.Delete(ctx, types.Filter{"filename": filename})
}

// Stats reports the index record count.
func (s *Service) Stats(ctx context.Context) (types.IndexStats, error) {
	return s.store.Describe(ctx)
}

// ScoreThreshold exposes the configured relevance cutoff.
func (s *Service) ScoreThreshold() float64 {
	return s.defaults.ScoreThreshold
}
