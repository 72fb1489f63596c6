package types

import (
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned when a document's text is empty after trimming.
var ErrEmptyDocument = errors.New("document text is empty")

// ErrIndexUnavailable is returned by a vector store when the index does not
// exist or is unreachable. Ingestion treats it as fatal, retrieval degrades
// to a sentinel result.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// DimensionError reports an embedding whose dimensionality does not match
// the configured index dimension. A query embedded with the wrong dimension
// must fail fast instead of silently matching nothing.
type DimensionError struct {
	Want int
	Got  int
}

func (e DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// EmbeddingError wraps a failed embedding call with enough context to
// diagnose it. It is always a hard failure for the enclosing operation.
type EmbeddingError struct {
	Source  string // "ingest" or "query"
	TextLen int
	Err     error
}

func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed (%s, %d chars): %v", e.Source, e.TextLen, e.Err)
}

func (e EmbeddingError) Unwrap() error { return e.Err }

// IngestError ties any ingestion failure to the document it belongs to.
type IngestError struct {
	Filename string
	Err      error
}

func (e IngestError) Error() string {
	return fmt.Sprintf("ingest %q: %v", e.Filename, e.Err)
}

func (e IngestError) Unwrap() error { return e.Err }

// BatchUpsertError reports which upsert batches failed. The pipeline treats
// any batch failure as a whole-ingestion failure, but keeps the per-batch
// detail for diagnosis.
type BatchUpsertError struct {
	Filename      string
	FailedBatches []int
	TotalBatches  int
	Err           error
}

func (e BatchUpsertError) Error() string {
	return fmt.Sprintf("upsert for %q failed on batches %v of %d: %v",
		e.Filename, e.FailedBatches, e.TotalBatches, e.Err)
}

func (e BatchUpsertError) Unwrap() error { return e.Err }

// ExtractionError reports a failed text extraction, carrying the filename
// so the caller can tell which document never made it into the index.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("extract %q: %v", e.Filename, e.Err)
}

func (e ExtractionError) Unwrap() error { return e.Err }
