package types

// Reserved metadata keys set by the ingestion pipeline. Caller-supplied
// document metadata never overrides these.
const (
	MetaContent     = "content"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"

	// MetaUnavailable flags the synthetic result returned when no vector
	// index exists, so callers can tell it apart from a real zero-score match.
	MetaUnavailable = "kb_unavailable"
)

// Filter is a conjunction of exact-match predicates over payload fields,
// e.g. {"doc_type": "employee"}.
type Filter map[string]string

// DocumentMeta describes a document at ingestion time. Access level is
// advisory only: it is stored and surfaced but never enforced.
type DocumentMeta struct {
	Filename    string `json:"filename"`
	DocType     string `json:"doc_type"`
	AccessLevel string `json:"access_level,omitempty"`
	UploadedBy  string `json:"uploaded_by,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Payload returns the metadata fields as a vector payload mapping.
// Empty fields are omitted so blanks don't end up in the index.
func (m DocumentMeta) Payload() map[string]any {
	p := map[string]any{"filename": m.Filename}
	if m.DocType != "" {
		p["doc_type"] = m.DocType
	}
	if m.AccessLevel != "" {
		p["access_level"] = m.AccessLevel
	}
	if m.UploadedBy != "" {
		p["uploaded_by"] = m.UploadedBy
	}
	if m.Source != "" {
		p["source"] = m.Source
	}
	return p
}

// VectorRecord is the wire shape stored in the vector index: an opaque id,
// a fixed-dimension embedding and a metadata payload that carries the
// chunk text itself.
type VectorRecord struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// SearchResult is a transient projection of a matched record.
// Score is cosine similarity clamped to [0,1].
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Unavailable reports whether the result is the "no index" sentinel.
func (r SearchResult) Unavailable() bool {
	v, ok := r.Metadata[MetaUnavailable].(bool)
	return ok && v
}

// IngestResult reports what one successful ingestion produced.
type IngestResult struct {
	Filename        string `json:"filename"`
	ChunksCreated   int    `json:"chunks_created"`
	VectorsUpserted int    `json:"vectors_upserted"`
}

// IndexStats is the observability snapshot of the vector index.
type IndexStats struct {
	TotalRecords int64 `json:"total_records"`
}
