package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"finstack/types"
)

// UpsertBatchSize bounds the number of records per upsert request.
const UpsertBatchSize = 100

const queryTimeout = 30 * time.Second

// VectorStorer is the vector-index contract the core consumes. Records are
// idempotent by id; queries return results in descending score order and an
// empty slice (not an error) for an empty index. A missing or unreachable
// index surfaces as types.ErrIndexUnavailable.
type VectorStorer interface {
	Upsert(ctx context.Context, records []types.VectorRecord) error
	Query(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.SearchResult, error)
	Delete(ctx context.Context, filter types.Filter) error
	Describe(ctx context.Context) (types.IndexStats, error)
}

// PostgresStore implements VectorStorer on PostgreSQL + pgvector: one table
// of (id, embedding, metadata jsonb) rows, cosine-ordered queries, JSONB
// containment for exact-match metadata filters.
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	dim    int
	logger *slog.Logger
}

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func NewPostgresStore(ctx context.Context, connStr, table string, dim int) (*PostgresStore, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid index table name %q", table)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		table:  table,
		dim:    dim,
		logger: slog.Default(),
	}, nil
}

// Init creates the vector table and its indexes. Table name is validated in
// the constructor, so interpolating it here is safe.
func (p *PostgresStore) Init(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		embedding vector(%[2]d) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding ON %[1]s USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_metadata ON %[1]s USING gin (metadata jsonb_path_ops);
	`, p.table, p.dim)

	_, err := p.pool.Exec(ctx, query)
	return err
}

// Upsert writes one batch of records, idempotent by id. Callers are expected
// to keep batches at or below UpsertBatchSize.
func (p *PostgresStore) Upsert(ctx context.Context, records []types.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, embedding, metadata)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata
	`, p.table)

	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Values) != p.dim {
			return types.DimensionError{Want: p.dim, Got: len(r.Values)}
		}
		metadataJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %q: %w", r.ID, err)
		}
		batch.Queue(query, r.ID, pgvector.NewVector(r.Values), metadataJSON)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range records {
		if _, err := br.Exec(); err != nil {
			return mapStoreErr(fmt.Errorf("upsert record %q (%d of %d): %w",
				records[i].ID, i+1, len(records), err))
		}
	}
	return nil
}

// Query returns at most topK matches ordered by descending clamped-cosine
// score. A nil or empty filter matches everything. Matches without a content
// payload are skipped with a warning rather than failing the search.
func (p *PostgresStore) Query(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.SearchResult, error) {
	if len(vector) != p.dim {
		return nil, types.DimensionError{Want: p.dim, Got: len(vector)}
	}
	if topK <= 0 {
		topK = 5
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	embedding := pgvector.NewVector(vector)

	var rows pgx.Rows
	var err error
	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to marshal filter: %w", marshalErr)
		}
		query := fmt.Sprintf(`
		SELECT id, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE metadata @> $2
		ORDER BY embedding <=> $1
		LIMIT $3
		`, p.table)
		rows, err = p.pool.Query(queryCtx, query, embedding, filterJSON, topK)
	} else {
		query := fmt.Sprintf(`
		SELECT id, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
		`, p.table)
		rows, err = p.pool.Query(queryCtx, query, embedding, topK)
	}
	if err != nil {
		return nil, mapStoreErr(err)
	}
	defer rows.Close()

	results := make([]types.SearchResult, 0, topK)
	for rows.Next() {
		var id string
		var metadataJSON []byte
		var score float64
		if err := rows.Scan(&id, &metadataJSON, &score); err != nil {
			return nil, err
		}

		var metadata map[string]any
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			p.logger.Warn("skipping match with unreadable metadata", "id", id, "error", err)
			continue
		}
		content, ok := metadata[types.MetaContent].(string)
		if !ok {
			p.logger.Warn("skipping match without content payload", "id", id)
			continue
		}

		results = append(results, types.SearchResult{
			ID:       id,
			Content:  content,
			Score:    ClampScore(score),
			Metadata: metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreErr(err)
	}
	return results, nil
}

// Delete removes every record matching the filter. An empty filter is
// rejected: JSONB containment would match the whole index.
func (p *PostgresStore) Delete(ctx context.Context, filter types.Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing to delete with an empty filter")
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("failed to marshal filter: %w", err)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE metadata @> $1", p.table)
	tag, err := p.pool.Exec(ctx, query, filterJSON)
	if err != nil {
		return mapStoreErr(err)
	}
	p.logger.Debug("deleted records", "filter", filter, "count", tag.RowsAffected())
	return nil
}

// Describe reports the total record count, for observability only.
func (p *PostgresStore) Describe(ctx context.Context) (types.IndexStats, error) {
	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", p.table)
	if err := p.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return types.IndexStats{}, mapStoreErr(err)
	}
	return types.IndexStats{TotalRecords: count}, nil
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// ClampScore bounds a cosine similarity into [0,1]. pgvector can report
// values slightly outside the range for near-identical or opposed vectors.
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// mapStoreErr translates a missing or unreachable index into the typed
// index-unavailable error the core distinguishes on. That covers the
// undefined-table SQLSTATE, connection-level failures (refused dial, DNS,
// broken pool), and the store's own query timeout.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "42P01" {
			return fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connErr),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	return err
}
