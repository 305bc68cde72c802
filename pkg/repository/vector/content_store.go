package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arkologystudio/lumen-search/pkg/embedding"
	"github.com/arkologystudio/lumen-search/pkg/models"
	"github.com/arkologystudio/lumen-search/pkg/observability"
)

// ContentStore persists one vector record per content chunk and answers
// similarity queries grouped at the parent-document level.
type ContentStore struct {
	db        *sqlx.DB
	embedder  embedding.Embedder
	threshold float64
	batchSize int
	logger    observability.Logger
	metrics   observability.MetricsClient
}

// ContentStoreConfig configures a ContentStore.
type ContentStoreConfig struct {
	DB        *sqlx.DB
	Embedder  embedding.Embedder
	Threshold float64
	BatchSize int
	Logger    observability.Logger
	Metrics   observability.MetricsClient
}

// NewContentStore creates a content store. The similarity threshold is
// required; construction fails without it.
func NewContentStore(cfg ContentStoreConfig) (*ContentStore, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if err := validateThreshold(cfg.Threshold); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger("content-store")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNoopMetricsClient()
	}

	return &ContentStore{
		db:        cfg.DB,
		embedder:  cfg.Embedder,
		threshold: cfg.Threshold,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// Upsert embeds the chunk text and writes or overwrites the record keyed by
// chunk ID. Re-ingesting an unchanged chunk leaves exactly one row.
func (s *ContentStore) Upsert(ctx context.Context, chunk models.Chunk) error {
	vec, err := s.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
	}

	query := `
		INSERT INTO content_chunks (
			id, tenant_id, document_id, document_title, document_url,
			sequence, text, start_offset, end_offset, embedding, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector, $11)
		ON CONFLICT (id) DO UPDATE SET
			document_title = EXCLUDED.document_title,
			document_url   = EXCLUDED.document_url,
			text           = EXCLUDED.text,
			start_offset   = EXCLUDED.start_offset,
			end_offset     = EXCLUDED.end_offset,
			embedding      = EXCLUDED.embedding,
			updated_at     = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		chunk.ID, chunk.TenantID, chunk.DocumentID, chunk.DocumentTitle,
		chunk.DocumentURL, chunk.Sequence, chunk.Text, chunk.StartOffset,
		chunk.EndOffset, encodeVector(vec), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// UpsertBatch ingests chunks best-effort in bounded sub-batches. A failing
// chunk is logged and counted as skipped; it never aborts the batch and
// prior successes are not rolled back.
func (s *ContentStore) UpsertBatch(ctx context.Context, chunks []models.Chunk) (models.BatchResult, error) {
	var result models.BatchResult

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		var sub models.BatchResult
		for _, chunk := range chunks[start:end] {
			if err := ctx.Err(); err != nil {
				result.Add(sub)
				return result, err
			}
			if err := s.Upsert(ctx, chunk); err != nil {
				sub.Skipped++
				s.logger.Warn("skipping chunk after ingestion failure", map[string]interface{}{
					"chunk_id":    chunk.ID.String(),
					"tenant_id":   chunk.TenantID.String(),
					"document_id": chunk.DocumentID,
					"error":       err.Error(),
				})
				continue
			}
			sub.Processed++
		}
		result.Add(sub)
	}

	labels := map[string]string{"store": "content"}
	s.metrics.IncrementCounter("ingestion_processed_total", float64(result.Processed), labels)
	s.metrics.IncrementCounter("ingestion_skipped_total", float64(result.Skipped), labels)

	return result, nil
}

type contentRow struct {
	ID            uuid.UUID `db:"id"`
	TenantID      uuid.UUID `db:"tenant_id"`
	DocumentID    string    `db:"document_id"`
	DocumentTitle string    `db:"document_title"`
	DocumentURL   string    `db:"document_url"`
	Sequence      int       `db:"sequence"`
	Text          string    `db:"text"`
	Similarity    float64   `db:"similarity"`
}

// Query embeds queryText and returns at most topK documents for the tenant,
// each grouping its matching chunks. Rows below the store threshold are
// discarded. Groups are ordered by their max chunk score descending; chunks
// within a group by score descending, ties broken by chunk ID.
func (s *ContentStore) Query(ctx context.Context, tenantID uuid.UUID, queryText string, topK int) ([]models.GroupedResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	vec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	query := `
		SELECT id, tenant_id, document_id, document_title, document_url,
		       sequence, text,
		       1 - (embedding <=> $2::vector) AS similarity
		FROM content_chunks
		WHERE tenant_id = $1
		  AND 1 - (embedding <=> $2::vector) >= $3
		ORDER BY similarity DESC, id ASC`

	var rows []contentRow
	if err := s.db.SelectContext(ctx, &rows, query, tenantID, encodeVector(vec), s.threshold); err != nil {
		return nil, fmt.Errorf("failed to execute content query: %w", err)
	}

	// Group by document, preserving score order. Rows arrive ranked, so the
	// first row of each document carries its max score and groups form in
	// rank order.
	groupIndex := make(map[string]int)
	var groups []models.GroupedResult
	for _, row := range rows {
		if row.TenantID != tenantID {
			return nil, &TenantIsolationError{Requested: tenantID, Got: row.TenantID}
		}

		idx, ok := groupIndex[row.DocumentID]
		if !ok {
			if len(groups) >= topK {
				continue
			}
			groups = append(groups, models.GroupedResult{
				DocumentID:    row.DocumentID,
				DocumentTitle: row.DocumentTitle,
				DocumentURL:   row.DocumentURL,
				MaxScore:      row.Similarity,
			})
			idx = len(groups) - 1
			groupIndex[row.DocumentID] = idx
		}

		groups[idx].Chunks = append(groups[idx].Chunks, models.ChunkMatch{
			ChunkID:  row.ID,
			Sequence: row.Sequence,
			Text:     row.Text,
			Score:    row.Similarity,
		})
		groups[idx].TotalChunks++
	}

	return groups, nil
}

// Count returns the number of stored chunks for the tenant.
func (s *ContentStore) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM content_chunks WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Drop bulk-deletes all of the tenant's chunks.
func (s *ContentStore) Drop(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM content_chunks WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to drop tenant %s: %w", tenantID, err)
	}
	return nil
}

// ListTenants returns the distinct tenants with stored chunks.
func (s *ContentStore) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	var tenants []uuid.UUID
	err := s.db.SelectContext(ctx, &tenants,
		`SELECT DISTINCT tenant_id FROM content_chunks ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}
