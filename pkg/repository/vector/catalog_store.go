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

// CatalogStore persists one vector record per catalog item and answers flat
// ranked similarity queries with optional exact-match attribute filters.
type CatalogStore struct {
	db        *sqlx.DB
	embedder  embedding.Embedder
	threshold float64
	batchSize int
	logger    observability.Logger
	metrics   observability.MetricsClient
}

// CatalogStoreConfig configures a CatalogStore.
type CatalogStoreConfig struct {
	DB        *sqlx.DB
	Embedder  embedding.Embedder
	Threshold float64
	BatchSize int
	Logger    observability.Logger
	Metrics   observability.MetricsClient
}

// NewCatalogStore creates a catalog store. The similarity threshold is
// required; construction fails without it.
func NewCatalogStore(cfg CatalogStoreConfig) (*CatalogStore, error) {
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
		cfg.Logger = observability.NewLogger("catalog-store")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNoopMetricsClient()
	}

	return &CatalogStore{
		db:        cfg.DB,
		embedder:  cfg.Embedder,
		threshold: cfg.Threshold,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// Upsert embeds the item's search text and writes or overwrites the record
// keyed by (tenant_id, id).
func (s *CatalogStore) Upsert(ctx context.Context, item models.CatalogItem) error {
	if item.ID == "" {
		return fmt.Errorf("catalog item id is required")
	}

	vec, err := s.embedder.Embed(ctx, item.SearchText)
	if err != nil {
		return fmt.Errorf("failed to embed catalog item %s: %w", item.ID, err)
	}

	query := `
		INSERT INTO catalog_items (
			id, tenant_id, title, url, price, currency, category, brand,
			availability, search_text, embedding, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::vector, $12)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			title        = EXCLUDED.title,
			url          = EXCLUDED.url,
			price        = EXCLUDED.price,
			currency     = EXCLUDED.currency,
			category     = EXCLUDED.category,
			brand        = EXCLUDED.brand,
			availability = EXCLUDED.availability,
			search_text  = EXCLUDED.search_text,
			embedding    = EXCLUDED.embedding,
			updated_at   = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		item.ID, item.TenantID, item.Title, item.URL, item.Price,
		item.Currency, item.Category, item.Brand, item.Availability,
		item.SearchText, encodeVector(vec), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog item %s: %w", item.ID, err)
	}
	return nil
}

// UpsertBatch ingests items best-effort in bounded sub-batches with the same
// skip-on-failure policy as the content store.
func (s *CatalogStore) UpsertBatch(ctx context.Context, items []models.CatalogItem) (models.BatchResult, error) {
	var result models.BatchResult

	for start := 0; start < len(items); start += s.batchSize {
		end := start + s.batchSize
		if end > len(items) {
			end = len(items)
		}

		var sub models.BatchResult
		for _, item := range items[start:end] {
			if err := ctx.Err(); err != nil {
				result.Add(sub)
				return result, err
			}
			if err := s.Upsert(ctx, item); err != nil {
				sub.Skipped++
				s.logger.Warn("skipping catalog item after ingestion failure", map[string]interface{}{
					"item_id":   item.ID,
					"tenant_id": item.TenantID.String(),
					"error":     err.Error(),
				})
				continue
			}
			sub.Processed++
		}
		result.Add(sub)
	}

	labels := map[string]string{"store": "catalog"}
	s.metrics.IncrementCounter("ingestion_processed_total", float64(result.Processed), labels)
	s.metrics.IncrementCounter("ingestion_skipped_total", float64(result.Skipped), labels)

	return result, nil
}

type catalogRow struct {
	models.CatalogItem
	Similarity float64 `db:"similarity"`
}

// Query embeds queryText and returns at most topK items for the tenant,
// ranked by similarity descending with ties broken by item ID. Filters are
// exact-match attribute conditions ANDed before similarity scoring; only
// items matching all provided filters are candidates.
func (s *CatalogStore) Query(ctx context.Context, tenantID uuid.UUID, queryText string, topK int, filters models.CatalogFilters) ([]models.ItemResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	vec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	query := `
		SELECT id, tenant_id, title, url, price, currency, category, brand,
		       availability, search_text, updated_at,
		       1 - (embedding <=> $2::vector) AS similarity
		FROM catalog_items
		WHERE tenant_id = $1
		  AND 1 - (embedding <=> $2::vector) >= $3`

	params := []interface{}{tenantID, encodeVector(vec), s.threshold}
	paramIdx := 4

	if !filters.IsZero() {
		s.logger.Debug("applying catalog filters", map[string]interface{}{
			"tenant_id":    tenantID.String(),
			"category":     filters.Category,
			"brand":        filters.Brand,
			"availability": filters.Availability,
		})
	}

	if filters.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", paramIdx)
		params = append(params, filters.Category)
		paramIdx++
	}
	if filters.Brand != "" {
		query += fmt.Sprintf(" AND brand = $%d", paramIdx)
		params = append(params, filters.Brand)
		paramIdx++
	}
	if filters.Availability != "" {
		query += fmt.Sprintf(" AND availability = $%d", paramIdx)
		params = append(params, filters.Availability)
		paramIdx++
	}

	query += fmt.Sprintf(" ORDER BY similarity DESC, id ASC LIMIT $%d", paramIdx)
	params = append(params, topK)

	var rows []catalogRow
	if err := s.db.SelectContext(ctx, &rows, query, params...); err != nil {
		return nil, fmt.Errorf("failed to execute catalog query: %w", err)
	}

	results := make([]models.ItemResult, 0, len(rows))
	for _, row := range rows {
		if row.TenantID != tenantID {
			return nil, &TenantIsolationError{Requested: tenantID, Got: row.TenantID}
		}
		results = append(results, models.ItemResult{Item: row.CatalogItem, Score: row.Similarity})
	}

	return results, nil
}

// Count returns the number of stored items for the tenant.
func (s *CatalogStore) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM catalog_items WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to count catalog items: %w", err)
	}
	return count, nil
}

// Drop bulk-deletes all of the tenant's catalog items.
func (s *CatalogStore) Drop(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM catalog_items WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to drop tenant %s: %w", tenantID, err)
	}
	return nil
}

// ListTenants returns the distinct tenants with stored catalog items.
func (s *CatalogStore) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	var tenants []uuid.UUID
	err := s.db.SelectContext(ctx, &tenants,
		`SELECT DISTINCT tenant_id FROM catalog_items ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}
