// Package pipeline coordinates the write path: chunking incoming documents
// and feeding chunks and catalog items into the tenant vector stores.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arkologystudio/lumen-search/pkg/chunking"
	"github.com/arkologystudio/lumen-search/pkg/models"
	"github.com/arkologystudio/lumen-search/pkg/observability"
)

// ContentIngester is the write surface of the content store.
type ContentIngester interface {
	UpsertBatch(ctx context.Context, chunks []models.Chunk) (models.BatchResult, error)
	Count(ctx context.Context, tenantID uuid.UUID) (int, error)
	Drop(ctx context.Context, tenantID uuid.UUID) error
}

// CatalogIngester is the write surface of the catalog store.
type CatalogIngester interface {
	UpsertBatch(ctx context.Context, items []models.CatalogItem) (models.BatchResult, error)
	Count(ctx context.Context, tenantID uuid.UUID) (int, error)
	Drop(ctx context.Context, tenantID uuid.UUID) error
}

// Document is an extracted document as supplied by the text extractor
// collaborator.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// IngestReport describes one document ingestion.
type IngestReport struct {
	models.BatchResult
	ChunkCount int `json:"chunk_count"`
}

// Pipeline is the ingestion coordinator.
type Pipeline struct {
	chunker *chunking.Chunker
	content ContentIngester
	catalog CatalogIngester
	logger  observability.Logger
}

// New creates a Pipeline.
func New(chunker *chunking.Chunker, content ContentIngester, catalog CatalogIngester, logger observability.Logger) (*Pipeline, error) {
	if chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if content == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog store is required")
	}
	if logger == nil {
		logger = observability.NewLogger("pipeline")
	}
	return &Pipeline{chunker: chunker, content: content, catalog: catalog, logger: logger}, nil
}

// IngestDocument chunks one document and upserts the chunks best-effort.
// Chunk identities derive from (tenant, document, sequence), so re-ingestion
// overwrites in place.
func (p *Pipeline) IngestDocument(ctx context.Context, tenantID uuid.UUID, doc Document) (IngestReport, error) {
	chunks, err := p.chunker.Chunk(tenantID, doc.ID, doc.Title, doc.URL, doc.Content)
	if err != nil {
		return IngestReport{}, fmt.Errorf("failed to chunk document %s: %w", doc.ID, err)
	}
	if len(chunks) == 0 {
		p.logger.Info("document produced no chunks", map[string]interface{}{
			"tenant_id":   tenantID.String(),
			"document_id": doc.ID,
		})
		return IngestReport{}, nil
	}

	result, err := p.content.UpsertBatch(ctx, chunks)
	if err != nil {
		return IngestReport{BatchResult: result, ChunkCount: len(chunks)}, err
	}

	p.logger.Info("document ingested", map[string]interface{}{
		"tenant_id":   tenantID.String(),
		"document_id": doc.ID,
		"chunks":      len(chunks),
		"processed":   result.Processed,
		"skipped":     result.Skipped,
	})

	return IngestReport{BatchResult: result, ChunkCount: len(chunks)}, nil
}

// IngestCatalog upserts a batch of catalog items best-effort.
func (p *Pipeline) IngestCatalog(ctx context.Context, tenantID uuid.UUID, items []models.CatalogItem) (models.BatchResult, error) {
	for i := range items {
		items[i].TenantID = tenantID
	}

	result, err := p.catalog.UpsertBatch(ctx, items)
	if err != nil {
		return result, err
	}

	p.logger.Info("catalog batch ingested", map[string]interface{}{
		"tenant_id": tenantID.String(),
		"items":     len(items),
		"processed": result.Processed,
		"skipped":   result.Skipped,
	})

	return result, nil
}

// Stats reports record counts per store for one tenant.
type Stats struct {
	ContentChunks int `json:"content_chunks"`
	CatalogItems  int `json:"catalog_items"`
}

// TenantStats returns per-store record counts for a tenant.
func (p *Pipeline) TenantStats(ctx context.Context, tenantID uuid.UUID) (Stats, error) {
	chunks, err := p.content.Count(ctx, tenantID)
	if err != nil {
		return Stats{}, err
	}
	items, err := p.catalog.Count(ctx, tenantID)
	if err != nil {
		return Stats{}, err
	}
	return Stats{ContentChunks: chunks, CatalogItems: items}, nil
}

// DropTenant bulk-deletes the tenant's records from both stores.
func (p *Pipeline) DropTenant(ctx context.Context, tenantID uuid.UUID) error {
	if err := p.content.Drop(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to drop tenant content: %w", err)
	}
	if err := p.catalog.Drop(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to drop tenant catalog: %w", err)
	}
	p.logger.Info("tenant data dropped", map[string]interface{}{"tenant_id": tenantID.String()})
	return nil
}
