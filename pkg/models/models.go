// Package models defines the shared data model for the semantic content
// pipeline: chunks, catalog items, and search results.
package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies which store a record or result came from.
type SourceKind string

const (
	SourceKindContent SourceKind = "content"
	SourceKindCatalog SourceKind = "catalog"
)

// chunkNamespace is the UUID namespace for deterministic chunk identities.
// Re-ingesting the same document yields the same chunk IDs, so upserts
// overwrite instead of duplicating.
var chunkNamespace = uuid.MustParse("7b9e4a52-8c1d-4f3a-9b6e-2d5f8a0c1e47")

// Chunk is a bounded contiguous span of a document's extracted text, the
// unit of embedding for content search.
type Chunk struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TenantID      uuid.UUID `json:"tenant_id" db:"tenant_id"`
	DocumentID    string    `json:"document_id" db:"document_id"`
	DocumentTitle string    `json:"document_title" db:"document_title"`
	DocumentURL   string    `json:"document_url" db:"document_url"`
	Sequence      int       `json:"sequence" db:"sequence"`
	Text          string    `json:"text" db:"text"`
	StartOffset   int       `json:"start_offset" db:"start_offset"`
	EndOffset     int       `json:"end_offset" db:"end_offset"`
}

// ChunkID derives the stable identity of a chunk from its position within a
// tenant's document.
func ChunkID(tenantID uuid.UUID, documentID string, sequence int) uuid.UUID {
	name := tenantID.String() + "/" + documentID + "/" + strconv.Itoa(sequence)
	return uuid.NewSHA1(chunkNamespace, []byte(name))
}

// CatalogItem is a single product record. The SearchText blob is what gets
// embedded for similarity; the remaining attributes are returned with results
// and usable as exact-match filters.
type CatalogItem struct {
	ID           string    `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Title        string    `json:"title" db:"title"`
	URL          string    `json:"url" db:"url"`
	Price        float64   `json:"price" db:"price"`
	Currency     string    `json:"currency" db:"currency"`
	Category     string    `json:"category" db:"category"`
	Brand        string    `json:"brand" db:"brand"`
	Availability string    `json:"availability" db:"availability"`
	SearchText   string    `json:"search_text" db:"search_text"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ChunkMatch is one matching chunk inside a grouped content result.
type ChunkMatch struct {
	ChunkID  uuid.UUID `json:"chunk_id"`
	Sequence int       `json:"sequence"`
	Text     string    `json:"text"`
	Score    float64   `json:"score"`
}

// GroupedResult aggregates matching chunks at the parent-document level.
type GroupedResult struct {
	DocumentID    string       `json:"document_id"`
	DocumentTitle string       `json:"document_title"`
	DocumentURL   string       `json:"document_url"`
	MaxScore      float64      `json:"max_score"`
	TotalChunks   int          `json:"total_chunks"`
	Chunks        []ChunkMatch `json:"chunks"`
}

// ItemResult is one ranked catalog hit with its full attributes.
type ItemResult struct {
	Item  CatalogItem `json:"item"`
	Score float64     `json:"score"`
}

// SearchResult is a single merged result from the orchestrator. Exactly one
// of Document or Item is set, according to SourceKind.
type SearchResult struct {
	SourceKind SourceKind     `json:"source_kind"`
	Score      float64        `json:"score"`
	Document   *GroupedResult `json:"document,omitempty"`
	Item       *ItemResult    `json:"item,omitempty"`
}

// BatchResult reports best-effort ingestion counts.
type BatchResult struct {
	Processed int `json:"processed_count"`
	Skipped   int `json:"skipped_count"`
}

// Add merges another batch result into this one.
func (b *BatchResult) Add(other BatchResult) {
	b.Processed += other.Processed
	b.Skipped += other.Skipped
}

// CatalogFilters are exact-match attribute pre-filters for catalog queries.
// Empty fields are not applied.
type CatalogFilters struct {
	Category     string `json:"category,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Availability string `json:"availability,omitempty"`
}

// IsZero reports whether no filter is set.
func (f CatalogFilters) IsZero() bool {
	return f.Category == "" && f.Brand == "" && f.Availability == ""
}
