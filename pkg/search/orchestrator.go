// Package search fans a single query out across content-type stores, then
// merges, filters, and ranks the results.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkologystudio/lumen-search/pkg/models"
	"github.com/arkologystudio/lumen-search/pkg/observability"
)

// ContentSearcher answers grouped similarity queries over content chunks.
type ContentSearcher interface {
	Query(ctx context.Context, tenantID uuid.UUID, queryText string, topK int) ([]models.GroupedResult, error)
}

// CatalogSearcher answers flat similarity queries over catalog items.
type CatalogSearcher interface {
	Query(ctx context.Context, tenantID uuid.UUID, queryText string, topK int, filters models.CatalogFilters) ([]models.ItemResult, error)
}

// Request is a cross-content-type search request. Empty Types means all
// types. MinScore filters merged results after each store applied its own
// threshold.
type Request struct {
	TenantID uuid.UUID             `json:"tenant_id"`
	Query    string                `json:"query"`
	Types    []models.SourceKind   `json:"types,omitempty"`
	Filters  models.CatalogFilters `json:"filters,omitempty"`
	Limit    int                   `json:"limit,omitempty"`
	MinScore float64               `json:"min_score,omitempty"`
}

// Response carries ranked results plus the types actually queried, including
// ones whose query failed and contributed nothing.
type Response struct {
	Results       []models.SearchResult `json:"results"`
	SearchedTypes []models.SourceKind   `json:"searched_types"`
}

const defaultLimit = 10

// Orchestrator coordinates per-type queries and ranking.
type Orchestrator struct {
	content ContentSearcher
	catalog CatalogSearcher
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewOrchestrator creates an orchestrator over the given stores.
func NewOrchestrator(content ContentSearcher, catalog CatalogSearcher, logger observability.Logger, metrics observability.MetricsClient) (*Orchestrator, error) {
	if content == nil {
		return nil, fmt.Errorf("content searcher is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog searcher is required")
	}
	if logger == nil {
		logger = observability.NewLogger("search-orchestrator")
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &Orchestrator{content: content, catalog: catalog, logger: logger, metrics: metrics}, nil
}

type typeOutcome struct {
	kind    models.SourceKind
	results []models.SearchResult
	err     error
}

// Search runs one query per requested content type concurrently and merges
// the outcomes. A failing type contributes zero results; the call fails only
// when every queried type failed.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Response, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if req.TenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant_id is required")
	}

	types := req.Types
	if len(types) == 0 {
		types = []models.SourceKind{models.SourceKindContent, models.SourceKindCatalog}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	start := time.Now()
	outcomes := make(chan typeOutcome, len(types))
	var wg sync.WaitGroup

	for _, kind := range types {
		wg.Add(1)
		go func(kind models.SourceKind) {
			defer wg.Done()
			outcomes <- o.queryType(ctx, kind, req, limit)
		}(kind)
	}
	wg.Wait()
	close(outcomes)

	var merged []models.SearchResult
	var lastErr error
	failures := 0
	for outcome := range outcomes {
		if outcome.err != nil {
			failures++
			lastErr = outcome.err
			o.logger.Warn("content type query failed, returning partial results", map[string]interface{}{
				"tenant_id":   req.TenantID.String(),
				"source_kind": string(outcome.kind),
				"error":       outcome.err.Error(),
			})
			o.metrics.IncrementCounter("search_type_failures_total", 1,
				map[string]string{"source_kind": string(outcome.kind)})
			continue
		}
		merged = append(merged, outcome.results...)
	}

	if failures == len(types) {
		return nil, fmt.Errorf("all content types failed: %w", lastErr)
	}

	merged = rank(merged, req.MinScore, limit)

	o.metrics.RecordDuration("search_request_duration_seconds", time.Since(start),
		map[string]string{"tenant_id": req.TenantID.String()})

	return &Response{Results: merged, SearchedTypes: types}, nil
}

func (o *Orchestrator) queryType(ctx context.Context, kind models.SourceKind, req Request, limit int) typeOutcome {
	switch kind {
	case models.SourceKindContent:
		groups, err := o.content.Query(ctx, req.TenantID, req.Query, limit)
		if err != nil {
			return typeOutcome{kind: kind, err: err}
		}
		results := make([]models.SearchResult, 0, len(groups))
		for i := range groups {
			results = append(results, models.SearchResult{
				SourceKind: models.SourceKindContent,
				Score:      groups[i].MaxScore,
				Document:   &groups[i],
			})
		}
		return typeOutcome{kind: kind, results: results}

	case models.SourceKindCatalog:
		items, err := o.catalog.Query(ctx, req.TenantID, req.Query, limit, req.Filters)
		if err != nil {
			return typeOutcome{kind: kind, err: err}
		}
		results := make([]models.SearchResult, 0, len(items))
		for i := range items {
			results = append(results, models.SearchResult{
				SourceKind: models.SourceKindCatalog,
				Score:      items[i].Score,
				Item:       &items[i],
			})
		}
		return typeOutcome{kind: kind, results: results}

	default:
		return typeOutcome{kind: kind, err: fmt.Errorf("unknown content type %q", kind)}
	}
}

// rank filters by minScore, sorts by score descending with a deterministic
// tie-break (source kind, then identity), and truncates to limit.
func rank(results []models.SearchResult, minScore float64, limit int) []models.SearchResult {
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		if filtered[i].SourceKind != filtered[j].SourceKind {
			return filtered[i].SourceKind < filtered[j].SourceKind
		}
		return resultID(filtered[i]) < resultID(filtered[j])
	})

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

func resultID(r models.SearchResult) string {
	switch {
	case r.Document != nil:
		return r.Document.DocumentID
	case r.Item != nil:
		return r.Item.Item.ID
	}
	return ""
}
