// Package api implements the HTTP surface of the semantic search service.
// Authentication, rate limiting, and licensing run in front of this service
// and are not handled here.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arkologystudio/lumen-search/pkg/models"
	"github.com/arkologystudio/lumen-search/pkg/observability"
	"github.com/arkologystudio/lumen-search/pkg/pipeline"
	"github.com/arkologystudio/lumen-search/pkg/search"
)

// Handler handles ingestion and search requests.
type Handler struct {
	pipeline     *pipeline.Pipeline
	orchestrator *search.Orchestrator
	logger       observability.Logger
}

// NewHandler creates an API handler.
func NewHandler(p *pipeline.Pipeline, o *search.Orchestrator, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NewLogger("api")
	}
	return &Handler{pipeline: p, orchestrator: o, logger: logger}
}

// RegisterRoutes registers all routes on the engine.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	tenants := v1.Group("/tenants/:tenant_id")
	tenants.POST("/documents", h.ingestDocument)
	tenants.POST("/products", h.ingestProducts)
	tenants.POST("/search", h.search)
	tenants.GET("/search/intent", h.classifyIntent)
	tenants.GET("/stats", h.tenantStats)
	tenants.DELETE("", h.dropTenant)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant_id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) ingestDocument(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var doc pipeline.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if doc.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document id is required"})
		return
	}

	report, err := h.pipeline.IngestDocument(c.Request.Context(), tenant, doc)
	if err != nil {
		h.logger.Error("document ingestion failed", map[string]interface{}{
			"tenant_id":   tenant.String(),
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed_count": report.Processed,
		"skipped_count":   report.Skipped,
		"chunk_count":     report.ChunkCount,
	})
}

func (h *Handler) ingestProducts(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req struct {
		Items []models.CatalogItem `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "items are required"})
		return
	}

	result, err := h.pipeline.IngestCatalog(c.Request.Context(), tenant, req.Items)
	if err != nil {
		h.logger.Error("catalog ingestion failed", map[string]interface{}{
			"tenant_id": tenant.String(),
			"error":     err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"processed_count": result.Processed,
		"skipped_count":   result.Skipped,
	})
}

func (h *Handler) search(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req search.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.TenantID = tenant

	resp, err := h.orchestrator.Search(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("search failed", map[string]interface{}{
			"tenant_id": tenant.String(),
			"query":     req.Query,
			"error":     err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) classifyIntent(c *gin.Context) {
	if _, ok := tenantID(c); !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	c.JSON(http.StatusOK, search.ClassifyIntent(query))
}

func (h *Handler) tenantStats(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	stats, err := h.pipeline.TenantStats(c.Request.Context(), tenant)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) dropTenant(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	if err := h.pipeline.DropTenant(c.Request.Context(), tenant); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "dropped", "tenant_id": tenant.String()})
}
