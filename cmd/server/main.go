// Command server runs the Lumen semantic search service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/arkologystudio/lumen-search/internal/api"
	"github.com/arkologystudio/lumen-search/pkg/chunking"
	"github.com/arkologystudio/lumen-search/pkg/config"
	"github.com/arkologystudio/lumen-search/pkg/embedding"
	"github.com/arkologystudio/lumen-search/pkg/observability"
	"github.com/arkologystudio/lumen-search/pkg/pipeline"
	"github.com/arkologystudio/lumen-search/pkg/repository/vector"
	"github.com/arkologystudio/lumen-search/pkg/search"
)

func main() {
	logger := observability.NewLogger("lumen-search")

	if err := run(logger); err != nil {
		logger.Fatal("service failed", map[string]interface{}{"error": err.Error()})
	}
}

func run(logger observability.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger = observability.NewLoggerWithLevel("lumen-search", logLevel(cfg.Service.LogLevel))
	metrics := observability.NewPrometheusMetricsClient("lumen")

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	embedder, err := embedding.NewClient(embedding.ClientConfig{
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
		MaxRetries: cfg.Embedding.MaxRetries,
		Logger:     logger.WithPrefix("embedding-client"),
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}

	chunker, err := chunking.New(chunking.Config{
		MaxChars: cfg.Chunking.MaxChunkLength,
		Overlap:  cfg.Chunking.ChunkOverlap,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create chunker: %w", err)
	}

	contentStore, err := vector.NewContentStore(vector.ContentStoreConfig{
		DB:        db,
		Embedder:  embedder,
		Threshold: cfg.Search.SimilarityThreshold,
		BatchSize: cfg.Search.BatchSize,
		Logger:    logger.WithPrefix("content-store"),
		Metrics:   metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create content store: %w", err)
	}

	catalogStore, err := vector.NewCatalogStore(vector.CatalogStoreConfig{
		DB:        db,
		Embedder:  embedder,
		Threshold: cfg.Search.SimilarityThreshold,
		BatchSize: cfg.Search.BatchSize,
		Logger:    logger.WithPrefix("catalog-store"),
		Metrics:   metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog store: %w", err)
	}

	orchestrator, err := search.NewOrchestrator(contentStore, catalogStore,
		logger.WithPrefix("search-orchestrator"), metrics)
	if err != nil {
		return fmt.Errorf("failed to create search orchestrator: %w", err)
	}

	pipe, err := pipeline.New(chunker, contentStore, catalogStore, logger.WithPrefix("pipeline"))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	if cfg.Service.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.NewHandler(pipe, orchestrator, logger.WithPrefix("api")).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", map[string]interface{}{"port": cfg.Service.Port})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	return nil
}

func runMigrations(db *sqlx.DB) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func logLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.LogLevelDebug
	case "warn":
		return observability.LogLevelWarn
	case "error":
		return observability.LogLevelError
	default:
		return observability.LogLevelInfo
	}
}
