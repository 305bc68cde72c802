package vector

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkologystudio/lumen-search/pkg/models"
)

// stubEmbedder returns a fixed vector, or an error for texts in failOn.
type stubEmbedder struct {
	vec    []float32
	failOn map[string]error
	calls  int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if err, ok := s.failOn[text]; ok {
		return nil, err
	}
	return s.vec, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vec) }

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

func newContentStore(t *testing.T, db *sqlx.DB, embedder *stubEmbedder, threshold float64) *ContentStore {
	t.Helper()
	store, err := NewContentStore(ContentStoreConfig{
		DB:        db,
		Embedder:  embedder,
		Threshold: threshold,
	})
	require.NoError(t, err)
	return store
}

func TestNewContentStoreRequiresThreshold(t *testing.T) {
	db, _ := newMockDB(t)
	embedder := &stubEmbedder{vec: []float32{1, 0}}

	_, err := NewContentStore(ContentStoreConfig{DB: db, Embedder: embedder})
	assert.ErrorIs(t, err, ErrThresholdNotConfigured)

	// Explicitly configured but out-of-range values are a different fault.
	_, err = NewContentStore(ContentStoreConfig{DB: db, Embedder: embedder, Threshold: 1.5})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrThresholdNotConfigured)

	_, err = NewContentStore(ContentStoreConfig{DB: db, Embedder: embedder, Threshold: -0.2})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrThresholdNotConfigured)
}

func testChunk(tenant uuid.UUID, docID string, seq int) models.Chunk {
	return models.Chunk{
		ID:          models.ChunkID(tenant, docID, seq),
		TenantID:    tenant,
		DocumentID:  docID,
		Sequence:    seq,
		Text:        fmt.Sprintf("chunk %d of %s", seq, docID),
		StartOffset: seq * 100,
		EndOffset:   (seq + 1) * 100,
	}
}

func TestContentUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	embedder := &stubEmbedder{vec: []float32{0.25, 0.5}}
	store := newContentStore(t, db, embedder, 0.7)

	tenant := uuid.New()
	chunk := testChunk(tenant, "doc-1", 0)

	mock.ExpectExec("INSERT INTO content_chunks").
		WithArgs(
			chunk.ID, chunk.TenantID, chunk.DocumentID, chunk.DocumentTitle,
			chunk.DocumentURL, chunk.Sequence, chunk.Text, chunk.StartOffset,
			chunk.EndOffset, "[0.25,0.5]", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Upsert(context.Background(), chunk)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentUpsertEmbeddingFailure(t *testing.T) {
	db, mock := newMockDB(t)
	embedder := &stubEmbedder{
		vec:    []float32{1},
		failOn: map[string]error{"chunk 0 of doc-1": errors.New("provider down")},
	}
	store := newContentStore(t, db, embedder, 0.7)

	err := store.Upsert(context.Background(), testChunk(uuid.New(), "doc-1", 0))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL should run when embedding fails")
}

func TestContentUpsertBatchSkipsFailures(t *testing.T) {
	db, mock := newMockDB(t)

	tenant := uuid.New()
	chunks := make([]models.Chunk, 10)
	for i := range chunks {
		chunks[i] = testChunk(tenant, "doc-1", i)
	}

	// Chunk #4's embedding comes back malformed; the other nine insert.
	embedder := &stubEmbedder{
		vec:    []float32{0.1},
		failOn: map[string]error{chunks[3].Text: errors.New("malformed embedding response")},
	}
	store := newContentStore(t, db, embedder, 0.7)

	for range chunks[:9] {
		mock.ExpectExec("INSERT INTO content_chunks").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	result, err := store.UpsertBatch(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, 9, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentUpsertBatchStorageFailure(t *testing.T) {
	db, mock := newMockDB(t)
	embedder := &stubEmbedder{vec: []float32{0.1}}
	store := newContentStore(t, db, embedder, 0.7)

	tenant := uuid.New()
	chunks := []models.Chunk{
		testChunk(tenant, "doc-1", 0),
		testChunk(tenant, "doc-1", 1),
	}

	mock.ExpectExec("INSERT INTO content_chunks").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectExec("INSERT INTO content_chunks").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := store.UpsertBatch(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
}

func contentColumns() []string {
	return []string{"id", "tenant_id", "document_id", "document_title",
		"document_url", "sequence", "text", "similarity"}
}

func TestContentQueryGroupsByDocument(t *testing.T) {
	db, mock := newMockDB(t)
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	store := newContentStore(t, db, embedder, 0.7)

	tenant := uuid.New()
	rows := sqlmock.NewRows(contentColumns()).
		AddRow(models.ChunkID(tenant, "doc-a", 2).String(), tenant.String(), "doc-a", "Doc A", "https://a", 2, "a2", 0.95).
		AddRow(models.ChunkID(tenant, "doc-b", 0).String(), tenant.String(), "doc-b", "Doc B", "https://b", 0, "b0", 0.91).
		AddRow(models.ChunkID(tenant, "doc-a", 0).String(), tenant.String(), "doc-a", "Doc A", "https://a", 0, "a0", 0.88).
		AddRow(models.ChunkID(tenant, "doc-c", 1).String(), tenant.String(), "doc-c", "Doc C", "https://c", 1, "c1", 0.80)

	mock.ExpectQuery("SELECT (.+) FROM content_chunks").
		WithArgs(tenant, "[1,0]", 0.7).
		WillReturnRows(rows)

	groups, err := store.Query(context.Background(), tenant, "query text", 2)
	require.NoError(t, err)
	require.Len(t, groups, 2, "top_k bounds documents, not chunks")

	assert.Equal(t, "doc-a", groups[0].DocumentID)
	assert.Equal(t, 0.95, groups[0].MaxScore)
	assert.Equal(t, 2, groups[0].TotalChunks)
	require.Len(t, groups[0].Chunks, 2)
	assert.GreaterOrEqual(t, groups[0].Chunks[0].Score, groups[0].Chunks[1].Score)

	assert.Equal(t, "doc-b", groups[1].DocumentID)
	assert.Equal(t, 0.91, groups[1].MaxScore)

	assert.GreaterOrEqual(t, groups[0].MaxScore, groups[1].MaxScore)
}

func TestContentQueryThresholdBoundsResults(t *testing.T) {
	db, mock := newMockDB(t)
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	store := newContentStore(t, db, embedder, 0.75)

	// The threshold is enforced in SQL: of five candidates scoring 0.9, 0.8,
	// 0.7, 0.6, and 0.5, only the first two survive the bound comparison and
	// come back as rows.
	tenant := uuid.New()
	rows := sqlmock.NewRows(contentColumns()).
		AddRow(models.ChunkID(tenant, "doc-a", 0).String(), tenant.String(), "doc-a", "Doc A", "https://a", 0, "a0", 0.9).
		AddRow(models.ChunkID(tenant, "doc-b", 0).String(), tenant.String(), "doc-b", "Doc B", "https://b", 0, "b0", 0.8)

	mock.ExpectQuery("SELECT (.+) FROM content_chunks").
		WithArgs(tenant, "[1,0]", 0.75).
		WillReturnRows(rows)

	groups, err := store.Query(context.Background(), tenant, "query", 5)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 0.9, groups[0].MaxScore)
	assert.Equal(t, 0.8, groups[1].MaxScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentQueryTenantIsolation(t *testing.T) {
	db, mock := newMockDB(t)
	embedder := &stubEmbedder{vec: []float32{1, 0}}
	store := newContentStore(t, db, embedder, 0.7)

	tenantA := uuid.New()
	tenantB := uuid.New()

	rows := sqlmock.NewRows(contentColumns()).
		AddRow(models.ChunkID(tenantB, "doc-x", 0).String(), tenantB.String(), "doc-x", "X", "", 0, "leaked", 0.99)

	mock.ExpectQuery("SELECT (.+) FROM content_chunks").
		WillReturnRows(rows)

	_, err := store.Query(context.Background(), tenantA, "query", 5)
	var isoErr *TenantIsolationError
	require.ErrorAs(t, err, &isoErr)
	assert.Equal(t, tenantA, isoErr.Requested)
	assert.Equal(t, tenantB, isoErr.Got)
}

func TestContentQueryEmbeddingFailurePropagates(t *testing.T) {
	db, _ := newMockDB(t)
	embedder := &stubEmbedder{
		vec:    []float32{1},
		failOn: map[string]error{"broken": errors.New("provider down")},
	}
	store := newContentStore(t, db, embedder, 0.7)

	_, err := store.Query(context.Background(), uuid.New(), "broken", 5)
	assert.Error(t, err)
}

func TestContentCountAndDrop(t *testing.T) {
	db, mock := newMockDB(t)
	embedder := &stubEmbedder{vec: []float32{1}}
	store := newContentStore(t, db, embedder, 0.7)

	tenant := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM content_chunks").
		WithArgs(tenant).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.Count(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 42, count)

	mock.ExpectExec("DELETE FROM content_chunks").
		WithArgs(tenant).
		WillReturnResult(sqlmock.NewResult(0, 42))

	assert.NoError(t, store.Drop(context.Background(), tenant))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentListTenants(t *testing.T) {
	db, mock := newMockDB(t)
	embedder := &stubEmbedder{vec: []float32{1}}
	store := newContentStore(t, db, embedder, 0.7)

	a := uuid.New()
	b := uuid.New()
	mock.ExpectQuery("SELECT DISTINCT tenant_id FROM content_chunks").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(a.String()).AddRow(b.String()))

	tenants, err := store.ListTenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, tenants)
}
