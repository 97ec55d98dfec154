package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "badger"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestJobStorage_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := models.NewGenerationJob("doc_123")
	require.NoError(t, store.SaveJob(ctx, job))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestJobStorage_GetMissingReturnsNotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStorage(db, arbor.NewLogger())

	_, err := store.GetJob(context.Background(), "job_missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestJobStorage_GetJobByDocumentReturnsLatest(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := models.NewGenerationJob("doc_abc")
	require.NoError(t, store.SaveJob(ctx, first))
	second := models.NewGenerationJob("doc_abc")
	second.CreatedAt = first.CreatedAt.Add(1)
	require.NoError(t, store.SaveJob(ctx, second))

	got, err := store.GetJobByDocument(ctx, "doc_abc")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestJobStorage_ListJobsByStatus(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	pending := models.NewGenerationJob("doc_1")
	require.NoError(t, store.SaveJob(ctx, pending))

	running := models.NewGenerationJob("doc_2")
	running.MarkStarted()
	require.NoError(t, store.SaveJob(ctx, running))

	done := models.NewGenerationJob("doc_3")
	done.MarkStarted()
	done.MarkCompleted()
	require.NoError(t, store.SaveJob(ctx, done))

	active, err := store.ListJobsByStatus(ctx, models.JobStatusPending, models.JobStatusResearching)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestJobStorage_Delete(t *testing.T) {
	db := openTestDB(t)
	store := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := models.NewGenerationJob("doc_del")
	require.NoError(t, store.SaveJob(ctx, job))
	require.NoError(t, store.DeleteJob(ctx, job.ID))

	_, err := store.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestDocumentStorage_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewDocumentStorage(db, arbor.NewLogger())
	ctx := context.Background()

	doc := models.NewDocument("agency_1", "client_1", "Future of Remote Work", models.GenerationOptions{Tone: "professional"})
	require.NoError(t, store.SaveDocument(ctx, doc))

	got, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Future of Remote Work", got.Topic)
	assert.Equal(t, "future-of-remote-work", got.Slug)
	assert.Equal(t, models.DocumentStatusDraft, got.Status)
}

func TestDocumentStorage_ListByStatus(t *testing.T) {
	db := openTestDB(t)
	store := NewDocumentStorage(db, arbor.NewLogger())
	ctx := context.Background()

	draft := models.NewDocument("a", "c", "one", models.GenerationOptions{})
	require.NoError(t, store.SaveDocument(ctx, draft))

	generating := models.NewDocument("a", "c", "two", models.GenerationOptions{})
	generating.MarkGenerating()
	require.NoError(t, store.SaveDocument(ctx, generating))

	drafts, err := store.ListDocumentsByStatus(ctx, models.DocumentStatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)
}
