package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docenhance/internal/classify"
	"docenhance/internal/document"
	"docenhance/internal/job"
)

func sampleRecord(location string) *job.Record {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &job.Record{
		ID:            "job-1",
		Ref:           document.Reference{Location: location, ContentID: "abc123"},
		State:         job.StateCompleted,
		RawText:       "Teh fox",
		CorrectedText: "The fox",
		Changes: []classify.ChangeRecord{
			{Original: "Teh", Corrected: "The", Category: classify.CategorySpelling, Position: 0},
		},
		Summary: &classify.Summary{
			Counts: map[classify.Category]int{classify.CategorySpelling: 1},
			Total:  1,
			Text:   "Fixed 1 spelling error(s).",
		},
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// stores under test share one behavioral contract.
func runStoreContract(t *testing.T, s job.Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, job.ErrNotFound)

	rec := sampleRecord("docs/a.pdf")
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.State, got.State)
	assert.Equal(t, rec.RawText, got.RawText)
	assert.Equal(t, rec.CorrectedText, got.CorrectedText)
	assert.Equal(t, rec.Changes, got.Changes)
	require.NotNil(t, got.Summary)
	assert.Equal(t, rec.Summary.Text, got.Summary.Text)

	// Put replaces.
	rec2 := sampleRecord("docs/a.pdf")
	rec2.ID = "job-2"
	rec2.State = job.StateFailed
	rec2.LastError = "OCR processing timed out"
	require.NoError(t, s.Put(ctx, rec2))

	got, err = s.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "job-2", got.ID)
	assert.Equal(t, job.StateFailed, got.State)

	require.NoError(t, s.Put(ctx, sampleRecord("docs/b.pdf")))
	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "docs/a.pdf", all[0].Ref.Location)
	assert.Equal(t, "docs/b.pdf", all[1].Ref.Location)

	require.NoError(t, s.Delete(ctx, "docs/a.pdf"))
	_, err = s.Get(ctx, "docs/a.pdf")
	require.ErrorIs(t, err, job.ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemory())
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	rec := sampleRecord("docs/a.pdf")
	require.NoError(t, s.Put(ctx, rec))

	// Mutating what the caller holds must not leak into the store.
	rec.State = job.StateFailed
	got, err := s.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, got.State)

	got.State = job.StateCancelled
	again, err := s.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, again.State)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runStoreContract(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, sampleRecord("docs/a.pdf")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	got, err := reopened.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)
	assert.Equal(t, job.StateCompleted, got.State)
}
