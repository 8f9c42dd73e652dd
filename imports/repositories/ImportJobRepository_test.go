package repositories

import (
	"context"
	"testing"
	"time"

	"review-hub-backend/db/models"
	"review-hub-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newJob(total int) *models.ImportJob {
	return &models.ImportJob{
		UserID:        uuid.New(),
		IntegrationID: uuid.New(),
		Filename:      "reviews.csv",
		TotalRows:     total,
		Headers:       datatypes.JSON(`["provider","rating","created_at"]`),
		ColumnMapping: datatypes.JSON(`{"provider":"provider","rating":"rating","created_at":"created_at"}`),
	}
}

func chunkOf(index, first, n int) *models.ImportChunk {
	return &models.ImportChunk{ChunkIndex: index, FirstRow: first, RowCount: n, Rows: datatypes.JSON(`[]`)}
}

func TestStageChunksInOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewImportJobRepository(testutil.NewDB(t))

	job := newJob(5)
	require.NoError(t, repo.CreateWithChunk(ctx, job, chunkOf(0, 1, 2)))
	assert.Equal(t, models.ImportJobPending, job.Status)
	assert.False(t, job.IsSealed())

	_, err := repo.StageChunk(ctx, job.ID, chunkOf(2, 5, 1))
	assert.ErrorIs(t, err, ErrChunkOutOfOrder)

	got, err := repo.StageChunk(ctx, job.ID, chunkOf(1, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, got.StagedChunks)
	assert.Equal(t, 4, got.StagedRows)

	_, err = repo.StageChunk(ctx, job.ID, chunkOf(1, 3, 2))
	assert.ErrorIs(t, err, ErrChunkAlreadySeen)

	_, err = repo.StageChunk(ctx, job.ID, chunkOf(2, 5, 3))
	assert.ErrorIs(t, err, ErrTooManyRows)

	got, err = repo.StageChunk(ctx, job.ID, chunkOf(2, 5, 1))
	require.NoError(t, err)
	assert.True(t, got.IsSealed())

	c, err := repo.GetChunk(ctx, job.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, c.FirstRow)

	_, err = repo.StageChunk(ctx, uuid.New(), chunkOf(0, 1, 1))
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStageChunkRejectsStartedJob(t *testing.T) {
	ctx := context.Background()
	repo := NewImportJobRepository(testutil.NewDB(t))

	job := newJob(10)
	require.NoError(t, repo.CreateWithChunk(ctx, job, chunkOf(0, 1, 2)))
	ok, err := repo.Transition(ctx, job.ID, models.ImportJobCancelled, nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = repo.StageChunk(ctx, job.ID, chunkOf(1, 3, 2))
	assert.ErrorIs(t, err, ErrJobNotPending)
}

func TestTransitionsAreGuarded(t *testing.T) {
	ctx := context.Background()
	repo := NewImportJobRepository(testutil.NewDB(t))

	job := newJob(1)
	require.NoError(t, repo.CreateWithChunk(ctx, job, chunkOf(0, 1, 1)))

	ok, err := repo.Transition(ctx, job.ID, models.ImportJobCompleted, nil)
	require.NoError(t, err)
	assert.False(t, ok, "pending cannot complete directly")

	ok, err = repo.Transition(ctx, job.ID, models.ImportJobProcessing, map[string]interface{}{"started_at": time.Now()})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Transition(ctx, job.ID, models.ImportJobProcessing, nil)
	require.NoError(t, err)
	assert.False(t, ok, "second worker must not start the same job")

	ok, err = repo.Transition(ctx, job.ID, models.ImportJobCompletedWithErrors, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, to := range []models.ImportJobStatus{models.ImportJobCompleted, models.ImportJobFailed, models.ImportJobCancelled} {
		ok, err = repo.Transition(ctx, job.ID, to, nil)
		require.NoError(t, err)
		assert.False(t, ok, "terminal status must not change to %s", to)
	}

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportJobCompletedWithErrors, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestFlushProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewImportJobRepository(testutil.NewDB(t))

	job := newJob(100)
	require.NoError(t, repo.CreateWithChunk(ctx, job, chunkOf(0, 1, 100)))
	_, err := repo.Transition(ctx, job.ID, models.ImportJobProcessing, nil)
	require.NoError(t, err)

	require.NoError(t, repo.FlushProgress(ctx, job.ID, Progress{ProcessedRows: 20, ImportedRows: 19, FailedRows: 1, InsertedRows: 19}))
	require.NoError(t, repo.FlushProgress(ctx, job.ID, Progress{ProcessedRows: 10, ImportedRows: 10}))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ProcessedRows)
	assert.Equal(t, 1, got.FailedRows)
}

func TestRecordErrorFirstWinsAndOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewImportJobRepository(testutil.NewDB(t))
	jobID := uuid.New()

	for _, row := range []int{7, 2} {
		ok, err := repo.RecordError(ctx, &models.ImportError{ImportJobID: jobID, RowNumber: row, ErrorType: models.ImportErrorValidation, ErrorMessage: "Invalid rating"})
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.RecordError(ctx, &models.ImportError{ImportJobID: jobID, RowNumber: 2, ErrorType: models.ImportErrorStorage, ErrorMessage: "later"})
	require.NoError(t, err)
	assert.False(t, ok)

	errs, total, err := repo.GetErrors(ctx, jobID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, errs, 2)
	assert.Equal(t, 2, errs[0].RowNumber)
	assert.Equal(t, models.ImportErrorValidation, errs[0].ErrorType)
	assert.Equal(t, 7, errs[1].RowNumber)
}

func TestFindStale(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewImportJobRepository(db)

	job := newJob(3)
	require.NoError(t, repo.CreateWithChunk(ctx, job, chunkOf(0, 1, 1)))
	require.NoError(t, db.Model(&models.ImportJob{}).Where("id = ?", job.ID).UpdateColumn("updated_at", time.Now().UTC().Add(-2*time.Hour)).Error)

	stale, err := repo.FindStale(ctx, models.ImportJobPending, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, job.ID, stale[0].ID)

	stale, err = repo.FindStale(ctx, models.ImportJobProcessing, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestTransitionFromRestrictsSource(t *testing.T) {
	ctx := context.Background()
	repo := NewImportJobRepository(testutil.NewDB(t))

	job := newJob(1)
	require.NoError(t, repo.CreateWithChunk(ctx, job, chunkOf(0, 1, 1)))
	_, err := repo.Transition(ctx, job.ID, models.ImportJobProcessing, nil)
	require.NoError(t, err)

	pendingOnly := []models.ImportJobStatus{models.ImportJobPending}
	ok, err := repo.TransitionFrom(ctx, job.ID, pendingOnly, models.ImportJobCancelled, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.TransitionFrom(ctx, job.ID, []models.ImportJobStatus{models.ImportJobCompleted}, models.ImportJobFailed, nil)
	assert.Error(t, err)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportJobProcessing, got.Status)
}
