package repositories

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"review-hub-backend/db/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrJobNotFound      = errors.New("import job not found")
	ErrJobNotPending    = errors.New("import job no longer accepts rows")
	ErrChunkOutOfOrder  = errors.New("chunk index out of order")
	ErrChunkAlreadySeen = errors.New("chunk already staged")
	ErrTooManyRows      = errors.New("chunk exceeds announced total rows")
)

// Progress is the counter snapshot persisted while a job runs.
type Progress struct {
	ProcessedRows int `json:"processed_rows"`
	ImportedRows  int `json:"imported_rows"`
	FailedRows    int `json:"failed_rows"`
	InsertedRows  int `json:"inserted_rows"`
	UpdatedRows   int `json:"updated_rows"`
	UnchangedRows int `json:"unchanged_rows"`
}

// Columns maps the counters to their job columns.
func (p Progress) Columns() map[string]interface{} {
	return map[string]interface{}{
		"processed_rows": p.ProcessedRows,
		"imported_rows":  p.ImportedRows,
		"failed_rows":    p.FailedRows,
		"inserted_rows":  p.InsertedRows,
		"updated_rows":   p.UpdatedRows,
		"unchanged_rows": p.UnchangedRows,
	}
}

// ProgressOf reads the persisted counters of job.
func ProgressOf(job *models.ImportJob) Progress {
	return Progress{
		ProcessedRows: job.ProcessedRows,
		ImportedRows:  job.ImportedRows,
		FailedRows:    job.FailedRows,
		InsertedRows:  job.InsertedRows,
		UpdatedRows:   job.UpdatedRows,
		UnchangedRows: job.UnchangedRows,
	}
}

type ImportJobRepository interface {
	CreateWithChunk(ctx context.Context, job *models.ImportJob, chunk *models.ImportChunk) error
	StageChunk(ctx context.Context, jobID uuid.UUID, chunk *models.ImportChunk) (*models.ImportJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ImportJob, error)
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.ImportJob, error)
	GetFilteredJobs(ctx context.Context, userID uuid.UUID, filters map[string]string, limit, offset int) ([]models.ImportJob, int64, error)
	GetChunk(ctx context.Context, jobID uuid.UUID, index int) (*models.ImportChunk, error)
	DeleteChunks(ctx context.Context, jobID uuid.UUID) error
	Transition(ctx context.Context, id uuid.UUID, to models.ImportJobStatus, updates map[string]interface{}) (bool, error)
	TransitionFrom(ctx context.Context, id uuid.UUID, from []models.ImportJobStatus, to models.ImportJobStatus, updates map[string]interface{}) (bool, error)
	FlushProgress(ctx context.Context, id uuid.UUID, p Progress) error
	RecordError(ctx context.Context, e *models.ImportError) (bool, error)
	GetErrors(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]models.ImportError, int64, error)
	SetReportPath(ctx context.Context, id uuid.UUID, path string) error
	FindStale(ctx context.Context, status models.ImportJobStatus, updatedBefore time.Time) ([]models.ImportJob, error)
}

type importJobRepository struct {
	db *gorm.DB
}

func NewImportJobRepository(db *gorm.DB) ImportJobRepository {
	return &importJobRepository{db: db}
}

// CreateWithChunk inserts a pending job together with its first staged chunk.
func (r *importJobRepository) CreateWithChunk(ctx context.Context, job *models.ImportJob, chunk *models.ImportChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job.Status = models.ImportJobPending
		job.StagedChunks = 1
		job.StagedRows = chunk.RowCount
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("create import job: %w", err)
		}
		chunk.ImportJobID = job.ID
		chunk.ChunkIndex = 0
		if err := tx.Create(chunk).Error; err != nil {
			return fmt.Errorf("stage chunk 0: %w", err)
		}
		return nil
	})
}

// StageChunk appends the next chunk of a pending job. Chunks must arrive in
// index order; resending an index that is already staged reports
// ErrChunkAlreadySeen without changing anything.
func (r *importJobRepository) StageChunk(ctx context.Context, jobID uuid.UUID, chunk *models.ImportChunk) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ImportJob{}).
			Where("id = ? AND status = ? AND staged_chunks = ? AND staged_rows + ? <= total_rows",
				jobID, models.ImportJobPending, chunk.ChunkIndex, chunk.RowCount).
			Updates(map[string]interface{}{
				"staged_chunks": gorm.Expr("staged_chunks + 1"),
				"staged_rows":   gorm.Expr("staged_rows + ?", chunk.RowCount),
				"updated_at":    time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}

		if err := tx.Take(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if res.RowsAffected == 0 {
			switch {
			case chunk.ChunkIndex < job.StagedChunks:
				return ErrChunkAlreadySeen
			case job.Status != models.ImportJobPending:
				return ErrJobNotPending
			case chunk.ChunkIndex != job.StagedChunks:
				return fmt.Errorf("%w: expected %d, got %d", ErrChunkOutOfOrder, job.StagedChunks, chunk.ChunkIndex)
			default:
				return ErrTooManyRows
			}
		}

		chunk.ImportJobID = jobID
		return tx.Create(chunk).Error
	})
	if err != nil {
		if errors.Is(err, ErrChunkAlreadySeen) {
			return &job, err
		}
		return nil, err
	}
	return &job, nil
}

func (r *importJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).Take(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *importJobRepository) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *importJobRepository) GetFilteredJobs(ctx context.Context, userID uuid.UUID, filters map[string]string, limit, offset int) ([]models.ImportJob, int64, error) {
	var jobs []models.ImportJob
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ImportJob{}).Where("user_id = ?", userID)
	if v := filters["status"]; v != "" {
		query = query.Where("status = ?", v)
	}
	if v := filters["integration_id"]; v != "" {
		query = query.Where("integration_id = ?", v)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Limit(limit).Offset(offset).Order("created_at DESC").Find(&jobs).Error
	return jobs, total, err
}

func (r *importJobRepository) GetChunk(ctx context.Context, jobID uuid.UUID, index int) (*models.ImportChunk, error) {
	var chunk models.ImportChunk
	err := r.db.WithContext(ctx).Where("import_job_id = ? AND chunk_index = ?", jobID, index).Take(&chunk).Error
	if err != nil {
		return nil, fmt.Errorf("load chunk %d: %w", index, err)
	}
	return &chunk, nil
}

func (r *importJobRepository) DeleteChunks(ctx context.Context, jobID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("import_job_id = ?", jobID).Delete(&models.ImportChunk{}).Error
}

// Transition moves the job to status to when its current status allows it.
// It reports false when another writer got there first, which keeps terminal
// statuses write-once.
func (r *importJobRepository) Transition(ctx context.Context, id uuid.UUID, to models.ImportJobStatus, updates map[string]interface{}) (bool, error) {
	return r.TransitionFrom(ctx, id, models.SourcesFor(to), to, updates)
}

// TransitionFrom is Transition restricted to the given current statuses.
func (r *importJobRepository) TransitionFrom(ctx context.Context, id uuid.UUID, from []models.ImportJobStatus, to models.ImportJobStatus, updates map[string]interface{}) (bool, error) {
	from = slices.DeleteFunc(slices.Clone(from), func(s models.ImportJobStatus) bool { return !s.CanTransition(to) })
	if len(from) == 0 {
		return false, fmt.Errorf("no transition leads to %s", to)
	}

	cols := map[string]interface{}{}
	for k, v := range updates {
		cols[k] = v
	}
	cols["status"] = to
	cols["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FlushProgress persists counters of a processing job. Writes that would move
// processed_rows backwards are dropped.
func (r *importJobRepository) FlushProgress(ctx context.Context, id uuid.UUID, p Progress) error {
	cols := p.Columns()
	cols["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status = ? AND processed_rows <= ?", id, models.ImportJobProcessing, p.ProcessedRows).
		Updates(cols).Error
}

// RecordError stores the first error of a row. It reports false when the row
// already has one.
func (r *importJobRepository) RecordError(ctx context.Context, e *models.ImportError) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "import_job_id"}, {Name: "row_number"}},
		DoNothing: true,
	}).Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *importJobRepository) GetErrors(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]models.ImportError, int64, error) {
	var errs []models.ImportError
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ImportError{}).Where("import_job_id = ?", jobID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	err := query.Order("row_number ASC").Find(&errs).Error
	return errs, total, err
}

func (r *importJobRepository) SetReportPath(ctx context.Context, id uuid.UUID, path string) error {
	return r.db.WithContext(ctx).Model(&models.ImportJob{}).Where("id = ?", id).Update("report_path", path).Error
}

func (r *importJobRepository) FindStale(ctx context.Context, status models.ImportJobStatus, updatedBefore time.Time) ([]models.ImportJob, error) {
	var jobs []models.ImportJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, updatedBefore).
		Order("updated_at ASC").
		Find(&jobs).Error
	return jobs, err
}
