package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/imports/repositories"
	integrationRepositories "review-hub-backend/integrations/repositories"
	"review-hub-backend/internal/reviewcsv"
	"review-hub-backend/metrics"
	reviewRepositories "review-hub-backend/reviews/repositories"
	"review-hub-backend/utils"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ReviewIndexer receives reviews written by a job. Indexing is best effort.
type ReviewIndexer interface {
	IndexReviews(reviews []models.Review) error
}

// FailureReporter is told about jobs that finished with failed rows.
type FailureReporter interface {
	ReportFailures(ctx context.Context, job *models.ImportJob) error
}

type ProcessorOption func(*Processor)

func WithCancelSignal(s CancelSignal) ProcessorOption {
	return func(p *Processor) { p.cancel = s }
}

func WithPublisher(pub ProgressPublisher) ProcessorOption {
	return func(p *Processor) { p.publisher = pub }
}

func WithIndexer(i ReviewIndexer) ProcessorOption {
	return func(p *Processor) { p.indexer = i }
}

func WithFailureReporter(r FailureReporter) ProcessorOption {
	return func(p *Processor) { p.reporter = r }
}

// Processor runs sealed import jobs. Rows of one job are handled strictly in
// order and each row is upserted on its own, so a failing row never blocks
// the rest of the file.
type Processor struct {
	jobs         repositories.ImportJobRepository
	reviews      reviewRepositories.ReviewRepository
	integrations integrationRepositories.IntegrationRepository
	cfg          config.IngestionConfig

	cancel    CancelSignal
	publisher ProgressPublisher
	indexer   ReviewIndexer
	reporter  FailureReporter
}

func NewProcessor(
	jobs repositories.ImportJobRepository,
	reviews reviewRepositories.ReviewRepository,
	integrations integrationRepositories.IntegrationRepository,
	cfg config.IngestionConfig,
	opts ...ProcessorOption,
) *Processor {
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10
	}
	p := &Processor{
		jobs:         jobs,
		reviews:      reviews,
		integrations: integrations,
		cfg:          cfg,
		publisher:    nopPublisher{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessTask is the asynq handler for TypeProcessImport.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseProcessImportPayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return p.Process(ctx, payload.ImportJobID)
}

// errCancelled stops the row loop when the owner cancelled the job.
var errCancelled = errors.New("import cancelled")

// jobFatal wraps errors that end the whole job as failed.
type jobFatal struct{ err error }

func (f jobFatal) Error() string { return f.err.Error() }
func (f jobFatal) Unwrap() error { return f.err }

func fatal(format string, args ...any) error {
	return jobFatal{err: fmt.Errorf(format, args...)}
}

// jobRun is the state of one job while it is being processed.
type jobRun struct {
	job       *models.ImportJob
	headers   []string
	mapping   reviewcsv.ColumnMapping
	validator *reviewcsv.Validator
	counts    repositories.Progress
	sinceLast int
}

// Process runs job id from pending to a terminal status. Jobs that are not
// pending are skipped, so a duplicate delivery is harmless. Failures that
// end the job are recorded on it and not returned.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) error {
	job, err := p.jobs.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrJobNotFound) {
		config.Logger.Warn("Import job vanished before processing", zap.String("import_job_id", id.String()))
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status != models.ImportJobPending {
		config.Logger.Info("Skipping import job that is not pending",
			zap.String("import_job_id", id.String()),
			zap.String("status", string(job.Status)),
		)
		return nil
	}

	started := time.Now()
	metrics.ImportJobsActive.Inc()
	defer metrics.ImportJobsActive.Dec()

	run := &jobRun{job: job}

	if err := p.reviews.Ping(ctx); err != nil {
		p.finish(ctx, run, models.ImportJobFailed, fmt.Sprintf("review store unreachable: %v", err))
		return nil
	}

	now := time.Now().UTC()
	ok, err := p.jobs.Transition(ctx, job.ID, models.ImportJobProcessing, map[string]interface{}{"started_at": now})
	if err != nil {
		return fmt.Errorf("start import job %s: %w", job.ID, err)
	}
	if !ok {
		config.Logger.Info("Import job left pending before it started", zap.String("import_job_id", id.String()))
		return nil
	}
	job.Status = models.ImportJobProcessing
	job.StartedAt = &now

	config.Logger.Info("Processing import job",
		zap.String("import_job_id", job.ID.String()),
		zap.Int("total_rows", job.TotalRows),
		zap.Int("chunks", job.StagedChunks),
	)

	err = p.runRows(ctx, run)
	switch {
	case err == nil:
		status := models.ImportJobCompleted
		if run.counts.FailedRows > 0 {
			status = models.ImportJobCompletedWithErrors
		}
		p.finish(ctx, run, status, "")
	case errors.Is(err, errCancelled):
		p.finish(ctx, run, models.ImportJobCancelled, "")
	default:
		p.finish(ctx, run, models.ImportJobFailed, err.Error())
	}

	metrics.ImportJobDuration.Observe(time.Since(started).Seconds())
	return nil
}

func (p *Processor) runRows(ctx context.Context, run *jobRun) error {
	if err := json.Unmarshal(run.job.Headers, &run.headers); err != nil {
		return fatal("decode headers: %v", err)
	}
	if err := json.Unmarshal(run.job.ColumnMapping, &run.mapping); err != nil {
		return fatal("decode column mapping: %v", err)
	}
	if err := run.mapping.Check(run.headers); err != nil {
		return fatal("column mapping: %v", err)
	}
	run.validator = reviewcsv.NewValidator(run.mapping)

	for idx := 0; idx < run.job.StagedChunks; idx++ {
		chunk, err := p.jobs.GetChunk(ctx, run.job.ID, idx)
		if err != nil {
			return fatal("%v", err)
		}
		var rows []models.StagedRow
		if err := json.Unmarshal(chunk.Rows, &rows); err != nil {
			return fatal("decode chunk %d: %v", idx, err)
		}

		written := make([]models.Review, 0, len(rows))
		for _, staged := range rows {
			if err := p.checkCancelled(ctx, run.job.ID); err != nil {
				p.flush(ctx, run)
				p.index(written)
				return err
			}

			review, err := p.processRow(ctx, run, staged)
			if err != nil {
				p.index(written)
				return err
			}
			if review != nil {
				written = append(written, *review)
			}

			run.sinceLast++
			if run.sinceLast >= p.cfg.ProgressEvery {
				p.flush(ctx, run)
			}
		}
		p.index(written)
	}
	p.flush(ctx, run)
	return nil
}

func (p *Processor) checkCancelled(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fatal("worker stopped: %v", err)
	}
	if p.cancel == nil {
		return nil
	}
	cancelled, err := p.cancel.IsCancelled(ctx, id)
	if err != nil {
		config.Logger.Warn("Could not read cancel flag", zap.String("import_job_id", id.String()), zap.Error(err))
		return nil
	}
	if cancelled {
		return errCancelled
	}
	return nil
}

// processRow handles one staged row. It returns the stored review, nil when
// the row failed, or a job-fatal error.
func (p *Processor) processRow(ctx context.Context, run *jobRun, staged models.StagedRow) (*models.Review, error) {
	run.counts.ProcessedRows++

	if len(staged.Values) > len(run.headers) {
		return nil, p.rowFailed(ctx, run, staged, models.ImportErrorMapping,
			fmt.Sprintf("Row %d: has %d values but the file has %d columns", staged.RowNumber, len(staged.Values), len(run.headers)))
	}

	cells := make([]string, len(run.headers))
	copy(cells, staged.Values)
	row := reviewcsv.ParsedRow{Row: staged.RowNumber, Headers: run.headers, Cells: cells}

	rec, issues, err := run.validator.Normalize(run.mapping.Apply(row))
	if err != nil {
		return nil, p.rowFailed(ctx, run, staged, models.ImportErrorHashing,
			fmt.Sprintf("Row %d: could not derive review id: %v", staged.RowNumber, err))
	}
	if reviewcsv.HasErrors(issues) {
		var msgs []string
		for _, issue := range issues {
			if issue.Severity == reviewcsv.SeverityError {
				msgs = append(msgs, issue.Message)
			}
		}
		return nil, p.rowFailed(ctx, run, staged, models.ImportErrorValidation,
			fmt.Sprintf("Row %d: %s", staged.RowNumber, strings.Join(msgs, "; ")))
	}

	review := toReview(run.job, rec)
	batch := []models.Review{review}
	res, err := p.reviews.Upsert(ctx, batch)
	if errors.Is(err, reviewRepositories.ErrStoreUnavailable) {
		run.counts.ProcessedRows--
		return nil, fatal("%v", err)
	}
	if err != nil {
		return nil, p.rowFailed(ctx, run, staged, models.ImportErrorStorage,
			fmt.Sprintf("Row %d: could not save review: %v", staged.RowNumber, err))
	}

	run.counts.InsertedRows += res.Inserted
	run.counts.UpdatedRows += res.Updated
	run.counts.UnchangedRows += res.Unchanged
	run.counts.ImportedRows++
	switch {
	case res.Inserted > 0:
		metrics.ImportRows.WithLabelValues("inserted").Inc()
	case res.Updated > 0:
		metrics.ImportRows.WithLabelValues("updated").Inc()
	default:
		metrics.ImportRows.WithLabelValues("unchanged").Inc()
	}
	return &batch[0], nil
}

// rowFailed records the error of a row. Only a failure to record it ends the
// job.
func (p *Processor) rowFailed(ctx context.Context, run *jobRun, staged models.StagedRow, kind models.ImportErrorType, msg string) error {
	run.counts.FailedRows++
	metrics.ImportRows.WithLabelValues("failed").Inc()

	data := map[string]string{}
	for i, v := range staged.Values {
		if i < len(run.headers) {
			data[run.headers[i]] = v
		} else {
			data[fmt.Sprintf("column_%d", i+1)] = v
		}
	}
	raw, _ := json.Marshal(data)

	_, err := p.jobs.RecordError(ctx, &models.ImportError{
		ImportJobID:  run.job.ID,
		RowNumber:    staged.RowNumber,
		ErrorType:    kind,
		ErrorMessage: msg,
		RowData:      raw,
	})
	if err != nil {
		return fatal("record error for row %d: %v", staged.RowNumber, err)
	}
	return nil
}

func (p *Processor) flush(ctx context.Context, run *jobRun) {
	run.sinceLast = 0
	if err := p.jobs.FlushProgress(ctx, run.job.ID, run.counts); err != nil {
		config.Logger.Warn("Could not flush import progress",
			zap.String("import_job_id", run.job.ID.String()),
			zap.Error(err),
		)
		return
	}
	p.publisher.PublishImportProgress(ProgressEvent{
		ImportJobID: run.job.ID,
		UserID:      run.job.UserID,
		Status:      models.ImportJobProcessing,
		TotalRows:   run.job.TotalRows,
		Progress:    run.counts,
	})
}

func (p *Processor) index(reviews []models.Review) {
	if p.indexer == nil || len(reviews) == 0 {
		return
	}
	if err := p.indexer.IndexReviews(reviews); err != nil {
		config.Logger.Warn("Could not index imported reviews", zap.Int("count", len(reviews)), zap.Error(err))
	}
}

// finish writes the terminal status and runs the follow-up work. A failed job
// keeps the counters of its last flush.
func (p *Processor) finish(ctx context.Context, run *jobRun, status models.ImportJobStatus, message string) {
	job := run.job
	now := time.Now().UTC()

	updates := map[string]interface{}{"completed_at": now}
	if status == models.ImportJobFailed {
		updates["error_message"] = message
	} else {
		for k, v := range run.counts.Columns() {
			updates[k] = v
		}
	}

	// The worker context may already be gone, the terminal write must still land.
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	ok, err := p.jobs.Transition(finalCtx, job.ID, status, updates)
	if err != nil {
		config.Logger.Error("Could not finish import job",
			zap.String("import_job_id", job.ID.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	if !ok {
		config.Logger.Warn("Import job already reached a terminal status",
			zap.String("import_job_id", job.ID.String()),
			zap.String("status", string(status)),
		)
		return
	}

	metrics.ImportJobs.WithLabelValues(string(status)).Inc()
	config.Logger.Info("Import job finished",
		zap.String("import_job_id", job.ID.String()),
		zap.String("status", string(status)),
		zap.Int("processed_rows", run.counts.ProcessedRows),
		zap.Int("imported_rows", run.counts.ImportedRows),
		zap.Int("failed_rows", run.counts.FailedRows),
		zap.String("error_message", message),
	)

	if err := p.jobs.DeleteChunks(finalCtx, job.ID); err != nil {
		config.Logger.Warn("Could not delete staged chunks", zap.String("import_job_id", job.ID.String()), zap.Error(err))
	}
	if p.cancel != nil {
		if err := p.cancel.Clear(finalCtx, job.ID); err != nil {
			config.Logger.Debug("Could not clear cancel flag", zap.String("import_job_id", job.ID.String()), zap.Error(err))
		}
	}

	if run.counts.ImportedRows > 0 {
		if _, err := p.integrations.RefreshAggregates(finalCtx, job.IntegrationID, now); err != nil {
			config.Logger.Warn("Could not refresh integration aggregates",
				zap.String("integration_id", job.IntegrationID.String()),
				zap.Error(err),
			)
		}
	}

	final, err := p.jobs.GetByID(finalCtx, job.ID)
	if err != nil {
		config.Logger.Warn("Could not reload finished import job", zap.String("import_job_id", job.ID.String()), zap.Error(err))
		final = job
		final.Status = status
	}

	if final.FailedRows > 0 && p.reporter != nil {
		if err := p.reporter.ReportFailures(finalCtx, final); err != nil {
			config.Logger.Warn("Could not report failed rows", zap.String("import_job_id", job.ID.String()), zap.Error(err))
		}
	}

	ev := eventOf(final)
	ev.Final = true
	p.publisher.PublishImportProgress(ev)
}

func toReview(job *models.ImportJob, rec reviewcsv.Record) models.Review {
	integrationID := job.IntegrationID
	jobID := job.ID
	idSource := models.ReviewIDNative
	if rec.IDSource == reviewcsv.IDSourceSurrogate {
		idSource = models.ReviewIDSurrogate
	}
	return models.Review{
		UserID:           job.UserID,
		Provider:         rec.Provider,
		ExternalReviewID: rec.ExternalReviewID,
		IDSource:         idSource,
		IntegrationID:    &integrationID,
		ImportJobID:      &jobID,
		Rating:           rec.Rating,
		Text:             rec.Text,
		Language:         utils.OptionalString(rec.Language),
		Title:            utils.OptionalString(rec.Title),
		ResponseText:     utils.OptionalString(rec.ResponseText),
		ReviewedAt:       rec.CreatedAt,
		RespondedAt:      rec.RespondedAt,
	}
}
