package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/imports/repositories"
	"review-hub-backend/imports/requests"
	integrationRepositories "review-hub-backend/integrations/repositories"
	"review-hub-backend/internal/reviewcsv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidRequest marks caller mistakes. Its message is safe to show.
	ErrInvalidRequest = errors.New("invalid import request")
	ErrJobFinished    = errors.New("import job already finished")
	ErrNoReport       = errors.New("import job has no failed rows")
	ErrEnqueueFailed  = errors.New("could not queue import job")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// ReportBuilder renders the failed rows of a job to a file.
type ReportBuilder interface {
	BuildReport(ctx context.Context, job *models.ImportJob) (string, error)
}

// IngestionService stages uploaded rows and hands sealed jobs to the worker
// pool. It never processes rows itself.
type IngestionService struct {
	jobs         repositories.ImportJobRepository
	integrations integrationRepositories.IntegrationRepository
	queue        Enqueuer
	cancel       CancelSignal
	publisher    ProgressPublisher
	reports      ReportBuilder
	cfg          config.IngestionConfig
}

func NewIngestionService(
	jobs repositories.ImportJobRepository,
	integrations integrationRepositories.IntegrationRepository,
	queue Enqueuer,
	cancel CancelSignal,
	publisher ProgressPublisher,
	reports ReportBuilder,
	cfg config.IngestionConfig,
) *IngestionService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &IngestionService{
		jobs:         jobs,
		integrations: integrations,
		queue:        queue,
		cancel:       cancel,
		publisher:    publisher,
		reports:      reports,
		cfg:          cfg,
	}
}

func (s *IngestionService) Config() config.IngestionConfig { return s.cfg }

// CreateJob opens a pending job with the first chunk of rows. The job is
// queued right away when the chunk already holds every announced row.
func (s *IngestionService) CreateJob(ctx context.Context, userID uuid.UUID, req requests.CreateImportRequest) (*models.ImportJob, error) {
	if !strings.EqualFold(filepath.Ext(req.Filename), ".csv") {
		return nil, invalid("only .csv files can be imported")
	}
	if err := s.checkRows(req.CSVRows, req.RowNumbers); err != nil {
		return nil, err
	}

	headers := req.Headers
	if len(headers) == 0 {
		headers = generatedHeaders(req.CSVRows)
	}
	limit := reviewcsv.DetectSchema(headers).MaxBytes(s.cfg.SimpleMaxFileBytes, s.cfg.MaxFileBytes)
	if req.FileSize > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", reviewcsv.ErrFileTooLarge, req.FileSize, limit)
	}

	mapping, err := resolveMapping(headers, req.ColumnMapping)
	if err != nil {
		return nil, err
	}

	total := req.TotalRows
	if total == 0 {
		total = len(req.CSVRows)
	}
	if total < len(req.CSVRows) {
		return nil, invalid("total_rows %d is smaller than the %d rows sent", total, len(req.CSVRows))
	}

	if _, err := s.integrations.GetForUser(ctx, userID, req.IntegrationID); err != nil {
		return nil, err
	}

	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}
	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, err
	}
	chunk, err := buildChunk(0, 1, req.CSVRows, req.RowNumbers)
	if err != nil {
		return nil, err
	}

	job := &models.ImportJob{
		UserID:        userID,
		IntegrationID: req.IntegrationID,
		Filename:      filepath.Base(req.Filename),
		FileSize:      req.FileSize,
		TotalRows:     total,
		Headers:       headersJSON,
		ColumnMapping: mappingJSON,
	}
	if email := strings.TrimSpace(req.NotifyEmail); email != "" {
		job.NotifyEmail = &email
	}

	if err := s.jobs.CreateWithChunk(ctx, job, chunk); err != nil {
		return nil, err
	}

	config.Logger.Info("Import job created",
		zap.String("import_job_id", job.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("filename", job.Filename),
		zap.Int("total_rows", job.TotalRows),
		zap.Int("staged_rows", job.StagedRows),
	)

	return job, s.sealIfComplete(ctx, job)
}

// AppendChunk stages the next chunk. Resending a chunk that is already staged
// reports duplicate and changes nothing.
func (s *IngestionService) AppendChunk(ctx context.Context, userID, jobID uuid.UUID, req requests.AppendChunkRequest) (job *models.ImportJob, duplicate bool, err error) {
	if err := s.checkRows(req.CSVRows, req.RowNumbers); err != nil {
		return nil, false, err
	}
	if req.ChunkIndex < 0 {
		return nil, false, invalid("chunk_index must not be negative")
	}

	current, err := s.jobs.GetForUser(ctx, userID, jobID)
	if err != nil {
		return nil, false, err
	}

	chunk, err := buildChunk(req.ChunkIndex, current.StagedRows+1, req.CSVRows, req.RowNumbers)
	if err != nil {
		return nil, false, err
	}

	job, err = s.jobs.StageChunk(ctx, jobID, chunk)
	switch {
	case errors.Is(err, repositories.ErrChunkAlreadySeen):
		return job, true, nil
	case errors.Is(err, repositories.ErrTooManyRows):
		return nil, false, invalid("chunk would exceed total_rows %d", current.TotalRows)
	case errors.Is(err, repositories.ErrChunkOutOfOrder):
		return nil, false, invalid("%v", err)
	case err != nil:
		return nil, false, err
	}

	config.Logger.Debug("Import chunk staged",
		zap.String("import_job_id", jobID.String()),
		zap.Int("chunk_index", req.ChunkIndex),
		zap.Int("staged_rows", job.StagedRows),
	)
	return job, false, s.sealIfComplete(ctx, job)
}

func (s *IngestionService) sealIfComplete(ctx context.Context, job *models.ImportJob) error {
	if !job.IsSealed() {
		return nil
	}
	if err := s.queue.EnqueueImport(ctx, job.ID); err != nil {
		config.Logger.Error("Failed to enqueue import job", zap.String("import_job_id", job.ID.String()), zap.Error(err))
		msg := "could not queue the import for processing"
		if ok, terr := s.jobs.TransitionFrom(ctx, job.ID, []models.ImportJobStatus{models.ImportJobPending}, models.ImportJobFailed, map[string]interface{}{
			"error_message": msg,
			"completed_at":  time.Now().UTC(),
		}); terr == nil && ok {
			job.Status = models.ImportJobFailed
			job.ErrorMessage = &msg
		}
		return fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}
	config.Logger.Info("Import job sealed and queued", zap.String("import_job_id", job.ID.String()))
	return nil
}

// Cancel stops a job. A pending job is cancelled at once. A processing job
// is flagged and the worker stops before its next row.
func (s *IngestionService) Cancel(ctx context.Context, userID, jobID uuid.UUID) (*models.ImportJob, error) {
	job, err := s.jobs.GetForUser(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, ErrJobFinished
	}

	if job.Status == models.ImportJobPending {
		ok, err := s.jobs.TransitionFrom(ctx, jobID, []models.ImportJobStatus{models.ImportJobPending}, models.ImportJobCancelled,
			map[string]interface{}{"completed_at": time.Now().UTC()})
		if err != nil {
			return nil, err
		}
		if ok {
			if err := s.jobs.DeleteChunks(ctx, jobID); err != nil {
				config.Logger.Warn("Could not delete staged chunks", zap.String("import_job_id", jobID.String()), zap.Error(err))
			}
			job, err = s.jobs.GetByID(ctx, jobID)
			if err != nil {
				return nil, err
			}
			s.publisher.PublishImportProgress(ProgressEvent{
				ImportJobID: job.ID,
				UserID:      job.UserID,
				Status:      job.Status,
				TotalRows:   job.TotalRows,
				Final:       true,
				Progress:    repositories.ProgressOf(job),
			})
			config.Logger.Info("Pending import job cancelled", zap.String("import_job_id", jobID.String()))
			return job, nil
		}
		// The worker picked it up in the meantime.
		if job, err = s.jobs.GetByID(ctx, jobID); err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, ErrJobFinished
		}
	}

	if err := s.cancel.RequestCancel(ctx, jobID); err != nil {
		return nil, fmt.Errorf("request cancel: %w", err)
	}
	config.Logger.Info("Cancellation requested for running import job", zap.String("import_job_id", jobID.String()))
	return job, nil
}

func (s *IngestionService) Status(ctx context.Context, userID, jobID uuid.UUID) (*models.ImportJob, error) {
	return s.jobs.GetForUser(ctx, userID, jobID)
}

func (s *IngestionService) List(ctx context.Context, userID uuid.UUID, filters map[string]string, limit, offset int) ([]models.ImportJob, int64, error) {
	return s.jobs.GetFilteredJobs(ctx, userID, filters, limit, offset)
}

// Errors returns the recorded row failures ordered by row number.
func (s *IngestionService) Errors(ctx context.Context, userID, jobID uuid.UUID, limit, offset int) ([]requests.RowError, int64, error) {
	if _, err := s.jobs.GetForUser(ctx, userID, jobID); err != nil {
		return nil, 0, err
	}
	rows, total, err := s.jobs.GetErrors(ctx, jobID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	out := make([]requests.RowError, 0, len(rows))
	for _, r := range rows {
		item := requests.RowError{RowNumber: r.RowNumber, ErrorType: r.ErrorType, ErrorMessage: r.ErrorMessage}
		if len(r.RowData) > 0 {
			_ = json.Unmarshal(r.RowData, &item.RowData)
		}
		out = append(out, item)
	}
	return out, total, nil
}

// ReportFile returns the path of the error report, building it when the
// stored one is missing or expired.
func (s *IngestionService) ReportFile(ctx context.Context, userID, jobID uuid.UUID) (string, error) {
	job, err := s.jobs.GetForUser(ctx, userID, jobID)
	if err != nil {
		return "", err
	}
	if job.FailedRows == 0 {
		return "", ErrNoReport
	}
	if job.ReportPath != nil {
		if _, err := os.Stat(*job.ReportPath); err == nil {
			return *job.ReportPath, nil
		}
	}
	if s.reports == nil {
		return "", ErrNoReport
	}
	return s.reports.BuildReport(ctx, job)
}

// Preview parses and validates an uploaded file without staging it.
func (s *IngestionService) Preview(ctx context.Context, filename string, size int64, r io.Reader, wire map[string]string) (*requests.PreviewResponse, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, invalid("only .csv files can be imported")
	}

	parser := reviewcsv.NewParser(reviewcsv.Options{MaxBytes: s.cfg.MaxFileBytes})
	headers, rows, err := parser.ParseAll(ctx, r, size)
	if err != nil {
		return nil, err
	}
	if limit := reviewcsv.DetectSchema(headers).MaxBytes(s.cfg.SimpleMaxFileBytes, s.cfg.MaxFileBytes); size > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", reviewcsv.ErrFileTooLarge, size, limit)
	}

	mapping := reviewcsv.ProposeMapping(headers)
	if len(wire) > 0 {
		if mapping, err = reviewcsv.ResolveWire(headers, wire); err != nil {
			return nil, invalid("%v", err)
		}
	}

	wireMapping, err := mapping.ToWire()
	if err != nil {
		return nil, invalid("%v", err)
	}

	resp := &requests.PreviewResponse{
		Filename:        filepath.Base(filename),
		Headers:         headers,
		ProposedMapping: wireMapping,
		TotalRows:       len(rows),
	}
	for _, f := range mapping.Missing() {
		resp.MissingFields = append(resp.MissingFields, string(f))
	}
	for i := 0; i < len(rows) && i < 5; i++ {
		resp.SampleRows = append(resp.SampleRows, rows[i].Cells)
	}

	if len(resp.MissingFields) > 0 {
		resp.BlockedReason = "map the required fields: " + strings.Join(resp.MissingFields, ", ")
		return resp, nil
	}

	summary := reviewcsv.NewValidator(mapping).Summarize(slices.Values(rows), 10)
	policy := reviewcsv.Policy{MaxErrorRate: s.cfg.MaxErrorRate}

	resp.AcceptedRows = summary.AcceptedRows
	resp.RejectedRows = summary.RejectedRows
	resp.Warnings = summary.Warnings
	resp.Messages = summary.Messages()
	resp.BlockedReason = policy.Reason(summary)
	resp.CanImport = resp.BlockedReason == ""
	return resp, nil
}

func (s *IngestionService) checkRows(rows [][]string, rowNumbers []int) error {
	if len(rows) == 0 {
		return invalid("csv_rows must not be empty")
	}
	if s.cfg.MaxChunkRows > 0 && len(rows) > s.cfg.MaxChunkRows {
		return invalid("at most %d rows per chunk, got %d", s.cfg.MaxChunkRows, len(rows))
	}
	if len(rowNumbers) > 0 && len(rowNumbers) != len(rows) {
		return invalid("row_numbers has %d entries for %d rows", len(rowNumbers), len(rows))
	}
	return nil
}

// resolveMapping accepts the wire mapping or, when none was sent, the
// proposal for headers. The result must cover every required field.
func resolveMapping(headers []string, wire map[string]string) (reviewcsv.ColumnMapping, error) {
	mapping := reviewcsv.ProposeMapping(headers)
	if len(wire) > 0 {
		var err error
		if mapping, err = reviewcsv.ResolveWire(headers, wire); err != nil {
			return nil, invalid("%v", err)
		}
	}
	if err := mapping.Check(headers); err != nil {
		return nil, invalid("%v", err)
	}
	return mapping, nil
}

func generatedHeaders(rows [][]string) []string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	out := make([]string, width)
	for i := range out {
		out[i] = fmt.Sprintf("column_%d", i+1)
	}
	return out
}

// buildChunk numbers rows from firstRow unless the caller sent explicit row
// numbers, which keep the ordinals of the original file.
func buildChunk(index, firstRow int, rows [][]string, rowNumbers []int) (*models.ImportChunk, error) {
	staged := make([]models.StagedRow, len(rows))
	for i, values := range rows {
		n := firstRow + i
		if len(rowNumbers) > 0 {
			n = rowNumbers[i]
		}
		if n <= 0 {
			return nil, invalid("row numbers start at 1, got %d", n)
		}
		staged[i] = models.StagedRow{RowNumber: n, Values: values}
	}
	raw, err := json.Marshal(staged)
	if err != nil {
		return nil, err
	}
	return &models.ImportChunk{
		ChunkIndex: index,
		FirstRow:   staged[0].RowNumber,
		RowCount:   len(staged),
		Rows:       raw,
	}, nil
}
