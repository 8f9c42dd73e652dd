package services

import (
	"context"
	"fmt"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/imports/repositories"
	"review-hub-backend/metrics"
	"review-hub-backend/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	staleSweepSchedule    = "@every 10m"
	reportCleanupSchedule = "0 1 * * *"
)

// Sweeper runs the periodic maintenance of import jobs.
type Sweeper struct {
	jobs      repositories.ImportJobRepository
	queue     Enqueuer
	publisher ProgressPublisher
	cfg       config.IngestionConfig
	cron      *cron.Cron
}

func NewSweeper(jobs repositories.ImportJobRepository, queue Enqueuer, publisher ProgressPublisher, cfg config.IngestionConfig) *Sweeper {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Sweeper{jobs: jobs, queue: queue, publisher: publisher, cfg: cfg}
}

// Start schedules the stale job sweep and the daily report cleanup.
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc(staleSweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.SweepStale(ctx, time.Now().UTC()); err != nil {
			config.Logger.Error("Stale import sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule stale sweep: %w", err)
	}

	if _, err := s.cron.AddFunc(reportCleanupSchedule, func() {
		config.Logger.Info("Running scheduled report cleanup")
		if _, err := utils.CleanupExpiredFiles(s.cfg.ReportDir, s.cfg.ReportTTL); err != nil {
			config.Logger.Error("Report cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule report cleanup: %w", err)
	}

	s.cron.Start()
	config.Logger.Info("Import maintenance scheduled",
		zap.String("stale_sweep", staleSweepSchedule),
		zap.String("report_cleanup", reportCleanupSchedule),
		zap.Duration("stale_after", s.cfg.StaleAfter),
	)
	return nil
}

// Stop waits for running maintenance to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// SweepStale settles jobs that stopped moving before now minus StaleAfter.
// A processing job whose worker vanished fails. A pending job that was never
// sealed fails as abandoned, a sealed one is queued again. It returns the
// number of jobs it touched.
func (s *Sweeper) SweepStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.StaleAfter)
	touched := 0

	processing, err := s.jobs.FindStale(ctx, models.ImportJobProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale processing jobs: %w", err)
	}
	for i := range processing {
		job := &processing[i]
		msg := fmt.Sprintf("import stalled: no progress since %s", job.UpdatedAt.UTC().Format(time.RFC3339))
		if s.fail(ctx, job, models.ImportJobProcessing, msg) {
			touched++
		}
	}

	pending, err := s.jobs.FindStale(ctx, models.ImportJobPending, cutoff)
	if err != nil {
		return touched, fmt.Errorf("find stale pending jobs: %w", err)
	}
	for i := range pending {
		job := &pending[i]
		if job.IsSealed() {
			if err := s.queue.EnqueueImport(ctx, job.ID); err != nil {
				config.Logger.Warn("Could not re-queue sealed import job", zap.String("import_job_id", job.ID.String()), zap.Error(err))
				continue
			}
			config.Logger.Info("Re-queued sealed import job", zap.String("import_job_id", job.ID.String()))
			touched++
			continue
		}
		msg := fmt.Sprintf("upload abandoned after %d of %d rows", job.StagedRows, job.TotalRows)
		if s.fail(ctx, job, models.ImportJobPending, msg) {
			touched++
		}
	}
	return touched, nil
}

func (s *Sweeper) fail(ctx context.Context, job *models.ImportJob, from models.ImportJobStatus, msg string) bool {
	ok, err := s.jobs.TransitionFrom(ctx, job.ID, []models.ImportJobStatus{from}, models.ImportJobFailed, map[string]interface{}{
		"error_message": msg,
		"completed_at":  time.Now().UTC(),
	})
	if err != nil {
		config.Logger.Error("Could not fail stale import job", zap.String("import_job_id", job.ID.String()), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	if err := s.jobs.DeleteChunks(ctx, job.ID); err != nil {
		config.Logger.Warn("Could not delete staged chunks", zap.String("import_job_id", job.ID.String()), zap.Error(err))
	}
	metrics.ImportJobs.WithLabelValues(string(models.ImportJobFailed)).Inc()
	config.Logger.Warn("Stale import job failed",
		zap.String("import_job_id", job.ID.String()),
		zap.String("previous_status", string(from)),
		zap.String("error_message", msg),
	)

	s.publisher.PublishImportProgress(ProgressEvent{
		ImportJobID:  job.ID,
		UserID:       job.UserID,
		Status:       models.ImportJobFailed,
		TotalRows:    job.TotalRows,
		ErrorMessage: msg,
		Final:        true,
		Progress:     repositories.ProgressOf(job),
	})
	return true
}
