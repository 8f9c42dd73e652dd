package importclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/imports/requests"
	"review-hub-backend/internal/reviewcsv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultChunkSize = 1000
	maxMessages      = 10

	// Progress bands of the three phases.
	validateShare = 30.0
	submitShare   = 40.0
	watchShare    = 30.0
)

// Results is what the user sees once the server job is over.
type Results struct {
	Inserted int
	Updated  int
	// Skipped counts unchanged rows and rows rejected locally.
	Skipped   int
	Errors    int
	Rejected  int
	JobStatus models.ImportJobStatus
	Messages  []string
}

type Options struct {
	IntegrationID uuid.UUID
	ChunkSize     int
	Policy        reviewcsv.Policy
	// Overrides replace proposed mapping entries. An empty header ignores
	// the field.
	Overrides    map[reviewcsv.Field]string
	NotifyEmail  string
	MaxBytes     int64
	PollInterval time.Duration
}

// Source is a file that can be read more than once.
type Source struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

func FileSource(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, err
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%s is a directory", path)
	}
	return Source{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Orchestrator runs one import through the store: validate locally, submit
// the accepted rows, then follow the job.
type Orchestrator struct {
	store     *Store
	submitter Submitter
	watcher   Watcher
	opts      Options
}

// NewOrchestrator wires the pieces. watcher may be nil, in which case the
// job is polled.
func NewOrchestrator(store *Store, submitter Submitter, watcher Watcher, opts Options) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Orchestrator{store: store, submitter: submitter, watcher: watcher, opts: opts}
}

func (o *Orchestrator) Store() *Store { return o.store }

// Run imports src. Every error also moves the store to the failed stage.
func (o *Orchestrator) Run(ctx context.Context, src Source) (_ *Results, err error) {
	defer func() {
		if err != nil {
			_ = o.store.Dispatch(Failed{Err: err})
		}
	}()

	if err := o.store.Dispatch(FileSelected{Filename: src.Name, Size: src.Size}); err != nil {
		return nil, err
	}

	headers, summary, err := o.validate(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := o.store.Dispatch(ValidationDone{Summary: summary}); err != nil {
		return nil, err
	}
	if err := o.store.Dispatch(ImportStarted{Policy: o.opts.Policy}); err != nil {
		return nil, err
	}

	mapping := o.store.GetState().Mapping
	jobID, err := o.submit(ctx, src, headers, mapping, summary)
	if err != nil {
		return nil, err
	}

	status, err := o.follow(ctx, jobID)
	if err != nil {
		return nil, err
	}

	results, err := o.collect(ctx, status, summary)
	if err != nil {
		return nil, err
	}
	if err := o.store.Dispatch(ImportFinished{Results: *results}); err != nil {
		return nil, err
	}
	return results, nil
}

// Validate runs the local pass only and leaves the store in preview.
func (o *Orchestrator) Validate(ctx context.Context, src Source) (_ reviewcsv.Summary, err error) {
	defer func() {
		if err != nil {
			_ = o.store.Dispatch(Failed{Err: err})
		}
	}()
	if err := o.store.Dispatch(FileSelected{Filename: src.Name, Size: src.Size}); err != nil {
		return reviewcsv.Summary{}, err
	}
	_, summary, err := o.validate(ctx, src)
	if err != nil {
		return reviewcsv.Summary{}, err
	}
	return summary, o.store.Dispatch(ValidationDone{Summary: summary})
}

func (o *Orchestrator) validate(ctx context.Context, src Source) ([]string, reviewcsv.Summary, error) {
	f, err := src.Open()
	if err != nil {
		return nil, reviewcsv.Summary{}, fmt.Errorf("open %s: %w", src.Name, err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := make(chan reviewcsv.Progress, 1)
	parser := reviewcsv.NewParser(reviewcsv.Options{
		MaxBytes: o.opts.MaxBytes,
		OnProgress: func(p reviewcsv.Progress) {
			select {
			case progress <- p:
			default:
			}
		},
	})
	stream, err := parser.Stream(ctx, f, src.Size)
	if err != nil {
		return nil, reviewcsv.Summary{}, err
	}

	if err := o.store.Dispatch(HeadersParsed{Headers: stream.Headers}); err != nil {
		return nil, reviewcsv.Summary{}, err
	}
	for field, header := range o.opts.Overrides {
		if err := o.store.Dispatch(MappingChanged{Field: field, Header: header}); err != nil {
			return nil, reviewcsv.Summary{}, err
		}
	}
	if err := o.store.Dispatch(MappingConfirmed{}); err != nil {
		return nil, reviewcsv.Summary{}, err
	}

	validator := reviewcsv.NewValidator(o.store.GetState().Mapping)
	var summary reviewcsv.Summary

	var g errgroup.Group
	g.Go(func() error {
		defer close(progress)
		summary = validator.Summarize(stream.All(), maxMessages)
		return stream.Wait()
	})
	g.Go(func() error {
		for p := range progress {
			_ = o.store.Dispatch(ProgressUpdated{Percent: p.Percent() * validateShare / 100})
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, reviewcsv.Summary{}, err
	}

	_ = o.store.Dispatch(ProgressUpdated{Percent: validateShare})
	config.Logger.Debug("Local validation finished",
		zap.String("file", src.Name),
		zap.Int("total_rows", summary.TotalRows),
		zap.Int("rejected_rows", summary.RejectedRows),
		zap.Int("warnings", summary.Warnings),
	)
	return stream.Headers, summary, nil
}

// submit streams the file again and sends the accepted rows in chunks. The
// first chunk opens the job.
func (o *Orchestrator) submit(ctx context.Context, src Source, headers []string, mapping reviewcsv.ColumnMapping, summary reviewcsv.Summary) (uuid.UUID, error) {
	f, err := src.Open()
	if err != nil {
		return uuid.Nil, fmt.Errorf("open %s: %w", src.Name, err)
	}
	defer f.Close()

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := reviewcsv.NewParser(reviewcsv.Options{MaxBytes: o.opts.MaxBytes}).Stream(sctx, f, src.Size)
	if err != nil {
		return uuid.Nil, err
	}

	var (
		jobID   uuid.UUID
		chunk   int
		sent    int
		rows    [][]string
		numbers []int
	)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if jobID == uuid.Nil {
			wire, err := mapping.ToWire()
			if err != nil {
				return err
			}
			id, err := o.submitter.CreateJob(ctx, requests.CreateImportRequest{
				IntegrationID: o.opts.IntegrationID,
				Filename:      src.Name,
				FileSize:      src.Size,
				Headers:       headers,
				ColumnMapping: wire,
				CSVRows:       rows,
				RowNumbers:    numbers,
				TotalRows:     summary.AcceptedRows,
				NotifyEmail:   o.opts.NotifyEmail,
			})
			if err != nil {
				return fmt.Errorf("create import job: %w", err)
			}
			jobID = id
			if err := o.store.Dispatch(JobAccepted{JobID: id}); err != nil {
				return err
			}
		} else {
			err := o.submitter.AppendChunk(ctx, jobID, requests.AppendChunkRequest{
				ChunkIndex: chunk,
				CSVRows:    rows,
				RowNumbers: numbers,
			})
			if err != nil {
				return fmt.Errorf("append chunk %d: %w", chunk, err)
			}
		}

		chunk++
		sent += len(rows)
		rows, numbers = nil, nil
		_ = o.store.Dispatch(ProgressUpdated{
			Percent: validateShare + submitShare*float64(sent)/float64(max(summary.AcceptedRows, 1)),
		})
		return nil
	}

	for row := range stream.All() {
		if summary.IsRejected(row.Row) {
			continue
		}
		rows = append(rows, row.Cells)
		numbers = append(numbers, row.Row)
		if len(rows) >= o.opts.ChunkSize {
			if err := flush(); err != nil {
				return uuid.Nil, err
			}
		}
	}
	if err := stream.Wait(); err != nil {
		return uuid.Nil, err
	}
	if err := flush(); err != nil {
		return uuid.Nil, err
	}
	if jobID == uuid.Nil {
		return uuid.Nil, errors.New("no rows were submitted")
	}

	config.Logger.Info("Import submitted",
		zap.String("import_job_id", jobID.String()),
		zap.Int("rows", sent),
		zap.Int("chunks", chunk),
	)
	return jobID, nil
}

// follow waits for the job to finish. Pushed updates are preferred; any
// websocket failure falls back to polling.
func (o *Orchestrator) follow(ctx context.Context, jobID uuid.UUID) (*requests.ImportStatus, error) {
	onUpdate := func(u Update) {
		_ = o.store.Dispatch(ProgressUpdated{Percent: validateShare + submitShare + watchShare*u.Percent()/100})
	}

	status, err := o.submitter.Status(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("import status: %w", err)
	}
	_ = o.store.Dispatch(JobUpdated{Job: *status})

	if !status.Status.IsTerminal() {
		onUpdate(updateOf(status))
		watched := false
		if o.watcher != nil {
			if err := o.watcher.Watch(ctx, jobID, onUpdate); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				config.Logger.Warn("Progress stream unavailable, polling instead", zap.Error(err))
			} else {
				watched = true
			}
		}
		if !watched {
			poll := PollWatcher{Submitter: o.submitter, Interval: o.opts.PollInterval}
			if err := poll.Watch(ctx, jobID, onUpdate); err != nil {
				return nil, fmt.Errorf("import status: %w", err)
			}
		}

		if status, err = o.submitter.Status(ctx, jobID); err != nil {
			return nil, fmt.Errorf("import status: %w", err)
		}
		_ = o.store.Dispatch(JobUpdated{Job: *status})
	}
	return status, nil
}

func (o *Orchestrator) collect(ctx context.Context, status *requests.ImportStatus, summary reviewcsv.Summary) (*Results, error) {
	results := &Results{
		Inserted:  status.InsertedRows,
		Updated:   status.UpdatedRows,
		Skipped:   status.UnchangedRows + summary.RejectedRows,
		Errors:    status.FailedRows,
		Rejected:  summary.RejectedRows,
		JobStatus: status.Status,
		Messages:  summary.Messages(),
	}
	if status.ErrorMessage != nil && *status.ErrorMessage != "" {
		results.Messages = append(results.Messages, *status.ErrorMessage)
	}

	if status.FailedRows > 0 && len(results.Messages) < maxMessages {
		rowErrors, _, err := o.submitter.Errors(ctx, status.ID, 1, maxMessages)
		if err != nil {
			return nil, fmt.Errorf("import errors: %w", err)
		}
		for _, e := range rowErrors {
			results.Messages = append(results.Messages, fmt.Sprintf("Row %d: %s", e.RowNumber, e.ErrorMessage))
		}
	}
	if len(results.Messages) > maxMessages {
		results.Messages = results.Messages[:maxMessages]
	}
	return results, nil
}
