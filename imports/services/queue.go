package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeProcessImport = "import:process"
	ImportQueue       = "imports"
)

type ProcessImportPayload struct {
	ImportJobID uuid.UUID `json:"import_job_id"`
}

// NewProcessImportTask builds the task for a sealed job. The job id doubles
// as the task id so a job is queued at most once, and retries are disabled
// because the job record carries the outcome. timeout bounds the handler
// context; asynq falls back to 30 minutes when it is zero.
func NewProcessImportTask(jobID uuid.UUID, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessImportPayload{ImportJobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessImport, payload, processImportOptions(jobID, timeout)...), nil
}

func processImportOptions(jobID uuid.UUID, timeout time.Duration) []asynq.Option {
	opts := []asynq.Option{
		asynq.TaskID(jobID.String()),
		asynq.MaxRetry(0),
		asynq.Queue(ImportQueue),
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return opts
}

func ParseProcessImportPayload(t *asynq.Task) (ProcessImportPayload, error) {
	var p ProcessImportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", TypeProcessImport, err)
	}
	if p.ImportJobID == uuid.Nil {
		return p, fmt.Errorf("%s payload without job id", TypeProcessImport)
	}
	return p, nil
}

// Enqueuer hands sealed jobs to the worker pool.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, jobID uuid.UUID) error
}

type AsynqEnqueuer struct {
	client  *asynq.Client
	timeout time.Duration
}

func NewAsynqEnqueuer(client *asynq.Client, timeout time.Duration) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client, timeout: timeout}
}

func (e *AsynqEnqueuer) EnqueueImport(ctx context.Context, jobID uuid.UUID) error {
	task, err := NewProcessImportTask(jobID, e.timeout)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}
