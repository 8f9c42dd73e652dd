package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"review-hub-backend/db/models"
	"review-hub-backend/imports/repositories"
	"review-hub-backend/websocket"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ProgressEvent is pushed to the job owner while a job runs.
type ProgressEvent struct {
	ImportJobID  uuid.UUID              `json:"import_job_id"`
	UserID       uuid.UUID              `json:"-"`
	Status       models.ImportJobStatus `json:"status"`
	TotalRows    int                    `json:"total_rows"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Final        bool                   `json:"final"`
	repositories.Progress
}

type ProgressPublisher interface {
	PublishImportProgress(ev ProgressEvent)
}

type nopPublisher struct{}

func (nopPublisher) PublishImportProgress(ProgressEvent) {}

// HubPublisher forwards events to the owner's websocket connections, at most
// one intermediate event per interval and job. Final events always go out.
type HubPublisher struct {
	hub   *websocket.Hub
	every time.Duration

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

func NewHubPublisher(hub *websocket.Hub, every time.Duration) *HubPublisher {
	return &HubPublisher{hub: hub, every: every, limiters: make(map[uuid.UUID]*rate.Limiter)}
}

func (p *HubPublisher) PublishImportProgress(ev ProgressEvent) {
	if !p.allow(ev) {
		return
	}

	p.hub.SendToUser(ev.UserID, progressMessage(ev))
}

// JobSnapshot renders the stored state of a job the way the publisher would
// push it. Unknown jobs yield no message.
func JobSnapshot(jobs repositories.ImportJobRepository) websocket.JobSnapshot {
	return func(ctx context.Context, userID, jobID uuid.UUID) (*websocket.WebSocketMessage, error) {
		job, err := jobs.GetForUser(ctx, userID, jobID)
		if errors.Is(err, repositories.ErrJobNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		msg := progressMessage(eventOf(job))
		return &msg, nil
	}
}

func eventOf(job *models.ImportJob) ProgressEvent {
	ev := ProgressEvent{
		ImportJobID: job.ID,
		UserID:      job.UserID,
		Status:      job.Status,
		TotalRows:   job.TotalRows,
		Final:       job.Status.IsTerminal(),
		Progress:    repositories.ProgressOf(job),
	}
	if job.ErrorMessage != nil {
		ev.ErrorMessage = *job.ErrorMessage
	}
	return ev
}

func progressMessage(ev ProgressEvent) websocket.WebSocketMessage {
	msgType := websocket.MessageTypeImportProgress
	if ev.Final {
		msgType = websocket.MessageTypeImportFinished
	}
	return websocket.WebSocketMessage{
		Type:      msgType,
		Payload:   ev,
		Timestamp: time.Now(),
		ThreadID:  ev.ImportJobID.String(),
	}
}

func (p *HubPublisher) allow(ev ProgressEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Final {
		delete(p.limiters, ev.ImportJobID)
		return true
	}
	lim, ok := p.limiters[ev.ImportJobID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.every), 1)
		p.limiters[ev.ImportJobID] = lim
	}
	return lim.Allow()
}
