package importclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"review-hub-backend/db/models"
	"review-hub-backend/imports/requests"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Update is one progress observation of a running job.
type Update struct {
	Status        models.ImportJobStatus `json:"status"`
	TotalRows     int                    `json:"total_rows"`
	ProcessedRows int                    `json:"processed_rows"`
	FailedRows    int                    `json:"failed_rows"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Final         bool                   `json:"final"`
}

// Percent is the processed share of the job, 0 while the total is unknown.
func (u Update) Percent() float64 {
	if u.TotalRows <= 0 {
		return 0
	}
	return min(float64(u.ProcessedRows)/float64(u.TotalRows)*100, 100)
}

func updateOf(s *requests.ImportStatus) Update {
	u := Update{
		Status:        s.Status,
		TotalRows:     s.TotalRows,
		ProcessedRows: s.ProcessedRows,
		FailedRows:    s.FailedRows,
		Final:         s.Status.IsTerminal(),
	}
	if s.ErrorMessage != nil {
		u.ErrorMessage = *s.ErrorMessage
	}
	return u
}

// Watcher follows a job until it reaches a terminal status.
type Watcher interface {
	Watch(ctx context.Context, jobID uuid.UUID, onUpdate func(Update)) error
}

// PollWatcher asks for the job status on a fixed interval.
type PollWatcher struct {
	Submitter Submitter
	Interval  time.Duration
}

func (w PollWatcher) Watch(ctx context.Context, jobID uuid.UUID, onUpdate func(Update)) error {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := w.Submitter.Status(ctx, jobID)
		if err != nil {
			var apiErr *APIError
			if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
				return err
			}
		} else {
			u := updateOf(status)
			onUpdate(u)
			if u.Final {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type wsFrame struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	ThreadID string          `json:"threadId"`
}

// WSWatcher listens on the /ws endpoint for pushed progress of one job.
type WSWatcher struct {
	BaseURL string
	Token   string
	// ReadTimeout bounds the wait for a single frame. The server pings every
	// 30 seconds.
	ReadTimeout time.Duration
}

func (w WSWatcher) url(jobID uuid.UUID) (string, error) {
	u, err := url.Parse(w.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := url.Values{}
	q.Set("token", w.Token)
	q.Set("job", jobID.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (w WSWatcher) Watch(ctx context.Context, jobID uuid.UUID, onUpdate func(Update)) error {
	wsURL, err := w.url(jobID)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	timeout := w.ReadTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	want := jobID.String()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		var frame wsFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.ThreadID != want {
			continue
		}
		switch frame.Type {
		case "IMPORT_PROGRESS", "IMPORT_FINISHED":
		default:
			continue
		}

		var u Update
		if err := json.Unmarshal(frame.Payload, &u); err != nil {
			return fmt.Errorf("decode progress: %w", err)
		}
		if frame.Type == "IMPORT_FINISHED" {
			u.Final = true
		}
		onUpdate(u)
		if u.Final {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		}
	}
}
