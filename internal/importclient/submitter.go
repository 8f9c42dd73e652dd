package importclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"review-hub-backend/imports/requests"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Submitter is the server side of an import as seen by the client.
type Submitter interface {
	CreateJob(ctx context.Context, req requests.CreateImportRequest) (uuid.UUID, error)
	AppendChunk(ctx context.Context, jobID uuid.UUID, req requests.AppendChunkRequest) error
	Status(ctx context.Context, jobID uuid.UUID) (*requests.ImportStatus, error)
	// Errors returns one page of row failures ordered by row number.
	Errors(ctx context.Context, jobID uuid.UUID, page, pageSize int) ([]requests.RowError, int64, error)
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

// IsRetryable reports whether the request may succeed when sent again.
func (e *APIError) IsRetryable() bool {
	return e.Status == fiber.StatusServiceUnavailable || e.Status == fiber.StatusTooManyRequests || e.Status >= 500
}

type envelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Error       string          `json:"error"`
	ImportJobID uuid.UUID       `json:"import_job_id"`
	Data        json.RawMessage `json:"data"`
}

type errorsPage struct {
	Items      []requests.RowError `json:"items"`
	Pagination struct {
		TotalItems int64 `json:"total_items"`
	} `json:"pagination"`
}

// HTTPSubmitter talks to the /api/v1/imports endpoints with fiber's client.
type HTTPSubmitter struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *fiber.Client
}

func NewHTTPSubmitter(baseURL, token string, timeout time.Duration) *HTTPSubmitter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSubmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		client:  &fiber.Client{JSONEncoder: json.Marshal, JSONDecoder: json.Unmarshal},
	}
}

func (s *HTTPSubmitter) BaseURL() string { return s.baseURL }
func (s *HTTPSubmitter) Token() string   { return s.token }

// do sends one request. The agent has no context support, so ctx is only
// checked before sending and bounds the timeout.
func (s *HTTPSubmitter) do(ctx context.Context, a *fiber.Agent, body any) (*envelope, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(a)
		return nil, err
	}

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	a.Timeout(timeout)
	a.Set(fiber.HeaderAuthorization, "Bearer "+s.token)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if body != nil {
		a.JSON(body)
	}

	code, raw, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("request failed: %w", errors.Join(errs...))
	}

	var env envelope
	var decodeErr error
	if len(raw) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}
	if code < 200 || code >= 300 {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &env, &APIError{Status: code, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response (%d): %w", code, decodeErr)
	}
	return &env, nil
}

func (s *HTTPSubmitter) CreateJob(ctx context.Context, req requests.CreateImportRequest) (uuid.UUID, error) {
	env, err := s.do(ctx, s.client.Post(s.baseURL+"/api/v1/imports"), req)
	if err != nil {
		return uuid.Nil, err
	}
	if env.ImportJobID == uuid.Nil {
		return uuid.Nil, errors.New("server did not return an import job id")
	}
	return env.ImportJobID, nil
}

func (s *HTTPSubmitter) AppendChunk(ctx context.Context, jobID uuid.UUID, req requests.AppendChunkRequest) error {
	_, err := s.do(ctx, s.client.Post(s.baseURL+"/api/v1/imports/"+jobID.String()+"/chunks"), req)
	return err
}

func (s *HTTPSubmitter) Status(ctx context.Context, jobID uuid.UUID) (*requests.ImportStatus, error) {
	env, err := s.do(ctx, s.client.Get(s.baseURL+"/api/v1/imports/"+jobID.String()), nil)
	if err != nil {
		return nil, err
	}
	var status requests.ImportStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		return nil, fmt.Errorf("decode import status: %w", err)
	}
	return &status, nil
}

func (s *HTTPSubmitter) Errors(ctx context.Context, jobID uuid.UUID, page, pageSize int) ([]requests.RowError, int64, error) {
	url := fmt.Sprintf("%s/api/v1/imports/%s/errors?page=%d&page_size=%d", s.baseURL, jobID, page, pageSize)
	env, err := s.do(ctx, s.client.Get(url), nil)
	if err != nil {
		return nil, 0, err
	}
	var p errorsPage
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, 0, fmt.Errorf("decode import errors: %w", err)
	}
	return p.Items, p.Pagination.TotalItems, nil
}
