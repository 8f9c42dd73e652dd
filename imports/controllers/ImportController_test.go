package controllers_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/imports/repositories"
	"review-hub-backend/imports/routes"
	"review-hub-backend/imports/services"
	integrationRepositories "review-hub-backend/integrations/repositories"
	"review-hub-backend/internal/testutil"
	"review-hub-backend/middleware"
	"review-hub-backend/token"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueStub struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (q *queueStub) EnqueueImport(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return nil
}

type cancelStub struct{ requested []uuid.UUID }

func (c *cancelStub) RequestCancel(_ context.Context, id uuid.UUID) error {
	c.requested = append(c.requested, id)
	return nil
}
func (c *cancelStub) IsCancelled(context.Context, uuid.UUID) (bool, error) { return false, nil }
func (c *cancelStub) Clear(context.Context, uuid.UUID) error               { return nil }

type apiFixture struct {
	app         *fiber.App
	queue       *queueStub
	token       string
	otherToken  string
	integration uuid.UUID
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.NewDB(t)

	maker, err := token.NewPasetoMaker("12345678901234567890123456789012")
	require.NoError(t, err)
	userID := uuid.New()
	tok, err := maker.CreateToken(userID, "owner@hotel.test", time.Hour)
	require.NoError(t, err)
	other, err := maker.CreateToken(uuid.New(), "other@hotel.test", time.Hour)
	require.NoError(t, err)

	integrations := integrationRepositories.NewIntegrationRepository(db)
	integration := &models.Integration{UserID: userID, Name: "Front desk export"}
	require.NoError(t, integrations.Create(context.Background(), integration))

	cfg := config.DefaultIngestionConfig()
	cfg.ReportDir = t.TempDir()
	queue := &queueStub{}
	svc := services.NewIngestionService(repositories.NewImportJobRepository(db), integrations, queue, &cancelStub{}, nil, nil, cfg)

	app := fiber.New(fiber.Config{JSONEncoder: json.Marshal, JSONDecoder: json.Unmarshal})
	routes.ImportRouterInit(app, &middleware.AppContext{PasetoMaker: maker}, svc)

	return &apiFixture{app: app, queue: queue, token: tok, otherToken: other, integration: integration.ID}
}

func (f *apiFixture) do(t *testing.T, method, path, tok string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func (f *apiFixture) createBody(rows [][]string, total int) map[string]any {
	return map[string]any{
		"integration_id": f.integration,
		"filename":       "reviews.csv",
		"file_size":      512,
		"headers":        []string{"provider", "rating", "created_at", "text"},
		"csv_rows":       rows,
		"total_rows":     total,
	}
}

var rows = [][]string{
	{"google", "5", "2024-01-15", "Great stay"},
	{"booking", "4", "2024-01-16", "Nice"},
}

func TestCreateImportRequiresToken(t *testing.T) {
	f := newAPI(t)
	resp, _ := f.do(t, http.MethodPost, "/api/v1/imports", "", f.createBody(rows, 0))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCreateImportAcceptsAndQueues(t *testing.T) {
	f := newAPI(t)

	resp, body := f.do(t, http.MethodPost, "/api/v1/imports", f.token, f.createBody(rows, 0))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	id, err := uuid.Parse(body["import_job_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, f.queue.ids)

	resp, body = f.do(t, http.MethodGet, "/api/v1/imports/"+id.String(), f.token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "pending", data["status"])
	assert.EqualValues(t, 2, data["total_rows"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/imports/"+id.String(), f.otherToken, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCreateImportMapsErrors(t *testing.T) {
	f := newAPI(t)

	for name, tc := range map[string]struct {
		mutate func(map[string]any)
		status int
	}{
		"wrong extension":     {func(b map[string]any) { b["filename"] = "reviews.xlsx" }, fiber.StatusBadRequest},
		"missing rating":      {func(b map[string]any) { b["headers"] = []string{"provider", "points", "created_at", "text"} }, fiber.StatusBadRequest},
		"too large":           {func(b map[string]any) { b["file_size"] = 60 << 20 }, fiber.StatusRequestEntityTooLarge},
		"unknown integration": {func(b map[string]any) { b["integration_id"] = uuid.New() }, fiber.StatusNotFound},
	} {
		t.Run(name, func(t *testing.T) {
			body := f.createBody(rows, 0)
			tc.mutate(body)
			resp, out := f.do(t, http.MethodPost, "/api/v1/imports", f.token, body)
			assert.Equal(t, tc.status, resp.StatusCode, out)
			assert.Equal(t, false, out["success"])
		})
	}
}

func TestChunkUploadFlow(t *testing.T) {
	f := newAPI(t)

	resp, body := f.do(t, http.MethodPost, "/api/v1/imports", f.token, f.createBody(rows[:1], 2))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	id := body["import_job_id"].(string)
	assert.Empty(t, f.queue.ids)

	chunk := map[string]any{"chunk_index": 1, "csv_rows": rows[1:]}
	resp, body = f.do(t, http.MethodPost, "/api/v1/imports/"+id+"/chunks", f.token, chunk)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["data"].(map[string]any)["sealed"])
	assert.Len(t, f.queue.ids, 1)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/imports/"+id+"/chunks", f.token, chunk)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/imports/"+id+"/chunks", f.token, map[string]any{"chunk_index": 2, "csv_rows": rows[1:]})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/imports/not-a-uuid/chunks", f.token, chunk)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCancelPendingImport(t *testing.T) {
	f := newAPI(t)

	_, body := f.do(t, http.MethodPost, "/api/v1/imports", f.token, f.createBody(rows[:1], 2))
	id := body["import_job_id"].(string)

	resp, body := f.do(t, http.MethodPost, "/api/v1/imports/"+id+"/cancel", f.token, nil)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "cancelled", body["data"].(map[string]any)["status"])

	resp, _ = f.do(t, http.MethodPost, "/api/v1/imports/"+id+"/cancel", f.token, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/imports/"+id+"/report", f.token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListImports(t *testing.T) {
	f := newAPI(t)
	for range 3 {
		resp, _ := f.do(t, http.MethodPost, "/api/v1/imports", f.token, f.createBody(rows, 0))
		require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodGet, "/api/v1/imports?page_size=2", f.token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	page := body["data"].(map[string]any)
	assert.Len(t, page["items"], 2)
	assert.EqualValues(t, 3, page["pagination"].(map[string]any)["total_items"])

	resp, body = f.do(t, http.MethodGet, "/api/v1/imports", f.otherToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, body["data"].(map[string]any)["items"])
}

func TestPreviewUpload(t *testing.T) {
	f := newAPI(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "reviews.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("date,platform,rating,text\n2024-01-15,google,5,ok\nnope,google,5,bad\n"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/preview", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Data struct {
			TotalRows    int      `json:"total_rows"`
			RejectedRows int      `json:"rejected_rows"`
			Messages     []string `json:"messages"`
			CanImport    bool     `json:"can_import"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Data.TotalRows)
	assert.Equal(t, 1, out.Data.RejectedRows)
	assert.Equal(t, []string{"Row 2: Invalid date"}, out.Data.Messages)
	assert.False(t, out.Data.CanImport)
}

func TestDownloadTemplate(t *testing.T) {
	f := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/template?schema=simplified", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(raw, []byte("date,platform,rating,text,title\n")), string(raw))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "reviews_template_simplified.csv")
}
