package importclient

import (
	"context"
	"testing"
	"time"

	"review-hub-backend/db/models"
	"review-hub-backend/imports/repositories"
	"review-hub-backend/imports/services"
	"review-hub-backend/token"
	"review-hub-backend/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSWatcherFollowsPushedProgress(t *testing.T) {
	maker, err := token.NewPasetoMaker("12345678901234567890123456789012")
	require.NoError(t, err)
	owner := uuid.New()
	tok, err := maker.CreateToken(owner, "owner@hotel.test", time.Hour)
	require.NoError(t, err)

	hub := websocket.NewHub()
	go hub.Run()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.NewWsHandler(hub, maker).HandleWebSocket)
	base := serve(t, app)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobID := uuid.New()
	publisher := services.NewHubPublisher(hub, time.Millisecond)
	go func() {
		if !assert.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 5*time.Second, 10*time.Millisecond) {
			cancel()
			return
		}
		publisher.PublishImportProgress(services.ProgressEvent{
			ImportJobID: uuid.New(), UserID: owner, Status: models.ImportJobProcessing, TotalRows: 10,
		})
		publisher.PublishImportProgress(services.ProgressEvent{
			ImportJobID: jobID, UserID: owner, Status: models.ImportJobProcessing, TotalRows: 4,
			Progress: repositories.Progress{ProcessedRows: 2},
		})
		time.Sleep(5 * time.Millisecond)
		publisher.PublishImportProgress(services.ProgressEvent{
			ImportJobID: jobID, UserID: owner, Status: models.ImportJobCompleted, TotalRows: 4, Final: true,
			Progress: repositories.Progress{ProcessedRows: 4, ImportedRows: 4, InsertedRows: 4},
		})
	}()

	var updates []Update
	err = WSWatcher{BaseURL: base, Token: tok}.Watch(ctx, jobID, func(u Update) {
		updates = append(updates, u)
	})
	require.NoError(t, err)

	require.Len(t, updates, 2)
	assert.Equal(t, float64(50), updates[0].Percent())
	assert.False(t, updates[0].Final)
	assert.Equal(t, models.ImportJobCompleted, updates[1].Status)
	assert.True(t, updates[1].Final)
}

func TestWSWatcherSeesJobFinishedBeforeConnect(t *testing.T) {
	maker, err := token.NewPasetoMaker("12345678901234567890123456789012")
	require.NoError(t, err)
	owner := uuid.New()
	tok, err := maker.CreateToken(owner, "owner@hotel.test", time.Hour)
	require.NoError(t, err)

	hub := websocket.NewHub()
	go hub.Run()

	jobID := uuid.New()
	publisher := services.NewHubPublisher(hub, time.Millisecond)
	// Nobody is connected yet, so this push is lost.
	publisher.PublishImportProgress(services.ProgressEvent{
		ImportJobID: jobID, UserID: owner, Status: models.ImportJobCompleted, TotalRows: 2, Final: true,
	})

	snapshot := func(_ context.Context, userID, id uuid.UUID) (*websocket.WebSocketMessage, error) {
		if userID != owner || id != jobID {
			return nil, nil
		}
		return &websocket.WebSocketMessage{
			Type:     websocket.MessageTypeImportFinished,
			ThreadID: id.String(),
			Payload: services.ProgressEvent{
				ImportJobID: id, Status: models.ImportJobCompleted, TotalRows: 2, Final: true,
				Progress: repositories.Progress{ProcessedRows: 2, ImportedRows: 2, InsertedRows: 2},
			},
		}, nil
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.NewWsHandler(hub, maker).WithJobSnapshot(snapshot).HandleWebSocket)
	base := serve(t, app)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	var updates []Update
	err = WSWatcher{BaseURL: base, Token: tok, ReadTimeout: 5 * time.Second}.Watch(ctx, jobID, func(u Update) {
		updates = append(updates, u)
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, updates, 1)
	assert.True(t, updates[0].Final)
	assert.Equal(t, models.ImportJobCompleted, updates[0].Status)
	assert.Equal(t, float64(100), updates[0].Percent())
}

func TestWSWatcherRejectsBadToken(t *testing.T) {
	maker, err := token.NewPasetoMaker("12345678901234567890123456789012")
	require.NoError(t, err)
	hub := websocket.NewHub()
	go hub.Run()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.NewWsHandler(hub, maker).HandleWebSocket)
	base := serve(t, app)

	err = WSWatcher{BaseURL: base, Token: "nope"}.Watch(context.Background(), uuid.New(), func(Update) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
