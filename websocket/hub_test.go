package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendToUserRoutesByUserAndJob(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	owner, stranger := uuid.New(), uuid.New()
	job, otherJob := uuid.New().String(), uuid.New().String()

	all := &Client{UserID: owner, Hub: hub, Send: make(chan WebSocketMessage, 4)}
	scoped := &Client{UserID: owner, Hub: hub, Send: make(chan WebSocketMessage, 4), Threads: map[string]bool{otherJob: true}}
	foreign := &Client{UserID: stranger, Hub: hub, Send: make(chan WebSocketMessage, 4)}
	for _, c := range []*Client{all, scoped, foreign} {
		hub.register <- c
	}
	require.Eventually(t, func() bool { return hub.GetClientCount() == 3 }, time.Second, 5*time.Millisecond)

	hub.SendToUser(owner, WebSocketMessage{Type: MessageTypeImportProgress, ThreadID: job})

	assert.Len(t, all.Send, 1)
	assert.Len(t, scoped.Send, 0)
	assert.Len(t, foreign.Send, 0)

	scoped.SubscribeToThread(job)
	hub.SendToUser(owner, WebSocketMessage{Type: MessageTypeImportFinished, ThreadID: job})
	assert.Len(t, scoped.Send, 1)
}

func TestSendToUserDropsSlowClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	user := uuid.New()
	slow := &Client{UserID: user, Hub: hub, Send: make(chan WebSocketMessage)}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.SendToUser(user, WebSocketMessage{Type: MessageTypeImportProgress})
	assert.Equal(t, 0, hub.GetClientCount())
}
