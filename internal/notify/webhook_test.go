package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWithoutURLIsNop(t *testing.T) {
	n := New("", 0, zap.NewNop())
	assert.IsType(t, Nop{}, n)
	n.Notify(EventProjectCreated, uuid.New(), nil)
}

func TestSendPostsEventPayload(t *testing.T) {
	projectID := uuid.New()
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := New(srv.URL, time.Second, zap.NewNop()).(*Webhook)
	err := w.Send(context.Background(), EventNoteAttachedToProject, projectID, map[string]any{"note_id": "n1"})
	require.NoError(t, err)

	body := <-received
	assert.Equal(t, "note_attached_to_project", body["event"])
	assert.Equal(t, projectID.String(), body["project_id"])
	assert.Equal(t, "n1", body["note_id"])
}

func TestNotifyFailureIsLoggedNotReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	n := New(srv.URL, time.Second, zap.New(core))
	n.Notify(EventProjectTriggered, uuid.New(), nil)

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("webhook delivery failed").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	w := New(srv.URL, 50*time.Millisecond, zap.NewNop()).(*Webhook)
	err := w.Send(context.Background(), EventProjectUpdated, uuid.New(), nil)
	assert.Error(t, err)
}
