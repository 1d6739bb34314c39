package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rokbot/titlebot/internal/event"
	"github.com/rokbot/titlebot/internal/queue"
	"github.com/rokbot/titlebot/internal/store"
	"github.com/rokbot/titlebot/internal/title"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLog struct {
	kingdom string
	limit   int
}

func (f *fakeLog) RecentRequests(_ context.Context, kingdom string, limit int) ([]store.LogEntry, error) {
	f.kingdom, f.limit = kingdom, limit
	return []store.LogEntry{{RequestID: "r1", Kingdom: kingdom, Status: store.StatusSuccessful}}, nil
}

func newTestServer(t *testing.T) (*HttpServer, *queue.Registry, *fakeLog) {
	t.Helper()
	reg := queue.NewRegistry()
	log := &fakeLog{}
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), reg, log), reg, log
}

func TestQueuesEndpoint(t *testing.T) {
	s, reg, _ := newTestServer(t)
	reg.EnqueueUnique("1234", queue.NewRequest("u1", "alice", title.Duke, "1234", 1, 2, "c"))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queues", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []queue.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "1234", got[0].Kingdom)
	require.Len(t, got[0].Pending, 1)
	assert.Equal(t, "alice", got[0].Pending[0].Username)
}

func TestRequestsEndpoint(t *testing.T) {
	s, _, log := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests?kingdom=1234&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1234", log.kingdom)
	assert.Equal(t, 5, log.limit)
	assert.Contains(t, rec.Body.String(), `"requestId":"r1"`)

	for _, target := range []string{"/api/requests", "/api/requests?kingdom=1234&limit=x"} {
		rec = httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestEventsAreStreamedOverWebsocket(t *testing.T) {
	s, _, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	req := queue.Request{ID: "r1", Username: "alice", Title: title.Duke, Kingdom: "1234"}
	// The client registers asynchronously, so keep publishing until one arrives.
	received := make(chan eventMessage, 1)
	go func() {
		var m eventMessage
		if err := conn.ReadJSON(&m); err == nil {
			received <- m
		}
	}()

	require.Eventually(t, func() bool {
		_ = s.Handle(ctx, event.RequestFinished(event.Text("1234", "done"), req, event.FinishedAcknowledged))
		select {
		case m := <-received:
			assert.Equal(t, "requestFinished", m.Type)
			assert.Equal(t, "acknowledged", m.Reason)
			assert.Equal(t, "1234", m.Kingdom)
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
