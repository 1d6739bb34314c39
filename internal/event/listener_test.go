package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rokbot/titlebot/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerDeliversToAllHandlers(t *testing.T) {
	l := NewListener(slog.New(slog.NewTextHandler(io.Discard, nil)))

	got := make(chan Event, 4)
	l.Register(func(_ context.Context, e Event) error {
		got <- e
		return errors.New("handler errors are logged, not fatal")
	})
	l.Register(func(_ context.Context, e Event) error {
		got <- e
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Listen(ctx)

	req := queue.Request{UserID: "u1", Kingdom: "1234"}
	l.Send(RequestFinished(Text("1234", "done"), req, FinishedAcknowledged))

	for i := 0; i < 2; i++ {
		select {
		case e := <-got:
			finished, ok := e.(RequestFinishedEvent)
			require.True(t, ok)
			assert.Equal(t, FinishedAcknowledged, finished.Reason)
			assert.Equal(t, "1234", finished.Kingdom())
			assert.Equal(t, "done", finished.Message())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestSendDropsWhenFull(t *testing.T) {
	l := NewListener(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for i := 0; i < 150; i++ {
		l.Send(Text("1234", "spam"))
	}
	assert.Len(t, l.events, 100)
}
