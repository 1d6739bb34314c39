package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrompter struct {
	mu      sync.Mutex
	posted  []string
	err     error
	posted1 chan string
}

func newFakePrompter() *fakePrompter {
	return &fakePrompter{posted1: make(chan string, 10)}
}

func (f *fakePrompter) Prompt(_ context.Context, channelID, userID, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	id := fmt.Sprintf("msg-%d", len(f.posted)+1)
	f.posted = append(f.posted, text)
	f.mu.Unlock()
	f.posted1 <- id
	return id, nil
}

func newTestWatcher(p Prompter) *Watcher {
	w := NewWatcher(p, "✅", slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.tick = time.Millisecond
	return w
}

var req = Request{UserID: "u1", ChannelID: "c1", Kingdom: "1234", Title: "Duke"}

func TestWatchAcknowledgedStopsCountdown(t *testing.T) {
	p := newFakePrompter()
	w := newTestWatcher(p)

	var ticks []int
	w.onTick = func(_ Request, remaining int) {
		ticks = append(ticks, remaining)
		if remaining == 255 {
			assert.True(t, w.HandleReaction("msg-1", "u1", "✅"))
		}
	}

	got, err := w.Watch(context.Background(), req, 300*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Acknowledged, got)
	require.Len(t, ticks, 45)
	assert.Equal(t, 255, ticks[len(ticks)-1], "no tick may follow the acknowledgment")
	assert.Equal(t, 0, w.Pending())

	time.Sleep(10 * time.Millisecond)
	assert.Len(t, ticks, 45)
}

func TestWatchTimesOut(t *testing.T) {
	w := newTestWatcher(newFakePrompter())

	var ticks int
	w.onTick = func(Request, int) { ticks++ }

	got, err := w.Watch(context.Background(), req, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, got)
	assert.Equal(t, 5, ticks)
}

func TestWatchIgnoresOtherReactions(t *testing.T) {
	p := newFakePrompter()
	w := newTestWatcher(p)
	w.tick = 5 * time.Millisecond

	done := make(chan Outcome, 1)
	go func() {
		o, _ := w.Watch(context.Background(), req, 10*time.Second)
		done <- o
	}()

	id := <-p.posted1
	require.Eventually(t, func() bool { return w.Pending() == 1 }, time.Second, time.Millisecond)

	assert.False(t, w.HandleReaction(id, "someone-else", "✅"))
	assert.False(t, w.HandleReaction(id, "u1", "👍"))
	assert.False(t, w.HandleReaction("other-message", "u1", "✅"))
	assert.True(t, w.HandleReaction(id, "u1", "✅"))
	assert.NotPanics(t, func() { w.HandleReaction(id, "u1", "✅") })

	select {
	case o := <-done:
		assert.Equal(t, Acknowledged, o)
	case <-time.After(time.Second):
		t.Fatal("watch did not resolve")
	}
}

func TestWatchPromptFailure(t *testing.T) {
	p := newFakePrompter()
	p.err = errors.New("missing access")

	_, err := newTestWatcher(p).Watch(context.Background(), req, time.Second)
	assert.ErrorContains(t, err, "missing access")
}

func TestWatchContextCancelled(t *testing.T) {
	w := newTestWatcher(newFakePrompter())
	w.tick = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := w.Watch(ctx, req, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TimedOut, got)
}

func TestCountdownStopIsIdempotent(t *testing.T) {
	cd := NewCountdown(time.Millisecond)
	<-cd.C()
	cd.Stop()
	assert.NotPanics(t, cd.Stop)

	select {
	case <-cd.C():
		t.Fatal("tick after stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "acknowledged", Acknowledged.String())
	assert.Equal(t, "timed out", TimedOut.String())
}
