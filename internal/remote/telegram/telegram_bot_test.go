package telegram

import (
	"testing"

	"github.com/rokbot/titlebot/internal/event"
	"github.com/rokbot/titlebot/internal/queue"
	"github.com/rokbot/titlebot/internal/title"
	"github.com/stretchr/testify/assert"
)

func TestEventText(t *testing.T) {
	req := queue.Request{Username: "alice", Title: title.Scientist, Kingdom: "1234"}

	assert.Equal(t, "[1234] Scientist for alice finished: timedOut",
		eventText(event.RequestFinished(event.Text("1234", ""), req, event.FinishedTimedOut)))
	assert.Equal(t, "[1234] alice queued for Scientist (position 2)",
		eventText(event.RequestQueued(event.Text("1234", ""), req, 2)))
	assert.Empty(t, eventText(event.StateChanged(event.Text("1234", ""), req, queue.Dispatching)))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "No kingdom has seen a request yet.", statusText(nil))

	text := statusText([]queue.Snapshot{{
		Kingdom: "1234",
		State:   queue.AwaitingCompletion,
		Current: &queue.Request{Username: "alice", Title: title.Duke},
		Pending: []queue.Request{{Username: "bob"}},
	}})
	assert.Equal(t, "1234: awaitingCompletion, 1 waiting, serving alice (Duke)", text)
}
