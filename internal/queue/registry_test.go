package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rokbot/titlebot/internal/title"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReq(user string) Request {
	return NewRequest(user, user, title.Duke, "1234", 1, 2, "chan")
}

func enqueue(t *testing.T, r *Registry, kingdom string, req Request) int {
	t.Helper()
	n, ok := r.EnqueueUnique(kingdom, req)
	require.True(t, ok)
	return n
}

func kingdomSnapshot(t *testing.T, r *Registry, kingdom string) Snapshot {
	t.Helper()
	for _, s := range r.Snapshot() {
		if s.Kingdom == kingdom {
			return s
		}
	}
	t.Fatalf("kingdom %s not in snapshot", kingdom)
	return Snapshot{}
}

func TestEnqueueDispatchFIFO(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, 1, enqueue(t, r, "1234", newReq("a")))
	assert.Equal(t, 2, enqueue(t, r, "1234", newReq("b")))
	assert.Equal(t, 3, enqueue(t, r, "1234", newReq("c")))

	got, ok := r.TryBegin("1234")
	require.True(t, ok)
	assert.Equal(t, "a", got.UserID)
	for _, want := range []string{"b", "c"} {
		got, ok = r.Finish("1234")
		require.True(t, ok)
		assert.Equal(t, want, got.UserID)
	}

	_, ok = r.Finish("1234")
	assert.False(t, ok)
}

func TestUnknownKingdomIsCreatedLazily(t *testing.T) {
	r := NewRegistry()

	_, ok := r.TryBegin("9999")
	assert.False(t, ok)
	s := kingdomSnapshot(t, r, "9999")
	assert.False(t, s.Processing)
	assert.Empty(t, s.Pending)
	assert.Equal(t, Idle, s.State)
}

func TestLengthCountsInFlightRequest(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, 1, enqueue(t, r, "1234", newReq("a")))
	_, ok := r.TryBegin("1234")
	require.True(t, ok)

	assert.Equal(t, 2, enqueue(t, r, "1234", newReq("b")), "a request behind an in-flight one must see length 2")
}

func TestTryBeginDequeuesImmediately(t *testing.T) {
	r := NewRegistry()
	enqueue(t, r, "1234", newReq("a"))

	got, ok := r.TryBegin("1234")
	require.True(t, ok)
	assert.Equal(t, "a", got.UserID)

	s := kingdomSnapshot(t, r, "1234")
	assert.Empty(t, s.Pending, "the dispatched request must not be counted twice")
	require.NotNil(t, s.Current)
	assert.Equal(t, "a", s.Current.UserID)
	assert.Equal(t, Dispatching, s.State)
}

func TestTryBeginIsSingleFlight(t *testing.T) {
	r := NewRegistry()
	enqueue(t, r, "1234", newReq("a"))
	enqueue(t, r, "1234", newReq("b"))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.TryBegin("1234"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	s := kingdomSnapshot(t, r, "1234")
	assert.True(t, s.Processing)
	assert.Len(t, s.Pending, 1)
}

func TestTryBeginNeedsPendingWork(t *testing.T) {
	r := NewRegistry()
	_, ok := r.TryBegin("1234")
	assert.False(t, ok)
}

func TestFinishAdvancesOrGoesIdle(t *testing.T) {
	r := NewRegistry()
	enqueue(t, r, "1234", newReq("a"))
	_, ok := r.TryBegin("1234")
	require.True(t, ok)
	enqueue(t, r, "1234", newReq("b"))

	next, ok := r.Finish("1234")
	require.True(t, ok)
	assert.Equal(t, "b", next.UserID)
	assert.True(t, kingdomSnapshot(t, r, "1234").Processing)

	_, ok = r.Finish("1234")
	assert.False(t, ok)
	s := kingdomSnapshot(t, r, "1234")
	assert.False(t, s.Processing)
	assert.Equal(t, Idle, s.State)
}

func TestEnqueueUniqueRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	enqueue(t, r, "1234", newReq("a"))
	enqueue(t, r, "1234", newReq("b"))
	_, ok := r.TryBegin("1234")
	require.True(t, ok)

	n, ok := r.EnqueueUnique("1234", newReq("a"))
	assert.False(t, ok, "in flight")
	assert.Equal(t, 2, n)
	_, ok = r.EnqueueUnique("1234", newReq("b"))
	assert.False(t, ok, "pending")

	_, ok = r.EnqueueUnique("4321", newReq("a"))
	assert.True(t, ok, "other kingdom")
}

func TestEnqueueUniqueConcurrentSameUser(t *testing.T) {
	for round := 0; round < 200; round++ {
		r := NewRegistry()

		var added atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := r.EnqueueUnique("1234", newReq("a")); ok {
					added.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), added.Load())
		require.Len(t, kingdomSnapshot(t, r, "1234").Pending, 1)
	}
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	enqueue(t, r, "2222", newReq("x"))
	enqueue(t, r, "1111", newReq("a"))
	enqueue(t, r, "1111", newReq("b"))
	_, ok := r.TryBegin("1111")
	require.True(t, ok)
	r.SetState("1111", AwaitingCheckpoint)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "1111", snap[0].Kingdom)
	assert.Equal(t, AwaitingCheckpoint, snap[0].State)
	require.NotNil(t, snap[0].Current)
	assert.Equal(t, "a", snap[0].Current.UserID)
	assert.Len(t, snap[0].Pending, 1)
	assert.Nil(t, snap[1].Current)
	assert.NotEmpty(t, snap[1].Pending[0].ID)
}
