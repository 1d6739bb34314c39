package queue

import (
	"sort"
	"sync"
	"time"
)

// KingdomRuntime is the per-kingdom queue plus its processing flag.
type KingdomRuntime struct {
	pending    []Request
	processing bool
	state      State
	current    *Request
	startedAt  time.Time
}

// Registry owns every KingdomRuntime. Kingdoms are created on first reference.
type Registry struct {
	mu       sync.Mutex
	kingdoms map[string]*KingdomRuntime
}

func NewRegistry() *Registry {
	return &Registry{kingdoms: make(map[string]*KingdomRuntime)}
}

func (r *Registry) runtime(kingdom string) *KingdomRuntime {
	rt, found := r.kingdoms[kingdom]
	if !found {
		rt = &KingdomRuntime{state: Idle}
		r.kingdoms[kingdom] = rt
	}
	return rt
}

// EnqueueUnique appends req unless its user already has a request pending or in
// flight for the kingdom. It returns the queue length, counting the request
// currently being processed, and whether req was added.
func (r *Registry) EnqueueUnique(kingdom string, req Request) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt := r.runtime(kingdom)
	if rt.has(req.UserID) {
		return rt.length(), false
	}
	rt.pending = append(rt.pending, req)
	return rt.length(), true
}

// TryBegin moves an idle kingdom to Dispatching: it sets the processing flag and
// dequeues the front request. It returns false when the kingdom is busy or empty.
func (r *Registry) TryBegin(kingdom string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt := r.runtime(kingdom)
	if rt.processing || len(rt.pending) == 0 {
		return Request{}, false
	}
	rt.processing = true
	rt.state = Dispatching
	return rt.popFront()
}

// Finish ends the in-flight request. When more requests are waiting the flag stays
// set and the next one is returned, otherwise the kingdom goes idle.
func (r *Registry) Finish(kingdom string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt := r.runtime(kingdom)
	rt.processing = false
	rt.current = nil
	rt.state = Idle
	if len(rt.pending) == 0 {
		return Request{}, false
	}

	rt.processing = true
	rt.state = Dispatching
	return rt.popFront()
}

func (r *Registry) SetState(kingdom string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runtime(kingdom).state = s
}

func (rt *KingdomRuntime) has(userID string) bool {
	if rt.current != nil && rt.current.UserID == userID {
		return true
	}
	for _, p := range rt.pending {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (rt *KingdomRuntime) popFront() (Request, bool) {
	if len(rt.pending) == 0 {
		return Request{}, false
	}
	req := rt.pending[0]
	rt.pending[0] = Request{}
	rt.pending = rt.pending[1:]
	rt.current = &req
	rt.startedAt = time.Now()
	return req, true
}

func (rt *KingdomRuntime) length() int {
	n := len(rt.pending)
	if rt.processing {
		n++
	}
	return n
}

// Snapshot is a read-only view of one kingdom, used by the status API.
type Snapshot struct {
	Kingdom    string     `json:"kingdom"`
	State      State      `json:"state"`
	Processing bool       `json:"processing"`
	Current    *Request   `json:"current,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	Pending    []Request  `json:"pending"`
}

func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.kingdoms))
	for k, rt := range r.kingdoms {
		s := Snapshot{
			Kingdom:    k,
			State:      rt.state,
			Processing: rt.processing,
			Pending:    append([]Request{}, rt.pending...),
		}
		if rt.current != nil {
			cur := *rt.current
			started := rt.startedAt
			s.Current = &cur
			s.StartedAt = &started
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kingdom < out[j].Kingdom })
	return out
}
