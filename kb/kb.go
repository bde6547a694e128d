package kb

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrInvalidID indicates a non-positive tag.
	ErrInvalidID = errors.New("tag must be positive")
	// ErrIDExists indicates a tag that is already reserved.
	ErrIDExists = errors.New("tag already reserved")
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventReserved EventType = iota
	EventReleased
)

func (t EventType) String() string {
	if t == EventReleased {
		return "released"
	}
	return "reserved"
}

// Event is emitted to subscribers when a tag is reserved or released.
type Event struct {
	Type EventType
	ID   int64
}

// IDRegistry is a thread-safe set of wanderer tags. A world owns one by
// default; worlds that must not reuse each other's tags can share one.
type IDRegistry struct {
	mu sync.RWMutex

	ids map[int64]struct{}

	subs    map[int]func(Event)
	nextSub int
}

// NewIDRegistry constructs an empty registry.
func NewIDRegistry() *IDRegistry {
	return &IDRegistry{
		ids:  make(map[int64]struct{}),
		subs: make(map[int]func(Event)),
	}
}

// CanReserve reports whether id is positive and unused.
func (r *IDRegistry) CanReserve(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, taken := r.ids[id]
	return id > 0 && !taken
}

// Reserve claims id. It fails for non-positive or already reserved tags.
func (r *IDRegistry) Reserve(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	r.mu.Lock()
	if _, exists := r.ids[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIDExists, id)
	}
	r.ids[id] = struct{}{}
	subs := r.snapshotSubs()
	r.mu.Unlock()

	notify(subs, Event{Type: EventReserved, ID: id})
	return nil
}

// Release frees id and reports whether it was reserved.
func (r *IDRegistry) Release(id int64) bool {
	r.mu.Lock()
	if _, ok := r.ids[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.ids, id)
	subs := r.snapshotSubs()
	r.mu.Unlock()

	notify(subs, Event{Type: EventReleased, ID: id})
	return true
}

// Contains reports whether id is reserved.
func (r *IDRegistry) Contains(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of reserved tags.
func (r *IDRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// IDs returns the reserved tags in ascending order.
func (r *IDRegistry) IDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		res = append(res, id)
	}
	slices.Sort(res)
	return res
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function.
func (r *IDRegistry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.nextSub
	r.nextSub++
	r.subs[key] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, key)
	}
}

// snapshotSubs copies the subscriber list; callers hold r.mu.
func (r *IDRegistry) snapshotSubs() []func(Event) {
	keys := make([]int, 0, len(r.subs))
	for k := range r.subs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	subs := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		subs = append(subs, r.subs[k])
	}
	return subs
}

// notify runs callbacks outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
