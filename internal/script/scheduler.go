package script

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/tileworld-simulator/timectrl"
)

// EventScheduler schedules callbacks to run at specific simulation times
// based on a SimClock implementation. The simulation loop advances the clock
// and calls RunDue before each world tick.
type EventScheduler interface {
	// Schedule registers a callback f to run at simulation time 'at'.
	// It returns an opaque event ID that can be used to cancel the event.
	Schedule(at time.Time, f func()) (id string)

	// Cancel attempts to cancel a previously scheduled event.
	// It is a no-op if the ID is unknown or the event already ran.
	Cancel(id string)

	// Now returns the current simulation time of the underlying SimClock.
	Now() time.Time

	// RunDue executes all events whose scheduled time is <= Now() and
	// returns how many ran. Already-run events never run again.
	RunDue() int

	// Pending returns the number of events still waiting.
	Pending() int
}

type scheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// eventScheduler stores events ordered by scheduled time.
type eventScheduler struct {
	clock timectrl.SimClock

	mu      sync.Mutex
	counter uint64
	events  []*scheduledEvent // earliest first
	index   map[string]*scheduledEvent
}

// NewEventScheduler creates a new event scheduler backed by the given SimClock.
func NewEventScheduler(clock timectrl.SimClock) EventScheduler {
	return &eventScheduler{
		clock: clock,
		index: make(map[string]*scheduledEvent),
	}
}

func (s *eventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("intent-%d", s.counter)

	ev := &scheduledEvent{
		id:   id,
		when: at,
		f:    f,
	}
	s.addEventLocked(ev)
	s.index[id] = ev
	return id
}

// addEventLocked inserts an event after any event with the same time, so
// events scheduled for one instant run in scheduling order.
func (s *eventScheduler) addEventLocked(ev *scheduledEvent) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].when.After(ev.when)
	})
	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
}

func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(s.index, id)
}

func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

func (s *eventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// popNextLocked removes and returns the earliest due, non-cancelled event.
func (s *eventScheduler) popNextLocked(now time.Time) *scheduledEvent {
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.cancelled {
			s.events = s.events[1:]
			continue
		}
		if ev.when.After(now) {
			return nil
		}
		s.events = s.events[1:]
		return ev
	}
	return nil
}

func (s *eventScheduler) RunDue() int {
	ran := 0
	for {
		now := s.clock.Now()
		s.mu.Lock()
		ev := s.popNextLocked(now)
		if ev == nil {
			s.mu.Unlock()
			return ran
		}
		delete(s.index, ev.id)
		s.mu.Unlock()

		// Callbacks run outside the lock so they may schedule or cancel.
		if ev.f != nil {
			ev.f()
		}
		ran++
	}
}
