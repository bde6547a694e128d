package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time. Components such as
// the intent scheduler depend on it rather than on a concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// After returns a channel that receives the simulation time once d has
	// elapsed in simulation time.
	After(d time.Duration) <-chan time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// Listener is invoked once per tick with the new simulation time and the
// tick length.
type Listener func(now time.Time, dt time.Duration)

type timer struct {
	at time.Time
	ch chan time.Time
}

// TimeController drives simulation time and notifies registered listeners.
// It implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time

	listeners []Listener
	timers    []timer
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
		stop:        make(chan struct{}),
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Elapsed returns the simulation time since StartTime.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime)
}

// SetTime moves the simulation clock, firing any timers that became due.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	due := tc.dueTimersLocked(t)
	tc.mu.Unlock()
	fire(due, t)
}

// After returns a channel that receives the simulation time once d has
// elapsed in simulation time. Implements SimClock.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	tc.mu.Lock()
	at := tc.currentTime.Add(d)
	if d <= 0 {
		now := tc.currentTime
		tc.mu.Unlock()
		ch <- now
		return ch
	}
	tc.timers = append(tc.timers, timer{at: at, ch: ch})
	tc.mu.Unlock()
	return ch
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Stop ends a running Start loop after the current tick.
func (tc *TimeController) Stop() {
	tc.stopOnce.Do(func() { close(tc.stop) })
}

// Start runs the controller for the specified duration in a separate
// goroutine; a non-positive duration runs until Stop is called or ctx is
// done. It returns a channel that is closed when the controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		simTime := tc.StartTime
		tc.currentTime = simTime
		tc.mu.Unlock()

		elapsed := time.Duration(0)

		var tickC <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tickC = ticker.C
		}

		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-tc.stop:
				return
			default:
			}
			if tickC != nil {
				select {
				case <-ctx.Done():
					return
				case <-tc.stop:
					return
				case <-tickC:
				}
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			due := tc.dueTimersLocked(simTime)
			listeners := append([]Listener(nil), tc.listeners...)
			tc.mu.Unlock()

			fire(due, simTime)
			for _, fn := range listeners {
				fn(simTime, tc.Tick)
			}
		}
	}()
	return done
}

// dueTimersLocked removes and returns timers due at now; callers hold tc.mu.
func (tc *TimeController) dueTimersLocked(now time.Time) []timer {
	var due []timer
	pending := tc.timers[:0]
	for _, t := range tc.timers {
		if !t.at.After(now) {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	tc.timers = pending
	return due
}

func fire(due []timer, now time.Time) {
	for _, t := range due {
		t.ch <- now
	}
}
