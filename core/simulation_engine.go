package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/tileworld-simulator/internal/logging"
	"github.com/signalsfoundry/tileworld-simulator/internal/script"
	"github.com/signalsfoundry/tileworld-simulator/model"
	"github.com/signalsfoundry/tileworld-simulator/timectrl"
)

// EntityState is a copy of the observable state of one entity.
type EntityState struct {
	Species     model.Species
	Serial      uint64
	Tag         int64
	Pixel       model.Pixel
	HitPoints   int
	Orientation model.Orientation
}

// Snapshot is a point-in-time copy of the world, safe to keep after the tick.
type Snapshot struct {
	Tick     uint64
	SimTime  time.Duration
	Outcome  model.Outcome
	Viewport model.Pixel
	Player   *EntityState // nil once the player has left the world
	Counts   map[model.Species]int
}

// TickListener observes the snapshot taken after every tick. Listeners run
// outside the engine lock and may call back into the engine.
type TickListener func(Snapshot)

// IntentReporter receives the outcome of each scripted intent. It runs while
// the engine lock is held and must not call back into the engine.
type IntentReporter func(script.Result)

// SimulationEngine serialises access to a World, applies scheduled player
// intents before each tick and publishes snapshots.
type SimulationEngine struct {
	mu sync.Mutex

	world     *World
	clock     *timectrl.TimeController
	scheduler script.EventScheduler
	log       logging.Logger

	tickListeners []TickListener
	lastErr       error
	announced     bool
}

// EngineOption customises SimulationEngine construction.
type EngineOption func(*SimulationEngine)

// WithEngineLogger attaches a logger for engine lifecycle events.
func WithEngineLogger(log logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if log != nil {
			se.log = log
		}
	}
}

// WithStartTime sets the simulation epoch that intent offsets count from.
func WithStartTime(t time.Time) EngineOption {
	return func(se *SimulationEngine) {
		se.clock = timectrl.NewTimeController(t, 0, timectrl.Accelerated)
	}
}

// NewSimulationEngine wraps w. The engine keeps its own simulation clock,
// advanced by every Step, which backs the intent scheduler.
func NewSimulationEngine(w *World, opts ...EngineOption) *SimulationEngine {
	se := &SimulationEngine{
		world: w,
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(se)
	}
	if se.clock == nil {
		se.clock = timectrl.NewTimeController(time.Unix(0, 0).UTC(), 0, timectrl.Accelerated)
	}
	se.scheduler = script.NewEventScheduler(se.clock)
	return se
}

// Clock exposes the engine's simulation clock.
func (se *SimulationEngine) Clock() timectrl.SimClock { return se.clock }

// Elapsed returns the simulated time advanced so far.
func (se *SimulationEngine) Elapsed() time.Duration { return se.clock.Elapsed() }

// RegisterTickListener adds fn to the listeners notified after every tick.
func (se *SimulationEngine) RegisterTickListener(fn TickListener) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.tickListeners = append(se.tickListeners, fn)
}

// LoadIntents schedules intents against the world's current player, relative
// to the engine epoch. It returns the scheduled event IDs.
func (se *SimulationEngine) LoadIntents(intents []script.Intent, report IntentReporter) ([]string, error) {
	se.mu.Lock()
	defer se.mu.Unlock()
	p := se.world.Player()
	if p == nil {
		return nil, ErrNoPlayer
	}
	return script.Load(se.scheduler, se.clock.StartTime, intents, p, report), nil
}

// PendingIntents returns the number of intents not yet applied.
func (se *SimulationEngine) PendingIntents() int { return se.scheduler.Pending() }

// Start closes world registration.
func (se *SimulationEngine) Start() error {
	se.mu.Lock()
	defer se.mu.Unlock()
	if se.world.Started() {
		return nil
	}
	return se.world.Start()
}

// Step moves the clock by dt, applies every intent now due and advances the
// world by dt.
func (se *SimulationEngine) Step(ctx context.Context, dt time.Duration) (Snapshot, error) {
	se.mu.Lock()
	if dt < 0 || dt.Seconds() >= MaxWorldStep {
		se.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidDuration, dt)
	}
	se.clock.SetTime(se.clock.Now().Add(dt))
	se.scheduler.RunDue()
	if err := se.world.AdvanceTimeContext(ctx, dt.Seconds()); err != nil {
		se.lastErr = err
		se.mu.Unlock()
		return Snapshot{}, err
	}
	snap := se.snapshotLocked()
	se.announceLocked(ctx, snap)
	listeners := append([]TickListener(nil), se.tickListeners...)
	se.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap, nil
}

// Run starts the world and steps it up to ticks times, stopping early when
// the game is over or ctx is done.
func (se *SimulationEngine) Run(ctx context.Context, ticks int, dt time.Duration) (Snapshot, error) {
	if err := se.Start(); err != nil {
		return Snapshot{}, err
	}
	snap := se.Snapshot()
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return snap, err
		}
		var err error
		snap, err = se.Step(ctx, dt)
		if err != nil {
			return snap, err
		}
		if snap.Outcome != model.OutcomeRunning {
			break
		}
	}
	return snap, nil
}

// Drive registers the engine on tc so that every controller tick steps the
// world. The controller is stopped on game over or on a step error, which is
// then available from Err.
func (se *SimulationEngine) Drive(ctx context.Context, tc *timectrl.TimeController) {
	tc.AddListener(func(_ time.Time, dt time.Duration) {
		snap, err := se.Step(ctx, dt)
		if err != nil || snap.Outcome != model.OutcomeRunning {
			tc.Stop()
		}
	})
}

// Err returns the last error returned by a step.
func (se *SimulationEngine) Err() error {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.lastErr
}

// Snapshot returns the current world state.
func (se *SimulationEngine) Snapshot() Snapshot {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.snapshotLocked()
}

func (se *SimulationEngine) snapshotLocked() Snapshot {
	w := se.world
	snap := Snapshot{
		Tick:     w.Ticks(),
		SimTime:  se.clock.Elapsed(),
		Outcome:  w.Outcome(),
		Viewport: w.Viewport(),
		Counts:   make(map[model.Species]int),
	}
	for _, e := range w.entities {
		snap.Counts[e.Species()]++
	}
	if p := w.Player(); p != nil {
		st := stateOf(p)
		snap.Player = &st
	}
	return snap
}

func (se *SimulationEngine) announceLocked(ctx context.Context, snap Snapshot) {
	if se.announced || snap.Outcome == model.OutcomeRunning {
		return
	}
	se.announced = true
	se.log.Info(ctx, "game over",
		logging.String("outcome", snap.Outcome.String()),
		logging.Int64("tick", int64(snap.Tick)),
		logging.Duration("sim_time", snap.SimTime),
	)
}

func stateOf(e *Entity) EntityState {
	return EntityState{
		Species:     e.Species(),
		Serial:      e.Serial(),
		Tag:         e.Tag(),
		Pixel:       e.PixelPosition(),
		HitPoints:   e.HitPoints(),
		Orientation: e.Orientation(),
	}
}
