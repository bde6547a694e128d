package core

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/tileworld-simulator/internal/logging"
	"github.com/signalsfoundry/tileworld-simulator/kb"
	"github.com/signalsfoundry/tileworld-simulator/model"
)

const (
	// MaxEntities is the registration capacity of a world.
	MaxEntities = 100
	// MaxWorldStep is the exclusive upper bound on a world tick.
	MaxWorldStep = 0.2

	tracerName = "github.com/signalsfoundry/tileworld-simulator/core"
)

// MetricsRecorder receives per-tick simulation measurements.
type MetricsRecorder interface {
	ObserveTick(dt float64, elapsed time.Duration)
	AddSubSteps(species model.Species, n int)
	AddDamage(species model.Species, cause string, hp int)
	IncDeaths(species model.Species)
	SetEntityCounts(counts map[model.Species]int)
	SetOutcome(o model.Outcome)
}

// WorldConfig describes the static layout of a world.
type WorldConfig struct {
	TileSize     int
	TilesX       int
	TilesY       int
	Target       model.TileCoord
	WindowWidth  int
	WindowHeight int
	// Features holds tile codes row by row from the bottom-left tile. Missing
	// tiles are Air and unknown codes are stored as Air.
	Features []int
}

// World owns a terrain grid, the registered entities and their schools, and
// tracks the viewport and the outcome of the game.
type World struct {
	grid   *TerrainGrid
	target model.TileCoord

	windowW, windowH int
	viewport         model.Pixel

	entities   []*Entity
	player     *Entity
	schools    []*School
	nextSerial uint64
	nextSchool int

	started    bool
	gameOver   bool
	won        bool
	playerLeft bool // the controlling player was detached
	terminated bool
	ticks      uint64

	ids *kb.IDRegistry
	// unsubscribe detaches the tag event logger from a possibly shared registry.
	unsubscribe func()
	log         logging.Logger
	metrics     MetricsRecorder
	tracer      trace.Tracer
}

// WorldOption customises World construction.
type WorldOption func(*World)

// WithLogger attaches a structured logger for lifecycle events.
func WithLogger(log logging.Logger) WorldOption {
	return func(w *World) {
		if log != nil {
			w.log = log
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) WorldOption {
	return func(w *World) {
		w.metrics = m
	}
}

// WithTracer overrides the tracer used for tick spans.
func WithTracer(t trace.Tracer) WorldOption {
	return func(w *World) {
		if t != nil {
			w.tracer = t
		}
	}
}

// WithIDRegistry shares a wanderer tag registry between worlds.
func WithIDRegistry(r *kb.IDRegistry) WorldOption {
	return func(w *World) {
		if r != nil {
			w.ids = r
		}
	}
}

// NewWorld builds an empty world. The visible window must fit inside the
// world's pixel extent.
func NewWorld(cfg WorldConfig, opts ...WorldOption) (*World, error) {
	grid, err := NewTerrainGrid(cfg.TileSize, cfg.TilesX, cfg.TilesY, cfg.Features)
	if err != nil {
		return nil, err
	}
	if cfg.WindowWidth < 0 || cfg.WindowHeight < 0 ||
		cfg.WindowWidth > grid.WidthPixels() || cfg.WindowHeight > grid.HeightPixels() {
		return nil, fmt.Errorf("%w: window %dx%d in world %dx%d", ErrInvalidWindow,
			cfg.WindowWidth, cfg.WindowHeight, grid.WidthPixels(), grid.HeightPixels())
	}
	w := &World{
		grid:    grid,
		target:  cfg.Target,
		windowW: cfg.WindowWidth,
		windowH: cfg.WindowHeight,
		log:     logging.Noop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.ids == nil {
		w.ids = kb.NewIDRegistry()
	}
	w.unsubscribe = w.ids.Subscribe(func(ev kb.Event) {
		w.log.Debug(context.Background(), "wanderer tag "+ev.Type.String(), logging.Int64("tag", ev.ID))
	})
	return w, nil
}

func (w *World) Grid() *TerrainGrid { return w.grid }

// IDs returns the wanderer tag registry used by this world.
func (w *World) IDs() *kb.IDRegistry { return w.ids }

// FeatureAt returns the feature under a pixel; Air outside the world.
func (w *World) FeatureAt(px, py int) model.Feature { return w.grid.FeatureAt(px, py) }

// SetFeature replaces the tile under a pixel.
func (w *World) SetFeature(px, py, code int) { w.grid.SetFeature(px, py, code) }

func (w *World) WidthPixels() int  { return w.grid.WidthPixels() }
func (w *World) HeightPixels() int { return w.grid.HeightPixels() }

func (w *World) Target() model.TileCoord     { return w.target }
func (w *World) SetTarget(t model.TileCoord) { w.target = t }

// Entities returns the registered entities in registration order.
func (w *World) Entities() []*Entity { return slices.Clone(w.entities) }

// Player returns the controlling player, or nil.
func (w *World) Player() *Entity { return w.player }

// Schools returns the live schools in creation order.
func (w *World) Schools() []*School { return slices.Clone(w.schools) }

func (w *World) Started() bool      { return w.started }
func (w *World) IsTerminated() bool { return w.terminated }
func (w *World) Won() bool          { return w.won }
func (w *World) Ticks() uint64      { return w.ticks }

// IsGameOver reports a finished game: the player won, died or fell below the
// world origin.
func (w *World) IsGameOver() bool {
	if p := w.player; p != nil && (p.IsDead() || p.pos.X() < 0 || p.pos.Y() < 0) {
		return true
	}
	return w.gameOver || w.won
}

// Outcome summarises IsGameOver and Won.
func (w *World) Outcome() model.Outcome {
	switch {
	case w.won:
		return model.OutcomeWon
	case w.IsGameOver():
		return model.OutcomeLost
	}
	return model.OutcomeRunning
}

// NewSchool creates an empty school owned by the world.
func (w *World) NewSchool() (*School, error) {
	if w.terminated {
		return nil, ErrWorldTerminated
	}
	if len(w.schools) >= MaxSchools {
		return nil, fmt.Errorf("%w: %d schools", ErrTooManySchools, len(w.schools))
	}
	w.nextSchool++
	s := &School{id: w.nextSchool, world: w}
	w.schools = append(w.schools, s)
	return s, nil
}

func (w *World) dropSchool(s *School) {
	w.schools = slices.DeleteFunc(w.schools, func(o *School) bool { return o == s })
}

// Add registers a detached entity. The first player added becomes the
// controlling player.
func (w *World) Add(e *Entity) error {
	if err := w.admit(e); err != nil {
		if e != nil {
			w.log.Debug(context.Background(), "entity rejected",
				append(entityFields(e), logging.Err(err))...)
		}
		return err
	}
	w.nextSerial++
	e.serial = w.nextSerial
	e.world = w
	w.entities = append(w.entities, e)
	if e.Species() == model.SpeciesPlayer && w.player == nil {
		w.player = e
		w.playerLeft = false
		w.updateViewport()
	}
	w.log.Debug(context.Background(), "entity registered", entityFields(e)...)
	w.recordCounts()
	return nil
}

// admit applies the registration checks in order.
func (w *World) admit(e *Entity) error {
	switch {
	case e == nil:
		return fmt.Errorf("%w: nil entity", ErrTerminated)
	case e.terminated:
		return ErrTerminated
	case w.terminated:
		return ErrWorldTerminated
	}
	isPlayer := e.Species() == model.SpeciesPlayer
	if isPlayer && w.hasPlayer() {
		return ErrSecondPlayer
	}
	if len(w.entities) >= MaxEntities && !(isPlayer && w.player == nil) {
		return fmt.Errorf("%w: %d entities", ErrWorldFull, len(w.entities))
	}
	if w.started {
		return ErrGameStarted
	}
	if e.world != nil {
		if e.world == w {
			return fmt.Errorf("%w: already registered here", ErrForeignEntity)
		}
		return ErrForeignEntity
	}
	box := e.Box()
	if !e.isPlant() && OverlapsImpassable(w.grid, box) {
		return ErrBlockedTerrain
	}
	if box.X < 0 || box.X >= w.grid.WidthPixels() || box.Y < 0 || box.Y >= w.grid.HeightPixels() {
		return fmt.Errorf("%w: pixel (%d, %d)", ErrOutOfBounds, box.X, box.Y)
	}
	if !e.isPlant() {
		for _, o := range w.entities {
			if !o.isPlant() && Overlaps(box, o.Box()) {
				return fmt.Errorf("%w: %s", ErrOccupied, o)
			}
		}
	}
	return nil
}

func (w *World) hasPlayer() bool {
	for _, o := range w.entities {
		if o.Species() == model.SpeciesPlayer {
			return true
		}
	}
	return false
}

// Remove unregisters an entity without terminating it.
func (w *World) Remove(e *Entity) error {
	if e == nil || e.world != w {
		return ErrNotInWorld
	}
	w.detach(e)
	return nil
}

// detach unlinks e from the registry.
func (w *World) detach(e *Entity) {
	w.entities = slices.DeleteFunc(w.entities, func(o *Entity) bool { return o == e })
	if w.player == e {
		w.player = nil
		w.playerLeft = true
	}
	e.world = nil
	w.log.Debug(context.Background(), "entity detached", entityFields(e)...)
	w.recordCounts()
}

// Start closes registration.
func (w *World) Start() error {
	if w.terminated {
		return ErrWorldTerminated
	}
	if w.player == nil {
		return ErrNoPlayer
	}
	w.started = true
	w.log.Info(context.Background(), "game started",
		logging.Int("entities", len(w.entities)),
		logging.Int("schools", len(w.schools)),
		logging.Any("wanderer_tags", w.ids.IDs()),
	)
	return nil
}

// Terminate detaches every entity and closes the world for good.
func (w *World) Terminate() {
	if w.terminated {
		return
	}
	for _, e := range w.entities {
		e.world = nil
	}
	w.entities = nil
	w.player = nil
	w.terminated = true
	w.unsubscribe()
	w.log.Info(context.Background(), "world terminated", logging.Int("ticks", int(w.ticks)))
	w.recordCounts()
}

// AdvanceTime runs one tick of dt seconds, 0 <= dt < 0.2. Entities advance in
// registration order; an entity removed earlier in the same tick is skipped.
func (w *World) AdvanceTime(dt float64) error {
	return w.AdvanceTimeContext(context.Background(), dt)
}

// AdvanceTimeContext is AdvanceTime with a parent context for the tick span.
func (w *World) AdvanceTimeContext(ctx context.Context, dt float64) error {
	if w.terminated {
		return ErrWorldTerminated
	}
	if math.IsNaN(dt) || dt < 0 || dt >= MaxWorldStep {
		return fmt.Errorf("%w: %v not in [0, %v)", ErrInvalidDuration, dt, MaxWorldStep)
	}
	ctx, span := w.tracer.Start(ctx, "world.tick", trace.WithAttributes(
		attribute.Int64("tick", int64(w.ticks)),
		attribute.Float64("dt", dt),
		attribute.Int("entities", len(w.entities)),
	))
	defer span.End()

	start := time.Now()
	p := w.player
	if dt > 0 {
		for _, e := range slices.Clone(w.entities) {
			if e.world != w || e.terminated {
				continue
			}
			e.advance(dt)
		}
	}
	w.ticks++

	switch {
	case p != nil && (p.IsDead() || p.terminated), p == nil && w.playerLeft:
		if !w.gameOver && p != nil {
			w.log.Info(ctx, "player lost", append(entityFields(p), logging.Int("tick", int(w.ticks)))...)
		}
		w.gameOver, w.won = true, false
	case w.player != nil:
		w.updateViewport()
	}
	span.SetAttributes(attribute.String("outcome", w.Outcome().String()))

	if w.metrics != nil {
		w.metrics.ObserveTick(dt, time.Since(start))
		w.metrics.SetOutcome(w.Outcome())
	}
	return nil
}

// touchesTarget tests a box against the target tile, counting shared edges.
func (w *World) touchesTarget(b Box) bool {
	ts := w.grid.TileSize()
	tx, ty := w.target.X*ts, w.target.Y*ts
	return !(b.X+b.W < tx) && !(tx+ts < b.X) && !(b.Y+b.H < ty) && !(ty+ts < b.Y)
}

func (w *World) declareWin() {
	if w.won {
		return
	}
	w.won, w.gameOver = true, true
	w.log.Info(context.Background(), "player reached target",
		append(entityFields(w.player), logging.Int("tick", int(w.ticks)))...)
}

// containsPosition reports whether a position in meters lies in the world.
func (w *World) containsPosition(p mgl64.Vec2) bool {
	width := float64(w.grid.WidthPixels()) / PixelsPerMeter
	height := float64(w.grid.HeightPixels()) / PixelsPerMeter
	return p.X() >= 0 && p.Y() >= 0 && p.X() < width && p.Y() < height
}

func (w *World) recordSubSteps(s model.Species, n int) {
	if w.metrics != nil {
		w.metrics.AddSubSteps(s, n)
	}
}

func (w *World) recordDamage(e *Entity, cause string, hp int) {
	if w.metrics != nil {
		w.metrics.AddDamage(e.Species(), cause, hp)
	}
}

func (w *World) recordDeath(e *Entity) {
	w.log.Info(context.Background(), "entity died", entityFields(e)...)
	if w.metrics != nil {
		w.metrics.IncDeaths(e.Species())
	}
}

func (w *World) recordCounts() {
	if w.metrics == nil {
		return
	}
	counts := make(map[model.Species]int, len(model.AllSpecies()))
	for _, s := range model.AllSpecies() {
		counts[s] = 0
	}
	for _, e := range w.entities {
		counts[e.Species()]++
	}
	w.metrics.SetEntityCounts(counts)
}

func (w *World) logSchoolSwitch(e *Entity, from, to *School) {
	w.log.Debug(context.Background(), "wanderer switched school",
		logging.Int64("tag", e.tag),
		logging.Int("from", from.id),
		logging.Int("to", to.id),
		logging.Int("hp", e.hitPoints),
	)
}

func entityFields(e *Entity) []logging.Field {
	px := e.PixelPosition()
	return []logging.Field{
		logging.String("species", e.Species().String()),
		logging.Any("serial", e.serial),
		logging.Int("x", px.X),
		logging.Int("y", px.Y),
		logging.Int("hp", e.hitPoints),
	}
}
