package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

func TestNewWorldValidation(t *testing.T) {
	_, err := NewWorld(WorldConfig{TileSize: 0, TilesX: 10, TilesY: 10})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = NewWorld(WorldConfig{TileSize: 10, TilesX: 10, TilesY: 10, WindowWidth: 101, WindowHeight: 50})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	w, err := NewWorld(WorldConfig{TileSize: 10, TilesX: 10, TilesY: 10, WindowWidth: 100, WindowHeight: 100})
	require.NoError(t, err)
	assert.Equal(t, 100, w.WidthPixels())
	assert.Equal(t, model.OutcomeRunning, w.Outcome())
}

func TestAddRegistrationErrors(t *testing.T) {
	w := openWorld(t)
	p := mustPlayer(t, 500, 100)
	mustAdd(t, w, p)

	assert.ErrorIs(t, w.Add(nil), ErrTerminated)

	gone := mustFlyer(t, 800, 100)
	gone.Terminate()
	assert.ErrorIs(t, w.Add(gone), ErrTerminated)

	assert.ErrorIs(t, w.Add(mustPlayer(t, 1200, 100)), ErrSecondPlayer)

	other := openWorld(t)
	foreign := mustFlyer(t, 800, 100)
	mustAdd(t, other, foreign)
	assert.ErrorIs(t, w.Add(foreign), ErrForeignEntity)
	local := mustFlyer(t, 1500, 100)
	mustAdd(t, w, local)
	assert.ErrorIs(t, w.Add(local), ErrForeignEntity, "already registered here")

	assert.ErrorIs(t, w.Add(mustWanderer(t, w, 1, 500, 20, nil)), ErrBlockedTerrain)
	assert.ErrorIs(t, w.Add(mustFlyer(t, 3000, 100)), ErrOutOfBounds)
	assert.ErrorIs(t, w.Add(mustFlyer(t, 520, 120)), ErrOccupied)

	plant, err := NewSneezewort(model.Pixel{X: 510, Y: 110}, plantSprites())
	require.NoError(t, err)
	assert.NoError(t, w.Add(plant), "plants may overlap other entities")

	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Add(mustFlyer(t, 1200, 100)), ErrGameStarted)
	assert.Len(t, w.Entities(), 3)
}

func TestAddCapacityAdmitsPlayer(t *testing.T) {
	w := openWorld(t)
	for i := 0; i < MaxEntities; i++ {
		plant, err := NewSneezewort(model.Pixel{X: 1000, Y: 500}, plantSprites())
		require.NoError(t, err)
		mustAdd(t, w, plant)
	}
	extra, err := NewSneezewort(model.Pixel{X: 1000, Y: 500}, plantSprites())
	require.NoError(t, err)
	assert.ErrorIs(t, w.Add(extra), ErrWorldFull)

	p := mustPlayer(t, 500, 100)
	require.NoError(t, w.Add(p))
	assert.Same(t, p, w.Player())
	assert.Len(t, w.Entities(), MaxEntities+1)

	assert.ErrorIs(t, w.Add(mustFlyer(t, 1200, 100)), ErrWorldFull)
}

func TestSerialsFollowRegistrationOrder(t *testing.T) {
	w := openWorld(t)
	f := mustFlyer(t, 1200, 100)
	p := mustPlayer(t, 500, 100)
	assert.Zero(t, f.Serial())
	mustAdd(t, w, f, p)

	assert.Equal(t, uint64(1), f.Serial())
	assert.Equal(t, uint64(2), p.Serial())
	assert.Equal(t, []*Entity{f, p}, w.Entities())
	assert.Same(t, w, p.World())
}

func TestStartRequiresPlayer(t *testing.T) {
	w := openWorld(t)
	assert.ErrorIs(t, w.Start(), ErrNoPlayer)

	mustAdd(t, w, mustPlayer(t, 500, 100))
	require.NoError(t, w.Start())
	assert.True(t, w.Started())
}

func TestAdvanceTimeDurations(t *testing.T) {
	w := openWorld(t)
	p := mustPlayer(t, 500, 100)
	mustAdd(t, w, p)
	require.NoError(t, p.StartMove(model.Right))

	for _, dt := range []float64{MaxWorldStep, -0.01, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, w.AdvanceTime(dt), ErrInvalidDuration, "dt=%v", dt)
	}
	assert.Zero(t, w.Ticks())

	before := p.Position()
	tick(t, w, 0)
	assert.Equal(t, uint64(1), w.Ticks())
	assert.Equal(t, before, p.Position(), "a zero tick moves nothing")

	tick(t, w, 0.1)
	assert.Greater(t, p.Position().X(), before.X())
}

func TestReachingTargetWins(t *testing.T) {
	w := buildWorld(t, 100, model.TileCoord{X: 5, Y: 1}, openRows)
	p := mustPlayer(t, 500, 100)
	mustAdd(t, w, p)

	assert.False(t, w.Won())
	assert.False(t, w.IsGameOver())

	tick(t, w, 0.01)
	assert.True(t, w.Won())
	assert.True(t, w.IsGameOver())
	assert.Equal(t, model.OutcomeWon, w.Outcome())
}

func TestTouchesTargetCountsSharedEdges(t *testing.T) {
	w := buildWorld(t, 100, model.TileCoord{X: 5, Y: 1}, openRows)

	assert.True(t, w.touchesTarget(Box{X: 450, Y: 100, W: 50, H: 100}), "left edge")
	assert.True(t, w.touchesTarget(Box{X: 600, Y: 150, W: 10, H: 10}), "right edge")
	assert.False(t, w.touchesTarget(Box{X: 601, Y: 150, W: 10, H: 10}))
	assert.False(t, w.touchesTarget(Box{X: 500, Y: 301, W: 10, H: 10}))
}

func TestDeadPlayerLoses(t *testing.T) {
	rec := newRecorder()
	w := openWorld(t, WithMetricsRecorder(rec))
	p := mustPlayer(t, 500, 100)
	mustAdd(t, w, p)

	require.NoError(t, p.SetHitPoints(0))
	tick(t, w, 0.05)

	assert.True(t, w.IsGameOver())
	assert.False(t, w.Won())
	assert.Equal(t, model.OutcomeLost, w.Outcome())
	assert.Equal(t, model.OutcomeLost, rec.outcome)
	assert.Equal(t, 1, rec.ticks)
}

func TestPlayerLeavingWorldLoses(t *testing.T) {
	w := openWorld(t)
	p := mustPlayer(t, 500, 100)
	mustAdd(t, w, p)

	require.NoError(t, w.Remove(p))
	assert.Nil(t, w.Player())
	assert.Nil(t, p.World())
	assert.False(t, p.IsTerminated(), "Remove does not terminate")
	assert.Equal(t, model.OutcomeRunning, w.Outcome())

	tick(t, w, 0.05)
	assert.Equal(t, model.OutcomeLost, w.Outcome())

	assert.ErrorIs(t, w.Remove(p), ErrNotInWorld)
}

func TestViewportFollowsPlayer(t *testing.T) {
	w := openWorld(t)
	mustAdd(t, w, mustPlayer(t, 500, 100))
	assert.Equal(t, model.Pixel{X: 300, Y: 0}, w.Viewport())

	width, height := w.WindowSize()
	assert.Equal(t, 800, width)
	assert.Equal(t, 600, height)
}

func TestFollowAxis(t *testing.T) {
	cases := []struct {
		name                        string
		cur, pix, dim, window, size int
		want                        int
	}{
		{"wide window scrolls", 7, 500, 50, 800, 2000, 300},
		{"wide window near edge keeps position", 7, 100, 50, 800, 2000, 7},
		{"narrow window centres", 0, 500, 50, 400, 2000, 325},
		{"narrow window clamped right", 0, 1900, 50, 400, 2000, 1600},
		{"narrow window clamped left", 0, 10, 50, 400, 2000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, followAxis(tc.cur, tc.pix, tc.dim, tc.window, tc.size))
		})
	}
}

func TestTerminateWorld(t *testing.T) {
	w := openWorld(t)
	p := mustPlayer(t, 500, 100)
	f := mustFlyer(t, 1200, 100)
	mustAdd(t, w, p, f)

	w.Terminate()
	assert.True(t, w.IsTerminated())
	assert.Empty(t, w.Entities())
	assert.Nil(t, f.World())

	assert.ErrorIs(t, w.Add(mustFlyer(t, 1500, 100)), ErrWorldTerminated)
	assert.ErrorIs(t, w.AdvanceTime(0.05), ErrWorldTerminated)
	assert.ErrorIs(t, w.Start(), ErrWorldTerminated)
	_, err := w.NewSchool()
	assert.ErrorIs(t, err, ErrWorldTerminated)
}

func TestLeavingBoundsTerminatesEntity(t *testing.T) {
	w := openWorld(t)
	f := mustFlyer(t, 1200, 100)
	mustAdd(t, w, f)

	require.NoError(t, f.SetPosition(f.Position().Add(mgl64.Vec2{10, 0})))
	assert.True(t, f.IsTerminated())
	assert.Empty(t, w.Entities())
}

func TestMetricsRecorderSeesCounts(t *testing.T) {
	rec := newRecorder()
	w := openWorld(t, WithMetricsRecorder(rec))
	mustAdd(t, w, mustPlayer(t, 500, 100), mustFlyer(t, 1200, 100))

	assert.Equal(t, 1, rec.counts[model.SpeciesPlayer])
	assert.Equal(t, 1, rec.counts[model.SpeciesFlyer])
	assert.Equal(t, 0, rec.counts[model.SpeciesWanderer])

	tick(t, w, 0.05)
	assert.Equal(t, 1, rec.ticks)
	assert.Equal(t, model.OutcomeRunning, rec.outcome)
	assert.Positive(t, rec.subSteps[model.SpeciesFlyer])
}

func TestTickSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	w := openWorld(t, WithTracer(tp.Tracer("test")))
	mustAdd(t, w, mustPlayer(t, 500, 100))

	tick(t, w, 0.05)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "world.tick", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("outcome", "running"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("entities", 1))
}
