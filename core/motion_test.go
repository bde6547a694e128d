package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

func TestSubStepMovesAtMostOnePixel(t *testing.T) {
	cases := []struct {
		v, a mgl64.Vec2
	}{
		{mgl64.Vec2{1, 0}, mgl64.Vec2{0.9, 0}},
		{mgl64.Vec2{3, 8}, mgl64.Vec2{0, -10}},
		{mgl64.Vec2{-0.75, 2}, mgl64.Vec2{-1.5, -10}},
		{mgl64.Vec2{0.5, 0}, mgl64.Vec2{}},
		{mgl64.Vec2{}, mgl64.Vec2{0, -10}},
		{mgl64.Vec2{-2.5, 0}, mgl64.Vec2{0.7, 0}},
	}
	for _, tc := range cases {
		for _, remaining := range []float64{0.2, 0.05, 0.001} {
			dt := SubStep(tc.v, tc.a, remaining)
			require.Greater(t, dt, 0.0)
			require.LessOrEqual(t, dt, remaining)

			for axis := 0; axis < 2; axis++ {
				p, _ := Kinematics(0, tc.v[axis], tc.a[axis], dt)
				assert.LessOrEqual(t, math.Abs(p), 0.01+1e-12,
					"v=%v a=%v remaining=%v axis=%d", tc.v, tc.a, remaining, axis)
			}
		}
	}
}

func TestSubStepAtRestUsesRemainingTime(t *testing.T) {
	assert.Equal(t, 0.15, SubStep(mgl64.Vec2{}, mgl64.Vec2{}, 0.15))
	assert.InDelta(t, 0.01/1.9, SubStep(mgl64.Vec2{1, 0}, mgl64.Vec2{0.9, 0}, 0.2), 1e-15)
}

func TestKinematics(t *testing.T) {
	p, v := Kinematics(1, 2, -10, 0.1)
	assert.InDelta(t, 1.15, p, 1e-12)
	assert.InDelta(t, 1.0, v, 1e-12)
}

func TestAdvanceRunningPlayer(t *testing.T) {
	w := openWorld(t)
	p := mustPlayer(t, 500, 100)
	mustAdd(t, w, p)

	require.NoError(t, p.StartMove(model.Right))
	require.NoError(t, p.Advance(0.2))

	assert.InDelta(t, 5.218, p.Position().X(), 1e-9)
	assert.InDelta(t, 1.0, p.Position().Y(), 1e-9)
	assert.InDelta(t, 1.18, p.Velocity().X(), 1e-9)
	assert.Equal(t, model.Pixel{X: 521, Y: 100}, p.PixelPosition())
}

func TestAdvanceRejectsBadDurations(t *testing.T) {
	p := mustPlayer(t, 500, 100)
	for _, dt := range []float64{0, -0.1, 0.21} {
		assert.ErrorIs(t, p.Advance(dt), ErrInvalidDuration, "dt=%v", dt)
	}
	p.Terminate()
	assert.ErrorIs(t, p.Advance(0.1), ErrTerminated)
}

func TestAdvanceRecordsSubSteps(t *testing.T) {
	rec := newRecorder()
	w := openWorld(t, WithMetricsRecorder(rec))
	p := mustPlayer(t, 500, 100)
	mustAdd(t, w, p)

	require.NoError(t, p.Advance(0.2))
	assert.Equal(t, 1, rec.subSteps[model.SpeciesPlayer], "a resting player takes one sub-step")

	require.NoError(t, p.StartMove(model.Right))
	require.NoError(t, p.Advance(0.2))
	assert.Greater(t, rec.subSteps[model.SpeciesPlayer], 30)
}

func TestMoveByFallsBackPerAxis(t *testing.T) {
	// A wall at column 6 stops horizontal motion but the player keeps falling.
	rows := []string{
		"......#.............",
		"......#.............",
		"......#.............",
		"......#.............",
		"......#.............",
		"......#.............",
		"......#.............",
		"......#.............",
		"......#.............",
		"####################",
	}
	w := buildWorld(t, 100, model.TileCoord{X: 19, Y: 9}, rows)
	p := mustPlayer(t, 549, 300)
	mustAdd(t, w, p)

	require.NoError(t, p.SetVelocity(mgl64.Vec2{3, -1}))
	require.NoError(t, p.SetOrientation(model.Right))
	require.NoError(t, p.SetAcceleration(mgl64.Vec2{0, Gravity}))
	p.moveBy(0.01, true, true)

	assert.Equal(t, 549, p.PixelPosition().X, "blocked axis keeps its coordinate")
	assert.Less(t, p.PixelPosition().Y, 300)
	assert.Zero(t, p.Velocity().X())
	assert.Less(t, p.Velocity().Y(), 0.0)
}
