package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

// boxSprites returns n sprites of one size.
func boxSprites(name string, n, w, h int) []*model.Sprite {
	out := make([]*model.Sprite, n)
	for i := range out {
		out[i] = &model.Sprite{Name: name, Width: w, Height: h}
	}
	return out
}

// playerSprites is a ten sprite set, 50x100 standing and 50x50 ducking.
func playerSprites() []*model.Sprite {
	s := boxSprites("player", 10, 50, 100)
	for _, i := range []int{1, 6, 7} {
		s[i] = &model.Sprite{Name: "player-duck", Width: 50, Height: 50}
	}
	return s
}

func flyerSprites() []*model.Sprite    { return boxSprites("flyer", 3, 60, 40) }
func wandererSprites() []*model.Sprite { return boxSprites("wanderer", 2, 40, 30) }
func plantSprites() []*model.Sprite    { return boxSprites("plant", 2, 30, 30) }

// buildWorld lays out rows top row first using the scenario legend; the
// number of columns is taken from the first row.
func buildWorld(t *testing.T, tileSize int, target model.TileCoord, rows []string, opts ...WorldOption) *World {
	t.Helper()
	wy := worldYAML{
		TileSize: tileSize,
		Tiles:    xyYAML{X: len(rows[0]), Y: len(rows)},
		Rows:     rows,
	}
	codes, err := wy.codes()
	require.NoError(t, err)
	w, err := NewWorld(WorldConfig{
		TileSize:     tileSize,
		TilesX:       wy.Tiles.X,
		TilesY:       wy.Tiles.Y,
		Target:       target,
		WindowWidth:  800,
		WindowHeight: 600,
		Features:     codes,
	}, opts...)
	require.NoError(t, err)
	return w
}

// openRows is a 20x10 layout with a solid floor.
var openRows = []string{
	"....................",
	"....................",
	"....................",
	"....................",
	"....................",
	"....................",
	"....................",
	"....................",
	"....................",
	"####################",
}

// openWorld is 2000x1000 pixels with its target in the top right corner.
func openWorld(t *testing.T, opts ...WorldOption) *World {
	t.Helper()
	return buildWorld(t, 100, model.TileCoord{X: 19, Y: 9}, openRows, opts...)
}

func mustPlayer(t *testing.T, x, y int) *Entity {
	t.Helper()
	e, err := NewPlayer(model.Pixel{X: x, Y: y}, playerSprites())
	require.NoError(t, err)
	return e
}

func mustFlyer(t *testing.T, x, y int) *Entity {
	t.Helper()
	e, err := NewFlyer(model.Pixel{X: x, Y: y}, flyerSprites())
	require.NoError(t, err)
	return e
}

func mustWanderer(t *testing.T, w *World, tag int64, x, y int, school *School) *Entity {
	t.Helper()
	e, err := NewWanderer(w.IDs(), tag, model.Pixel{X: x, Y: y}, school, wandererSprites())
	require.NoError(t, err)
	return e
}

func mustAdd(t *testing.T, w *World, entities ...*Entity) {
	t.Helper()
	for _, e := range entities {
		require.NoError(t, w.Add(e), "add %s", e)
	}
}

func tick(t *testing.T, w *World, dt float64) {
	t.Helper()
	require.NoError(t, w.AdvanceTime(dt))
}

// recorder captures MetricsRecorder calls.
type recorder struct {
	ticks    int
	subSteps map[model.Species]int
	damage   map[string]int
	deaths   map[model.Species]int
	counts   map[model.Species]int
	outcome  model.Outcome
}

func newRecorder() *recorder {
	return &recorder{
		subSteps: map[model.Species]int{},
		damage:   map[string]int{},
		deaths:   map[model.Species]int{},
	}
}

func (r *recorder) ObserveTick(float64, time.Duration)          { r.ticks++ }
func (r *recorder) AddSubSteps(s model.Species, n int)          { r.subSteps[s] += n }
func (r *recorder) AddDamage(s model.Species, c string, hp int) { r.damage[s.String()+"/"+c] += hp }
func (r *recorder) IncDeaths(s model.Species)                   { r.deaths[s]++ }
func (r *recorder) SetEntityCounts(c map[model.Species]int)     { r.counts = c }
func (r *recorder) SetOutcome(o model.Outcome)                  { r.outcome = o }
