package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/tileworld-simulator/internal/script"
	"github.com/signalsfoundry/tileworld-simulator/model"
)

// ErrInvalidScenario wraps structural problems in a scenario document.
var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a fully built, not yet started world together with the player
// script that should drive it.
type Scenario struct {
	Name     string
	World    *World
	Player   *Entity
	Schools  []*School
	Entities []*Entity // registration order
	Intents  []script.Intent
}

// YAML decode shapes.
type scenarioYAML struct {
	Name     string                   `yaml:"name"`
	World    worldYAML                `yaml:"world"`
	Sprites  map[string]spriteSetYAML `yaml:"sprites"`
	Schools  int                      `yaml:"schools"`
	Entities []entityYAML             `yaml:"entities"`
	Script   []intentYAML             `yaml:"script"`
}

type worldYAML struct {
	TileSize int      `yaml:"tile_size"`
	Tiles    xyYAML   `yaml:"tiles"`
	Window   sizeYAML `yaml:"window"`
	Target   xyYAML   `yaml:"target"`
	Rows     []string `yaml:"rows"`     // top row first, one rune per tile
	Features []int    `yaml:"features"` // raw codes from the bottom-left tile; ignored when rows are set
}

type xyYAML struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type sizeYAML struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// spriteSetYAML lists frames explicitly, or repeats one box Count times.
type spriteSetYAML struct {
	Count  int          `yaml:"count"`
	Width  int          `yaml:"width"`
	Height int          `yaml:"height"`
	Frames []spriteYAML `yaml:"frames"`
}

type spriteYAML struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type entityYAML struct {
	Species string `yaml:"species"`
	At      xyYAML `yaml:"at"`
	Sprites string `yaml:"sprites"`
	School  *int   `yaml:"school"` // wanderers only
	Tag     int64  `yaml:"tag"`    // wanderers only
}

type intentYAML struct {
	At        string `yaml:"at"` // Go duration, e.g. "1.5s"
	Action    string `yaml:"action"`
	Direction string `yaml:"direction"`
}

// tileRunes maps the row legend to feature codes.
var tileRunes = map[rune]model.Feature{
	'.': model.FeatureAir,
	' ': model.FeatureAir,
	'#': model.FeatureSolidGround,
	'~': model.FeatureWater,
	'^': model.FeatureMagma,
	'=': model.FeatureIce,
	'%': model.FeatureGas,
}

// LoadScenarioFile opens path and delegates to LoadScenario.
func LoadScenarioFile(path string, opts ...WorldOption) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	defer f.Close()
	return LoadScenario(f, opts...)
}

// LoadScenario reads a YAML scenario from r, builds the world with opts,
// creates the schools and registers every entity in document order.
//
// Entity construction and registration go through the same constructors and
// World.Add as direct callers, so their errors surface unchanged (wrapped
// with the entity's index).
func LoadScenario(r io.Reader, opts ...WorldOption) (*Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("load scenario: decode failed: %w", err)
	}

	codes, err := payload.World.codes()
	if err != nil {
		return nil, err
	}
	w, err := NewWorld(WorldConfig{
		TileSize:     payload.World.TileSize,
		TilesX:       payload.World.Tiles.X,
		TilesY:       payload.World.Tiles.Y,
		Target:       model.TileCoord{X: payload.World.Target.X, Y: payload.World.Target.Y},
		WindowWidth:  payload.World.Window.Width,
		WindowHeight: payload.World.Window.Height,
		Features:     codes,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	sc := &Scenario{Name: payload.Name, World: w}

	// 1) Schools
	if payload.Schools < 0 || payload.Schools > MaxSchools {
		return nil, fmt.Errorf("%w: %d schools (max %d)", ErrInvalidScenario, payload.Schools, MaxSchools)
	}
	for i := 0; i < payload.Schools; i++ {
		s, err := w.NewSchool()
		if err != nil {
			return nil, fmt.Errorf("load scenario: school %d: %w", i, err)
		}
		sc.Schools = append(sc.Schools, s)
	}

	// 2) Sprite sets
	sets := make(map[string][]*model.Sprite, len(payload.Sprites))
	for name, set := range payload.Sprites {
		sprites, err := set.build(name)
		if err != nil {
			return nil, err
		}
		sets[name] = sprites
	}

	// 3) Entities
	for i, ey := range payload.Entities {
		e, err := sc.buildEntity(ey, sets)
		if err != nil {
			return nil, fmt.Errorf("load scenario: entity %d: %w", i, err)
		}
		if err := w.Add(e); err != nil {
			return nil, fmt.Errorf("load scenario: entity %d (%s): %w", i, ey.Species, err)
		}
		sc.Entities = append(sc.Entities, e)
		if e.Species() == model.SpeciesPlayer {
			sc.Player = e
		}
	}

	// 4) Script
	for i, iy := range payload.Script {
		in, err := iy.intent()
		if err != nil {
			return nil, fmt.Errorf("load scenario: script step %d: %w", i, err)
		}
		sc.Intents = append(sc.Intents, in)
	}
	if len(sc.Intents) > 0 && sc.Player == nil {
		return nil, fmt.Errorf("%w: script without a player", ErrInvalidScenario)
	}

	return sc, nil
}

// codes flattens the rows legend into bottom-up feature codes.
func (wy worldYAML) codes() ([]int, error) {
	if len(wy.Rows) == 0 {
		return wy.Features, nil
	}
	if len(wy.Rows) > wy.Tiles.Y {
		return nil, fmt.Errorf("%w: %d rows for %d tile rows", ErrInvalidScenario, len(wy.Rows), wy.Tiles.Y)
	}
	codes := make([]int, wy.Tiles.X*wy.Tiles.Y)
	for i, row := range wy.Rows {
		y := len(wy.Rows) - 1 - i
		x := 0
		for _, r := range row {
			if x >= wy.Tiles.X {
				return nil, fmt.Errorf("%w: row %d wider than %d tiles", ErrInvalidScenario, i, wy.Tiles.X)
			}
			f, ok := tileRunes[r]
			if !ok {
				return nil, fmt.Errorf("%w: row %d: unknown tile %q", ErrInvalidScenario, i, r)
			}
			codes[y*wy.Tiles.X+x] = int(f)
			x++
		}
	}
	return codes, nil
}

func (s spriteSetYAML) build(name string) ([]*model.Sprite, error) {
	if len(s.Frames) > 0 {
		out := make([]*model.Sprite, 0, len(s.Frames))
		for i, f := range s.Frames {
			frameName := f.Name
			if frameName == "" {
				frameName = fmt.Sprintf("%s-%d", name, i)
			}
			out = append(out, &model.Sprite{Name: frameName, Width: f.Width, Height: f.Height})
		}
		return out, nil
	}
	if s.Count <= 0 {
		return nil, fmt.Errorf("%w: sprite set %q has no frames", ErrInvalidScenario, name)
	}
	out := make([]*model.Sprite, s.Count)
	for i := range out {
		out[i] = &model.Sprite{Name: fmt.Sprintf("%s-%d", name, i), Width: s.Width, Height: s.Height}
	}
	return out, nil
}

func (sc *Scenario) buildEntity(ey entityYAML, sets map[string][]*model.Sprite) (*Entity, error) {
	species, err := model.SpeciesFromName(strings.ToLower(strings.TrimSpace(ey.Species)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	sprites, ok := sets[ey.Sprites]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sprite set %q", ErrInvalidScenario, ey.Sprites)
	}
	px := model.Pixel{X: ey.At.X, Y: ey.At.Y}

	if species != model.SpeciesWanderer && (ey.School != nil || ey.Tag != 0) {
		return nil, fmt.Errorf("%w: school and tag apply to wanderers only", ErrInvalidScenario)
	}

	switch species {
	case model.SpeciesPlayer:
		return NewPlayer(px, sprites)
	case model.SpeciesFlyer:
		return NewFlyer(px, sprites)
	case model.SpeciesSkullcab:
		return NewSkullcab(px, sprites)
	case model.SpeciesSneezewort:
		return NewSneezewort(px, sprites)
	case model.SpeciesWanderer:
		var school *School
		if ey.School != nil {
			idx := *ey.School
			if idx < 0 || idx >= len(sc.Schools) {
				return nil, fmt.Errorf("%w: school %d of %d", ErrInvalidScenario, idx, len(sc.Schools))
			}
			school = sc.Schools[idx]
		}
		return NewWanderer(sc.World.IDs(), ey.Tag, px, school, sprites)
	}
	return nil, fmt.Errorf("%w: species %s cannot be loaded", ErrInvalidScenario, species)
}

func (iy intentYAML) intent() (script.Intent, error) {
	var at time.Duration
	if iy.At != "" {
		d, err := time.ParseDuration(iy.At)
		if err != nil {
			return script.Intent{}, fmt.Errorf("%w: at: %w", ErrInvalidScenario, err)
		}
		if d < 0 {
			return script.Intent{}, fmt.Errorf("%w: negative time %s", ErrInvalidScenario, d)
		}
		at = d
	}
	action, err := script.ParseAction(iy.Action)
	if err != nil {
		return script.Intent{}, err
	}
	in := script.Intent{At: at, Action: action}
	if action == script.ActionStartMove {
		switch strings.ToLower(strings.TrimSpace(iy.Direction)) {
		case "left":
			in.Direction = model.Left
		case "right":
			in.Direction = model.Right
		default:
			return script.Intent{}, fmt.Errorf("%w: start_move needs direction left or right, got %q", ErrInvalidScenario, iy.Direction)
		}
	}
	return in, nil
}
