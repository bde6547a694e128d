package model

import "fmt"

// Species tags the closed set of simulated entity kinds.
type Species int

const (
	SpeciesUnknown Species = iota
	SpeciesPlayer
	SpeciesFlyer
	SpeciesWanderer
	SpeciesSkullcab
	SpeciesSneezewort
)

var speciesNames = map[Species]string{
	SpeciesUnknown:    "unknown",
	SpeciesPlayer:     "player",
	SpeciesFlyer:      "flyer",
	SpeciesWanderer:   "wanderer",
	SpeciesSkullcab:   "skullcab",
	SpeciesSneezewort: "sneezewort",
}

func (s Species) String() string {
	if n, ok := speciesNames[s]; ok {
		return n
	}
	return "unknown"
}

// IsPlant reports whether the species is one of the plant kinds.
func (s Species) IsPlant() bool {
	return s == SpeciesSkullcab || s == SpeciesSneezewort
}

// SpeciesFromName resolves a scenario species name.
func SpeciesFromName(name string) (Species, error) {
	for s, n := range speciesNames {
		if s != SpeciesUnknown && n == name {
			return s, nil
		}
	}
	return SpeciesUnknown, fmt.Errorf("unknown species %q", name)
}

// AllSpecies lists every concrete species, in a stable order.
func AllSpecies() []Species {
	return []Species{SpeciesPlayer, SpeciesFlyer, SpeciesWanderer, SpeciesSkullcab, SpeciesSneezewort}
}

// Orientation is the facing of an entity: -1 left, 0 none, +1 right.
type Orientation int

const (
	Left  Orientation = -1
	None  Orientation = 0
	Right Orientation = 1
)

// Valid reports whether o is -1, 0 or +1.
func (o Orientation) Valid() bool { return o >= Left && o <= Right }

// Sign returns the orientation as a float multiplier.
func (o Orientation) Sign() float64 { return float64(o) }

// Sprite is an image consumed only for its bounding-box dimensions.
type Sprite struct {
	Name   string
	Width  int
	Height int
}

// Valid reports whether the sprite has a usable box.
func (s *Sprite) Valid() bool {
	return s != nil && s.Width > 0 && s.Height > 0
}

// Pixel is an integer pixel coordinate (1 pixel = 1 cm).
type Pixel struct {
	X int
	Y int
}

// TileCoord addresses a tile by column and row.
type TileCoord struct {
	X int
	Y int
}
