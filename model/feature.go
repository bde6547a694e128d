package model

import "strings"

// Feature classifies a single terrain tile.
type Feature int

const (
	FeatureAir Feature = iota
	FeatureSolidGround
	FeatureWater
	FeatureMagma
	FeatureIce
	FeatureGas
)

// Passability tells whether entities may occupy a tile.
type Passability int

const (
	Passable Passability = iota
	Impassable
)

var featureNames = map[Feature]string{
	FeatureAir:         "air",
	FeatureSolidGround: "solid",
	FeatureWater:       "water",
	FeatureMagma:       "magma",
	FeatureIce:         "ice",
	FeatureGas:         "gas",
}

// ParseFeature maps a raw feature code to a Feature. Unknown codes become Air.
func ParseFeature(code int) Feature {
	f := Feature(code)
	if !f.Valid() {
		return FeatureAir
	}
	return f
}

// FeatureFromName resolves the lower-case scenario name of a feature.
// Unknown names resolve to Air and ok=false.
func FeatureFromName(name string) (f Feature, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "solid_ground", "ground":
		return FeatureSolidGround, true
	}
	for feature, n := range featureNames {
		if n == name {
			return feature, true
		}
	}
	return FeatureAir, false
}

// Valid reports whether f is one of the known feature codes.
func (f Feature) Valid() bool {
	_, ok := featureNames[f]
	return ok
}

// Passability is a static lookup: solid ground and ice block movement.
func (f Feature) Passability() Passability {
	switch f {
	case FeatureSolidGround, FeatureIce:
		return Impassable
	default:
		return Passable
	}
}

// Passable is shorthand for Passability() == Passable.
func (f Feature) Passable() bool { return f.Passability() == Passable }

func (f Feature) String() string {
	if n, ok := featureNames[f]; ok {
		return n
	}
	return "unknown"
}
