package core

import "github.com/signalsfoundry/tileworld-simulator/model"

// Box is an axis-aligned pixel rectangle anchored at its bottom-left pixel.
// The box covers columns X..X+W-1 and rows Y..Y+H-1.
type Box struct {
	X, Y int
	W, H int
}

func (b Box) right() int { return b.X + b.W - 1 }
func (b Box) top() int   { return b.Y + b.H - 1 }

// rangesIntersect reports whether [lo1, hi1] and [lo2, hi2] share a pixel.
func rangesIntersect(lo1, hi1, lo2, hi2 int) bool {
	return lo1 <= hi2 && lo2 <= hi1
}

// Overlaps reports whether the two boxes share at least one pixel.
func Overlaps(a, b Box) bool {
	return !(a.right() < b.X) && !(b.right() < a.X) && !(a.top() < b.Y) && !(b.top() < a.Y)
}

// TouchesRight reports whether b sits against the right side of a.
func TouchesRight(a, b Box) bool {
	if a.X+a.W+1 != b.X {
		return false
	}
	return rangesIntersect(a.Y, a.top(), b.Y, b.top())
}

// TouchesLeft reports whether b sits against the left side of a. The bottom
// row of a is not considered.
func TouchesLeft(a, b Box) bool {
	if a.X != b.X+b.W {
		return false
	}
	if a.H < 2 {
		return false
	}
	return rangesIntersect(a.Y+1, a.top(), b.Y, b.top())
}

// TouchesTop reports whether b sits on top of a.
func TouchesTop(a, b Box) bool {
	if a.Y+a.H+1 != b.Y {
		return false
	}
	return rangesIntersect(a.X, a.right(), b.X, b.right())
}

// TouchesBottom reports whether a stands on b: the bottom row of a shares the
// top row of b.
func TouchesBottom(a, b Box) bool {
	if a.Y != b.top() {
		return false
	}
	return rangesIntersect(a.X, a.right(), b.X, b.right())
}

// Touches reports adjacency in any of the four directions.
func Touches(a, b Box) bool {
	return TouchesBottom(a, b) || TouchesTop(a, b) || TouchesLeft(a, b) || TouchesRight(a, b)
}

func impassableAt(g FeatureReader, px, py int) bool {
	return !g.FeatureAt(px, py).Passable()
}

func impassableColumn(g FeatureReader, px, fromY, toY int) bool {
	for py := fromY; py <= toY; py++ {
		if impassableAt(g, px, py) {
			return true
		}
	}
	return false
}

func impassableRow(g FeatureReader, py, fromX, toX int) bool {
	for px := fromX; px <= toX; px++ {
		if impassableAt(g, px, py) {
			return true
		}
	}
	return false
}

// TerrainRight scans the column just right of the box, excluding its bottom
// and top rows.
func TerrainRight(g FeatureReader, b Box) bool {
	return impassableColumn(g, b.X+b.W, b.Y+1, b.Y+b.H-2)
}

// TerrainLeft scans the box's own left column, excluding its bottom and top rows.
func TerrainLeft(g FeatureReader, b Box) bool {
	return impassableColumn(g, b.X, b.Y+1, b.Y+b.H-2)
}

// TerrainTop scans the row one pixel above the box's top edge, excluding the
// leftmost column.
func TerrainTop(g FeatureReader, b Box) bool {
	return impassableRow(g, b.Y+b.H+1, b.X+1, b.X+b.W-1)
}

// TerrainBottom scans the box's own bottom row, excluding the leftmost column.
func TerrainBottom(g FeatureReader, b Box) bool {
	return impassableRow(g, b.Y, b.X+1, b.X+b.W-1)
}

// RestingOnGround reports whether the row directly beneath the box is
// impassable anywhere across its width, minus the leftmost column.
func RestingOnGround(g FeatureReader, b Box) bool {
	return impassableRow(g, b.Y-1, b.X+1, b.X+b.W-1)
}

// OverlapsImpassable reports whether any pixel of the box above its bottom
// row lies in impassable terrain.
func OverlapsImpassable(g FeatureReader, b Box) bool {
	for px := b.X; px <= b.right(); px++ {
		if impassableColumn(g, px, b.Y+1, b.top()) {
			return true
		}
	}
	return false
}

// InteriorBlocked is the strict placement check used for the player: any
// pixel at offsets 1..W-1 and 1..H-1 from the anchor may not be impassable.
func InteriorBlocked(g FeatureReader, b Box) bool {
	for dx := 1; dx <= b.W-1; dx++ {
		if impassableColumn(g, b.X+dx, b.Y+1, b.Y+b.H-1) {
			return true
		}
	}
	return false
}

// FeatureSet is the set of features touched by a box.
type FeatureSet map[model.Feature]struct{}

// Has reports membership.
func (s FeatureSet) Has(f model.Feature) bool {
	_, ok := s[f]
	return ok
}

// OverlappingFeatures collects every feature under any pixel of the box.
func OverlappingFeatures(g FeatureReader, b Box) FeatureSet {
	set := make(FeatureSet, 2)
	for px := b.X; px <= b.right(); px++ {
		for py := b.Y; py <= b.top(); py++ {
			set[g.FeatureAt(px, py)] = struct{}{}
		}
	}
	return set
}

// topRowFeature reports whether any pixel of the row one above the box's top
// edge, minus the leftmost column, holds the given feature.
func topRowFeature(g FeatureReader, b Box, f model.Feature) bool {
	py := b.Y + b.H + 1
	for px := b.X + 1; px <= b.X+b.W-1; px++ {
		if g.FeatureAt(px, py) == f {
			return true
		}
	}
	return false
}
