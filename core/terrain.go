package core

import (
	"fmt"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

// FeatureReader resolves the terrain feature under a pixel.
type FeatureReader interface {
	FeatureAt(px, py int) model.Feature
}

// TerrainGrid is a fixed-size grid of square tiles, each holding one Feature.
// Dimensions are immutable; tile features may be changed with SetFeature.
type TerrainGrid struct {
	tileSize int
	tilesX   int
	tilesY   int
	features []model.Feature
}

// NewTerrainGrid builds a grid of tilesX*tilesY tiles of tileSize pixels.
// Codes are laid out row by row from the bottom-left tile; missing codes are
// padded with Air, unknown codes are stored as Air and surplus codes ignored.
func NewTerrainGrid(tileSize, tilesX, tilesY int, codes []int) (*TerrainGrid, error) {
	if tileSize <= 0 || tilesX <= 0 || tilesY <= 0 {
		return nil, fmt.Errorf("%w: tile size %d, tiles %dx%d", ErrInvalidDimensions, tileSize, tilesX, tilesY)
	}
	g := &TerrainGrid{
		tileSize: tileSize,
		tilesX:   tilesX,
		tilesY:   tilesY,
		features: make([]model.Feature, tilesX*tilesY),
	}
	for i := 0; i < len(g.features) && i < len(codes); i++ {
		g.features[i] = model.ParseFeature(codes[i])
	}
	return g, nil
}

func (g *TerrainGrid) TileSize() int     { return g.tileSize }
func (g *TerrainGrid) TilesX() int       { return g.tilesX }
func (g *TerrainGrid) TilesY() int       { return g.tilesY }
func (g *TerrainGrid) WidthPixels() int  { return g.tilesX * g.tileSize }
func (g *TerrainGrid) HeightPixels() int { return g.tilesY * g.tileSize }

func (g *TerrainGrid) inBounds(px, py int) bool {
	return px >= 0 && px < g.WidthPixels() && py >= 0 && py < g.HeightPixels()
}

// tileIndex returns the 1-based tile number containing the pixel.
func (g *TerrainGrid) tileIndex(px, py int) int {
	return (py/g.tileSize)*g.tilesX + px/g.tileSize + 1
}

// FeatureAt returns the feature of the tile containing the pixel, or Air when
// the pixel lies outside the grid.
func (g *TerrainGrid) FeatureAt(px, py int) model.Feature {
	if !g.inBounds(px, py) {
		return model.FeatureAir
	}
	return g.features[g.tileIndex(px, py)-1]
}

// FeatureAtTile returns the feature stored for tile (tx, ty).
func (g *TerrainGrid) FeatureAtTile(tx, ty int) model.Feature {
	return g.FeatureAt(tx*g.tileSize, ty*g.tileSize)
}

// SetFeature stores the feature for the tile containing the pixel. Pixels
// outside the grid are ignored; unknown codes are stored as Air.
func (g *TerrainGrid) SetFeature(px, py int, code int) {
	if !g.inBounds(px, py) {
		return
	}
	g.features[g.tileIndex(px, py)-1] = model.ParseFeature(code)
}

// Codes returns a copy of the raw feature codes in tile order.
func (g *TerrainGrid) Codes() []int {
	out := make([]int, len(g.features))
	for i, f := range g.features {
		out[i] = int(f)
	}
	return out
}
