package core

import "github.com/signalsfoundry/tileworld-simulator/model"

// viewportMargin is the distance kept between the player and the edge of a
// large visible window.
const viewportMargin = 200

// Viewport returns the bottom-left pixel of the visible window.
func (w *World) Viewport() model.Pixel { return w.viewport }

// WindowSize returns the visible window dimensions in pixels.
func (w *World) WindowSize() (width, height int) { return w.windowW, w.windowH }

func (w *World) updateViewport() {
	p := w.player
	if p == nil {
		return
	}
	box := p.Box()
	w.viewport.X = followAxis(w.viewport.X, box.X, box.W, w.windowW, w.grid.WidthPixels())
	w.viewport.Y = followAxis(w.viewport.Y, box.Y, box.H, w.windowH, w.grid.HeightPixels())
}

// followAxis computes the window position on one axis. A window wider than
// the sprite plus both margins only scrolls while the sprite is more than a
// margin away from both world edges; a smaller window centres the sprite and
// is clamped to the world.
func followAxis(cur, pix, dim, window, size int) int {
	if window > dim+2*viewportMargin {
		if pix > viewportMargin && size-(pix+dim) > viewportMargin {
			return pix - viewportMargin
		}
		return cur
	}
	pos := pix + dim/2 - window/2
	switch {
	case pos+window >= size:
		return size - window
	case pos < 0:
		return 0
	}
	return pos
}
