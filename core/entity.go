package core

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

const (
	// ContactCooldown is the minimum time between two damage applications
	// from the same ongoing contact.
	ContactCooldown = 0.6
	// DeathLinger is how long a dead entity stays registered before removal.
	DeathLinger = 0.6
	// Gravity is the vertical acceleration applied to falling entities.
	Gravity = -10.0
	// PixelsPerMeter converts meters to the pixel (centimeter) grid.
	PixelsPerMeter = 100
)

// behavior is the species-specific part of an Entity.
type behavior interface {
	species() model.Species
	maxHitPoints() int
	validSprites(sprites []*model.Sprite) bool
	currentSprite(e *Entity) *model.Sprite
	// clampVelocity applies the species speed limits to a proposed velocity.
	clampVelocity(e *Entity, v mgl64.Vec2) mgl64.Vec2
	// step advances the entity by one sub-step.
	step(e *Entity, dt float64)
}

// Entity is the kinematic, health and sprite-box record shared by every
// simulated thing. It is created detached and owned by at most one World.
type Entity struct {
	serial uint64
	tag    int64

	pos mgl64.Vec2
	vel mgl64.Vec2
	acc mgl64.Vec2

	orientation model.Orientation
	hitPoints   int
	sprites     []*model.Sprite

	terminated   bool
	sinceContact float64
	deadFor      float64

	world  *World
	school *School

	behavior behavior
}

func newEntity(px model.Pixel, sprites []*model.Sprite, b behavior) (*Entity, error) {
	if px.X < 0 || px.Y < 0 {
		return nil, fmt.Errorf("%w: negative pixel position (%d, %d)", ErrInvalidPosition, px.X, px.Y)
	}
	if !b.validSprites(sprites) {
		return nil, fmt.Errorf("%w: %d sprites for %s", ErrInvalidSprites, len(sprites), b.species())
	}
	e := &Entity{
		pos:          mgl64.Vec2{float64(px.X) / PixelsPerMeter, float64(px.Y) / PixelsPerMeter},
		sprites:      slices.Clone(sprites),
		sinceContact: ContactCooldown,
		behavior:     b,
	}
	return e, nil
}

// allSpritesValid checks a sprite array for nil or empty entries.
func allSpritesValid(sprites []*model.Sprite) bool {
	for _, s := range sprites {
		if !s.Valid() {
			return false
		}
	}
	return true
}

func (e *Entity) Species() model.Species { return e.behavior.species() }

// Serial is the registration number assigned by the owning world (0 when detached).
func (e *Entity) Serial() uint64 { return e.serial }

// Tag is the identity tag of a wanderer; other species report 0.
func (e *Entity) Tag() int64 { return e.tag }

func (e *Entity) Position() mgl64.Vec2     { return e.pos }
func (e *Entity) Velocity() mgl64.Vec2     { return e.vel }
func (e *Entity) Acceleration() mgl64.Vec2 { return e.acc }

func (e *Entity) Orientation() model.Orientation { return e.orientation }
func (e *Entity) HitPoints() int                 { return e.hitPoints }
func (e *Entity) MaxHitPoints() int              { return e.behavior.maxHitPoints() }
func (e *Entity) IsDead() bool                   { return e.hitPoints <= 0 }
func (e *Entity) IsTerminated() bool             { return e.terminated }
func (e *Entity) World() *World                  { return e.world }
func (e *Entity) School() *School                { return e.school }

// ContactTimer returns the time since this entity last dealt or took contact damage.
func (e *Entity) ContactTimer() float64 { return e.sinceContact }

// Sprites returns a copy of the sprite set.
func (e *Entity) Sprites() []*model.Sprite { return slices.Clone(e.sprites) }

// Sprite returns the sprite currently selected by the species.
func (e *Entity) Sprite() *model.Sprite { return e.behavior.currentSprite(e) }

// PixelPosition is the position in centimeters, truncated toward zero.
func (e *Entity) PixelPosition() model.Pixel { return toPixel(e.pos) }

// pixelEpsilon absorbs the rounding of a pixel to meters round trip, so a
// position set from pixel p reads back as p and not p-1.
const pixelEpsilon = 1e-9

func toPixel(p mgl64.Vec2) model.Pixel {
	return model.Pixel{X: toCentimeters(p.X()), Y: toCentimeters(p.Y())}
}

// toCentimeters truncates toward zero.
func toCentimeters(m float64) int {
	v := m * PixelsPerMeter
	if v < 0 {
		return int(v - pixelEpsilon)
	}
	return int(v + pixelEpsilon)
}

// Box is the entity's current pixel bounding box.
func (e *Entity) Box() Box { return e.boxAt(e.pos) }

func (e *Entity) boxAt(p mgl64.Vec2) Box {
	px := toPixel(p)
	s := e.Sprite()
	return Box{X: px.X, Y: px.Y, W: s.Width, H: s.Height}
}

func (e *Entity) isPlant() bool { return e.Species().IsPlant() }

func (e *Entity) String() string {
	px := e.PixelPosition()
	return fmt.Sprintf("%s#%d@(%d,%d)", e.Species(), e.serial, px.X, px.Y)
}

// SetHitPoints stores hp clamped to [0, max].
func (e *Entity) SetHitPoints(hp int) error {
	if e.terminated {
		return ErrTerminated
	}
	e.setHitPoints(hp)
	return nil
}

func (e *Entity) setHitPoints(hp int) {
	e.hitPoints = max(0, min(hp, e.MaxHitPoints()))
}

// adjustHitPoints applies delta and reports any loss to the world's metrics
// under the given cause.
func (e *Entity) adjustHitPoints(delta int, cause string) {
	before := e.hitPoints
	e.setHitPoints(before + delta)
	if lost := before - e.hitPoints; lost > 0 && e.world != nil {
		e.world.recordDamage(e, cause, lost)
	}
}

// kill drops hit points to zero.
func (e *Entity) kill(cause string) {
	e.adjustHitPoints(-e.hitPoints, cause)
}

// SetVelocity stores v after the species speed limits are applied.
func (e *Entity) SetVelocity(v mgl64.Vec2) error {
	if e.terminated {
		return ErrTerminated
	}
	if math.IsNaN(v.X()) || math.IsNaN(v.Y()) {
		return fmt.Errorf("%w: NaN velocity", ErrInvalidPosition)
	}
	e.setVelocity(v)
	return nil
}

func (e *Entity) setVelocity(v mgl64.Vec2) {
	e.vel = e.behavior.clampVelocity(e, v)
}

func (e *Entity) setVX(vx float64) { e.setVelocity(mgl64.Vec2{vx, e.vel.Y()}) }
func (e *Entity) setVY(vy float64) { e.setVelocity(mgl64.Vec2{e.vel.X(), vy}) }
func (e *Entity) setAX(ax float64) { e.acc[0] = ax }
func (e *Entity) setAY(ay float64) { e.acc[1] = ay }

// SetAcceleration replaces the acceleration vector.
func (e *Entity) SetAcceleration(a mgl64.Vec2) error {
	if e.terminated {
		return ErrTerminated
	}
	e.acc = a
	return nil
}

// SetOrientation changes the facing of the entity.
func (e *Entity) SetOrientation(o model.Orientation) error {
	if e.terminated {
		return ErrTerminated
	}
	if !o.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidOrientation, o)
	}
	e.orientation = o
	return nil
}

// SetPosition moves a detached entity, or an entity inside a world, to p.
// Leaving the world bounds terminates the entity.
func (e *Entity) SetPosition(p mgl64.Vec2) error {
	if e.terminated {
		return ErrTerminated
	}
	return e.place(p)
}

// place validates and stores a new position.
func (e *Entity) place(p mgl64.Vec2) error {
	if math.IsNaN(p.X()) || math.IsNaN(p.Y()) {
		return fmt.Errorf("%w: NaN coordinate", ErrInvalidPosition)
	}
	if e.world != nil && e.Species() == model.SpeciesPlayer && InteriorBlocked(e.world.grid, e.boxAt(p)) {
		return fmt.Errorf("%w: player would overlap impassable terrain", ErrInvalidPosition)
	}
	e.pos = p
	if e.world != nil && !e.world.containsPosition(p) {
		e.world.log.Debug(context.Background(), "entity left world bounds", entityFields(e)...)
		e.Terminate()
	}
	return nil
}

// Terminate removes the entity from its world and school. It is irreversible.
func (e *Entity) Terminate() {
	if e.terminated {
		return
	}
	if e.world != nil {
		e.world.detach(e)
	}
	if e.school != nil {
		e.school.drop(e)
	}
	e.terminated = true
}

// stopIfDead zeroes all motion of a dead entity.
func (e *Entity) stopIfDead() {
	if e.IsDead() {
		e.vel = mgl64.Vec2{}
		e.acc = mgl64.Vec2{}
	}
}

// lingerIfDead accrues time while dead and terminates after DeathLinger.
func (e *Entity) lingerIfDead(dt float64) {
	if !e.IsDead() {
		e.deadFor = 0
		return
	}
	e.deadFor += dt
	if e.deadFor >= DeathLinger {
		e.deadFor = 0
		e.remove()
	}
}

// remove terminates the entity as a death.
func (e *Entity) remove() {
	if e.world != nil {
		e.world.recordDeath(e)
	}
	e.Terminate()
}

// endMove stops horizontal motion.
func (e *Entity) endMove() {
	e.setVX(0)
	e.setAX(0)
}

func (e *Entity) moving() bool { return e.vel.X() != 0 }

// ---- world-relative queries ----

func (e *Entity) grid() FeatureReader {
	if e.world == nil {
		return nil
	}
	return e.world.grid
}

// others returns a snapshot of the other entities registered in the same world.
func (e *Entity) others() []*Entity {
	if e.world == nil {
		return nil
	}
	out := make([]*Entity, 0, len(e.world.entities))
	for _, o := range e.world.entities {
		if o != e {
			out = append(out, o)
		}
	}
	return out
}

// Overlaps reports whether two distinct entities share a pixel.
func (e *Entity) Overlaps(o *Entity) bool {
	if o == nil || e == o {
		return false
	}
	return Overlaps(e.Box(), o.Box())
}

func (e *Entity) overlapping() []*Entity {
	var out []*Entity
	for _, o := range e.others() {
		if e.Overlaps(o) {
			out = append(out, o)
		}
	}
	return out
}

func (e *Entity) overlapsNonPlant() bool {
	for _, o := range e.overlapping() {
		if !o.isPlant() {
			return true
		}
	}
	return false
}

// touchesNonPlant reports whether any non-plant entity satisfies the
// directional test against this entity.
func (e *Entity) touchesNonPlant(test func(a, b Box) bool) bool {
	box := e.Box()
	for _, o := range e.others() {
		if !o.isPlant() && test(box, o.Box()) {
			return true
		}
	}
	return false
}

// colliding returns entities adjacent in any direction.
func (e *Entity) colliding() []*Entity {
	box := e.Box()
	var out []*Entity
	for _, o := range e.others() {
		if Touches(box, o.Box()) {
			out = append(out, o)
		}
	}
	return out
}

// collidingAhead returns entities above, below, or on the side the entity faces.
func (e *Entity) collidingAhead() []*Entity {
	box := e.Box()
	var out []*Entity
	for _, o := range e.others() {
		ob := o.Box()
		if TouchesBottom(box, ob) || TouchesTop(box, ob) ||
			(e.orientation == model.Left && TouchesLeft(box, ob)) ||
			(e.orientation == model.Right && TouchesRight(box, ob)) {
			out = append(out, o)
		}
	}
	return out
}

func (e *Entity) terrain(test func(FeatureReader, Box) bool) bool {
	g := e.grid()
	if g == nil {
		return false
	}
	return test(g, e.Box())
}

func (e *Entity) restingOnGround() bool { return e.terrain(RestingOnGround) }

func (e *Entity) features() FeatureSet {
	g := e.grid()
	if g == nil {
		return FeatureSet{}
	}
	return OverlappingFeatures(g, e.Box())
}
