package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

const (
	flyerStartHP      = 100
	flyerMaxHP        = 500
	flyerMaxRun       = 0.75
	flyerMaxVertical  = 2.0
	flyerAccel        = 1.5
	flyerJumpSpeed    = 2.0
	flyerActivePeriod = 0.5
	flyerRestPeriod   = 1.0
	flyerSpriteCount  = 3

	flyerDryPeriod     = 0.2
	flyerDryDamage     = 6
	flyerPlayerDamage  = 50
	flyerBounceHeal    = 10
	flyerRunningDamage = 50
)

// flyer alternates a short active glide with a longer rest and suffocates out
// of water.
type flyer struct {
	jumping bool

	resting    bool
	restLeft   float64
	periodLeft float64
	newPeriod  bool
	lastFacing model.Orientation

	dry     float64
	bounced bool
}

// NewFlyer creates a detached flyer with three sprites: resting, facing left
// and facing right.
func NewFlyer(px model.Pixel, sprites []*model.Sprite) (*Entity, error) {
	f := &flyer{
		restLeft:   flyerRestPeriod,
		periodLeft: flyerActivePeriod,
		newPeriod:  true,
		lastFacing: model.Right,
	}
	e, err := newEntity(px, sprites, f)
	if err != nil {
		return nil, err
	}
	e.hitPoints = flyerStartHP
	e.acc = mgl64.Vec2{-flyerAccel, Gravity}
	return e, nil
}

func (f *flyer) species() model.Species { return model.SpeciesFlyer }
func (f *flyer) maxHitPoints() int      { return flyerMaxHP }

func (f *flyer) validSprites(sprites []*model.Sprite) bool {
	return len(sprites) == flyerSpriteCount && allSpritesValid(sprites)
}

func (f *flyer) currentSprite(e *Entity) *model.Sprite {
	switch e.orientation {
	case model.None:
		return e.sprites[0]
	case model.Left:
		return e.sprites[1]
	}
	return e.sprites[2]
}

func (f *flyer) clampVelocity(_ *Entity, v mgl64.Vec2) mgl64.Vec2 {
	vx := math.Max(-flyerMaxRun, math.Min(v.X(), flyerMaxRun))
	return mgl64.Vec2{vx, math.Min(v.Y(), flyerMaxVertical)}
}

// topInWater reports water along the row just above the sprite.
func (f *flyer) topInWater(e *Entity) bool {
	g := e.grid()
	return g != nil && topRowFeature(g, e.Box(), model.FeatureWater)
}

func (f *flyer) falling(e *Entity) bool {
	if e.world == nil || e.restingOnGround() || f.topInWater(e) {
		return false
	}
	return e.vel.Y() < 0 || !f.jumping
}

func (f *flyer) step(e *Entity, dt float64) {
	for dt > 0 && !e.terminated {
		e.stopIfDead()
		e.lingerIfDead(dt)
		if e.terminated {
			return
		}
		f.terrainCollisions(e)
		f.contacts(e, dt)
		f.entityCollisions(e)

		switch {
		case f.resting && f.restLeft > dt:
			f.jumping = false
			f.breathe(e, dt)
			f.move(e, dt)
			f.restLeft -= dt
			dt = 0
		case f.resting:
			f.breathe(e, f.restLeft)
			f.move(e, f.restLeft)
			dt -= f.restLeft
			f.resting = false
			f.restLeft = flyerRestPeriod
			f.periodLeft = flyerActivePeriod
			f.newPeriod = true
		case f.newPeriod:
			f.breathe(e, dt)
			f.lastFacing = -f.lastFacing
			e.orientation = f.lastFacing
			e.setAX(flyerAccel * e.orientation.Sign())
			if e.restingOnGround() || e.features().Has(model.FeatureWater) {
				f.jumping = true
				e.setVY(flyerJumpSpeed)
				e.setAY(Gravity)
			}
			f.move(e, dt)
			f.periodLeft = flyerActivePeriod - dt
			f.newPeriod = false
			dt = 0
		case dt > f.periodLeft:
			f.breathe(e, f.periodLeft)
			dt -= f.periodLeft
			f.move(e, f.periodLeft)
			e.endMove()
			f.resting = true
			e.orientation = model.None
			f.periodLeft = flyerActivePeriod
		default:
			f.breathe(e, dt)
			f.move(e, dt)
			f.periodLeft -= dt
			dt = 0
		}
	}
}

// breathe applies the out-of-water damage clock.
func (f *flyer) breathe(e *Entity, dt float64) {
	if e.world == nil {
		return
	}
	if e.features().Has(model.FeatureWater) {
		f.dry = 0
		return
	}
	if accrue(&f.dry, dt, flyerDryPeriod) {
		e.adjustHitPoints(-flyerDryDamage, CauseDry)
	}
}

func (f *flyer) terrainCollisions(e *Entity) {
	if e.world == nil {
		return
	}
	vx := e.vel.X()
	if (vx > 0 && e.terrain(TerrainRight)) || (vx < 0 && e.terrain(TerrainLeft)) {
		e.endMove()
	}
	f.verticalStops(e, e.terrain(TerrainTop), e.terrain(TerrainBottom))
}

func (f *flyer) entityCollisions(e *Entity) {
	if e.world == nil {
		return
	}
	if e.touchesNonPlant(TouchesRight) || e.touchesNonPlant(TouchesLeft) {
		e.endMove()
	} else {
		e.setAX(flyerAccel * e.orientation.Sign())
	}
	f.verticalStops(e, e.touchesNonPlant(TouchesTop), e.touchesNonPlant(TouchesBottom))
}

func (f *flyer) verticalStops(e *Entity, above, below bool) {
	if above && e.vel.Y() > 0 {
		f.jumping = false
		e.setVY(0)
		e.setAY(Gravity)
	}
	if below && e.vel.Y() < 0 {
		e.setVY(0)
		e.setAY(0)
	}
}

func (f *flyer) contacts(e *Entity, dt float64) {
	if e.world == nil {
		return
	}
	for _, o := range e.colliding() {
		if o.IsDead() {
			continue
		}
		switch o.Species() {
		case model.SpeciesPlayer:
			if e.cooldownElapsed(dt) {
				e.adjustHitPoints(-flyerPlayerDamage, CauseContact)
				if o.moving() {
					o.adjustHitPoints(-flyerRunningDamage, CauseContact)
				}
				e.resetCooldown()
			}
			e.endMove()
			e.setAX(flyerAccel * e.orientation.Sign())
		case model.SpeciesFlyer:
			e.endMove()
		case model.SpeciesWanderer:
			if e.moving() && !f.bounced {
				e.adjustHitPoints(flyerBounceHeal, CauseContact)
				f.bounced = true
			}
			if o.moving() {
				o.kill(CauseContact)
			}
		default:
			f.bounced = false
		}
	}
}

func (f *flyer) move(e *Entity, dt float64) {
	if f.falling(e) {
		e.setAY(Gravity)
	}
	if f.topInWater(e) && !f.jumping {
		e.setVY(0)
		e.setAY(0)
	}
	vertical := f.falling(e) || f.jumping
	horizontal := e.world == nil || len(e.collidingAhead()) == 0
	e.moveBy(dt, horizontal, vertical)
}
