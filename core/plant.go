package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

const (
	plantSpeed       = 0.5
	plantSwitch      = 0.5
	plantSpriteCount = 2

	skullcabHP       = 3
	skullcabLifespan = 12.0

	sneezewortHP       = 1
	sneezewortLifespan = 10.0
)

// plant drifts back and forth along one axis and wilts when its lifespan runs
// out. Skullcabs move vertically and survive several bites; sneezeworts move
// horizontally and are eaten whole.
type plant struct {
	kind     model.Species
	hp       int
	lifespan float64

	switchIn float64
	dieIn    float64
}

// NewSkullcab creates a detached vertically drifting plant.
func NewSkullcab(px model.Pixel, sprites []*model.Sprite) (*Entity, error) {
	e, err := newPlant(model.SpeciesSkullcab, skullcabHP, skullcabLifespan, px, sprites)
	if err != nil {
		return nil, err
	}
	e.orientation = model.Right
	e.vel = mgl64.Vec2{0, plantSpeed}
	return e, nil
}

// NewSneezewort creates a detached horizontally drifting plant.
func NewSneezewort(px model.Pixel, sprites []*model.Sprite) (*Entity, error) {
	e, err := newPlant(model.SpeciesSneezewort, sneezewortHP, sneezewortLifespan, px, sprites)
	if err != nil {
		return nil, err
	}
	e.orientation = model.Left
	e.vel = mgl64.Vec2{-plantSpeed, 0}
	return e, nil
}

func newPlant(kind model.Species, hp int, lifespan float64, px model.Pixel, sprites []*model.Sprite) (*Entity, error) {
	p := &plant{
		kind:     kind,
		hp:       hp,
		lifespan: lifespan,
		switchIn: plantSwitch,
		dieIn:    lifespan,
	}
	e, err := newEntity(px, sprites, p)
	if err != nil {
		return nil, err
	}
	e.hitPoints = hp
	return e, nil
}

func (p *plant) species() model.Species { return p.kind }
func (p *plant) maxHitPoints() int      { return p.hp }
func (p *plant) vertical() bool         { return p.kind == model.SpeciesSkullcab }

func (p *plant) validSprites(sprites []*model.Sprite) bool {
	return len(sprites) == plantSpriteCount && allSpritesValid(sprites)
}

func (p *plant) currentSprite(e *Entity) *model.Sprite {
	if p.vertical() {
		if e.vel.Y() > 0 {
			return e.sprites[0]
		}
		return e.sprites[1]
	}
	if e.orientation < 0 {
		return e.sprites[0]
	}
	return e.sprites[1]
}

func (p *plant) clampVelocity(_ *Entity, v mgl64.Vec2) mgl64.Vec2 {
	if p.vertical() {
		return mgl64.Vec2{0, clampAbs(v.Y(), plantSpeed)}
	}
	return mgl64.Vec2{clampAbs(v.X(), plantSpeed), 0}
}

func clampAbs(v, limit float64) float64 {
	return math.Max(-limit, math.Min(v, limit))
}

// Lifespan returns the time left before a plant wilts, or 0 for other species.
func (e *Entity) Lifespan() float64 {
	if p, ok := e.behavior.(*plant); ok {
		return p.dieIn
	}
	return 0
}

// step splits dt at direction switches and lifespan expiry.
func (p *plant) step(e *Entity, dt float64) {
	for dt > 0 && !e.terminated {
		switch {
		case dt > p.dieIn && p.dieIn < p.switchIn:
			p.drift(e, p.dieIn)
			e.kill(CauseLifespan)
			dt -= p.dieIn
			p.dieIn = p.lifespan
		case dt > p.switchIn:
			p.drift(e, p.switchIn)
			if !e.IsDead() {
				e.vel = e.vel.Mul(-1)
				if !p.vertical() {
					e.orientation = -e.orientation
				}
			}
			dt -= p.switchIn
			p.dieIn -= p.switchIn
			p.switchIn = plantSwitch
		default:
			p.drift(e, dt)
			p.switchIn -= dt
			p.dieIn -= dt
			dt = 0
		}
	}
}

// drift feeds the player, lingers when dead and otherwise moves without any
// terrain checks.
func (p *plant) drift(e *Entity, dt float64) {
	if w := e.world; w != nil && w.player != nil && !e.terminated {
		pl := w.player
		switch {
		case !pl.Overlaps(e):
			if p.vertical() {
				e.sinceContact = ContactCooldown
			}
		case !p.vertical():
			eatPlant(pl, e)
		case e.sinceContact >= ContactCooldown:
			eatPlant(pl, e)
			e.resetCooldown()
		default:
			e.sinceContact += dt
		}
	}
	if e.terminated {
		return
	}
	e.lingerIfDead(dt)
	if e.terminated || e.IsDead() {
		return
	}
	e.moveBy(dt, !p.vertical(), p.vertical())
}
