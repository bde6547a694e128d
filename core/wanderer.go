package core

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/tileworld-simulator/internal/logging"
	"github.com/signalsfoundry/tileworld-simulator/kb"
	"github.com/signalsfoundry/tileworld-simulator/model"
)

const (
	wandererStartHP     = 100
	wandererMaxHP       = 500
	wandererMaxRun      = 2.5
	wandererAccel       = 0.7
	wandererSpriteCount = 2

	wandererWaterPeriod   = 0.4
	wandererWaterDamage   = 4
	wandererGasPeriod     = 0.3
	wandererGasHeal       = 2
	wandererPlayerDamage  = 30
	wandererRunningDamage = 20
	wandererFlyerHeal     = 10
)

// wanderer walks back and forth along the ground, shares damage with its
// school and changes school on bumping into a larger one.
type wanderer struct {
	water float64
	gas   float64
}

// NewWanderer creates a detached wanderer carrying tag, which is reserved in
// reg and must be positive and unused. When school is non-nil the wanderer
// joins it.
func NewWanderer(reg *kb.IDRegistry, tag int64, px model.Pixel, school *School, sprites []*model.Sprite) (*Entity, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: nil identity registry", ErrInvalidTag)
	}
	w := &wanderer{}
	e, err := newEntity(px, sprites, w)
	if err != nil {
		return nil, err
	}
	if school != nil && school.terminated {
		return nil, ErrSchoolTerminated
	}
	if err := reg.Reserve(tag); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTag, err)
	}
	e.tag = tag
	e.hitPoints = wandererStartHP
	e.orientation = model.Right
	e.acc = mgl64.Vec2{wandererAccel, 0}
	if school != nil {
		if err := school.Add(e); err != nil {
			reg.Release(tag)
			return nil, err
		}
	}
	return e, nil
}

func (w *wanderer) species() model.Species { return model.SpeciesWanderer }
func (w *wanderer) maxHitPoints() int      { return wandererMaxHP }

func (w *wanderer) validSprites(sprites []*model.Sprite) bool {
	return len(sprites) == wandererSpriteCount && allSpritesValid(sprites)
}

func (w *wanderer) currentSprite(e *Entity) *model.Sprite {
	if e.orientation > 0 {
		return e.sprites[0]
	}
	return e.sprites[1]
}

// clampVelocity keeps the wanderer on the ground: it never moves vertically.
func (w *wanderer) clampVelocity(_ *Entity, v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{math.Max(-wandererMaxRun, math.Min(v.X(), wandererMaxRun)), 0}
}

func (w *wanderer) step(e *Entity, dt float64) {
	e.stopIfDead()
	w.contacts(e, dt)
	e.lingerIfDead(dt)
	if e.terminated {
		return
	}
	w.terrainCollisions(e)
	w.hazards(e, dt)
	horizontal := e.world == nil || len(e.collidingAhead()) == 0
	e.moveBy(dt, horizontal, false)
}

// restart re-applies the walking acceleration after a stop.
func (w *wanderer) restart(e *Entity) {
	e.endMove()
	e.setAX(wandererAccel * e.orientation.Sign())
}

// hurtMates removes one hit point from every other member of the school.
func hurtMates(e *Entity) {
	if e.school == nil {
		return
	}
	for _, m := range e.school.Members() {
		if m != e {
			m.adjustHitPoints(-1, CauseSchool)
		}
	}
}

func (w *wanderer) contacts(e *Entity, dt float64) {
	if e.world == nil {
		return
	}
	for _, o := range e.collidingAhead() {
		if o.IsDead() || e.IsDead() {
			continue
		}
		switch o.Species() {
		case model.SpeciesFlyer:
			if e.moving() {
				e.kill(CauseContact)
				hurtMates(e)
				e.endMove()
			}
			if o.moving() {
				o.adjustHitPoints(wandererFlyerHeal, CauseContact)
			}
		case model.SpeciesPlayer:
			if e.cooldownElapsed(dt) {
				e.adjustHitPoints(-wandererPlayerDamage, CauseContact)
				if o.moving() {
					o.adjustHitPoints(-wandererRunningDamage, CauseContact)
				}
				hurtMates(e)
				e.resetCooldown()
			}
			w.restart(e)
		case model.SpeciesWanderer:
			e.orientation = -e.orientation
			w.restart(e)
			if e.school != nil && o.school != nil && e.school.Len() < o.school.Len() {
				if err := e.school.SwitchTo(o.school, e); err != nil {
					e.world.log.Warn(context.Background(), "school switch failed",
						append(entityFields(e), logging.Err(err))...)
				}
			}
		}
	}
}

func (w *wanderer) terrainCollisions(e *Entity) {
	if e.world == nil {
		return
	}
	// A blocked move has already zeroed the velocity, so the heading decides.
	ahead := TerrainRight
	if e.orientation < 0 {
		ahead = TerrainLeft
	}
	if e.terrain(ahead) {
		e.orientation = -e.orientation
		w.restart(e)
	}
}

func (w *wanderer) hazards(e *Entity, dt float64) {
	if e.world == nil {
		return
	}
	feats := e.features()
	switch {
	case feats.Has(model.FeatureMagma):
		e.kill(CauseMagma)
	case feats.Has(model.FeatureWater):
		if accrue(&w.water, dt, wandererWaterPeriod) {
			e.adjustHitPoints(-wandererWaterDamage, CauseWater)
			hurtMates(e)
		}
	case feats.Has(model.FeatureGas):
		if accrue(&w.gas, dt, wandererGasPeriod) {
			e.adjustHitPoints(wandererGasHeal, CauseGas)
		}
	default:
		w.water, w.gas = 0, 0
	}
}
