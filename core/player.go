package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

const (
	playerStartHP       = 100
	playerMaxHP         = 500
	playerMinRun        = 1.0
	playerMaxRun        = 3.0
	playerMaxDuckRun    = 1.0
	playerMaxVertical   = 8.0
	playerJumpSpeed     = 8.0
	playerRunAccel      = 0.9
	playerFrameDuration = 0.075
	playerIdleReset     = 1.0
	playerMinSprites    = 10

	playerHazardPeriod = 0.2
	playerMagmaDamage  = 50
	playerGasDamage    = 4
	playerWaterDamage  = 2

	flyerContactDamage    = 50
	wandererContactDamage = 20
)

// player holds the state machine of the controlled character.
type player struct {
	jumping bool
	ducking bool
	maxRun  float64

	animElapsed float64
	frame       int
	idle        float64

	magma float64
	gas   float64
	water float64
}

// NewPlayer creates a detached player character at a pixel position. The
// sprite set needs at least ten sprites and an even count.
func NewPlayer(px model.Pixel, sprites []*model.Sprite) (*Entity, error) {
	p := &player{
		maxRun: playerMaxRun,
		magma:  playerHazardPeriod,
		gas:    playerHazardPeriod,
	}
	e, err := newEntity(px, sprites, p)
	if err != nil {
		return nil, err
	}
	e.hitPoints = playerStartHP
	return e, nil
}

func (p *player) species() model.Species { return model.SpeciesPlayer }
func (p *player) maxHitPoints() int      { return playerMaxHP }

func (p *player) validSprites(sprites []*model.Sprite) bool {
	return len(sprites) >= playerMinSprites && len(sprites)%2 == 0 && allSpritesValid(sprites)
}

func (p *player) clampVelocity(e *Entity, v mgl64.Vec2) mgl64.Vec2 {
	vx := v.X()
	switch abs := math.Abs(vx); {
	case vx == 0:
	case abs > p.maxRun:
		vx = e.orientation.Sign() * p.maxRun
	case abs < playerMinRun:
		vx = e.orientation.Sign() * playerMinRun
	}
	return mgl64.Vec2{vx, math.Min(v.Y(), playerMaxVertical)}
}

func (p *player) currentSprite(e *Entity) *model.Sprite {
	s := e.sprites
	m := (len(s) - playerMinSprites) / 2
	idx := p.frame % (m + 1)
	running := e.moving()
	o := e.orientation

	switch {
	case p.ducking && o == model.None:
		return s[1]
	case p.ducking && o == model.Right:
		return s[6]
	case p.ducking && o == model.Left:
		return s[7]
	case !running && o == model.Right:
		return s[2]
	case !running && o == model.Left:
		return s[3]
	case running && p.jumping && o == model.Right:
		return s[4]
	case running && p.jumping && o == model.Left:
		return s[5]
	case running && o == model.Right:
		return s[8+idx]
	case running && o == model.Left:
		return s[9+m+idx]
	}
	return s[0]
}

func (e *Entity) asPlayer() (*player, error) {
	if e.terminated {
		return nil, ErrTerminated
	}
	p, ok := e.behavior.(*player)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a player", ErrWrongSpecies, e.Species())
	}
	return p, nil
}

func (p *player) resetAnimation() {
	p.animElapsed = 0
	p.frame = 0
}

// StartMove makes the player run in direction o.
func (e *Entity) StartMove(o model.Orientation) error {
	p, err := e.asPlayer()
	if err != nil {
		return err
	}
	if o != model.Left && o != model.Right {
		return fmt.Errorf("%w: run direction %d", ErrInvalidOrientation, o)
	}
	if e.IsDead() {
		return ErrDead
	}
	p.resetAnimation()
	e.orientation = o
	e.setVX(o.Sign() * playerMinRun)
	if p.ducking {
		e.setAX(0)
	} else {
		e.setAX(o.Sign() * playerRunAccel)
	}
	return nil
}

// EndMove stops the player's horizontal motion.
func (e *Entity) EndMove() error {
	p, err := e.asPlayer()
	if err != nil {
		return err
	}
	p.resetAnimation()
	e.endMove()
	return nil
}

// IsRunning reports horizontal motion.
func (e *Entity) IsRunning() bool { return e.moving() }

// IsJumping reports whether a player jump is in progress.
func (e *Entity) IsJumping() bool {
	p, ok := e.behavior.(*player)
	return ok && p.jumping
}

// IsDucking reports whether the player is ducking.
func (e *Entity) IsDucking() bool {
	p, ok := e.behavior.(*player)
	return ok && p.ducking
}

// StartJump launches the player upwards.
func (e *Entity) StartJump() error {
	p, err := e.asPlayer()
	if err != nil {
		return err
	}
	if p.jumping {
		return ErrAlreadyJumping
	}
	if e.IsDead() {
		return ErrDead
	}
	p.jumping = true
	e.setVY(playerJumpSpeed)
	e.setAY(Gravity)
	return nil
}

// EndJump ends a jump; any remaining upward speed is dropped.
func (e *Entity) EndJump() error {
	p, err := e.asPlayer()
	if err != nil {
		return err
	}
	if !p.jumping {
		return ErrNotJumping
	}
	p.jumping = false
	p.resetAnimation()
	if e.vel.Y() > 0 {
		e.setVY(0)
	}
	return nil
}

// StartDuck makes the player duck, limiting its run speed.
func (e *Entity) StartDuck() error {
	p, err := e.asPlayer()
	if err != nil {
		return err
	}
	if e.IsDead() {
		return ErrDead
	}
	p.ducking = true
	e.setAX(0)
	p.maxRun = playerMaxDuckRun
	if e.moving() {
		e.setVX(e.orientation.Sign() * playerMaxDuckRun)
	}
	return nil
}

// EndDuck stands the player up. The player stays ducked, without error, while
// standing would overlap impassable terrain or another non-plant entity.
func (e *Entity) EndDuck() error {
	p, err := e.asPlayer()
	if err != nil {
		return err
	}
	if !p.canStand(e) {
		return nil
	}
	p.ducking = false
	p.resetAnimation()
	p.maxRun = playerMaxRun
	e.setAX(e.orientation.Sign() * playerRunAccel)
	return nil
}

// canStand evaluates the standing sprite at the current position.
func (p *player) canStand(e *Entity) bool {
	p.ducking = false
	defer func() { p.ducking = true }()
	if e.world == nil {
		return true
	}
	return !OverlapsImpassable(e.world.grid, e.Box()) && !e.overlapsNonPlant()
}

func (p *player) falling(e *Entity) bool {
	if e.world == nil || e.restingOnGround() {
		return false
	}
	return e.vel.Y() < 0 || !p.jumping
}

func (p *player) step(e *Entity, dt float64) {
	e.stopIfDead()
	e.lingerIfDead(dt)
	if e.terminated {
		return
	}
	p.eatPlants(e, dt)
	p.animate(e, dt)
	p.hazards(e, dt)
	p.terrainCollisions(e)
	p.entityCollisions(e)
	p.contactDamage(e, dt)
	p.move(e, dt)
	p.checkWin(e)
}

func (p *player) eatPlants(e *Entity, dt float64) {
	for _, plant := range e.overlapping() {
		if !plant.isPlant() {
			continue
		}
		if plant.sinceContact >= ContactCooldown {
			eatPlant(e, plant)
			plant.resetCooldown()
		} else {
			plant.sinceContact += dt
		}
	}
}

func (p *player) animate(e *Entity, dt float64) {
	p.animElapsed += dt
	p.frame = int(p.animElapsed / playerFrameDuration)
	if e.moving() {
		p.idle = 0
		return
	}
	p.idle += dt
	if p.idle < playerIdleReset {
		return
	}
	prev := e.orientation
	e.orientation = model.None
	if e.world != nil && InteriorBlocked(e.world.grid, e.Box()) {
		e.orientation = prev
		return
	}
	p.idle = 0
}

func (p *player) hazards(e *Entity, dt float64) {
	if e.world == nil {
		return
	}
	feats := e.features()
	switch {
	case feats.Has(model.FeatureMagma):
		p.water, p.gas = 0, playerHazardPeriod
		if accrue(&p.magma, dt, playerHazardPeriod) {
			e.adjustHitPoints(-playerMagmaDamage, CauseMagma)
		}
	case feats.Has(model.FeatureGas):
		p.magma, p.water = playerHazardPeriod, 0
		if accrue(&p.gas, dt, playerHazardPeriod) {
			e.adjustHitPoints(-playerGasDamage, CauseGas)
		}
	case feats.Has(model.FeatureWater):
		p.magma, p.gas = playerHazardPeriod, playerHazardPeriod
		if accrue(&p.water, dt, playerHazardPeriod) {
			e.adjustHitPoints(-playerWaterDamage, CauseWater)
		}
	default:
		p.magma, p.gas, p.water = playerHazardPeriod, playerHazardPeriod, 0
	}
}

func (p *player) terrainCollisions(e *Entity) {
	if e.world == nil {
		return
	}
	vx := e.vel.X()
	if (vx > 0 && e.terrain(TerrainRight)) || (vx < 0 && e.terrain(TerrainLeft)) {
		e.endMove()
		if !e.restingOnGround() {
			e.setAY(Gravity)
		}
	}
	p.verticalStops(e, e.terrain(TerrainTop), e.terrain(TerrainBottom))
}

func (p *player) entityCollisions(e *Entity) {
	if e.world == nil {
		return
	}
	vx := e.vel.X()
	if (vx > 0 && e.touchesNonPlant(TouchesRight)) || (vx < 0 && e.touchesNonPlant(TouchesLeft)) {
		e.endMove()
	}
	p.verticalStops(e, e.touchesNonPlant(TouchesTop), e.touchesNonPlant(TouchesBottom))
}

// verticalStops cancels a jump against a ceiling and lands on a floor.
func (p *player) verticalStops(e *Entity, above, below bool) {
	if above && e.vel.Y() > 0 {
		p.jumping = false
		e.setVY(0)
		e.setAY(Gravity)
	}
	if below && e.vel.Y() < 0 {
		e.setVY(0)
		e.setAY(0)
	}
}

func (p *player) contactDamage(e *Entity, dt float64) {
	if e.IsDead() {
		return
	}
	for _, o := range e.colliding() {
		if o.IsDead() || o.isPlant() {
			continue
		}
		if !o.cooldownElapsed(dt) {
			continue
		}
		switch o.Species() {
		case model.SpeciesFlyer:
			e.adjustHitPoints(-flyerContactDamage, CauseContact)
			o.resetCooldown()
		case model.SpeciesWanderer:
			e.adjustHitPoints(-wandererContactDamage, CauseContact)
			o.resetCooldown()
		}
	}
}

func (p *player) move(e *Entity, dt float64) {
	falling := p.falling(e)
	if falling {
		e.setAY(Gravity)
	}
	e.moveBy(dt, e.moving(), falling || p.jumping)
}

func (p *player) checkWin(e *Entity) {
	w := e.world
	if w == nil || w.player != e {
		return
	}
	if w.touchesTarget(e.Box()) {
		w.declareWin()
	}
}
