package core

import "github.com/signalsfoundry/tileworld-simulator/model"

// Damage causes reported to the metrics recorder.
const (
	CauseMagma    = "magma"
	CauseGas      = "gas"
	CauseWater    = "water"
	CauseDry      = "dry"
	CauseContact  = "contact"
	CausePlant    = "plant"
	CauseSchool   = "school"
	CauseLifespan = "lifespan"
)

// accrue adds dt to an exposure timer. When the timer reaches threshold it is
// reduced by threshold, keeping the remainder, and accrue returns true.
func accrue(timer *float64, dt, threshold float64) bool {
	*timer += dt
	if *timer >= threshold {
		*timer -= threshold
		return true
	}
	return false
}

// cooldownElapsed reports whether the contact cooldown has run out. While it
// has not, the elapsed time is added to the timer instead.
func (e *Entity) cooldownElapsed(dt float64) bool {
	if e.sinceContact >= ContactCooldown {
		return true
	}
	e.sinceContact += dt
	return false
}

func (e *Entity) resetCooldown() { e.sinceContact = 0 }

const (
	plantEatHeal    = 50
	plantRotPenalty = 20
)

// eatPlant applies the effect of a player consuming a plant.
func eatPlant(player, plant *Entity) {
	if player.terminated || plant.terminated {
		return
	}
	switch {
	case plant.IsDead():
		player.adjustHitPoints(-plantRotPenalty, CausePlant)
		plant.remove()
	case player.hitPoints < player.MaxHitPoints():
		player.adjustHitPoints(plantEatHeal, CausePlant)
		if plant.Species() == model.SpeciesSkullcab {
			plant.adjustHitPoints(-1, CausePlant)
			return
		}
		plant.kill(CausePlant)
		plant.remove()
	}
}
