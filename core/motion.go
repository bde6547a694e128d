package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxEntityStep is the largest time slice one entity may be advanced by.
	MaxEntityStep = 0.2
	// maxDisplacement bounds how far (in meters) an entity may travel in a
	// single sub-step: one pixel.
	maxDisplacement = 0.01
)

// validEntityDuration reports whether dt lies in (0, MaxEntityStep].
func validEntityDuration(dt float64) bool {
	return dt > 0 && dt <= MaxEntityStep
}

// SubStep returns the length of the next sub-step for an entity moving with
// velocity v and acceleration a, given the remaining time in the slice.
// The sub-step is sized so the entity moves at most one pixel.
func SubStep(v, a mgl64.Vec2, remaining float64) float64 {
	magnitude := v.Len() + a.Len()
	if magnitude == 0 {
		return remaining
	}
	dt := maxDisplacement / magnitude
	if dt > remaining {
		return remaining
	}
	return dt
}

// Kinematics applies one semi-implicit Euler update on a single axis.
func Kinematics(p, v, a, dt float64) (float64, float64) {
	return p + v*dt + 0.5*a*dt*dt, v + a*dt
}

// Advance moves the entity forward by dt seconds, splitting the slice into
// sub-steps and running the species behaviour on each one.
func (e *Entity) Advance(dt float64) error {
	if e.terminated {
		return ErrTerminated
	}
	if !validEntityDuration(dt) {
		return fmt.Errorf("%w: %v not in (0, %v]", ErrInvalidDuration, dt, MaxEntityStep)
	}
	e.advance(dt)
	return nil
}

func (e *Entity) advance(dt float64) {
	steps := 0
	species := e.Species()
	w := e.world
	for remaining := dt; remaining > 0 && !e.terminated; {
		sub := SubStep(e.vel, e.acc, remaining)
		e.behavior.step(e, sub)
		remaining -= sub
		steps++
	}
	if w != nil {
		w.recordSubSteps(species, steps)
	}
}

// moveBy integrates the active axes over dt and stores the result. An axis
// whose move is rejected keeps its old coordinate and loses its velocity.
func (e *Entity) moveBy(dt float64, horizontal, vertical bool) {
	x, vx := e.pos.X(), e.vel.X()
	y, vy := e.pos.Y(), e.vel.Y()
	if vertical {
		y, vy = Kinematics(y, vy, e.acc.Y(), dt)
	}
	if horizontal {
		x, vx = Kinematics(x, vx, e.acc.X(), dt)
	}
	e.setVelocity(mgl64.Vec2{vx, vy})

	target := mgl64.Vec2{x, y}
	if err := e.place(target); err == nil {
		return
	}
	if err := e.place(mgl64.Vec2{x, e.pos.Y()}); err == nil {
		e.setVY(0)
		return
	}
	if err := e.place(mgl64.Vec2{e.pos.X(), y}); err == nil {
		e.endMove()
		return
	}
	e.endMove()
	e.setVY(0)
}
