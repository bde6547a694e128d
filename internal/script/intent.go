package script

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

// ErrUnknownAction indicates an intent name that is not recognised.
var ErrUnknownAction = errors.New("unknown intent action")

// Action is a player command.
type Action string

const (
	ActionStartMove Action = "start_move"
	ActionEndMove   Action = "end_move"
	ActionStartJump Action = "start_jump"
	ActionEndJump   Action = "end_jump"
	ActionStartDuck Action = "start_duck"
	ActionEndDuck   Action = "end_duck"
)

// ParseAction accepts the snake_case action names, case-insensitively.
func ParseAction(name string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(name)))
	switch a {
	case ActionStartMove, ActionEndMove, ActionStartJump, ActionEndJump, ActionStartDuck, ActionEndDuck:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// Controller is the set of commands a player accepts.
type Controller interface {
	StartMove(o model.Orientation) error
	EndMove() error
	StartJump() error
	EndJump() error
	StartDuck() error
	EndDuck() error
}

// Intent is one scripted command, issued At simulation time after the start.
type Intent struct {
	At        time.Duration
	Action    Action
	Direction model.Orientation // start_move only
}

func (i Intent) String() string {
	if i.Action == ActionStartMove {
		return fmt.Sprintf("%s(%d)@%s", i.Action, i.Direction, i.At)
	}
	return fmt.Sprintf("%s@%s", i.Action, i.At)
}

// Apply issues the intent to c.
func (i Intent) Apply(c Controller) error {
	switch i.Action {
	case ActionStartMove:
		return c.StartMove(i.Direction)
	case ActionEndMove:
		return c.EndMove()
	case ActionStartJump:
		return c.StartJump()
	case ActionEndJump:
		return c.EndJump()
	case ActionStartDuck:
		return c.StartDuck()
	case ActionEndDuck:
		return c.EndDuck()
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, i.Action)
}

// Result reports the outcome of one applied intent.
type Result struct {
	Intent Intent
	Err    error
}

// Load schedules every intent relative to start. Each result is passed to
// report, when non-nil, after the intent has been applied.
func Load(s EventScheduler, start time.Time, intents []Intent, c Controller, report func(Result)) []string {
	ids := make([]string, 0, len(intents))
	for _, in := range intents {
		ids = append(ids, s.Schedule(start.Add(in.At), func() {
			err := in.Apply(c)
			if report != nil {
				report(Result{Intent: in, Err: err})
			}
		}))
	}
	return ids
}
