package model

// Outcome is the state of a game as seen from the player.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeLost
	OutcomeWon
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLost:
		return "lost"
	case OutcomeWon:
		return "won"
	default:
		return "running"
	}
}
