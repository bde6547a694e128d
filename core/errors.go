package core

import "errors"

// Precondition violations. Physical events (collisions, hazards, deaths) are
// state transitions and never surface as errors.
var (
	ErrInvalidDimensions  = errors.New("invalid world dimensions")
	ErrInvalidWindow      = errors.New("visible window exceeds world bounds")
	ErrInvalidPosition    = errors.New("invalid position")
	ErrInvalidSprites     = errors.New("invalid sprite set")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidDuration    = errors.New("invalid time duration")
	ErrTerminated         = errors.New("entity is terminated")
	ErrDead               = errors.New("entity is dead")
	ErrWrongSpecies       = errors.New("operation not supported for species")
	ErrInvalidTag         = errors.New("invalid wanderer tag")

	ErrAlreadyJumping = errors.New("player is already jumping")
	ErrNotJumping     = errors.New("player is not jumping")

	ErrWorldTerminated = errors.New("world is terminated")
	ErrSecondPlayer    = errors.New("world already contains a player")
	ErrWorldFull       = errors.New("world entity capacity reached")
	ErrGameStarted     = errors.New("game already started")
	ErrForeignEntity   = errors.New("entity belongs to another world")
	ErrOutOfBounds     = errors.New("entity outside world bounds")
	ErrBlockedTerrain  = errors.New("entity overlaps impassable terrain")
	ErrOccupied        = errors.New("entity overlaps another entity")
	ErrNotInWorld      = errors.New("entity not in this world")
	ErrNoPlayer        = errors.New("world has no player")

	ErrTooManySchools   = errors.New("school limit reached")
	ErrNotInSchool      = errors.New("wanderer not in this school")
	ErrSchoolTerminated = errors.New("school is terminated")
	ErrForeignSchool    = errors.New("school belongs to another world")
)
