package scorekeeper

import "errors"

var (
	// ErrCapacityExceeded is returned when a shot targets an end or
	// arrow slot outside the round's declared format.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrInvalidTransition is returned for a lifecycle change on a
	// round that does not exist or is already terminal.
	ErrInvalidTransition = errors.New("invalid round transition")
	// ErrRoundClosed is returned for normal score entry on a round
	// that is completed or cancelled.
	ErrRoundClosed = errors.New("round closed")
	// ErrNothingToUndo is returned when undo finds no recorded shots.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrInvalidRound is returned when start parameters are malformed.
	ErrInvalidRound = errors.New("invalid round parameters")
	// ErrInvalidScore is returned for an unrecognized score label.
	ErrInvalidScore = errors.New("invalid score")
)
