package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrRoundNotFound = errors.New("round not found")
	ErrEndNotFound   = errors.New("end not found")
	ErrShotNotFound  = errors.New("shot not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateID   = errors.New("duplicate id")
)
