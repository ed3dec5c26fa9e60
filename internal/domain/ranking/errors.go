package ranking

import "errors"

var (
	// ErrInvalidFilter is returned for an unknown BestScore type filter.
	ErrInvalidFilter = errors.New("invalid type filter")
	// ErrInvalidPeriod is returned for an unknown Volume period.
	ErrInvalidPeriod = errors.New("invalid period")
)
