package rating

import "errors"

// Sentinel kinds for rating errors.
var (
	// ErrNoData marks an archer with no completed rounds at all. It
	// distinguishes "never played" from a genuinely low rating of 0.
	ErrNoData = errors.New("no rating data")
)
