package model

import "time"

// RateLimit is the API budget reported alongside a response. ResetAt is the
// zero time when the reset signal was missing.
type RateLimit struct {
	Limit     int
	Remaining int
	Used      int
	Cost      int
	ResetAt   time.Time
}

// HasReset reports whether the reset time is known.
func (r RateLimit) HasReset() bool {
	return !r.ResetAt.IsZero()
}
