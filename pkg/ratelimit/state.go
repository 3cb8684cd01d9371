// Package ratelimit tracks Retry-After hints from 429 responses so the
// client can fail fast instead of burning the server's request budget
// while a hold is active. It never waits on the caller's behalf: the
// decision of whether and when to retry a rate-limited request belongs
// to the caller.
package ratelimit

import "time"

// State is a snapshot of the current rate limit hold.
type State struct {
	// HoldUntil is the instant the most recent Retry-After hint expires.
	// Zero when no hold is active.
	HoldUntil time.Time

	// LastStatus is the HTTP status that produced this state.
	LastStatus int

	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time
}

// Active reports whether a hold is currently in effect.
func (s State) Active() bool {
	return s.ActiveAt(time.Now())
}

// ActiveAt reports whether a hold is in effect at the given instant.
func (s State) ActiveAt(now time.Time) bool {
	return !s.HoldUntil.IsZero() && now.Before(s.HoldUntil)
}

// Remaining returns the time left on the hold, or zero when none is
// active.
func (s State) Remaining() time.Duration {
	return s.RemainingAt(time.Now())
}

// RemainingAt returns the time left on the hold at the given instant.
func (s State) RemainingAt(now time.Time) time.Duration {
	if !s.ActiveAt(now) {
		return 0
	}
	return s.HoldUntil.Sub(now)
}
