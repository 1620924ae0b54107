package types

import "time"

// Clock is the time source used for freshness and idle-expiry decisions.
// Tests swap it for a manual clock instead of sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
