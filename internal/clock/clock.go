// Package clock holds the canonical time representation shared by both
// services and the helpers that map instants onto aggregation windows.
package clock

import "time"

// Clock provides the current instant. Services take a Clock instead of
// calling time.Now so tests can pin "now".
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

// Now implements Clock.
func (f Func) Now() time.Time { return f() }

// System is the wall clock, always in UTC.
var System Clock = Func(func() time.Time { return time.Now().UTC() })

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock {
	t = t.UTC()
	return Func(func() time.Time { return t })
}

// NowStamp returns c.Now() as a Stamp.
func NowStamp(c Clock) Stamp {
	return FromTime(c.Now())
}
