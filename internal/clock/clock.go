// Package clock supplies time to components whose behaviour depends on it,
// so tests can control the passage of time.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the time package.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
