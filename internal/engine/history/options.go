package history

import (
	"time"

	"github.com/dshills/hexstorm/internal/clock"
)

// DefaultMergeWindow is how long after one single-byte edit the next one
// may still join the same action.
const DefaultMergeWindow = 1500 * time.Millisecond

// Option configures a History.
type Option func(*History)

// WithClock sets the time source used for the merge window.
func WithClock(c clock.Clock) Option {
	return func(h *History) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithMergeWindow sets the merge window. Zero or negative disables merging.
func WithMergeWindow(d time.Duration) Option {
	return func(h *History) {
		h.window = d
	}
}

// WithMaxEntries caps the number of entries kept. Zero means no cap.
func WithMaxEntries(n int) Option {
	return func(h *History) {
		if n >= 0 {
			h.maxEntries = n
		}
	}
}
