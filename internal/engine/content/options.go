package content

import (
	"github.com/dshills/hexstorm/internal/engine/history"
	"github.com/dshills/hexstorm/internal/logging"
)

// DefaultChunkSize is the buffer size used when streaming content to a file.
const DefaultChunkSize = 2 << 20

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChunkSize sets the egress chunk size.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithHistory turns the undo history on or off at construction.
func WithHistory(enabled bool) Option {
	return func(s *Store) {
		s.historyOn = enabled
	}
}

// WithHistoryOptions passes options to the undo history.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(s *Store) {
		s.historyOpts = append(s.historyOpts, opts...)
	}
}
