package engine

import (
	"bytes"
	"context"
	"errors"
)

// DefaultFindChunk is the window size Find reads at a time.
const DefaultFindChunk = 64 << 10

// ErrEmptyPattern is returned by Find for an empty pattern.
var ErrEmptyPattern = errors.New("empty search pattern")

// FindOptions controls Find.
type FindOptions struct {
	// Backward searches toward the start, returning the last match that
	// begins before From.
	Backward bool

	// IgnoreCase folds ASCII letters.
	IgnoreCase bool

	// ChunkSize overrides DefaultFindChunk.
	ChunkSize int
}

// Find returns the position of the first occurrence of pattern at or after
// from, or -1 if there is none. The content is scanned in chunks and ctx
// is checked between chunks, so a long search can be cancelled.
func (e *Engine) Find(ctx context.Context, pattern []byte, from int64, opts FindOptions) (int64, error) {
	if len(pattern) == 0 {
		return -1, ErrEmptyPattern
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultFindChunk
	}
	if chunk < 2*len(pattern) {
		chunk = 2 * len(pattern)
	}
	if opts.IgnoreCase {
		pattern = foldASCII(bytes.Clone(pattern))
	}
	if opts.Backward {
		return e.findBackward(ctx, pattern, from, chunk, opts.IgnoreCase)
	}
	return e.findForward(ctx, pattern, from, chunk, opts.IgnoreCase)
}

func (e *Engine) findForward(ctx context.Context, pattern []byte, from int64, chunk int, fold bool) (int64, error) {
	if from < 0 {
		from = 0
	}
	buf := make([]byte, chunk)
	overlap := int64(len(pattern) - 1)

	for pos := from; ; {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		n, err := e.Read(buf, pos)
		if err != nil {
			return -1, err
		}
		if n < len(pattern) {
			return -1, nil
		}
		window := buf[:n]
		if fold {
			foldASCII(window)
		}
		if i := bytes.Index(window, pattern); i >= 0 {
			return pos + int64(i), nil
		}
		if n < len(buf) {
			return -1, nil
		}
		pos += int64(n) - overlap
	}
}

func (e *Engine) findBackward(ctx context.Context, pattern []byte, from int64, chunk int, fold bool) (int64, error) {
	// A match must start before from and fit in the content.
	end := min(from-1+int64(len(pattern)), e.Length())
	buf := make([]byte, chunk)
	overlap := int64(len(pattern) - 1)

	for end >= int64(len(pattern)) {
		if err := ctx.Err(); err != nil {
			return -1, err
		}
		start := max(end-int64(chunk), 0)
		n, err := e.Read(buf[:end-start], start)
		if err != nil {
			return -1, err
		}
		window := buf[:n]
		if fold {
			foldASCII(window)
		}
		if i := bytes.LastIndex(window, pattern); i >= 0 {
			return start + int64(i), nil
		}
		if start == 0 {
			break
		}
		end = start + overlap
	}
	return -1, nil
}

func foldASCII(b []byte) []byte {
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return b
}
