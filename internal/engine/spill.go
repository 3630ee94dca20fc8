package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dshills/hexstorm/internal/engine/content"
)

// InsertReader inserts everything read from r at pos and returns the
// number of bytes inserted. Input above the spill threshold goes through a
// temporary file instead of memory.
func (e *Engine) InsertReader(r io.Reader, pos int64) (int64, error) {
	return e.fromReader(r, pos, func(s *content.Store, data []byte) error {
		return s.Insert(data, pos)
	}, func(s *content.Store, path string) error {
		return s.InsertFile(path, pos)
	})
}

// OverwriteReader writes everything read from r over the content at pos.
func (e *Engine) OverwriteReader(r io.Reader, pos int64) (int64, error) {
	return e.fromReader(r, pos, func(s *content.Store, data []byte) error {
		return s.Overwrite(data, pos)
	}, func(s *content.Store, path string) error {
		return s.OverwriteFile(path, pos)
	})
}

func (e *Engine) fromReader(r io.Reader, pos int64,
	inMemory func(*content.Store, []byte) error,
	fromFile func(*content.Store, string) error,
) (int64, error) {
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, e.spillThreshold+1)
	if err != nil && err != io.EOF {
		return 0, &content.IOError{Op: "read", Err: err}
	}
	if n <= e.spillThreshold {
		err := e.edit(func(s *content.Store) error {
			return inMemory(s, buf.Bytes())
		})
		if err != nil {
			return 0, err
		}
		return n, nil
	}

	path, total, err := e.spill(io.MultiReader(&buf, r))
	if err != nil {
		return 0, err
	}
	registered := false
	err = e.edit(func(s *content.Store) error {
		e.spills = append(e.spills, path)
		registered = true
		return fromFile(s, path)
	})
	if !registered {
		os.Remove(path)
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}

// spill copies r to a new file in the spill directory.
func (e *Engine) spill(r io.Reader) (string, int64, error) {
	if err := os.MkdirAll(e.spillDir, 0o755); err != nil {
		return "", 0, &content.IOError{Op: "mkdir", Path: e.spillDir, Err: err}
	}
	path := filepath.Join(e.spillDir, fmt.Sprintf("hexstorm-%s-%s.spill", e.id, uuid.NewString()))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, &content.IOError{Op: "create", Path: path, Err: err}
	}
	n, err := io.Copy(f, r)
	if err == nil {
		err = f.Close()
	} else {
		f.Close()
	}
	if err != nil {
		os.Remove(path)
		return "", 0, &content.IOError{Op: "spill", Path: path, Err: err}
	}
	e.logger.Debug("spilled %d bytes to %s", n, path)
	return path, n, nil
}
