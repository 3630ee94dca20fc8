package content

import (
	"fmt"
	"io"
	"os"
)

// WriteTo streams the whole content to w.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	return s.WriteRange(w, 0, s.Length())
}

// WriteRange streams length bytes starting at start to w in chunks of the
// configured size. Pending edits are committed first.
func (s *Store) WriteRange(w io.Writer, start, length int64) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if start < 0 || length < 0 {
		return 0, fmt.Errorf("%w: start %d length %d", ErrInvalidRange, start, length)
	}
	s.CommitChanges()
	length = min(length, max(s.Length()-start, 0))

	buf := make([]byte, min(int64(s.chunkSize), max(length, 1)))
	var written int64
	for written < length {
		chunk := buf[:min(int64(len(buf)), length-written)]
		n, err := s.Read(chunk, start+written)
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrUnexpectedEOF
		}
		m, err := w.Write(chunk[:n])
		written += int64(m)
		if err != nil {
			return written, ioError("write", "", err)
		}
	}
	return written, nil
}

// WriteFile writes the whole content to path.
func (s *Store) WriteFile(path string) (int64, error) {
	return s.WriteFileRange(path, 0, s.Length())
}

// WriteFileRange writes length bytes starting at start to path, replacing
// any existing file. Writing over a file the content reads from fails with
// ErrFileInUse. On error the destination may be left partially written.
func (s *Store) WriteFileRange(path string, start, length int64) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if start < 0 || length < 0 {
		return 0, fmt.Errorf("%w: start %d length %d", ErrInvalidRange, start, length)
	}
	if s.UsesFile(path) {
		return 0, fmt.Errorf("%w: %s", ErrFileInUse, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, ioError("create", path, err)
	}
	n, err := s.WriteRange(f, start, length)
	if err != nil {
		f.Close()
		return n, ioError("write", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return n, ioError("sync", path, err)
	}
	if err := f.Close(); err != nil {
		return n, ioError("close", path, err)
	}
	return n, nil
}
