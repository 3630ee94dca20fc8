package rangeset

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// SourceKind identifies where a Source keeps its bytes.
type SourceKind uint8

const (
	// MemorySource holds its bytes in a Go slice.
	MemorySource SourceKind = iota
	// FileSource reads its bytes from an open file.
	FileSource
)

// String returns the kind name.
func (k SourceKind) String() string {
	switch k {
	case MemorySource:
		return "memory"
	case FileSource:
		return "file"
	default:
		return fmt.Sprintf("SourceKind(%d)", k)
	}
}

// ErrSourceClosed is returned when reading from a closed file source.
var ErrSourceClosed = errors.New("source closed")

// Source is the backing store of one or more Ranges.
// Memory sources never change below their current size, so Ranges
// pointing into them stay valid while the source grows.
type Source struct {
	kind   SourceKind
	data   []byte
	file   *os.File
	path   string
	size   int64
	info   os.FileInfo
	closed bool
}

// NewMemorySource wraps data. The slice is owned by the source afterwards.
func NewMemorySource(data []byte) *Source {
	return &Source{kind: MemorySource, data: data, size: int64(len(data))}
}

// OpenFile opens path read-only as a file source.
func OpenFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s: is a directory", path)
	}
	return &Source{kind: FileSource, file: f, path: path, size: info.Size(), info: info}, nil
}

// Kind returns the source kind.
func (s *Source) Kind() SourceKind { return s.kind }

// Path returns the file path for file sources and "" for memory sources.
func (s *Source) Path() string { return s.path }

// Size returns the number of bytes available from the source.
func (s *Source) Size() int64 { return s.size }

// Append adds b to a memory source and returns the offset it was stored at.
func (s *Source) Append(b ...byte) int64 {
	if s.kind != MemorySource {
		panic("rangeset: Append on file source")
	}
	off := int64(len(s.data))
	s.data = append(s.data, b...)
	s.size = int64(len(s.data))
	return off
}

// ReadAt fills p from offset off. A read that stops short of len(p)
// returns io.ErrUnexpectedEOF, or io.EOF when nothing was read.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	switch s.kind {
	case MemorySource:
		if off >= int64(len(s.data)) {
			if len(p) == 0 {
				return 0, nil
			}
			return 0, io.EOF
		}
		n := copy(p, s.data[off:])
		if n < len(p) {
			return n, io.ErrUnexpectedEOF
		}
		return n, nil
	case FileSource:
		if s.closed {
			return 0, ErrSourceClosed
		}
		n, err := s.file.ReadAt(p, off)
		if errors.Is(err, io.EOF) {
			if n == len(p) {
				return n, nil
			}
			if n > 0 {
				return n, io.ErrUnexpectedEOF
			}
		}
		return n, err
	}
	return 0, fmt.Errorf("unknown source kind %v", s.kind)
}

// Close releases the file handle. Closing twice, or closing a handle whose
// file was already closed elsewhere, is not an error.
func (s *Source) Close() error {
	if s.kind != FileSource || s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// Changed reports whether the file at Path is no longer the one the
// source was opened on, or was modified since. Memory sources never change.
func (s *Source) Changed() bool {
	if s.kind != FileSource {
		return false
	}
	now, err := os.Stat(s.path)
	if err != nil {
		return true
	}
	return !os.SameFile(now, s.info) ||
		now.Size() != s.info.Size() ||
		!now.ModTime().Equal(s.info.ModTime())
}

// Closed reports whether Close has been called on a file source.
func (s *Source) Closed() bool { return s.closed }

// String describes the source for diagnostics.
func (s *Source) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.kind == FileSource {
		return fmt.Sprintf("file(%s)", s.path)
	}
	return fmt.Sprintf("memory(%d)", s.size)
}
