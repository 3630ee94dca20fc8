package content

import (
	"io"
)

// Span is a run of modified bytes [Start, Start+Length).
type Span struct {
	Start  int64
	Length int64
}

// End returns the exclusive end of the span.
func (s Span) End() int64 { return s.Start + s.Length }

func addSpan(spans []Span, start, length int64) []Span {
	if length <= 0 {
		return spans
	}
	if n := len(spans); n > 0 && spans[n-1].End() == start {
		spans[n-1].Length += length
		return spans
	}
	return append(spans, Span{Start: start, Length: length})
}

// Read fills dst with content starting at pos and returns the number of
// bytes copied, which is short only at the end of the content.
func (s *Store) Read(dst []byte, pos int64) (int, error) {
	n, _, err := s.read(dst, pos, false)
	return n, err
}

// ReadModified is Read that also reports which of the bytes read differ
// from the loaded file. Adjacent modified spans are joined.
func (s *Store) ReadModified(dst []byte, pos int64) (int, []Span, error) {
	return s.read(dst, pos, true)
}

// ReadAt implements io.ReaderAt.
func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	n, err := s.Read(p, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (s *Store) read(dst []byte, pos int64, track bool) (int, []Span, error) {
	if err := s.check(pos); err != nil {
		return 0, nil, err
	}
	var mods []Span
	length := s.Length()
	if pos >= length || len(dst) == 0 {
		return 0, nil, nil
	}
	if avail := length - pos; int64(len(dst)) > avail {
		dst = dst[:avail]
	}

	p := s.pending
	if p == nil {
		n, err := s.readCommitted(dst, pos, 0, track, &mods)
		return n, mods, err
	}

	n := 0
	for n < len(dst) {
		cur := pos + int64(n)
		switch {
		case cur < p.position:
			limit := min(int64(len(dst)), int64(n)+p.position-cur)
			m, err := s.readCommitted(dst[n:limit], cur, 0, track, &mods)
			n += m
			if err != nil || m == 0 {
				return n, mods, err
			}
		case cur < p.end():
			m := copy(dst[n:], p.data[cur-p.position:])
			if track {
				mods = addSpan(mods, cur, int64(m))
			}
			n += m
		default:
			var delta int64
			if p.insert {
				delta = int64(len(p.data))
			}
			m, err := s.readCommitted(dst[n:], cur-delta, delta, track, &mods)
			n += m
			if err != nil || m == 0 {
				return n, mods, err
			}
		}
	}
	return n, mods, nil
}

// readCommitted copies from the committed ranges starting at pos. shift is
// the distance between committed and logical positions, used when
// reporting modified spans.
func (s *Store) readCommitted(dst []byte, pos, shift int64, track bool, mods *[]Span) (int, error) {
	i := s.set.Find(pos)
	if i < 0 {
		return 0, nil
	}
	n := 0
	for ; n < len(dst) && i < s.set.Count(); i++ {
		r := s.set.At(i)
		rel := pos + int64(n) - r.Position
		m, err := r.ReadAt(dst[n:], rel)
		if err != nil {
			return n, ioError("read", r.Data.Path(), err)
		}
		if track && r.Dirty {
			*mods = addSpan(*mods, r.Position+rel+shift, int64(m))
		}
		n += m
	}
	return n, nil
}
