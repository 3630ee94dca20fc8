package rangeset

import "fmt"

// Range is a window [Position, Position+Length) of the logical content
// whose bytes live in Data starting at DataOffset.
// Ranges are values: copying one snapshots it.
type Range struct {
	Position   int64
	Length     int64
	DataOffset int64
	Data       *Source
	// Dirty is set when the bytes differ from the loaded file.
	Dirty bool
}

// NewMemoryRange returns a dirty range over a fresh memory source holding data.
func NewMemoryRange(position int64, data []byte) Range {
	return Range{
		Position: position,
		Length:   int64(len(data)),
		Data:     NewMemorySource(data),
		Dirty:    true,
	}
}

// NewSourceRange returns a range spanning all of src.
func NewSourceRange(position int64, src *Source, dirty bool) Range {
	return Range{Position: position, Length: src.Size(), Data: src, Dirty: dirty}
}

// End returns the exclusive end position.
func (r Range) End() int64 {
	return r.Position + r.Length
}

// Contains reports whether pos falls inside the range.
func (r Range) Contains(pos int64) bool {
	return pos >= r.Position && pos < r.End()
}

// Slice returns the part of r covering [from, to), clipped to r.
func (r Range) Slice(from, to int64) Range {
	if from < r.Position {
		from = r.Position
	}
	if to > r.End() {
		to = r.End()
	}
	if to < from {
		to = from
	}
	out := r
	out.DataOffset = r.DataOffset + (from - r.Position)
	out.Position = from
	out.Length = to - from
	return out
}

// At returns a copy of r moved to position pos.
func (r Range) At(pos int64) Range {
	r.Position = pos
	return r
}

// Continues reports whether next picks up in the same source exactly where r ends.
func (r Range) Continues(next Range) bool {
	return r.Data == next.Data &&
		r.Dirty == next.Dirty &&
		r.End() == next.Position &&
		r.DataOffset+r.Length == next.DataOffset
}

// ReadAt copies bytes starting rel bytes into the range.
func (r Range) ReadAt(p []byte, rel int64) (int, error) {
	if rel < 0 || rel >= r.Length {
		return 0, nil
	}
	if avail := r.Length - rel; int64(len(p)) > avail {
		p = p[:avail]
	}
	return r.Data.ReadAt(p, r.DataOffset+rel)
}

// ByteAt returns the byte at logical position pos.
func (r Range) ByteAt(pos int64) (byte, error) {
	var b [1]byte
	if _, err := r.ReadAt(b[:], pos-r.Position); err != nil {
		return 0, err
	}
	return b[0], nil
}

// String returns a human-readable representation of the range.
func (r Range) String() string {
	dirty := ""
	if r.Dirty {
		dirty = "*"
	}
	return fmt.Sprintf("[%d:%d)%s %v@%d", r.Position, r.End(), dirty, r.Data, r.DataOffset)
}
