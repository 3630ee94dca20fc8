package rangeset

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Set is an ordered collection of Ranges that tile [0, Length()) with no
// gaps and no overlaps. Lookups are binary searches over positions.
//
// The zero value is an empty set ready for use.
type Set struct {
	ranges []Range
}

// Count returns the number of ranges in the set.
func (s *Set) Count() int {
	return len(s.ranges)
}

// Length returns the exclusive end of the last range.
func (s *Set) Length() int64 {
	if len(s.ranges) == 0 {
		return 0
	}
	return s.ranges[len(s.ranges)-1].End()
}

// Find returns the index of the range containing pos, or -1.
func (s *Set) Find(pos int64) int {
	i := s.search(pos)
	if i < len(s.ranges) && s.ranges[i].Contains(pos) {
		return i
	}
	return -1
}

// search returns the index of the first range ending after pos.
func (s *Set) search(pos int64) int {
	return sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End() > pos
	})
}

// At returns the i-th range.
func (s *Set) At(i int) Range {
	return s.ranges[i]
}

// RangeAt returns the range containing pos.
func (s *Set) RangeAt(pos int64) (Range, bool) {
	i := s.Find(pos)
	if i < 0 {
		return Range{}, false
	}
	return s.ranges[i], true
}

// Ranges returns copies of the ranges overlapping [start, end),
// clipped to that span.
func (s *Set) Ranges(start, end int64) []Range {
	if start < 0 {
		start = 0
	}
	if end <= start {
		return nil
	}
	var out []Range
	for i := s.search(start); i < len(s.ranges) && s.ranges[i].Position < end; i++ {
		out = append(out, s.ranges[i].Slice(start, end))
	}
	return out
}

// All returns a copy of every range in order.
func (s *Set) All() []Range {
	return slices.Clone(s.ranges)
}

// SplitAt makes pos a range boundary and returns the index of the first
// range starting at or after pos. It returns Count() when pos >= Length().
func (s *Set) SplitAt(pos int64) int {
	i := s.search(pos)
	if i == len(s.ranges) {
		return i
	}
	r := s.ranges[i]
	if r.Position >= pos {
		return i
	}
	left := r.Slice(r.Position, pos)
	right := r.Slice(pos, r.End())
	s.ranges[i] = left
	s.ranges = slices.Insert(s.ranges, i+1, right)
	return i + 1
}

// shift moves the position of every range from index i onwards by delta.
func (s *Set) shift(i int, delta int64) {
	for ; i < len(s.ranges); i++ {
		s.ranges[i].Position += delta
	}
}

// Insert splices r into the set at r.Position, moving later ranges right
// by r.Length. Positions past Length() and empty ranges are ignored.
func (s *Set) Insert(r Range) bool {
	if r.Length <= 0 || r.Position < 0 || r.Position > s.Length() {
		return false
	}
	i := s.SplitAt(r.Position)
	s.shift(i, r.Length)
	s.ranges = slices.Insert(s.ranges, i, r)
	return true
}

// InsertAll inserts rs in ascending position order. Each position is
// interpreted in the layout that results once all of rs are in place.
func (s *Set) InsertAll(rs []Range) {
	sorted := slices.Clone(rs)
	slices.SortStableFunc(sorted, func(a, b Range) int {
		switch {
		case a.Position < b.Position:
			return -1
		case a.Position > b.Position:
			return 1
		}
		return 0
	})
	for _, r := range sorted {
		s.Insert(r)
	}
}

// Delete removes [start, start+length), clamped to the set, and moves
// later ranges left. The excised fragments are returned with the
// positions they occupied before removal.
func (s *Set) Delete(start, length int64) []Range {
	if start < 0 || start >= s.Length() || length <= 0 {
		return nil
	}
	end := min(start+length, s.Length())
	i := s.SplitAt(start)
	j := s.SplitAt(end)
	lost := slices.Clone(s.ranges[i:j])
	s.ranges = slices.Delete(s.ranges, i, j)
	s.shift(i, -(end - start))
	return lost
}

// Replace writes r over the bytes it covers. Any part of r reaching past
// Length() extends the set. The overwritten fragments are returned.
func (s *Set) Replace(r Range) []Range {
	if r.Length <= 0 || r.Position < 0 || r.Position > s.Length() {
		return nil
	}
	lost := s.Delete(r.Position, r.Length)
	s.Insert(r)
	return lost
}

// Coalesce joins neighbouring ranges that continue each other in the
// same source.
func (s *Set) Coalesce() {
	s.ranges = Coalesce(s.ranges)
}

// Coalesce returns rs with neighbours that continue each other joined.
// rs must be sorted by position.
func Coalesce(rs []Range) []Range {
	if len(rs) < 2 {
		return rs
	}
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if last.Continues(r) {
			last.Length += r.Length
			continue
		}
		out = append(out, r)
	}
	return out
}

// Validate checks the tiling invariant.
func (s *Set) Validate() error {
	var next int64
	for i, r := range s.ranges {
		if r.Length <= 0 {
			return fmt.Errorf("range %d %v: empty", i, r)
		}
		if r.Position != next {
			return fmt.Errorf("range %d %v: expected position %d", i, r, next)
		}
		if r.Data == nil {
			return fmt.Errorf("range %d %v: no source", i, r)
		}
		next = r.End()
	}
	return nil
}

// Reset removes every range.
func (s *Set) Reset() {
	s.ranges = nil
}

// String lists the ranges, one per line.
func (s *Set) String() string {
	var b strings.Builder
	for _, r := range s.ranges {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}
