package content

import (
	"slices"

	"github.com/dshills/hexstorm/internal/engine/history"
	"github.com/dshills/hexstorm/internal/engine/rangeset"
)

// InsertByte inserts b at pos. Positions past the end are ignored.
// Consecutive calls build up a pending run instead of splicing one Range
// per byte.
func (s *Store) InsertByte(b byte, pos int64) error {
	if err := s.check(pos); err != nil {
		return err
	}
	if pos > s.Length() {
		return nil
	}
	s.dirty = true
	s.dirtySize = true
	s.lastNibble = pos
	if s.history != nil {
		s.history.BeginEdit(history.ActionInsert, pos, true)
	}

	if p := s.pending; p != nil && p.insert && pos >= p.position && pos <= p.end() {
		p.data = slices.Insert(p.data, int(pos-p.position), b)
	} else {
		s.CommitChanges()
		s.pending = &run{position: pos, data: []byte{b}, insert: true}
	}
	s.notify()
	return nil
}

// Insert inserts a copy of data at pos. Positions past the end are ignored.
func (s *Store) Insert(data []byte, pos int64) error {
	if err := s.check(pos); err != nil {
		return err
	}
	if len(data) == 0 || pos > s.Length() {
		return nil
	}
	s.insertRange(rangeset.NewMemoryRange(pos, slices.Clone(data)))
	return nil
}

// InsertFile inserts the contents of the file at path at pos. The file is
// read lazily and must not change while the content refers to it.
func (s *Store) InsertFile(path string, pos int64) error {
	if err := s.check(pos); err != nil {
		return err
	}
	if pos > s.Length() {
		return nil
	}
	src, err := s.openSource(path)
	if err != nil || src == nil {
		return err
	}
	s.insertRange(rangeset.NewSourceRange(pos, src, true))
	return nil
}

func (s *Store) insertRange(r rangeset.Range) {
	s.dirty = true
	s.dirtySize = true
	s.lastNibble = -1
	if s.history != nil {
		s.history.BeginEdit(history.ActionInsert, r.Position, false)
	}
	s.CommitChanges()
	s.set.Insert(r)
	if s.history != nil {
		s.history.AddInserted(r)
	}
	s.notify()
}

// openSource opens path as a file source owned by the store. Empty files
// yield a nil source.
func (s *Store) openSource(path string) (*rangeset.Source, error) {
	src, err := rangeset.OpenFile(path)
	if err != nil {
		return nil, ioError("open", path, err)
	}
	if src.Size() == 0 {
		src.Close()
		return nil, nil
	}
	s.sources = append(s.sources, src)
	return src, nil
}

// OverwriteByte replaces the byte at pos with b.
func (s *Store) OverwriteByte(b byte, pos int64) error {
	return s.OverwriteBits(b, 0, 8, pos)
}

// OverwriteBits replaces length bits of the byte at pos, starting offset
// bits from its most significant bit, with the low length bits of b.
// Other bits are kept. Out of range offsets, lengths and positions are
// ignored.
//
// Writing a lower nibble (offset 4, length 4) right after writing the upper
// nibble of the same byte continues the same undo step, so a byte typed as
// two hex digits is undone in one go.
func (s *Store) OverwriteBits(b byte, offset, length int, pos int64) error {
	if err := s.check(pos); err != nil {
		return err
	}
	if offset < 0 || offset > 7 || length < 1 || pos >= s.Length() {
		return nil
	}
	if offset+length > 8 {
		length = 8 - offset
	}

	h := s.history
	lowerNibble := h != nil && s.lastNibble == pos && offset == 4 && length == 4 &&
		s.pending != nil && s.pending.contains(pos)
	if h != nil && !lowerNibble {
		h.BeginEdit(history.ActionOverwrite, pos, true)
	}

	idx, lost, fromSet, err := s.stageOverwrite(pos)
	if err != nil {
		return err
	}
	s.dirty = true

	data := s.pending.data
	prev := data[idx]
	var full byte = 0xff
	shift := 8 - offset - length
	mask := (full >> offset) & (full << shift)
	data[idx] = prev&^mask | (b<<shift)&mask

	if h != nil && !lowerNibble {
		if fromSet {
			h.AddLost(lost)
		} else {
			h.AddLostBytes(pos, []byte{prev})
		}
	}
	s.lastNibble = -1
	if h != nil && offset == 0 && length == 4 {
		s.lastNibble = pos
	}
	s.notify()
	return nil
}

// stageOverwrite makes the pending run cover pos and returns the index of
// pos in it. When the byte had to be fetched from the range set, its
// one-byte Range is returned as well.
func (s *Store) stageOverwrite(pos int64) (int, rangeset.Range, bool, error) {
	p := s.pending
	if p != nil && p.contains(pos) {
		return int(pos - p.position), rangeset.Range{}, false, nil
	}
	if p != nil && !p.insert && (pos == p.position-1 || pos == p.end()) {
		r, c, err := s.committedByte(pos)
		if err != nil {
			return 0, r, false, err
		}
		if pos < p.position {
			p.data = slices.Insert(p.data, 0, c)
			p.position = pos
			return 0, r, true, nil
		}
		p.data = append(p.data, c)
		return len(p.data) - 1, r, true, nil
	}

	s.CommitChanges()
	r, c, err := s.committedByte(pos)
	if err != nil {
		return 0, r, false, err
	}
	s.pending = &run{position: pos, data: []byte{c}}
	return 0, r, true, nil
}

// committedByte returns the one-byte Range at pos and its value.
func (s *Store) committedByte(pos int64) (rangeset.Range, byte, error) {
	r, ok := s.set.RangeAt(pos)
	if !ok {
		return rangeset.Range{}, 0, ErrInvalidPosition
	}
	r = r.Slice(pos, pos+1)
	c, err := r.ByteAt(pos)
	if err != nil {
		return r, 0, ioError("read", r.Data.Path(), err)
	}
	return r, c, nil
}

// Overwrite writes a copy of data over the content starting at pos. Bytes
// past the end extend the content. Positions at or past the end are ignored.
func (s *Store) Overwrite(data []byte, pos int64) error {
	if err := s.check(pos); err != nil {
		return err
	}
	if len(data) == 0 || pos >= s.Length() {
		return nil
	}
	s.overwriteRange(rangeset.NewMemoryRange(pos, slices.Clone(data)))
	return nil
}

// OverwriteFile writes the contents of the file at path over the content
// starting at pos.
func (s *Store) OverwriteFile(path string, pos int64) error {
	if err := s.check(pos); err != nil {
		return err
	}
	if pos >= s.Length() {
		return nil
	}
	src, err := s.openSource(path)
	if err != nil || src == nil {
		return err
	}
	s.overwriteRange(rangeset.NewSourceRange(pos, src, true))
	return nil
}

func (s *Store) overwriteRange(r rangeset.Range) {
	s.dirty = true
	s.lastNibble = -1
	if s.history != nil {
		s.history.BeginEdit(history.ActionOverwrite, r.Position, false)
	}
	s.CommitChanges()
	if r.End() > s.set.Length() {
		s.dirtySize = true
	}
	lost := s.set.Replace(r)
	if s.history != nil {
		s.history.AddLost(lost...)
		s.history.AddGained(r)
		s.history.EndAction()
	}
	s.notify()
}

// Delete removes up to length bytes starting at pos. Deletions running past
// the end are clamped; positions past the end and empty lengths are ignored.
func (s *Store) Delete(pos, length int64) error {
	if err := s.check(pos); err != nil {
		return err
	}
	if length < 1 || pos >= s.Length() {
		return nil
	}
	length = min(length, s.Length()-pos)
	s.dirty = true
	s.dirtySize = true
	s.lastNibble = -1

	h := s.history
	single := length == 1
	if h != nil {
		h.BeginEdit(history.ActionDelete, pos, single)
	}

	if p := s.pending; p != nil && p.insert && pos >= p.position && pos+length <= p.end() {
		i := int(pos - p.position)
		j := i + int(length)
		if h != nil {
			h.AddLostBytes(pos, p.data[i:j])
		}
		p.data = slices.Delete(p.data, i, j)
		if len(p.data) == 0 {
			s.pending = nil
		}
	} else {
		s.CommitChanges()
		lost := s.set.Delete(pos, length)
		if h != nil {
			h.AddLost(lost...)
		}
	}
	if h != nil && !single {
		h.EndAction()
	}
	s.notify()
	return nil
}

// CommitChanges folds the pending run into the range set. It never records
// history.
func (s *Store) CommitChanges() {
	p := s.pending
	if p == nil {
		return
	}
	s.pending = nil
	r := rangeset.NewMemoryRange(p.position, p.data)
	if p.insert {
		s.set.Insert(r)
	} else {
		s.set.Replace(r)
	}
}
