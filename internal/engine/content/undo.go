package content

import (
	"github.com/dshills/hexstorm/internal/engine/history"
)

// CanUndo reports whether Undo would change the content.
func (s *Store) CanUndo() bool {
	return s.history != nil && s.history.CanUndo()
}

// CanRedo reports whether Redo would change the content.
func (s *Store) CanRedo() bool {
	return s.history != nil && s.history.CanRedo()
}

// HistoryDepth returns the number of closed actions that can be undone
// and redone. An action still open is not counted.
func (s *Store) HistoryDepth() (undo, redo int) {
	if s.history == nil {
		return 0, 0
	}
	return s.history.UndoCount(), s.history.RedoCount()
}

// Undo reverses the most recent action and returns the span it touched.
// ok is false when there is nothing to undo.
func (s *Store) Undo() (start, end int64, ok bool) {
	if s.closed || s.history == nil {
		return 0, 0, false
	}
	s.CommitChanges()
	e, err := s.history.Undo()
	if err != nil {
		return 0, 0, false
	}
	s.CommitChanges()

	switch e.Type {
	case history.ActionDelete:
		s.set.InsertAll(e.Lost)
		start, end = e.LostSpan()
	case history.ActionInsert:
		gs, ge := e.GainedSpan()
		s.set.Delete(gs, ge-gs)
		start, end = gs, gs
	case history.ActionOverwrite:
		gs, ge := e.GainedSpan()
		s.set.Delete(gs, ge-gs)
		s.set.InsertAll(e.Lost)
		start, end = e.LostSpan()
	}
	s.replayed(e)
	return start, end, true
}

// Redo replays the most recently undone action and returns the span it
// touched. ok is false when there is nothing to redo.
func (s *Store) Redo() (start, end int64, ok bool) {
	if s.closed || s.history == nil {
		return 0, 0, false
	}
	s.CommitChanges()
	e, err := s.history.Redo()
	if err != nil {
		return 0, 0, false
	}

	switch e.Type {
	case history.ActionDelete:
		ls, le := e.LostSpan()
		s.set.Delete(ls, le-ls)
		start, end = ls, ls
	case history.ActionInsert:
		s.set.InsertAll(e.Gained)
		start, end = e.GainedSpan()
	case history.ActionOverwrite:
		ls, le := e.LostSpan()
		s.set.Delete(ls, le-ls)
		s.set.InsertAll(e.Gained)
		start, end = e.GainedSpan()
	}
	s.replayed(e)
	return start, end, true
}

func (s *Store) replayed(e history.Entry) {
	s.dirty = true
	if e.Type != history.ActionOverwrite || len(e.Lost) == 0 {
		s.dirtySize = true
	} else {
		ls, le := e.LostSpan()
		gs, ge := e.GainedSpan()
		if le-ls != ge-gs {
			s.dirtySize = true
		}
	}
	s.lastNibble = -1
	s.notify()
}
