package history

import (
	"fmt"

	"github.com/dshills/hexstorm/internal/engine/rangeset"
)

// ActionType is the kind of edit an Entry records.
type ActionType uint8

const (
	ActionDelete ActionType = iota + 1
	ActionInsert
	ActionOverwrite
)

// String returns the action name.
func (t ActionType) String() string {
	switch t {
	case ActionDelete:
		return "delete"
	case ActionInsert:
		return "insert"
	case ActionOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("ActionType(%d)", t)
	}
}

// Entry is one undoable action.
type Entry struct {
	Type ActionType
	// Lost holds the ranges removed by the action, positioned where they
	// were before it ran.
	Lost []rangeset.Range
	// Gained holds the ranges the action put in place.
	Gained []rangeset.Range
}

// LostSpan returns the span [start, end) covered by Lost.
func (e Entry) LostSpan() (start, end int64) {
	return span(e.Lost)
}

// GainedSpan returns the span [start, end) covered by Gained.
func (e Entry) GainedSpan() (start, end int64) {
	return span(e.Gained)
}

func span(rs []rangeset.Range) (start, end int64) {
	if len(rs) == 0 {
		return 0, 0
	}
	start, end = rs[0].Position, rs[0].End()
	for _, r := range rs[1:] {
		start = min(start, r.Position)
		end = max(end, r.End())
	}
	return start, end
}

// String summarises the entry.
func (e Entry) String() string {
	ls, le := e.LostSpan()
	gs, ge := e.GainedSpan()
	return fmt.Sprintf("%s lost=[%d:%d) gained=[%d:%d)", e.Type, ls, le, gs, ge)
}
