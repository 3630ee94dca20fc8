package history

import (
	"errors"
	"slices"
	"time"

	"github.com/dshills/hexstorm/internal/clock"
	"github.com/dshills/hexstorm/internal/engine/rangeset"
)

// Common errors for history operations.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Content is the view of the edited content a History needs when closing
// a run of single-byte inserts or overwrites.
type Content interface {
	// CommitChanges folds buffered single-byte edits into the range set.
	CommitChanges()
	// Ranges returns copies of the committed ranges covering [start, end).
	Ranges(start, end int64) []rangeset.Range
}

// action is the entry being accumulated.
type action struct {
	typ    ActionType
	single bool
	lost   []rangeset.Range
	gained []rangeset.Range

	// Run of merged single-byte edits.
	runStart int64
	runLen   int64
}

func (a *action) empty() bool {
	return len(a.lost) == 0 && len(a.gained) == 0 && a.runLen == 0
}

// History is the undo log of one content store. It is not safe for
// concurrent use.
type History struct {
	content    Content
	clock      clock.Clock
	window     time.Duration
	maxEntries int

	entries []Entry
	cursor  int

	current   *action
	lastEdit  time.Time
	backspace bool

	// scratch keeps bytes that were lost before ever reaching the range set.
	scratch *rangeset.Source
}

// New creates a history for content.
func New(content Content, opts ...Option) *History {
	h := &History{
		content: content,
		clock:   clock.Real{},
		window:  DefaultMergeWindow,
		scratch: rangeset.NewMemorySource(nil),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BeginEdit must be called before content is changed. It either folds the
// edit into the open action or closes that action and opens a new one.
func (h *History) BeginEdit(typ ActionType, pos int64, single bool) {
	now := h.clock.Now()
	if h.merges(typ, pos, single, now) {
		if typ == ActionDelete {
			h.backspace = h.current.runStart > pos
		}
	} else {
		h.EndAction()
		h.current = &action{typ: typ, single: single, runStart: pos}
	}
	if single {
		h.lastEdit = now
		if typ != ActionDelete {
			h.current.runLen++
		}
	}
}

func (h *History) merges(typ ActionType, pos int64, single bool, now time.Time) bool {
	a := h.current
	if a == nil || a.typ != typ || !single || !a.single || h.window <= 0 {
		return false
	}
	if now.Sub(h.lastEdit) > h.window {
		return false
	}
	switch typ {
	case ActionInsert, ActionOverwrite:
		return a.runStart+a.runLen == pos
	default:
		return pos == a.runStart || pos == a.runStart-1
	}
}

// AddLost records ranges about to be removed from the content.
// Successive single-byte deletes are laid out as one contiguous span in
// the coordinates the content had when the run began.
func (h *History) AddLost(rs ...rangeset.Range) {
	a := h.current
	if a == nil {
		return
	}
	for _, r := range rs {
		if r.Length <= 0 {
			continue
		}
		if a.typ == ActionDelete && a.single {
			if h.backspace {
				a.runStart = r.Position
			} else {
				r.Position = a.runStart + a.runLen
			}
			a.runLen += r.Length
		}
		a.lost = append(a.lost, r)
	}
}

// AddLostBytes records bytes removed at pos that exist only as values,
// such as bytes of an uncommitted edit run.
func (h *History) AddLostBytes(pos int64, b []byte) {
	if h.current == nil || len(b) == 0 {
		return
	}
	off := h.scratch.Append(b...)
	h.AddLost(rangeset.Range{
		Position:   pos,
		Length:     int64(len(b)),
		DataOffset: off,
		Data:       h.scratch,
		Dirty:      true,
	})
}

// AddGained records ranges the open action placed in the content.
func (h *History) AddGained(rs ...rangeset.Range) {
	if h.current == nil {
		return
	}
	for _, r := range rs {
		if r.Length > 0 {
			h.current.gained = append(h.current.gained, r)
		}
	}
}

// AddInserted records a block insert and closes its action; block inserts
// never merge with neighbouring edits.
func (h *History) AddInserted(r rangeset.Range) {
	h.AddGained(r)
	h.EndAction()
}

// EndAction closes the open action and appends it to the log, dropping
// any entries that could still have been redone.
func (h *History) EndAction() {
	a := h.current
	if a == nil {
		return
	}
	h.current = nil
	h.backspace = false

	if a.single && a.typ != ActionDelete && a.runLen > 0 {
		h.content.CommitChanges()
		a.gained = h.content.Ranges(a.runStart, a.runStart+a.runLen)
	}
	if len(a.lost) == 0 && len(a.gained) == 0 {
		return
	}

	h.entries = append(h.entries[:h.cursor], Entry{
		Type:   a.typ,
		Lost:   normalize(a.lost),
		Gained: normalize(a.gained),
	})
	if h.maxEntries > 0 && len(h.entries) > h.maxEntries {
		h.entries = slices.Delete(h.entries, 0, len(h.entries)-h.maxEntries)
	}
	h.cursor = len(h.entries)
}

// normalize sorts ranges by position and joins source-contiguous neighbours.
func normalize(rs []rangeset.Range) []rangeset.Range {
	if len(rs) == 0 {
		return nil
	}
	rs = slices.Clone(rs)
	slices.SortStableFunc(rs, func(a, b rangeset.Range) int {
		switch {
		case a.Position < b.Position:
			return -1
		case a.Position > b.Position:
			return 1
		}
		return 0
	})
	return rangeset.Coalesce(rs)
}

// Undo closes any open action and steps the cursor back, returning the
// entry to reverse.
func (h *History) Undo() (Entry, error) {
	h.EndAction()
	if h.cursor == 0 {
		return Entry{}, ErrNothingToUndo
	}
	h.cursor--
	return h.entries[h.cursor], nil
}

// Redo steps the cursor forward, returning the entry to replay. Closing an
// open action first means an edit since the last undo leaves nothing to redo.
func (h *History) Redo() (Entry, error) {
	h.EndAction()
	if h.cursor >= len(h.entries) {
		return Entry{}, ErrNothingToRedo
	}
	e := h.entries[h.cursor]
	h.cursor++
	return e, nil
}

// CanUndo reports whether Undo would succeed.
func (h *History) CanUndo() bool {
	return h.cursor > 0 || (h.current != nil && !h.current.empty())
}

// CanRedo reports whether Redo would succeed.
func (h *History) CanRedo() bool {
	return (h.current == nil || h.current.empty()) && h.cursor < len(h.entries)
}

// UndoCount returns the number of closed entries that can be undone.
func (h *History) UndoCount() int { return h.cursor }

// RedoCount returns the number of entries that can be redone.
func (h *History) RedoCount() int { return len(h.entries) - h.cursor }

// Open reports whether an action is being accumulated.
func (h *History) Open() bool { return h.current != nil }

// Clear drops every entry and the open action.
func (h *History) Clear() {
	h.entries = nil
	h.cursor = 0
	h.current = nil
	h.backspace = false
	h.scratch = rangeset.NewMemorySource(nil)
}
