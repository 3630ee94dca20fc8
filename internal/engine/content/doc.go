// Package content implements editable binary content that may be far
// larger than memory.
//
// A Store keeps its bytes as a rangeset.Set: an ordered tiling of Ranges,
// each a window into an in-memory buffer or an open file. Edits splice
// Ranges instead of copying bytes, so opening a multi-gigabyte file and
// inserting a byte at its start touches only a handful of Ranges.
//
// Single-byte edits go through a pending run first: consecutive keystrokes
// extend one small buffer, which is folded into the range set (committed)
// the first time an operation needs a consistent structure.
//
// Every edit is reported to a history.History before the structure
// changes, which lets Undo and Redo replay exact Range snapshots.
//
// A Store is not safe for concurrent use. Callers serialize access; see the
// engine package for a locked wrapper.
package content
