// Package history records edits to binary content so they can be undone
// and redone.
//
// # Entries
//
// Each Entry is one user-visible action: a block insert, a block delete,
// a block overwrite, or a run of single-byte edits of the same kind that
// were merged together. An Entry keeps the Ranges the action removed
// (Lost) and the Ranges it put in their place (Gained). Ranges are values,
// so capturing one snapshots it; later edits to the live range set cannot
// reach into the log.
//
// # Merging
//
// Consecutive single-byte edits merge into the open action when they have
// the same type, arrive within the merge window of the previous edit, and
// touch the byte right after the run (insert, overwrite) or the byte at or
// just before its start (delete, including backspace). Anything else closes
// the open action and starts a new one.
//
// # Cursor
//
// Entries left of the cursor can be undone and entries right of it can be
// redone. Recording a new action drops everything right of the cursor.
package history
