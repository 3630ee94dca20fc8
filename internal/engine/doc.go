// Package engine provides the editing engine behind hexstorm.
//
// The engine package is the facade over the content store. It adds
// locking, file orchestration (save, save as, save selection), spilling of
// large streamed inserts to disk, and tracking of backing files changed by
// other programs.
//
// # Architecture
//
// The engine is built on several sub-packages:
//
//   - rangeset: Ranges over memory or file sources, kept in a sorted tiling
//   - history: undo/redo log with merging of single-byte edits
//   - content: the editable byte sequence with its pending-edit run
//
// # Thread Safety
//
// All Engine operations are safe for concurrent use. Reads take a shared
// lock; edits take an exclusive one. Modify listeners run after the lock
// has been released, so they may call back into the engine.
//
// # Basic Usage
//
//	e, err := engine.Open("firmware.bin")
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	// Type "ab" as two hex digits over the byte at 0x10.
//	e.OverwriteBits(0xa, 0, 4, 0x10)
//	e.OverwriteBits(0xb, 4, 4, 0x10)
//
//	// Undo restores the original byte in one step.
//	e.Undo()
//
//	// Write the result next to the original.
//	e.SaveAs("firmware.patched.bin")
//
// # Large Inserts
//
// InsertReader buffers small inputs in memory. Inputs larger than the spill
// threshold are copied to a temporary file, which the content then reads
// lazily. Spill files are removed by Close.
package engine
