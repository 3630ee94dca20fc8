package content

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeData writes a file holding bytes 0..n-1 (mod 256) and returns its path.
func writeData(t *testing.T, n int) string {
	t.Helper()
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestStore opens a 256-byte store over 0..255.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(writeData(t, 256), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Dispose() })
	return s
}

// historyModes runs f with history off and on.
func historyModes(t *testing.T, f func(t *testing.T, opts ...Option)) {
	t.Run("history off", func(t *testing.T) { f(t, WithHistory(false)) })
	t.Run("history on", func(t *testing.T) { f(t) })
}

func read(t *testing.T, s *Store, pos int64, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	got, err := s.Read(buf, pos)
	if err != nil {
		t.Fatalf("Read(%d): %v", pos, err)
	}
	return buf[:got]
}

func all(t *testing.T, s *Store) []byte {
	t.Helper()
	return read(t, s, 0, int(s.Length()))
}

func mustValid(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v\n%s", err, s)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)
	if s.Length() != 256 {
		t.Errorf("Length() = %d, want 256", s.Length())
	}
	if s.IsDirty() || s.IsDirtySize() {
		t.Error("freshly opened content is dirty")
	}
	if got := read(t, s, 250, 10); !bytes.Equal(got, []byte{250, 251, 252, 253, 254, 255}) {
		t.Errorf("tail = %v", got)
	}
	if len(s.OpenFiles()) != 1 {
		t.Errorf("OpenFiles() = %v", s.OpenFiles())
	}
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	must(t, os.WriteFile(path, nil, 0o644))
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Dispose()
	if s.Length() != 0 {
		t.Errorf("Length() = %d, want 0", s.Length())
	}
	mustValid(t, s)
}

func TestLoadFailureLeavesStoreUsable(t *testing.T) {
	s := New()
	err := s.Load(filepath.Join(t.TempDir(), "missing.bin"))

	var ioe *IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("Load error = %v, want *IOError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error does not wrap os.ErrNotExist: %v", err)
	}
	if s.Length() != 0 {
		t.Errorf("Length() = %d, want 0", s.Length())
	}
	must(t, s.InsertByte(1, 0))
	if s.Length() != 1 {
		t.Errorf("Length() = %d after insert, want 1", s.Length())
	}
}

func TestDelete(t *testing.T) {
	historyModes(t, func(t *testing.T, opts ...Option) {
		s := newTestStore(t, opts...)
		must(t, s.Delete(0, 1))
		must(t, s.Delete(0, 2))
		must(t, s.Delete(12, 1))
		must(t, s.Delete(11, 2))
		must(t, s.Delete(249, 1))
		must(t, s.Delete(247, 2))
		mustValid(t, s)

		if got := read(t, s, 0, 8); got[0] != 3 || len(got) != 8 {
			t.Errorf("read(0) = %v", got)
		}
		if got := read(t, s, 10, 8); got[0] != 13 || got[1] != 17 {
			t.Errorf("read(10) = %v", got)
		}
		if got := read(t, s, 246, 8); len(got) != 1 || got[0] != 252 {
			t.Errorf("read(246) = %v", got)
		}
	})
}

func TestDeleteClampsAndIgnores(t *testing.T) {
	s := newTestStore(t)
	must(t, s.Delete(250, 100))
	if s.Length() != 250 {
		t.Errorf("Length() = %d, want 250", s.Length())
	}
	must(t, s.Delete(250, 1))
	must(t, s.Delete(10, 0))
	must(t, s.Delete(10, -3))
	if s.Length() != 250 {
		t.Errorf("Length() = %d after no-ops, want 250", s.Length())
	}
	if err := s.Delete(-1, 1); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Delete(-1) error = %v, want ErrInvalidPosition", err)
	}
}

func TestInsertByte(t *testing.T) {
	historyModes(t, func(t *testing.T, opts ...Option) {
		s := newTestStore(t, opts...)
		must(t, s.InsertByte(13, 256))
		if got := read(t, s, 253, 8); !bytes.Equal(got, []byte{253, 254, 255, 13}) {
			t.Errorf("read(253) = %v", got)
		}
		must(t, s.InsertByte(14, 0))
		must(t, s.InsertByte(15, 5))

		if got := read(t, s, 0, 8); got[0] != 14 || got[1] != 0 {
			t.Errorf("read(0) = %v", got)
		}
		if got := read(t, s, 4, 8); got[0] != 3 || got[1] != 15 || got[2] != 4 {
			t.Errorf("read(4) = %v", got)
		}
		if got := read(t, s, 253, 8); len(got) != 6 || got[4] != 255 || got[5] != 13 {
			t.Errorf("read(253) = %v", got)
		}

		must(t, s.InsertByte(14, 259))
		must(t, s.InsertByte(15, 260))
		if got := read(t, s, 260, 8); len(got) != 1 || got[0] != 15 {
			t.Errorf("read(260) = %v", got)
		}
		mustValid(t, s)
	})
}

func TestInsertIntoEmpty(t *testing.T) {
	s := New()
	must(t, s.InsertByte(33, 0))
	if got := read(t, s, 0, 8); !bytes.Equal(got, []byte{33}) {
		t.Errorf("read = %v, want [33]", got)
	}
	if s.Length() != 1 {
		t.Errorf("Length() = %d, want 1", s.Length())
	}
}

func TestInsertPastEndIgnored(t *testing.T) {
	s := newTestStore(t)
	must(t, s.InsertByte(1, 257))
	must(t, s.Insert([]byte("abc"), 300))
	if s.Length() != 256 || s.IsDirty() {
		t.Errorf("Length()=%d dirty=%t", s.Length(), s.IsDirty())
	}
}

func TestInsertAtBeginningOfFile(t *testing.T) {
	historyModes(t, func(t *testing.T, opts ...Option) {
		s := newTestStore(t, opts...)
		must(t, s.Delete(1, 255))
		must(t, s.InsertByte(2, 0))
		must(t, s.InsertByte(1, 0))
		must(t, s.InsertByte(0, 0))
		if got := read(t, s, 0, 8); !bytes.Equal(got, []byte{0, 1, 2, 0}) {
			t.Errorf("read = %v", got)
		}
	})
}

func TestInsertThenDelete(t *testing.T) {
	historyModes(t, func(t *testing.T, opts ...Option) {
		s := newTestStore(t, opts...)
		steps := []struct {
			delPos, delLen int64
			want           []byte
		}{
			{5, 1, []byte{0, 1, 2, 3, 4, 5, 6, 7}},
			{5, 1, []byte{0, 1, 2, 3, 4, 5, 6, 7}},
			{5, 2, []byte{0, 1, 2, 3, 4, 6, 7, 8}},
			{4, 2, []byte{0, 1, 2, 3, 6, 7, 8, 9}},
			{4, 3, []byte{0, 1, 2, 3, 8, 9, 10, 11}},
		}
		for i, st := range steps {
			must(t, s.InsertByte(64, 5))
			must(t, s.Delete(st.delPos, st.delLen))
			mustValid(t, s)
			if got := read(t, s, 0, 8); !bytes.Equal(got, st.want) {
				t.Errorf("step %d: read = %v, want %v", i, got, st.want)
			}
		}
	})
}

func TestOverwriteByte(t *testing.T) {
	historyModes(t, func(t *testing.T, opts ...Option) {
		s := newTestStore(t, opts...)
		must(t, s.OverwriteByte(13, 255))
		must(t, s.OverwriteByte(14, 0))
		must(t, s.OverwriteByte(15, 5))

		if got := read(t, s, 0, 8); got[0] != 14 || got[1] != 1 {
			t.Errorf("read(0) = %v", got)
		}
		if got := read(t, s, 4, 8); got[0] != 4 || got[1] != 15 || got[2] != 6 {
			t.Errorf("read(4) = %v", got)
		}
		if got := read(t, s, 250, 8); len(got) != 6 || got[4] != 254 || got[5] != 13 {
			t.Errorf("read(250) = %v", got)
		}
		if s.Length() != 256 || s.IsDirtySize() {
			t.Errorf("Length()=%d dirtySize=%t", s.Length(), s.IsDirtySize())
		}
		if !s.IsDirty() {
			t.Error("IsDirty() = false after overwrite")
		}
	})
}

func TestOverwritePastEndIgnored(t *testing.T) {
	s := newTestStore(t)
	must(t, s.OverwriteByte(1, 256))
	must(t, s.Overwrite([]byte("ab"), 256))
	must(t, s.OverwriteBits(1, 8, 1, 0))
	must(t, s.OverwriteBits(1, 0, 0, 0))
	if s.IsDirty() {
		t.Error("ignored overwrites marked content dirty")
	}
}

func TestOverwriteBits(t *testing.T) {
	tests := []struct {
		name           string
		b              byte
		offset, length int
		want           byte
	}{
		{"upper nibble", 0x0c, 0, 4, 0xc5},
		{"lower nibble", 0x0c, 4, 4, 0xac},
		{"single bit", 0x01, 1, 1, 0xe5},
		{"clear bit", 0x00, 2, 1, 0xa5 &^ 0x20},
		{"length clamped", 0xff, 6, 5, 0xa7},
		{"whole byte", 0x42, 0, 8, 0x42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			must(t, s.Insert([]byte{0xa5}, 0))
			must(t, s.OverwriteBits(tt.b, tt.offset, tt.length, 0))
			if got := read(t, s, 0, 1)[0]; got != tt.want {
				t.Errorf("byte = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestOverwriteThenInsert(t *testing.T) {
	historyModes(t, func(t *testing.T, opts ...Option) {
		s := newTestStore(t, opts...)
		must(t, s.OverwriteByte(33, 128))
		must(t, s.InsertByte(43, 129))
		if got := read(t, s, 127, 4); !bytes.Equal(got, []byte{127, 33, 43, 129}) {
			t.Errorf("read = %v", got)
		}
	})
}

func TestBlockOverwrite(t *testing.T) {
	s := newTestStore(t)
	must(t, s.Overwrite([]byte{0xee, 0xee, 0xee, 0xee}, 254))
	if s.Length() != 258 {
		t.Errorf("Length() = %d, want 258", s.Length())
	}
	if !s.IsDirtySize() {
		t.Error("overwrite past the end should change size")
	}
	if got := read(t, s, 252, 8); !bytes.Equal(got, []byte{252, 253, 0xee, 0xee, 0xee, 0xee}) {
		t.Errorf("read = %v", got)
	}
	mustValid(t, s)
}

func TestRangesModified(t *testing.T) {
	s := newTestStore(t, WithHistory(false))
	buf := make([]byte, 8)

	must(t, s.OverwriteByte(13, 128))
	_, mods, err := s.ReadModified(buf, 125)
	must(t, err)
	assertSpans(t, mods, []Span{{128, 1}})

	must(t, s.InsertByte(14, 127))
	_, mods, err = s.ReadModified(buf, 125)
	must(t, err)
	assertSpans(t, mods, []Span{{127, 1}, {129, 1}})

	must(t, s.OverwriteByte(15, 126))
	_, mods, err = s.ReadModified(buf, 125)
	must(t, err)
	assertSpans(t, mods, []Span{{126, 2}, {129, 1}})
}

func TestRangesModifiedAtEndOfFile(t *testing.T) {
	s := newTestStore(t)
	must(t, s.InsertByte(13, 256))

	n, mods, err := s.ReadModified(make([]byte, 8), 250)
	must(t, err)
	if n != 7 {
		t.Errorf("read %d bytes, want 7", n)
	}
	assertSpans(t, mods, []Span{{256, 1}})
}

func TestRangesModifiedUnconnexInserts(t *testing.T) {
	s := newTestStore(t)
	must(t, s.Delete(2, 254))
	must(t, s.InsertByte(13, 0))
	must(t, s.InsertByte(14, 2))

	n, mods, err := s.ReadModified(make([]byte, 8), 0)
	must(t, err)
	if n != 4 {
		t.Errorf("read %d bytes, want 4", n)
	}
	assertSpans(t, mods, []Span{{0, 1}, {2, 1}})
}

func assertSpans(t *testing.T, got, want []Span) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("spans = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("spans = %v, want %v", got, want)
			return
		}
	}
}

func TestReadOutOfRange(t *testing.T) {
	s := newTestStore(t)
	n, err := s.Read(make([]byte, 4), 300)
	if n != 0 || err != nil {
		t.Errorf("Read past end = %d, %v", n, err)
	}
	if _, err := s.Read(make([]byte, 4), -1); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Read(-1) error = %v", err)
	}
}

func TestListeners(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	id := s.AddModifyListener(ListenerFunc(func() { calls++ }))

	must(t, s.InsertByte(1, 0))
	must(t, s.Delete(0, 1))
	must(t, s.InsertByte(1, 999))
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	s.RemoveModifyListener(id)
	must(t, s.OverwriteByte(1, 0))
	if calls != 2 {
		t.Errorf("calls = %d after removal, want 2", calls)
	}
}

func TestDispose(t *testing.T) {
	s, err := Open(writeData(t, 16))
	must(t, err)
	must(t, s.InsertFile(writeData(t, 4), 8))
	must(t, s.Delete(0, 12))
	if len(s.OpenFiles()) != 2 {
		t.Fatalf("OpenFiles() = %v", s.OpenFiles())
	}

	if err := s.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := s.Dispose(); err != nil {
		t.Errorf("second Dispose: %v", err)
	}
	if len(s.OpenFiles()) != 0 {
		t.Errorf("OpenFiles() after Dispose = %v", s.OpenFiles())
	}
	if err := s.InsertByte(1, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("InsertByte after Dispose = %v, want ErrClosed", err)
	}
	if _, err := s.Read(make([]byte, 1), 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Dispose = %v, want ErrClosed", err)
	}
}

func TestDisposeToleratesDeletedFile(t *testing.T) {
	path := writeData(t, 16)
	s, err := Open(path)
	must(t, err)
	must(t, os.Remove(path))
	if err := s.Dispose(); err != nil {
		t.Errorf("Dispose: %v", err)
	}
}

func TestNewSelection(t *testing.T) {
	if _, err := NewSelection(5, 4); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("inverted selection error = %v", err)
	}
	if _, err := NewSelection(-1, 4); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("negative selection error = %v", err)
	}
	sel, err := NewSelection(2, 6)
	must(t, err)
	if sel.Len() != 4 || sel.IsEmpty() {
		t.Errorf("sel = %v", sel)
	}
}
