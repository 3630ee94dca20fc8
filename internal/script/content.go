package script

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/hexstorm/internal/engine"
)

// contentModule binds the engine's operations to Lua functions.
type contentModule struct {
	eng *engine.Engine
}

func newContentModule(L *lua.LState, eng *engine.Engine) *lua.LTable {
	m := &contentModule{eng: eng}
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"length":         m.length,
		"read":           m.read,
		"byte":           m.byteAt,
		"modified":       m.modified,
		"insert":         m.insert,
		"insert_byte":    m.insertByte,
		"overwrite":      m.overwrite,
		"overwrite_byte": m.overwriteByte,
		"overwrite_bits": m.overwriteBits,
		"delete":         m.delete,
		"undo":           m.undo,
		"redo":           m.redo,
		"can_undo":       m.canUndo,
		"can_redo":       m.canRedo,
		"dirty":          m.dirty,
		"end_action":     m.endAction,
		"find":           m.find,
	})
}

func checkByte(L *lua.LState, n int) byte {
	v := L.CheckInt(n)
	if v < 0 || v > 0xff {
		L.ArgError(n, "byte out of range")
	}
	return byte(v)
}

func check(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%v", err)
	}
}

func (m *contentModule) length(L *lua.LState) int {
	L.Push(lua.LNumber(m.eng.Length()))
	return 1
}

// span reads the (pos, n) arguments and clamps n to the bytes available
// at pos, so a script cannot size a buffer past the content.
func (m *contentModule) span(L *lua.LState) (int64, int) {
	pos := L.CheckInt64(1)
	n := L.CheckInt64(2)
	if n < 0 {
		L.ArgError(2, "negative length")
	}
	n = min(n, max(0, m.eng.Length()-pos))
	return pos, int(n)
}

// read(pos, n) returns up to n bytes as a string.
func (m *contentModule) read(L *lua.LState) int {
	pos, n := m.span(L)
	if n == 0 {
		L.Push(lua.LString(""))
		return 1
	}
	buf := make([]byte, n)
	got, err := m.eng.Read(buf, pos)
	check(L, err)
	L.Push(lua.LString(buf[:got]))
	return 1
}

// byte(pos) returns the byte at pos, or nil past the end.
func (m *contentModule) byteAt(L *lua.LState) int {
	pos := L.CheckInt64(1)
	var b [1]byte
	n, err := m.eng.Read(b[:], pos)
	check(L, err)
	if n == 0 {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(b[0]))
	return 1
}

// modified(pos, n) returns the modified spans among the n bytes at pos as
// a list of {start=, length=} tables.
func (m *contentModule) modified(L *lua.LState) int {
	pos, n := m.span(L)
	out := L.NewTable()
	if n == 0 {
		L.Push(out)
		return 1
	}
	_, spans, err := m.eng.ReadModified(make([]byte, n), pos)
	check(L, err)
	for _, s := range spans {
		t := L.NewTable()
		t.RawSetString("start", lua.LNumber(s.Start))
		t.RawSetString("length", lua.LNumber(s.Length))
		out.Append(t)
	}
	L.Push(out)
	return 1
}

func (m *contentModule) insert(L *lua.LState) int {
	pos := L.CheckInt64(1)
	data := L.CheckString(2)
	check(L, m.eng.Insert([]byte(data), pos))
	return 0
}

func (m *contentModule) insertByte(L *lua.LState) int {
	pos := L.CheckInt64(1)
	check(L, m.eng.InsertByte(checkByte(L, 2), pos))
	return 0
}

func (m *contentModule) overwrite(L *lua.LState) int {
	pos := L.CheckInt64(1)
	data := L.CheckString(2)
	check(L, m.eng.Overwrite([]byte(data), pos))
	return 0
}

func (m *contentModule) overwriteByte(L *lua.LState) int {
	pos := L.CheckInt64(1)
	check(L, m.eng.OverwriteByte(checkByte(L, 2), pos))
	return 0
}

// overwrite_bits(pos, b, offset, length)
func (m *contentModule) overwriteBits(L *lua.LState) int {
	pos := L.CheckInt64(1)
	b := checkByte(L, 2)
	offset := L.CheckInt(3)
	length := L.CheckInt(4)
	check(L, m.eng.OverwriteBits(b, offset, length, pos))
	return 0
}

func (m *contentModule) delete(L *lua.LState) int {
	pos := L.CheckInt64(1)
	n := L.CheckInt64(2)
	check(L, m.eng.Delete(pos, n))
	return 0
}

func pushSpan(L *lua.LState, start, end int64, ok bool) int {
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(start))
	L.Push(lua.LNumber(end))
	return 2
}

func (m *contentModule) undo(L *lua.LState) int {
	start, end, ok := m.eng.Undo()
	return pushSpan(L, start, end, ok)
}

func (m *contentModule) redo(L *lua.LState) int {
	start, end, ok := m.eng.Redo()
	return pushSpan(L, start, end, ok)
}

func (m *contentModule) canUndo(L *lua.LState) int {
	L.Push(lua.LBool(m.eng.CanUndo()))
	return 1
}

func (m *contentModule) canRedo(L *lua.LState) int {
	L.Push(lua.LBool(m.eng.CanRedo()))
	return 1
}

func (m *contentModule) dirty(L *lua.LState) int {
	L.Push(lua.LBool(m.eng.IsDirty()))
	return 1
}

func (m *contentModule) endAction(L *lua.LState) int {
	m.eng.EndAction()
	return 0
}

// find(pattern [, from [, {backward=bool, ignore_case=bool}]]) returns the
// match position or nil.
func (m *contentModule) find(L *lua.LState) int {
	pattern := L.CheckString(1)
	from := L.OptInt64(2, 0)
	var opts engine.FindOptions
	if t := L.OptTable(3, nil); t != nil {
		opts.Backward = lua.LVAsBool(t.RawGetString("backward"))
		opts.IgnoreCase = lua.LVAsBool(t.RawGetString("ignore_case"))
	}
	if opts.Backward && L.Get(2) == lua.LNil {
		from = m.eng.Length()
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	at, err := m.eng.Find(ctx, []byte(pattern), from, opts)
	check(L, err)
	if at < 0 {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(at))
	return 1
}
