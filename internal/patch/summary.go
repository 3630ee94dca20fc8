package patch

import (
	"github.com/tidwall/sjson"

	"github.com/dshills/hexstorm/internal/engine"
)

// scanChunk is how much content ModifiedSpans reads at a time.
const scanChunk = 64 << 10

type span struct {
	Start  int64 `json:"start"`
	Length int64 `json:"length"`
}

// ModifiedSpans returns every modified span of the content, joined across
// read boundaries.
func ModifiedSpans(eng *engine.Engine) ([]engine.Span, error) {
	var out []engine.Span
	buf := make([]byte, scanChunk)
	for pos := int64(0); ; {
		n, spans, err := eng.ReadModified(buf, pos)
		if err != nil {
			return nil, err
		}
		for _, s := range spans {
			if k := len(out); k > 0 && out[k-1].End() == s.Start {
				out[k-1].Length += s.Length
				continue
			}
			out = append(out, s)
		}
		if n < len(buf) {
			return out, nil
		}
		pos += int64(n)
	}
}

// Summary describes the engine's state as a JSON object:
//
//	{"id":..., "path":..., "length":..., "dirty":..., "dirtySize":...,
//	 "stale":..., "canUndo":..., "canRedo":..., "undoSteps":...,
//	 "redoSteps":..., "openFiles":[...],
//	 "modified":[{"start":..., "length":...}]}
func Summary(eng *engine.Engine) ([]byte, error) {
	spans, err := ModifiedSpans(eng)
	if err != nil {
		return nil, err
	}

	out := []byte(`{}`)
	set := func(path string, v any) {
		if err == nil {
			out, err = sjson.SetBytes(out, path, v)
		}
	}
	set("id", eng.ID().String())
	set("path", eng.Path())
	set("length", eng.Length())
	set("dirty", eng.IsDirty())
	set("dirtySize", eng.IsDirtySize())
	set("stale", eng.Stale())
	set("canUndo", eng.CanUndo())
	set("canRedo", eng.CanRedo())
	undo, redo := eng.HistoryDepth()
	set("undoSteps", undo)
	set("redoSteps", redo)

	files := eng.OpenFiles()
	if files == nil {
		files = []string{}
	}
	set("openFiles", files)

	if err == nil {
		out, err = sjson.SetRawBytes(out, "modified", []byte(`[]`))
	}
	for _, s := range spans {
		set("modified.-1", span{Start: s.Start, Length: s.Length})
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Report is Summary with the applied op count of res added.
func Report(eng *engine.Engine, res Result) ([]byte, error) {
	out, err := Summary(eng)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "applied", res.Applied)
}
