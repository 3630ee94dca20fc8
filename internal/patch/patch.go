// Package patch reads JSON edit lists and applies them to an engine.
//
// A patch document is an object with an "ops" array, or the array alone:
//
//	{"ops": [
//	  {"op": "overwrite", "at": "0x10", "hex": "de ad be ef"},
//	  {"op": "insert", "at": 0, "text": "MAGIC"},
//	  {"op": "insert", "at": 0, "file": "header.bin"},
//	  {"op": "delete", "at": 64, "length": 16},
//	  {"op": "bits", "at": 3, "value": 1, "offset": 7, "length": 1},
//	  {"op": "undo"},
//	  {"op": "redo"}
//	]}
//
// Positions are zero-based and may be JSON numbers or strings in any base
// strconv.ParseInt accepts with base 0. Each op is one undo step.
package patch

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/hexstorm/internal/engine"
)

// Errors for patch documents.
var (
	ErrInvalidDocument = errors.New("invalid patch document")
	ErrUnknownOp       = errors.New("unknown op")
	ErrMissingField    = errors.New("missing field")
	ErrInvalidField    = errors.New("invalid field")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrNothingToRedo   = errors.New("nothing to redo")
)

// OpError reports the op a patch failed at.
type OpError struct {
	Index int
	Op    string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("op %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Kind identifies what an op does.
type Kind int

const (
	KindInsert Kind = iota + 1
	KindOverwrite
	KindDelete
	KindBits
	KindUndo
	KindRedo
)

var kindNames = map[string]Kind{
	"insert":    KindInsert,
	"overwrite": KindOverwrite,
	"delete":    KindDelete,
	"bits":      KindBits,
	"undo":      KindUndo,
	"redo":      KindRedo,
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Op is one edit.
type Op struct {
	Kind Kind
	At   int64

	// Data holds the bytes of an insert or overwrite, unless File is set.
	Data []byte
	File string

	// Length is the byte count of a delete, or the bit count of a bits op.
	Length int64

	// Value and Offset describe a bits op.
	Value  byte
	Offset int
}

// Patch is a parsed document.
type Patch struct {
	Ops []Op
}

// Result describes an applied patch.
type Result struct {
	Applied int
}

// Parse parses a patch document. Relative "file" paths are kept as
// written.
func Parse(data []byte) (*Patch, error) {
	return parse(data, "")
}

// ParseFile reads and parses the patch at path. Relative "file" paths
// resolve against the patch's directory.
func ParseFile(path string) (*Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func parse(data []byte, baseDir string) (*Patch, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidDocument)
	}
	root := gjson.ParseBytes(data)
	ops := root
	if !root.IsArray() {
		ops = root.Get("ops")
		if !ops.IsArray() {
			return nil, fmt.Errorf("%w: no ops array", ErrInvalidDocument)
		}
	}

	p := &Patch{}
	for i, r := range ops.Array() {
		op, err := parseOp(r)
		if err != nil {
			return nil, &OpError{Index: i, Op: r.Get("op").String(), Err: err}
		}
		if op.File != "" && baseDir != "" && !filepath.IsAbs(op.File) {
			op.File = filepath.Join(baseDir, op.File)
		}
		p.Ops = append(p.Ops, op)
	}
	return p, nil
}

func parseOp(r gjson.Result) (Op, error) {
	if !r.IsObject() {
		return Op{}, fmt.Errorf("%w: op is not an object", ErrInvalidDocument)
	}
	name := r.Get("op")
	if !name.Exists() {
		return Op{}, fmt.Errorf("%w: op", ErrMissingField)
	}
	kind, ok := kindNames[name.String()]
	if !ok {
		return Op{}, fmt.Errorf("%w: %q", ErrUnknownOp, name.String())
	}

	op := Op{Kind: kind}
	if kind == KindUndo || kind == KindRedo {
		return op, nil
	}

	var err error
	if op.At, err = position(r, "at"); err != nil {
		return Op{}, err
	}

	switch kind {
	case KindInsert, KindOverwrite:
		op.Data, op.File, err = payload(r)
	case KindDelete:
		op.Length, err = position(r, "length")
	case KindBits:
		var v int64
		if v, err = position(r, "value"); err != nil {
			return Op{}, err
		}
		if v > 0xff {
			return Op{}, fmt.Errorf("%w: value %d is not a byte", ErrInvalidField, v)
		}
		op.Value = byte(v)
		var off int64
		if off, err = position(r, "offset"); err != nil {
			return Op{}, err
		}
		op.Offset = int(off)
		op.Length, err = position(r, "length")
	}
	if err != nil {
		return Op{}, err
	}
	return op, nil
}

// position reads a non-negative integer field.
func position(r gjson.Result, key string) (int64, error) {
	v := r.Get(key)
	switch v.Type {
	case gjson.Null:
		if !v.Exists() {
			return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	case gjson.Number:
		n := v.Int()
		if float64(n) != v.Num || n < 0 {
			return 0, fmt.Errorf("%w: %s = %s", ErrInvalidField, key, v.Raw)
		}
		return n, nil
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 0, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %s = %q", ErrInvalidField, key, v.Str)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s = %s", ErrInvalidField, key, v.Raw)
}

// payload reads exactly one of hex, text or file.
func payload(r gjson.Result) ([]byte, string, error) {
	var (
		data  []byte
		file  string
		found int
	)
	if v := r.Get("hex"); v.Exists() {
		found++
		b, err := hex.DecodeString(strings.Join(strings.Fields(v.String()), ""))
		if err != nil {
			return nil, "", fmt.Errorf("%w: hex: %v", ErrInvalidField, err)
		}
		data = b
	}
	if v := r.Get("text"); v.Exists() {
		found++
		data = []byte(v.String())
	}
	if v := r.Get("file"); v.Exists() {
		found++
		file = v.String()
		if file == "" {
			return nil, "", fmt.Errorf("%w: empty file", ErrInvalidField)
		}
	}
	switch found {
	case 0:
		return nil, "", fmt.Errorf("%w: one of hex, text or file", ErrMissingField)
	case 1:
		return data, file, nil
	default:
		return nil, "", fmt.Errorf("%w: more than one of hex, text or file", ErrInvalidField)
	}
}

// Apply runs the ops in order and stops at the first failure, returning an
// *OpError. Ops applied before the failure stay applied. ctx is checked
// between ops.
func (p *Patch) Apply(ctx context.Context, eng *engine.Engine) (Result, error) {
	var res Result
	for i, op := range p.Ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := op.apply(eng); err != nil {
			return res, &OpError{Index: i, Op: op.Kind.String(), Err: err}
		}
		eng.EndAction()
		res.Applied++
	}
	return res, nil
}

func (op Op) apply(eng *engine.Engine) error {
	switch op.Kind {
	case KindInsert:
		if op.File != "" {
			return eng.InsertFile(op.File, op.At)
		}
		return eng.Insert(op.Data, op.At)
	case KindOverwrite:
		if op.File != "" {
			return eng.OverwriteFile(op.File, op.At)
		}
		return eng.Overwrite(op.Data, op.At)
	case KindDelete:
		return eng.Delete(op.At, op.Length)
	case KindBits:
		return eng.OverwriteBits(op.Value, op.Offset, int(op.Length), op.At)
	case KindUndo:
		if _, _, ok := eng.Undo(); !ok {
			return ErrNothingToUndo
		}
	case KindRedo:
		if _, _, ok := eng.Redo(); !ok {
			return ErrNothingToRedo
		}
	default:
		return ErrUnknownOp
	}
	return nil
}
