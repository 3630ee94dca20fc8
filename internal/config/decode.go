package config

import (
	"fmt"
	"math"
	"time"

	"github.com/dshills/hexstorm/internal/config/loader"
)

// decoder reads typed values out of a merged tree. The first failure is
// kept in err and later reads become no-ops.
type decoder struct {
	tree map[string]any
	err  error
}

func (d *decoder) get(path string) (any, bool) {
	if d.err != nil {
		return nil, false
	}
	return loader.GetPath(d.tree, path)
}

func (d *decoder) fail(path, expected string, v any) {
	d.err = &TypeError{Path: path, Expected: expected, Actual: typeName(v)}
}

func (d *decoder) getString(path string) string {
	v, ok := d.get(path)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(path, "string", v)
	}
	return s
}

func (d *decoder) getBool(path string) bool {
	v, ok := d.get(path)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(path, "bool", v)
	}
	return b
}

func (d *decoder) getInt(path string) int64 {
	v, ok := d.get(path)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case int:
		return int64(val)
	case int64:
		return val
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val)
		}
	case float64:
		if val == math.Trunc(val) {
			return int64(val)
		}
	}
	d.fail(path, "int", v)
	return 0
}

// getDuration accepts Go duration strings, time.Duration values from the
// environment layer, and bare integers as milliseconds.
func (d *decoder) getDuration(path string) time.Duration {
	v, ok := d.get(path)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case time.Duration:
		return val
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			d.fail(path, "duration", v)
		}
		return dur
	case int64:
		return time.Duration(val) * time.Millisecond
	case int:
		return time.Duration(val) * time.Millisecond
	}
	d.fail(path, "duration", v)
	return 0
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case int, int64, uint64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case time.Duration:
		return "duration"
	case []any:
		return "array"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}
