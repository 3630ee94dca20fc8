// Package hexdump renders content as a canonical hex dump: an offset
// column, the bytes in hex and a text column.
//
//	00000000  7f 45 4c 46 02 01 01 00  00 00 00 00 00 00 00 00  |.ELF............|
//
// Modified bytes are drawn with a highlight style when color is enabled.
// The text column decodes bytes with a single-byte character set.
package hexdump

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/term"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/dshills/hexstorm/internal/engine"
)

// DefaultWidth is the number of bytes per line.
const DefaultWidth = 16

// linesPerRead is how many lines are read from the source at a time.
const linesPerRead = 256

// ErrUnsupportedCharset is returned for charsets that are not single-byte.
var ErrUnsupportedCharset = errors.New("unsupported charset")

// Source is content that reports its modified spans.
type Source interface {
	ReadModified(dst []byte, pos int64) (int, []engine.Span, error)
}

// ColorMode selects when escape sequences are written.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode parses "auto", "always" or "never".
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	}
	return ColorAuto, fmt.Errorf("invalid color mode: %q", s)
}

func (m ColorMode) String() string {
	switch m {
	case ColorAlways:
		return "always"
	case ColorNever:
		return "never"
	default:
		return "auto"
	}
}

// Enabled reports whether output to w should be colored. Auto colors
// terminals unless NO_COLOR is set.
func (m ColorMode) Enabled(w io.Writer) bool {
	switch m {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// Dumper writes hex dumps.
type Dumper struct {
	width    int
	color    bool
	modified Style
	text     [256]rune
	charset  string
}

// Option configures a Dumper.
type Option func(*Dumper) error

// WithWidth sets the bytes per line.
func WithWidth(n int) Option {
	return func(d *Dumper) error {
		if n <= 0 {
			return fmt.Errorf("invalid width: %d", n)
		}
		d.width = n
		return nil
	}
}

// WithColor turns highlighting of modified bytes on or off.
func WithColor(enabled bool) Option {
	return func(d *Dumper) error {
		d.color = enabled
		return nil
	}
}

// WithModifiedStyle sets the style of modified bytes.
func WithModifiedStyle(s Style) Option {
	return func(d *Dumper) error {
		d.modified = s
		return nil
	}
}

// WithCharset decodes the text column with the named IANA character set.
// Only single-byte sets are accepted.
func WithCharset(name string) Option {
	return func(d *Dumper) error {
		table, err := charsetTable(name)
		if err != nil {
			return err
		}
		d.text = table
		d.charset = name
		return nil
	}
}

// New creates a Dumper. The text column defaults to ASCII.
func New(opts ...Option) (*Dumper, error) {
	d := &Dumper{
		width:    DefaultWidth,
		modified: ModifiedStyle(),
		charset:  "US-ASCII",
	}
	d.text, _ = charsetTable("")
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Charset returns the name of the text column's character set.
func (d *Dumper) Charset() string {
	return d.charset
}

func charsetTable(name string) ([256]rune, error) {
	var table [256]rune
	switch strings.ToLower(name) {
	case "", "ascii", "us-ascii":
		for i := range table {
			table[i] = rune(i)
			if i >= 0x80 {
				table[i] = utf8.RuneError
			}
		}
		return table, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return table, fmt.Errorf("%w: %q", ErrUnsupportedCharset, name)
	}
	cm, ok := enc.(*charmap.Charmap)
	if !ok {
		return table, fmt.Errorf("%w: %q is not a single-byte charset", ErrUnsupportedCharset, name)
	}
	for i := range table {
		table[i] = cm.DecodeByte(byte(i))
	}
	return table, nil
}

// glyph returns how b is drawn in the text column.
func (d *Dumper) glyph(b byte) rune {
	r := d.text[b]
	if r == utf8.RuneError || !unicode.IsPrint(r) {
		return '.'
	}
	return r
}

// Dump writes length bytes of src starting at off to w. A negative length
// dumps to the end. ctx is checked between reads.
func (d *Dumper) Dump(ctx context.Context, w io.Writer, src Source, off, length int64) error {
	if off < 0 {
		return fmt.Errorf("negative offset: %d", off)
	}
	bw := bufio.NewWriter(w)
	buf := make([]byte, d.width*linesPerRead)
	digits := 8

	for pos := off; length < 0 || pos < off+length; {
		if err := ctx.Err(); err != nil {
			return err
		}
		want := buf
		if length >= 0 {
			want = buf[:min(int64(len(buf)), off+length-pos)]
		}
		n, spans, err := src.ReadModified(want, pos)
		if err != nil {
			return err
		}
		for i := 0; i < n; i += d.width {
			line := want[i:min(i+d.width, n)]
			lineAt := pos + int64(i)
			if lineAt > 0xffffffff {
				digits = max(digits, len(fmt.Sprintf("%x", lineAt+int64(len(line)))))
			}
			d.writeLine(bw, lineAt, line, spans, digits)
		}
		if n < len(want) {
			break
		}
		pos += int64(n)
	}
	return bw.Flush()
}

func (d *Dumper) writeLine(w *bufio.Writer, at int64, line []byte, spans []engine.Span, digits int) {
	fmt.Fprintf(w, "%0*x ", digits, at)

	mod := make([]bool, len(line))
	for _, s := range spans {
		for p := max(s.Start, at); p < min(s.End(), at+int64(len(line))); p++ {
			mod[p-at] = true
		}
	}

	on := d.color && !d.modified.IsDefault()
	for i := 0; i < d.width; i++ {
		if i%8 == 0 {
			w.WriteByte(' ')
		}
		if i >= len(line) {
			w.WriteString("   ")
			continue
		}
		if on && mod[i] {
			fmt.Fprintf(w, "%s%02x%s ", d.modified.Sequence(), line[i], reset)
			continue
		}
		fmt.Fprintf(w, "%02x ", line[i])
	}

	w.WriteString(" |")
	for i, b := range line {
		if on && mod[i] {
			w.WriteString(d.modified.Sequence())
			w.WriteRune(d.glyph(b))
			w.WriteString(reset)
			continue
		}
		w.WriteRune(d.glyph(b))
	}
	w.WriteString("|\n")
}
