package hexdump

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a terminal color: the default color, a palette index, or RGB.
type Color struct {
	R, G, B uint8
	// If Indexed is true, R holds the palette index.
	Indexed bool
	Default bool
}

// ColorDefault leaves the terminal's color unchanged.
var ColorDefault = Color{Default: true}

// Common colors.
var (
	ColorRed    = ColorFromIndex(1)
	ColorGreen  = ColorFromIndex(2)
	ColorYellow = ColorFromIndex(3)
	ColorGray   = ColorFromIndex(8)
)

// ColorFromRGB creates a true color.
func ColorFromRGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// ColorFromIndex creates a palette color.
func ColorFromIndex(index uint8) Color {
	return Color{R: index, Indexed: true}
}

// ParseColor parses "#RGB", "#RRGGBB" (the # is optional), a palette
// index "0".."255", or "default".
func ParseColor(s string) (Color, error) {
	if s == "default" || s == "" {
		return ColorDefault, nil
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && !strings.HasPrefix(s, "#") && len(s) <= 3 {
		return ColorFromIndex(uint8(n)), nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("invalid color: %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color: %q", s)
	}
	return ColorFromRGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

func (c Color) String() string {
	if c.Default {
		return "default"
	}
	if c.Indexed {
		return fmt.Sprintf("idx(%d)", c.R)
	}
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// sgr appends the SGR parameters selecting c. base is 38 for foreground
// and 48 for background.
func (c Color) sgr(params []string, base int) []string {
	switch {
	case c.Default:
		return params
	case c.Indexed && c.R < 8:
		return append(params, strconv.Itoa(base-8+int(c.R)))
	case c.Indexed && c.R < 16:
		return append(params, strconv.Itoa(base+52+int(c.R)-8))
	case c.Indexed:
		return append(params, fmt.Sprintf("%d;5;%d", base, c.R))
	default:
		return append(params, fmt.Sprintf("%d;2;%d;%d;%d", base, c.R, c.G, c.B))
	}
}

// Attribute is a set of text attributes.
type Attribute uint8

// Text attribute flags.
const (
	AttrNone      Attribute = 0
	AttrBold      Attribute = 1 << iota
	AttrDim                 // Faint text
	AttrUnderline           // Underlined text
	AttrReverse             // Reverse video
)

// Has reports whether a contains attr.
func (a Attribute) Has(attr Attribute) bool {
	return a&attr != 0
}

// Style is how a run of bytes is drawn.
type Style struct {
	Foreground Color
	Background Color
	Attributes Attribute
}

// DefaultStyle draws with the terminal's defaults.
func DefaultStyle() Style {
	return Style{Foreground: ColorDefault, Background: ColorDefault}
}

// ModifiedStyle is the default style of modified bytes.
func ModifiedStyle() Style {
	return Style{Foreground: ColorRed, Background: ColorDefault, Attributes: AttrBold}
}

// IsDefault reports whether s changes nothing.
func (s Style) IsDefault() bool {
	return s.Foreground.Default && s.Background.Default && s.Attributes == AttrNone
}

// Sequence returns the escape sequence that turns s on, or "" for the
// default style.
func (s Style) Sequence() string {
	var params []string
	if s.Attributes.Has(AttrBold) {
		params = append(params, "1")
	}
	if s.Attributes.Has(AttrDim) {
		params = append(params, "2")
	}
	if s.Attributes.Has(AttrUnderline) {
		params = append(params, "4")
	}
	if s.Attributes.Has(AttrReverse) {
		params = append(params, "7")
	}
	params = s.Foreground.sgr(params, 38)
	params = s.Background.sgr(params, 48)
	if len(params) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(params, ";") + "m"
}

// reset turns every style off.
const reset = "\x1b[0m"
