package content

import "fmt"

// Selection is the span [Start, End) of the content.
type Selection struct {
	Start int64
	End   int64
}

// NewSelection validates and returns a selection.
func NewSelection(start, end int64) (Selection, error) {
	if start < 0 || end < start {
		return Selection{}, fmt.Errorf("%w: [%d,%d)", ErrInvalidSelection, start, end)
	}
	return Selection{Start: start, End: end}, nil
}

// Len returns the number of selected bytes.
func (s Selection) Len() int64 {
	return s.End - s.Start
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool {
	return s.Start == s.End
}

func (s Selection) String() string {
	return fmt.Sprintf("[%d:%d)", s.Start, s.End)
}
