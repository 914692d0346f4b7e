package model

import "fmt"

// Position is a 0-based line and UTF-16 character offset, as used by LSP.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

// After reports whether p sorts strictly after o.
func (p Position) After(o Position) bool {
	return o.Before(p)
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Character+1)
}

// Range is a half-open text span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether o lies within r (boundaries inclusive).
func (r Range) Contains(o Range) bool {
	return !o.Start.Before(r.Start) && !r.End.Before(o.End)
}

// ContainsPosition reports whether p lies within r (boundaries inclusive).
func (r Range) ContainsPosition(p Position) bool {
	return !p.Before(r.Start) && !r.End.Before(p)
}

// StrictlyContains reports whether o lies within r without touching either
// boundary.
func (r Range) StrictlyContains(o Range) bool {
	return r.Start.Before(o.Start) && o.End.Before(r.End)
}

// IsEmpty reports whether the range has zero width.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}
