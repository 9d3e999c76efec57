// Package span provides source positions and ranges shared by the front end and the runtime.
package span

import "fmt"

// Position is a location in source text.
type Position struct {
	Offset int `json:"offset"` // byte offset from the start of the source
	Line   int `json:"line"`   // 1-based
	Column int `json:"column"` // 1-based, counted in bytes
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is the half-open range [Start, End).
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (s Span) String() string {
	return fmt.Sprintf("%s..%s", s.Start, s.End)
}

// Cover returns the smallest span containing both a and b.
func Cover(a, b Span) Span {
	out := a
	if b.Start.Offset < out.Start.Offset {
		out.Start = b.Start
	}
	if b.End.Offset > out.End.Offset {
		out.End = b.End
	}
	return out
}

// IsZero reports whether the span was never set.
func (s Span) IsZero() bool {
	return s.Start.Line == 0 && s.End.Line == 0
}
