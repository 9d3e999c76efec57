// Package diag provides diagnostics reported by the lexer and parser.
package diag

import (
	"bang-lang/internal/span"
	"fmt"
)

// Severity indicates how serious a diagnostic is.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic is a problem found in source text before evaluation.
type Diagnostic struct {
	Code     string    `json:"code"`           // stable code, e.g. "E2001"
	Severity Severity  `json:"severity"`       // error or warning
	Message  string    `json:"message"`        // human-readable description
	Span     span.Span `json:"span"`           // source location
	Hint     string    `json:"hint,omitempty"` // optional hint
}

// String returns a one-line rendering of the diagnostic.
func (d Diagnostic) String() string {
	msg := fmt.Sprintf("[%s] %s at %s: %s", d.Code, d.Severity, d.Span.Start, d.Message)
	if d.Hint != "" {
		msg += " (hint: " + d.Hint + ")"
	}
	return msg
}

// WithHint returns a copy of d carrying hint.
func (d Diagnostic) WithHint(hint string) Diagnostic {
	d.Hint = hint
	return d
}

// Errorf creates an error diagnostic at the given span.
func Errorf(code string, s span.Span, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: Error,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}

// Warningf creates a warning diagnostic at the given span.
func Warningf(code string, s span.Span, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: Warning,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}

// HasErrors reports whether any diagnostic in ds is an error.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}
