// Package diag holds the diagnostics produced by every compiler stage.
// A List is local to one compile call and is never shared between documents.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Severity of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind classifies a diagnostic
type Kind string

const (
	// StructuralError covers unmatched tags/braces/parens and unterminated literals
	StructuralError Kind = "StructuralError"
	// ReferenceWarning is an identifier that resolves to no known declaration
	ReferenceWarning Kind = "ReferenceWarning"
	// UnsupportedConstructError is a grammar form outside the supported subset
	UnsupportedConstructError Kind = "UnsupportedConstructError"
)

// Pos is a 1-based line/column position in the source document
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Diagnostic is the compiler's only wire contract with tooling
type Diagnostic struct {
	File     string   `json:"file,omitempty"`
	Message  string   `json:"message"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
}

func (d *Diagnostic) Error() string {
	loc := fmt.Sprintf("%d:%d", d.Line, d.Column)
	if d.File != "" {
		loc = d.File + ":" + loc
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Severity, d.Message)
}

// IsError reports whether d has error severity
func (d *Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// List accumulates diagnostics
type List []*Diagnostic

// Add appends a diagnostic. Errors for StructuralError and UnsupportedConstructError,
// warnings for ReferenceWarning.
func (l *List) Add(kind Kind, pos Pos, msg string) {
	sev := SeverityError
	if kind == ReferenceWarning {
		sev = SeverityWarning
	}
	l.add(kind, sev, pos, msg)
}

// Notef records a warning-severity diagnostic of any kind
func (l *List) Notef(kind Kind, pos Pos, format string, args ...interface{}) {
	l.add(kind, SeverityWarning, pos, fmt.Sprintf(format, args...))
}

func (l *List) add(kind Kind, sev Severity, pos Pos, msg string) {
	*l = append(*l, &Diagnostic{
		Message:  msg,
		Line:     pos.Line,
		Column:   pos.Column,
		Severity: sev,
		Kind:     kind,
	})
}

// Errorf records a StructuralError
func (l *List) Errorf(pos Pos, format string, args ...interface{}) {
	l.Add(StructuralError, pos, fmt.Sprintf(format, args...))
}

// Unsupportedf records an UnsupportedConstructError
func (l *List) Unsupportedf(pos Pos, format string, args ...interface{}) {
	l.Add(UnsupportedConstructError, pos, fmt.Sprintf(format, args...))
}

// Warnf records a ReferenceWarning
func (l *List) Warnf(pos Pos, format string, args ...interface{}) {
	l.Add(ReferenceWarning, pos, fmt.Sprintf(format, args...))
}

// Append adds every diagnostic of other
func (l *List) Append(other List) {
	*l = append(*l, other...)
}

// HasErrors reports whether any diagnostic has error severity
func (l List) HasErrors() bool {
	for _, d := range l {
		if d.IsError() {
			return true
		}
	}
	return false
}

// HasStructural reports whether any StructuralError was recorded
func (l List) HasStructural() bool {
	return l.Count(StructuralError) > 0
}

// Count returns the number of diagnostics of the given kind
func (l List) Count(kind Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Errors returns only the error-severity diagnostics
func (l List) Errors() List {
	var out List
	for _, d := range l {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// WithFile stamps every diagnostic with the given file name
func (l List) WithFile(file string) List {
	for _, d := range l {
		d.File = file
	}
	return l
}

// Sorted returns a copy ordered by file, line and column
func (l List) Sorted() List {
	out := make(List, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}

// Err joins the error-severity diagnostics into a single error, or returns nil
func (l List) Err() error {
	errs := l.Errors()
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, d := range errs {
		joined[i] = d
	}
	return errors.Join(joined...)
}

func (l List) String() string {
	var b strings.Builder
	for _, d := range l.Sorted() {
		b.WriteString(d.Error())
		b.WriteByte('\n')
	}
	return b.String()
}
