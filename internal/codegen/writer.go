package codegen

import "strings"

// writer accumulates indented source lines and counts the structural braces it
// emits. Lines are written verbatim; generated code is never used as a format string.
type writer struct {
	b      strings.Builder
	indent int
	opened int
	closed int
	// prefix is written before the next line, as in `outer: for (...) {`
	prefix string
}

func (w *writer) line(s string) {
	s, w.prefix = w.prefix+s, ""
	if s == "" {
		w.b.WriteByte('\n')
		return
	}
	w.b.WriteString(strings.Repeat("  ", w.indent))
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

// open writes a header line ending in '{' and indents
func (w *writer) open(header string) {
	if header == "" {
		w.line("{")
	} else {
		w.line(header + " {")
	}
	w.opened++
	w.indent++
}

// close dedents and writes '}' followed by suffix
func (w *writer) close(suffix string) {
	w.indent--
	w.closed++
	w.line("}" + suffix)
}

// reopen closes the current block and opens the next arm on the same line,
// as in `} else {`
func (w *writer) reopen(header string) {
	w.indent--
	w.closed++
	w.line("} " + header + " {")
	w.opened++
	w.indent++
}

func (w *writer) String() string {
	return w.b.String()
}
