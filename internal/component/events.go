package component

import "sort"

// EventSet is the vocabulary of attribute names treated as event handlers
type EventSet map[string]bool

var defaultEvents = []string{
	"click", "doubleClick", "change", "creationComplete", "initialize", "preinitialize",
	"applicationComplete", "mouseDown", "mouseUp", "mouseMove", "mouseOver", "mouseOut",
	"rollOver", "rollOut", "keyDown", "keyUp", "focusIn", "focusOut", "enter", "input",
	"submit", "valueCommit", "itemClick", "select", "close", "resize", "show", "hide",
	"addedToStage", "removedFromStage",
}

// DefaultEvents returns a fresh copy of the built-in vocabulary
func DefaultEvents() EventSet {
	return NewEventSet(defaultEvents...)
}

// NewEventSet builds a set from names
func NewEventSet(names ...string) EventSet {
	s := make(EventSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// Has reports whether name is an event attribute
func (s EventSet) Has(name string) bool {
	return s[name]
}

// With returns a copy of s extended by names
func (s EventSet) With(names ...string) EventSet {
	out := make(EventSet, len(s)+len(names))
	for n := range s {
		out[n] = true
	}
	for _, n := range names {
		out[n] = true
	}
	return out
}

// Names returns the vocabulary in sorted order
func (s EventSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
