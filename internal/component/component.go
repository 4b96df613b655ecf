// Package component derives the serializable UI component tree from a parsed markup
// document. Attributes are split into props and events, and {…} binding expressions
// are recognised but never evaluated: the runtime resolves them.
package component

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/recera/mxc/internal/diag"
)

// Node is one UI component. Props and Events are ordered lists so the serialized
// tree keeps attribute order.
type Node struct {
	Type      string  `json:"type"`
	Namespace string  `json:"ns,omitempty"`
	Props     []Prop  `json:"props,omitempty"`
	Events    []Event `json:"events,omitempty"`
	Text      *Prop   `json:"text,omitempty"`
	Children  []*Node `json:"children,omitempty"`
}

// Prop is a property assignment. Value is the attribute text; when Dynamic is set it
// still contains the {…} placeholders for the runtime to resolve.
type Prop struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Dynamic  bool      `json:"dynamic,omitempty"`
	Bindings []Binding `json:"bindings,omitempty"`
}

// Event maps an event attribute to its verbatim handler text, e.g. handleClick()
type Event struct {
	Name    string   `json:"name"`
	Handler string   `json:"handler"`
	Pos     diag.Pos `json:"-"`
}

// Binding is one {…} placeholder. Path is set only when the expression is a plain
// member/index chain such as user.address.lines[0]; Deps lists every root identifier
// the expression reads.
type Binding struct {
	Source string    `json:"source"`
	Path   []Segment `json:"path,omitempty"`
	Deps   []string  `json:"deps,omitempty"`
}

// Segment is an identifier or an integer index in a binding path
type Segment struct {
	Name    string
	Index   int
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Name
}

// MarshalJSON encodes a name as a JSON string and an index as a JSON number
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.IsIndex {
		return json.Marshal(s.Index)
	}
	return json.Marshal(s.Name)
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		*s = Segment{Name: v}
	case float64:
		*s = Segment{Index: int(v), IsIndex: true}
	default:
		return fmt.Errorf("binding path segment must be a string or a number, got %s", data)
	}
	return nil
}

// Prop returns the prop with the given name
func (n *Node) Prop(name string) (Prop, bool) {
	for _, p := range n.Props {
		if p.Name == name {
			return p, true
		}
	}
	return Prop{}, false
}

// Event returns the handler text for the given event name
func (n *Node) Event(name string) (string, bool) {
	for _, e := range n.Events {
		if e.Name == name {
			return e.Handler, true
		}
	}
	return "", false
}

// Walk calls fn for n and every descendant, depth first
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Bindings returns the binding expressions of every prop and text in the tree
func (n *Node) Bindings() []Binding {
	var out []Binding
	n.Walk(func(node *Node) {
		for _, p := range node.Props {
			out = append(out, p.Bindings...)
		}
		if node.Text != nil {
			out = append(out, node.Text.Bindings...)
		}
	})
	return out
}

// IDs returns the static id attributes in the tree; the runtime exposes each as a
// named child reference
func (n *Node) IDs() []string {
	var out []string
	n.Walk(func(node *Node) {
		if p, ok := node.Prop("id"); ok && !p.Dynamic && p.Value != "" {
			out = append(out, p.Value)
		}
	})
	return out
}
