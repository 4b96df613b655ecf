package markup

import "github.com/recera/mxc/internal/diag"

// Document is the root of a parsed source file
type Document struct {
	Root   *Element
	Script *Block // nil when the document has no script block
	Style  *Block // nil when the document has no style block
}

// Block is the raw text of a script or style section.
// Line and Column locate the first character of Text in the document.
type Block struct {
	Text      string
	Namespace string
	Line      int
	Column    int
}

// Pos returns the document position of the block's first character
func (b *Block) Pos() diag.Pos {
	return diag.Pos{Line: b.Line, Column: b.Column}
}

// QName is a namespace-qualified tag or attribute name
type QName struct {
	Prefix string
	Space  string // resolved namespace URI
	Local  string
}

func (q QName) String() string {
	if q.Prefix == "" {
		return q.Local
	}
	return q.Prefix + ":" + q.Local
}

// Node is an Element or a Text
type Node interface {
	Pos() diag.Pos
}

// Attr is a single attribute, in source order
type Attr struct {
	Name   QName
	Value  string
	Line   int
	Column int
}

// Element represents a markup tag
type Element struct {
	Name        QName
	Attrs       []Attr
	Children    []Node
	SelfClosing bool
	Line        int
	Column      int
}

func (e *Element) Pos() diag.Pos {
	return diag.Pos{Line: e.Line, Column: e.Column}
}

// Attr returns the value of the attribute with the given qualified name
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.String() == name {
			return a.Value, true
		}
	}
	return "", false
}

// Elements returns the element children of e
func (e *Element) Elements() []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// Text represents character data, either plain or from a CDATA section
type Text struct {
	Data   string
	CDATA  bool
	Line   int
	Column int
}

func (t *Text) Pos() diag.Pos {
	return diag.Pos{Line: t.Line, Column: t.Column}
}

// IsNamespaceDecl reports whether the attribute declares a namespace
func (a Attr) IsNamespaceDecl() bool {
	return (a.Name.Prefix == "" && a.Name.Local == "xmlns") || a.Name.Prefix == "xmlns"
}
