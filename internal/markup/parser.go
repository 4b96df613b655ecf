// Package markup parses XML-like UI documents into an element tree and separates the
// embedded script and style blocks. Structural problems are collected, not thrown, so a
// single parse reports every unmatched or malformed tag in the file.
package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/recera/mxc/internal/diag"
)

const (
	// LanguageNamespace is the current namespace of the Script and Style tags
	LanguageNamespace = "http://ns.adobe.com/mxml/2009"
)

// Options controls which namespaces identify the script and style tags
type Options struct {
	// PrimaryNamespace is tried first when looking for Script/Style children
	PrimaryNamespace string
	// LegacyNamespaces are tried in order when the primary namespace has no match
	LegacyNamespaces []string
}

// DefaultOptions returns the namespaces used by current and legacy documents
func DefaultOptions() Options {
	return Options{
		PrimaryNamespace: LanguageNamespace,
		LegacyNamespaces: []string{
			"http://www.adobe.com/2006/mxml",
			"library://ns.adobe.com/flex/mx",
			"library://ns.adobe.com/flex/spark",
			"",
		},
	}
}

// Namespaces returns the primary namespace followed by the legacy candidates
func (o Options) Namespaces() []string {
	return append([]string{o.PrimaryNamespace}, o.LegacyNamespaces...)
}

type openElement struct {
	el *Element
	ns map[string]string
}

// Parser is a single-use scanner over one document
type Parser struct {
	input string
	pos   int
	line  int
	col   int
	opts  Options

	root   *Element
	stack  []openElement
	errors diag.List
}

// NewParser creates a parser for src
func NewParser(src string, opts Options) *Parser {
	return &Parser{
		input: src,
		line:  1,
		col:   1,
		opts:  opts,
	}
}

// Parse parses src and returns the document together with every diagnostic found.
// The document is returned even when diagnostics contain errors.
func Parse(src string, opts Options) (*Document, diag.List) {
	return NewParser(src, opts).Parse()
}

// Parse runs the parser to completion
func (p *Parser) Parse() (*Document, diag.List) {
	for p.pos < len(p.input) {
		switch {
		case p.peek("<?"):
			p.skipSection("<?", "?>", "processing instruction")
		case p.peek("<!--"):
			p.skipSection("<!--", "-->", "comment")
		case p.peek("<![CDATA["):
			p.parseCDATA()
		case p.peek("<!"):
			p.skipSection("<!", ">", "declaration")
		case p.peek("</"):
			p.parseEndTag()
		case p.peek("<"):
			p.parseStartTag()
		default:
			p.parseText()
		}
	}

	// Anything still open was never closed
	for _, open := range p.stack {
		p.errors.Errorf(open.el.Pos(), "unclosed tag <%s>", open.el.Name)
	}
	p.stack = nil

	doc := &Document{Root: p.root}
	if p.root == nil {
		p.errors.Errorf(p.position(), "document has no root element")
		return doc, p.errors
	}

	doc.Script = p.findBlock(p.root, "Script")
	doc.Style = p.findBlock(p.root, "Style")
	return doc, p.errors
}

func (p *Parser) parseStartTag() {
	start := p.position()
	p.consume("<")

	raw := p.parseName()
	if raw == "" {
		p.errors.Errorf(start, "expected tag name after '<'")
		p.appendText(&Text{Data: "<", Line: start.Line, Column: start.Column})
		return
	}

	el := &Element{Line: start.Line, Column: start.Column}
	attrs, closed, selfClosing := p.parseAttributes(raw)

	// Namespace declarations on this element are in scope for its own name
	scope := make(map[string]string)
	for _, a := range attrs {
		if a.IsNamespaceDecl() {
			if a.Name.Prefix == "xmlns" {
				scope[a.Name.Local] = a.Value
			} else {
				scope[""] = a.Value
			}
		}
	}

	el.Name = p.resolve(raw, scope, true, start)
	for i := range attrs {
		if attrs[i].IsNamespaceDecl() || attrs[i].Name.Prefix == "" {
			continue
		}
		attrs[i].Name = p.resolve(attrs[i].Name.String(), scope, false, diag.Pos{Line: attrs[i].Line, Column: attrs[i].Column})
	}
	el.Attrs = attrs

	p.appendElement(el)
	if !closed {
		p.errors.Errorf(start, "unterminated start tag <%s>", raw)
		return
	}
	if selfClosing {
		el.SelfClosing = true
		return
	}
	p.stack = append(p.stack, openElement{el: el, ns: scope})
}

// parseAttributes reads attributes up to '>' or '/>'. closed is false when the tag
// ran into end of input or another tag.
func (p *Parser) parseAttributes(tag string) (attrs []Attr, closed, selfClosing bool) {
	seen := make(map[string]bool)

	for {
		p.skipWhitespace()
		if p.pos >= len(p.input) || p.peek("<") {
			return attrs, false, false
		}
		if p.consume("/>") {
			return attrs, true, true
		}
		if p.consume(">") {
			return attrs, true, false
		}

		start := p.position()
		name := p.parseName()
		if name == "" {
			p.errors.Errorf(start, "unexpected character %q in tag <%s>", p.input[p.pos], tag)
			p.advance()
			continue
		}

		p.skipWhitespace()
		if !p.consume("=") {
			p.errors.Errorf(start, "attribute %q on <%s> has no value", name, tag)
			continue
		}
		p.skipWhitespace()

		value, ok := p.parseAttributeValue(name)
		if !ok {
			continue
		}

		if seen[name] {
			p.errors.Errorf(start, "duplicate attribute %q on <%s>", name, tag)
			continue
		}
		seen[name] = true

		prefix, local := splitName(name)
		attrs = append(attrs, Attr{
			Name:   QName{Prefix: prefix, Local: local},
			Value:  value,
			Line:   start.Line,
			Column: start.Column,
		})
	}
}

func (p *Parser) parseAttributeValue(name string) (string, bool) {
	start := p.position()
	if p.pos >= len(p.input) {
		p.errors.Errorf(start, "missing value for attribute %q", name)
		return "", false
	}

	quote := p.input[p.pos]
	if quote != '"' && quote != '\'' {
		p.errors.Errorf(start, "value of attribute %q must be quoted", name)
		// Skip the unquoted value so parsing can continue with the next attribute
		for p.pos < len(p.input) && !isSpace(p.input[p.pos]) && !p.peek(">") && !p.peek("/>") {
			p.advance()
		}
		return "", false
	}
	p.advance()

	begin := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != quote {
		if p.input[p.pos] == '<' {
			p.errors.Errorf(start, "'<' is not allowed in the value of attribute %q", name)
		}
		p.advance()
	}
	if p.pos >= len(p.input) {
		p.errors.Errorf(start, "unterminated value for attribute %q", name)
		return "", false
	}
	value := p.input[begin:p.pos]
	p.advance()

	return html.UnescapeString(value), true
}

func (p *Parser) parseEndTag() {
	start := p.position()
	p.consume("</")
	name := p.parseName()
	p.skipWhitespace()
	if !p.consume(">") {
		p.errors.Errorf(start, "unterminated closing tag </%s>", name)
		for p.pos < len(p.input) && !p.peek("<") {
			p.advance()
		}
	}
	if name == "" {
		p.errors.Errorf(start, "expected tag name after '</'")
		return
	}

	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].el.Name.String() != name {
			continue
		}
		// Elements opened after the match were never closed
		for _, open := range p.stack[i+1:] {
			p.errors.Errorf(open.el.Pos(), "unclosed tag <%s>", open.el.Name)
		}
		p.stack = p.stack[:i]
		return
	}

	p.errors.Errorf(start, "unexpected closing tag </%s>", name)
}

func (p *Parser) parseCDATA() {
	start := p.position()
	p.consume("<![CDATA[")
	contentStart := p.position()

	end := strings.Index(p.input[p.pos:], "]]>")
	var data string
	if end < 0 {
		p.errors.Errorf(start, "unterminated CDATA section")
		data = p.input[p.pos:]
		p.advanceTo(len(p.input))
	} else {
		data = p.input[p.pos : p.pos+end]
		p.advanceTo(p.pos + end + len("]]>"))
	}

	p.appendText(&Text{Data: data, CDATA: true, Line: contentStart.Line, Column: contentStart.Column})
}

func (p *Parser) parseText() {
	start := p.position()
	begin := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != '<' {
		p.advance()
	}
	data := p.input[begin:p.pos]
	p.appendText(&Text{Data: html.UnescapeString(data), Line: start.Line, Column: start.Column})
}

// skipSection skips comments, processing instructions and declarations
func (p *Parser) skipSection(open, close, what string) {
	start := p.position()
	p.consume(open)
	end := strings.Index(p.input[p.pos:], close)
	if end < 0 {
		p.errors.Errorf(start, "unterminated %s", what)
		p.advanceTo(len(p.input))
		return
	}
	p.advanceTo(p.pos + end + len(close))
}

func (p *Parser) appendElement(el *Element) {
	if len(p.stack) == 0 {
		if p.root != nil {
			p.errors.Errorf(el.Pos(), "multiple root elements: <%s> after <%s>", el.Name, p.root.Name)
			return
		}
		p.root = el
		return
	}
	top := p.stack[len(p.stack)-1].el
	top.Children = append(top.Children, el)
}

func (p *Parser) appendText(t *Text) {
	if len(p.stack) == 0 {
		if strings.TrimSpace(t.Data) != "" {
			p.errors.Errorf(t.Pos(), "text outside of the root element")
		}
		return
	}
	top := p.stack[len(p.stack)-1].el
	top.Children = append(top.Children, t)
}

// resolve maps a raw prefixed name to its namespace. Unprefixed attributes carry no
// namespace; unprefixed elements take the default namespace in scope.
func (p *Parser) resolve(raw string, scope map[string]string, element bool, pos diag.Pos) QName {
	prefix, local := splitName(raw)
	q := QName{Prefix: prefix, Local: local}
	if prefix == "" && !element {
		return q
	}
	if uri, ok := p.lookupNamespace(prefix, scope); ok {
		q.Space = uri
		return q
	}
	if prefix != "" {
		p.errors.Errorf(pos, "undeclared namespace prefix %q in %q", prefix, raw)
	}
	return q
}

func (p *Parser) lookupNamespace(prefix string, scope map[string]string) (string, bool) {
	if uri, ok := scope[prefix]; ok {
		return uri, true
	}
	for i := len(p.stack) - 1; i >= 0; i-- {
		if uri, ok := p.stack[i].ns[prefix]; ok {
			return uri, true
		}
	}
	return "", false
}

// findBlock locates the Script or Style child of root, trying the primary namespace
// before each legacy candidate.
func (p *Parser) findBlock(root *Element, local string) *Block {
	for _, ns := range p.opts.Namespaces() {
		var found []*Element
		for _, child := range root.Elements() {
			if child.Name.Local == local && child.Name.Space == ns {
				found = append(found, child)
			}
		}
		if len(found) == 0 {
			continue
		}
		for _, extra := range found[1:] {
			p.errors.Notef(diag.UnsupportedConstructError, extra.Pos(),
				"only one <%s> block is compiled; this one is ignored", extra.Name)
		}
		return p.blockFrom(found[0], ns)
	}
	return nil
}

func (p *Parser) blockFrom(el *Element, ns string) *Block {
	if src, ok := el.Attr("source"); ok {
		p.errors.Unsupportedf(el.Pos(), "external %s source %q is not supported", el.Name.Local, src)
	}

	block := &Block{Namespace: ns, Line: el.Line, Column: el.Column}
	var b strings.Builder
	first := true
	for _, child := range el.Children {
		switch c := child.(type) {
		case *Text:
			if first {
				block.Line, block.Column = c.Line, c.Column
				first = false
			}
			b.WriteString(c.Data)
		case *Element:
			p.errors.Errorf(c.Pos(), "unexpected element <%s> inside <%s>", c.Name, el.Name)
		}
	}
	block.Text = b.String()
	return block
}

// Helper methods

func (p *Parser) position() diag.Pos {
	return diag.Pos{Line: p.line, Column: p.col}
}

func (p *Parser) peek(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *Parser) consume(s string) bool {
	if p.peek(s) {
		p.advanceTo(p.pos + len(s))
		return true
	}
	return false
}

func (p *Parser) advance() {
	if p.pos >= len(p.input) {
		return
	}
	c := p.input[p.pos]
	switch {
	case c == '\n':
		p.line++
		p.col = 1
	case !utf8.RuneStart(c):
		// continuation byte, same column
	default:
		p.col++
	}
	p.pos++
}

func (p *Parser) advanceTo(pos int) {
	for p.pos < pos && p.pos < len(p.input) {
		p.advance()
	}
}

func (p *Parser) skipWhitespace() {
	for p.pos < len(p.input) && isSpace(p.input[p.pos]) {
		p.advance()
	}
}

func (p *Parser) parseName() string {
	start := p.pos
	for p.pos < len(p.input) {
		r, size := utf8.DecodeRuneInString(p.input[p.pos:])
		if !isNameRune(r, p.pos == start) {
			break
		}
		for i := 0; i < size; i++ {
			p.advance()
		}
	}
	return p.input[start:p.pos]
}

func isNameRune(r rune, first bool) bool {
	if unicode.IsLetter(r) || r == '_' || r == ':' {
		return true
	}
	if first {
		return false
	}
	return unicode.IsDigit(r) || r == '-' || r == '.'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func splitName(raw string) (prefix, local string) {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return "", raw
}
