package component

import (
	"errors"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// splitBindings finds every unescaped {…} in value. A backslash escapes a literal
// brace. literal is value with the escapes removed; open is the offset of a '{' that
// is never closed, or -1.
func splitBindings(value string) (sources []string, literal string, open int) {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c == '\\' && i+1 < len(value) && (value[i+1] == '{' || value[i+1] == '}') {
			b.WriteByte(value[i+1])
			i++
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}

		end := closingBrace(value, i)
		if end < 0 {
			b.WriteString(value[i:])
			return sources, b.String(), i
		}
		sources = append(sources, strings.TrimSpace(value[i+1:end]))
		b.WriteString(value[i : end+1])
		i = end
	}
	return sources, b.String(), -1
}

// closingBrace returns the index of the '}' matching the '{' at open, skipping quoted
// strings inside the expression
func closingBrace(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var errEmptyBinding = errors.New("empty binding expression")

// parseBinding analyses one binding expression. The Binding is returned with its
// Source even when the expression cannot be parsed.
func parseBinding(src string) (Binding, error) {
	b := Binding{Source: src}
	if src == "" {
		return b, errEmptyBinding
	}

	tree, err := parser.Parse(src)
	if err != nil {
		// keep the first line; the rest is a source snippet
		msg := strings.SplitN(err.Error(), "\n", 2)[0]
		return b, errors.New(msg)
	}

	b.Path = pathOf(tree.Node)
	deps := &dependencies{seen: make(map[string]bool)}
	ast.Walk(&tree.Node, deps)
	b.Deps = deps.names
	return b, nil
}

// pathOf returns the segments of a pure member/index chain, or nil
func pathOf(node ast.Node) []Segment {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return []Segment{{Name: n.Value}}
	case *ast.ChainNode:
		return pathOf(n.Node)
	case *ast.MemberNode:
		base := pathOf(n.Node)
		if base == nil {
			return nil
		}
		switch p := n.Property.(type) {
		case *ast.StringNode:
			return append(base, Segment{Name: p.Value})
		case *ast.IntegerNode:
			return append(base, Segment{Index: p.Value, IsIndex: true})
		}
	}
	return nil
}

// dependencies collects root identifiers in first-seen order
type dependencies struct {
	seen  map[string]bool
	names []string
}

func (d *dependencies) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok || d.seen[id.Value] {
		return
	}
	d.seen[id.Value] = true
	d.names = append(d.names, id.Value)
}
