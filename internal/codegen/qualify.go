package codegen

import (
	"github.com/recera/mxc/internal/diag"
	"github.com/recera/mxc/internal/script"
)

// qualifier rewrites the identifiers of one method body. An identifier becomes an
// instance-field access only when it is not a member name, not an object-literal
// key, not shadowed by a local, and names a top-level variable. Reserved words and
// literals are never TokenIdent, so they pass through untouched.
type qualifier struct {
	syms           *symbolTable
	className      string
	static         bool
	qualifyMethods bool
	known          map[string]bool // extra names accepted without a warning
	errors         *diag.List
	warned         map[string]bool
}

func (q *qualifier) expr(e *script.Expr, sc *scope) string {
	if e == nil {
		return ""
	}
	return script.Render(q.rewrite(e.Tokens, sc))
}

func (q *qualifier) rewrite(tokens []script.Token, sc *scope) []script.Token {
	tokens = append([]script.Token(nil), stripTypes(tokens)...)
	inner := innerLocals(tokens)
	arrows := make(map[int]bool)

	out := make([]script.Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch {
		case t.Type == script.TokenFunction && i+1 < len(tokens) && tokens[i+1].Type == script.TokenLParen:
			// An anonymous function becomes an arrow function so that `this` inside
			// it is still the component instance
			if close := matchForward(tokens, i+1); close > 0 {
				arrows[close] = true
				tokens[i+1].Space = t.Space
				continue
			}
		case t.Is("as"):
			// casts have no runtime form; keep the operand
			i = skipType(tokens, i+1) - 1
			continue
		case t.Is("is"):
			t.Text = "instanceof"
		case t.Type == script.TokenIdent && t.Text == "Vector" && isTypeParam(tokens, i+1):
			t.Text = "Array"
			i = skipType(tokens, i) - 1
		case t.Type == script.TokenIdent:
			t.Text = q.ident(tokens, i, sc, inner)
		}
		out = append(out, t)
		if arrows[i] {
			out = append(out, script.Token{Type: script.TokenOperator, Text: "=>", Space: true, Line: t.Line, Column: t.Column})
		}
	}
	return out
}

func (q *qualifier) ident(tokens []script.Token, i int, sc *scope, inner innerScopes) string {
	t := tokens[i]
	name := t.Text

	if i > 0 && tokens[i-1].Type == script.TokenDot {
		// member access, including an already qualified this.name
		return name
	}
	if isObjectKey(tokens, i) || sc.has(name) || inner.shadows(i, name) || q.known[name] {
		return name
	}

	kind, ok := q.syms.lookup(name)
	switch {
	case !ok:
		if !q.syms.mayBeImported(name) {
			q.unresolved(t)
		}
	case kind == symField && q.static:
		q.errors.Warnf(t.Pos(), "instance field %q is not accessible from a static function", name)
	case kind == symField:
		return "this." + name
	case kind == symStaticField:
		return q.className + "." + name
	case kind == symMethod && q.qualifyMethods && !q.static:
		return "this." + name
	case kind == symStaticMethod && q.qualifyMethods:
		return q.className + "." + name
	}
	return name
}

// name qualifies a lone identifier, such as the target of `for (key in obj)`
func (q *qualifier) name(name string, pos diag.Pos, sc *scope) string {
	tokens := []script.Token{{Type: script.TokenIdent, Text: name, Line: pos.Line, Column: pos.Column}}
	return q.ident(tokens, 0, sc, nil)
}

func (q *qualifier) unresolved(t script.Token) {
	if q.warned[t.Text] {
		return
	}
	q.warned[t.Text] = true
	q.errors.Warnf(t.Pos(), "unresolved identifier %q is emitted unqualified", t.Text)
}

// isObjectKey reports whether tokens[i] is the key of an object literal entry
func isObjectKey(tokens []script.Token, i int) bool {
	if i+1 >= len(tokens) || tokens[i+1].Type != script.TokenColon || i == 0 {
		return false
	}
	prev := tokens[i-1].Type
	return prev == script.TokenLBrace || prev == script.TokenComma
}

// innerScope is a function nested in an expression: the token range it covers,
// from its parameter list to the end of its body, and the names declared there
type innerScope struct {
	start, end int
	names      map[string]bool
}

// innerScopes is every function nested in one expression
type innerScopes []*innerScope

// shadows reports whether name is declared by a nested function enclosing tokens[i]
func (s innerScopes) shadows(i int, name string) bool {
	for _, sc := range s {
		if i >= sc.start && i <= sc.end && sc.names[name] {
			return true
		}
	}
	return false
}

// innermost returns the smallest scope enclosing tokens[i], or nil
func (s innerScopes) innermost(i int) *innerScope {
	var best *innerScope
	for _, sc := range s {
		if i >= sc.start && i <= sc.end && (best == nil || sc.end-sc.start < best.end-best.start) {
			best = sc
		}
	}
	return best
}

// innerLocals collects the scopes of the inline and arrow functions of an
// expression with their parameters and the variables declared in their bodies.
// A variable outside any nested function is scoped to the whole expression.
func innerLocals(tokens []script.Token) innerScopes {
	var scopes innerScopes
	for i, t := range tokens {
		switch {
		case t.Type == script.TokenFunction:
			sc := &innerScope{start: i, end: len(tokens) - 1, names: make(map[string]bool)}
			j := i + 1
			if j < len(tokens) && tokens[j].Type == script.TokenIdent {
				sc.names[tokens[j].Text] = true
				j++
			}
			if j < len(tokens) && tokens[j].Type == script.TokenLParen {
				paramNames(tokens, j, sc.names)
				if close := matchForward(tokens, j); close > 0 {
					sc.end = bodyEnd(tokens, close+1)
				}
			}
			scopes = append(scopes, sc)
		case t.Type == script.TokenOperator && t.Text == "=>" && i > 0:
			sc := &innerScope{start: i - 1, names: make(map[string]bool)}
			prev := tokens[i-1]
			if prev.Type == script.TokenIdent {
				sc.names[prev.Text] = true
			} else if prev.Type == script.TokenRParen {
				if open := matchBackward(tokens, i-1); open >= 0 {
					paramNames(tokens, open, sc.names)
					sc.start = open
				}
			}
			sc.end = bodyEnd(tokens, i+1)
			scopes = append(scopes, sc)
		}
	}

	var whole *innerScope
	for i, t := range tokens {
		if t.Type != script.TokenVar && t.Type != script.TokenLet && t.Type != script.TokenConst {
			continue
		}
		if i+1 >= len(tokens) || tokens[i+1].Type != script.TokenIdent {
			continue
		}
		sc := scopes.innermost(i)
		if sc == nil {
			if whole == nil {
				whole = &innerScope{start: 0, end: len(tokens) - 1, names: make(map[string]bool)}
			}
			sc = whole
		}
		sc.names[tokens[i+1].Text] = true
	}
	if whole != nil {
		scopes = append(scopes, whole)
	}
	return scopes
}

// bodyEnd returns the index of the last token of a function body starting at
// tokens[i]: the matching '}' of a block body, or for an expression body the
// token before the ',' ';' or closing bracket that ends it
func bodyEnd(tokens []script.Token, i int) int {
	if i >= len(tokens) {
		return len(tokens) - 1
	}
	block := tokens[i].Type == script.TokenLBrace
	depth := 0
	for j := i; j < len(tokens); j++ {
		switch tokens[j].Type {
		case script.TokenLParen, script.TokenLBrace, script.TokenLBracket:
			depth++
		case script.TokenRParen, script.TokenRBrace, script.TokenRBracket:
			depth--
			if block && depth == 0 {
				return j
			}
			if depth < 0 {
				return j - 1
			}
		case script.TokenComma, script.TokenSemicolon:
			if !block && depth == 0 {
				return j - 1
			}
		}
	}
	return len(tokens) - 1
}

// paramNames adds the parameter names of the list opening at tokens[open]
func paramNames(tokens []script.Token, open int, names map[string]bool) {
	depth := 0
	for j := open; j < len(tokens); j++ {
		switch tokens[j].Type {
		case script.TokenLParen:
			depth++
		case script.TokenRParen:
			depth--
			if depth == 0 {
				return
			}
		case script.TokenIdent:
			prev := tokens[j-1].Type
			if depth == 1 && (prev == script.TokenLParen || prev == script.TokenComma || prev == script.TokenEllipsis) {
				names[tokens[j].Text] = true
			}
		}
	}
}

// matchForward returns the index of the ')' matching the '(' at open, or -1
func matchForward(tokens []script.Token, open int) int {
	depth := 0
	for j := open; j < len(tokens); j++ {
		switch tokens[j].Type {
		case script.TokenLParen:
			depth++
		case script.TokenRParen:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// matchBackward returns the index of the '(' matching the ')' at close
func matchBackward(tokens []script.Token, close int) int {
	depth := 0
	for j := close; j >= 0; j-- {
		switch tokens[j].Type {
		case script.TokenRParen:
			depth++
		case script.TokenLParen:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// stripTypes removes type annotations that appear inside expressions: parameter and
// return types of inline functions and the types of variables declared in their bodies
func stripTypes(tokens []script.Token) []script.Token {
	drop := make([]bool, len(tokens))
	changed := false

	dropAnnotation := func(colon int) {
		end := skipType(tokens, colon+1)
		for k := colon; k < end; k++ {
			drop[k] = true
		}
		changed = true
	}

	for i, t := range tokens {
		switch t.Type {
		case script.TokenFunction:
			j := i + 1
			if j < len(tokens) && tokens[j].Type == script.TokenIdent {
				j++
			}
			if j >= len(tokens) || tokens[j].Type != script.TokenLParen {
				continue
			}
			depth := 0
			for ; j < len(tokens); j++ {
				switch tokens[j].Type {
				case script.TokenLParen:
					depth++
				case script.TokenRParen:
					depth--
				case script.TokenColon:
					if depth == 1 {
						dropAnnotation(j)
					}
				}
				if depth == 0 {
					break
				}
			}
			if j+1 < len(tokens) && tokens[j+1].Type == script.TokenColon {
				dropAnnotation(j + 1)
			}
		case script.TokenVar, script.TokenLet, script.TokenConst:
			if i+2 < len(tokens) && tokens[i+1].Type == script.TokenIdent && tokens[i+2].Type == script.TokenColon {
				dropAnnotation(i + 2)
			}
		}
	}

	if !changed {
		return tokens
	}
	out := make([]script.Token, 0, len(tokens))
	for i, t := range tokens {
		if !drop[i] {
			out = append(out, t)
		}
	}
	return out
}

// skipType returns the index just past the type name starting at tokens[i]:
// *, void, a.b.C or Vector.<T>
func skipType(tokens []script.Token, i int) int {
	if i >= len(tokens) {
		return i
	}
	t := tokens[i]
	if t.Type == script.TokenOperator && t.Text == "*" {
		return i + 1
	}
	if t.Type != script.TokenIdent && !t.Is("void") {
		return i
	}
	i++
	for i+1 < len(tokens) && tokens[i].Type == script.TokenDot {
		switch next := tokens[i+1]; {
		case next.Type == script.TokenIdent:
			i += 2
		case isTypeParam(tokens, i):
			i = skipAngles(tokens, i+1)
		default:
			return i
		}
	}
	return i
}

// isTypeParam reports whether tokens[i:] starts with .<
func isTypeParam(tokens []script.Token, i int) bool {
	return i+1 < len(tokens) && tokens[i].Type == script.TokenDot &&
		tokens[i+1].Type == script.TokenOperator && tokens[i+1].Text == "<"
}

// skipAngles returns the index past the '>' closing the '<' at tokens[open]
func skipAngles(tokens []script.Token, open int) int {
	depth := 0
	for j := open; j < len(tokens); j++ {
		t := tokens[j]
		if t.Type != script.TokenOperator {
			continue
		}
		switch t.Text {
		case "<":
			depth++
		case ">":
			depth--
		case ">>":
			depth -= 2
		case ">>>":
			depth -= 3
		}
		if depth <= 0 {
			return j + 1
		}
	}
	return len(tokens)
}
