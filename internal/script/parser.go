package script

import (
	"strings"

	"github.com/recera/mxc/internal/diag"
)

// Parser builds a Program from a token stream. Every brace-delimited region is located
// with MatchBrace first and then parsed as a bounded sub-range, so a statement can
// never run past the '}' that closes its block.
type Parser struct {
	toks   []Token
	pos    int
	end    int // index of the token that closes the region being parsed
	errors diag.List
}

// NewParser creates a parser over tokens. Comment tokens are dropped.
func NewParser(tokens []Token) *Parser {
	toks := make([]Token, 0, len(tokens)+1)
	for _, t := range tokens {
		if t.Type != TokenComment {
			toks = append(toks, t)
		}
	}
	if len(toks) == 0 || toks[len(toks)-1].Type != TokenEOF {
		eof := Token{Type: TokenEOF, Line: 1, Column: 1}
		if len(toks) > 0 {
			last := toks[len(toks)-1]
			eof.Line, eof.Column = last.Line, last.Column+len(last.Text)
		}
		toks = append(toks, eof)
	}
	return &Parser{toks: toks, end: len(toks) - 1}
}

// ParseProgram parses a whole script block. The program is returned even when errors
// were reported; callers must not generate code from it if any StructuralError exists.
func ParseProgram(tokens []Token) (*Program, diag.List) {
	p := NewParser(tokens)
	prog := p.ParseProgram()
	return prog, p.errors
}

// MatchBrace returns the index of the '}' that closes the '{' at tokens[open]. The
// depth counter starts at zero, is incremented on '{' and decremented on '}'; the
// block ends where it returns to zero. Strings and comments are single tokens, so
// braces inside them are never counted. ok is false when the block is never closed.
func MatchBrace(tokens []Token, open int) (close int, ok bool) {
	return matchPair(tokens, open, len(tokens), TokenLBrace, TokenRBrace)
}

func matchPair(tokens []Token, open, limit int, left, right TokenType) (int, bool) {
	depth := 0
	for i := open; i < limit && i < len(tokens); i++ {
		switch tokens[i].Type {
		case left:
			depth++
		case right:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return limit, false
}

// ParseProgram parses top-level imports, variables and functions
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	var annotations []Annotation
	var mods []Token

	reset := func() {
		annotations = nil
		mods = nil
	}

	for !p.atEnd() {
		start := p.pos
		t := p.cur()

		switch {
		case t.Type == TokenSemicolon:
			p.advance()
		case t.Type == TokenLBracket && p.peekAt(1).Type == TokenIdent && len(mods) == 0:
			if a, ok := p.parseAnnotation(); ok {
				annotations = append(annotations, a)
			}
		case isModifier(t.Type):
			mods = append(mods, t)
			p.advance()
		case t.Type == TokenImport:
			if imp := p.parseImport(); imp != nil {
				prog.Imports = append(prog.Imports, imp)
			}
			reset()
		case t.Type == TokenVar || t.Type == TokenLet || t.Type == TokenConst:
			for _, d := range p.parseVariableDecls(annotations, mods) {
				prog.Decls = append(prog.Decls, d)
			}
			reset()
		case t.Type == TokenFunction:
			if fn := p.parseFunction(annotations, mods); fn != nil {
				prog.Decls = append(prog.Decls, fn)
			}
			reset()
		case t.Type == TokenRBrace:
			p.errors.Errorf(t.Pos(), "unmatched '}'")
			p.advance()
		default:
			p.errors.Unsupportedf(t.Pos(), "unexpected %s at the top level of the script; only imports, variables and functions are supported", t)
			p.skipStatement()
			reset()
		}

		if p.pos == start {
			p.advance()
		}
	}

	for _, a := range annotations {
		p.errors.Notef(diag.UnsupportedConstructError, a.Pos, "annotation [%s] is not followed by a declaration", a.Name)
	}
	return prog
}

func (p *Parser) parseAnnotation() (Annotation, bool) {
	open := p.cur()
	close, ok := p.match(p.pos, TokenLBracket, TokenRBracket)
	if !ok {
		p.errors.Errorf(open.Pos(), "unmatched '[' in annotation")
		p.pos = close
		return Annotation{}, false
	}

	a := Annotation{Name: p.peekAt(1).Text, Pos: open.Pos()}
	if p.peekAt(2).Type == TokenLParen {
		argsOpen := p.pos + 2
		argsClose, ok := p.match(argsOpen, TokenLParen, TokenRParen)
		if ok && argsClose < close {
			a.Args = Render(p.toks[argsOpen+1 : argsClose])
		}
	}
	p.pos = close + 1
	return a, true
}

func (p *Parser) parseImport() *Import {
	kw := p.cur()
	p.advance()

	var path strings.Builder
	for {
		t := p.cur()
		if t.Type == TokenIdent || (t.Type == TokenOperator && t.Text == "*") {
			path.WriteString(t.Text)
			p.advance()
		} else {
			break
		}
		if p.cur().Type != TokenDot {
			break
		}
		path.WriteByte('.')
		p.advance()
	}

	if path.Len() == 0 {
		p.errors.Errorf(kw.Pos(), "expected package path after 'import', found %s", p.cur())
		p.skipStatement()
		return nil
	}
	p.endStatement()
	return &Import{Path: path.String(), Pos: kw.Pos()}
}

func (p *Parser) parseVariableDecls(annotations []Annotation, mods []Token) []*VariableDecl {
	kw := p.cur()
	locals, ok := p.parseLocalVars()
	if ok {
		p.endStatement()
	}

	visibility, static := modifiers(mods)
	bindable := false
	for _, a := range annotations {
		if a.Name == "Bindable" {
			bindable = true
		}
	}

	decls := make([]*VariableDecl, 0, len(locals))
	for _, l := range locals {
		decls = append(decls, &VariableDecl{
			Name:        l.Name,
			Type:        l.Type,
			Init:        l.Init,
			Bindable:    bindable,
			Const:       kw.Type == TokenConst,
			Static:      static,
			Visibility:  visibility,
			Annotations: annotations,
			Pos:         l.Pos,
		})
	}
	return decls
}

func (p *Parser) parseFunction(annotations []Annotation, mods []Token) *FunctionDecl {
	kw := p.cur()
	p.advance()

	visibility, static := modifiers(mods)
	fn := &FunctionDecl{
		Visibility:  visibility,
		Static:      static,
		Annotations: annotations,
		Pos:         kw.Pos(),
	}

	if (p.cur().Is("get") || p.cur().Is("set")) && p.peekAt(1).Type == TokenIdent {
		fn.Accessor = p.cur().Text
		p.advance()
	}

	name := p.cur()
	if name.Type != TokenIdent {
		p.errors.Errorf(name.Pos(), "expected function name after 'function', found %s", name)
		p.skipStatement()
		return nil
	}
	fn.Name = name.Text
	p.advance()

	fn.Params = p.parseParams(fn.Name)

	if p.cur().Type == TokenColon {
		p.advance()
		fn.ReturnType = p.parseType()
	}

	if p.cur().Type != TokenLBrace {
		p.errors.Errorf(p.cur().Pos(), "expected '{' to start the body of function %s, found %s", fn.Name, p.cur())
		p.skipStatement()
		return nil
	}
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseParams(fnName string) []*Param {
	open := p.cur()
	if open.Type != TokenLParen {
		p.errors.Errorf(open.Pos(), "expected '(' after function name %s, found %s", fnName, open)
		return nil
	}
	close, ok := p.match(p.pos, TokenLParen, TokenRParen)
	if !ok {
		p.errors.Errorf(open.Pos(), "unmatched '(' in the parameter list of %s", fnName)
	}

	var params []*Param
	p.within(p.pos+1, close, func() {
		for !p.atEnd() {
			param := &Param{Pos: p.cur().Pos()}
			if p.cur().Type == TokenEllipsis {
				param.Rest = true
				p.advance()
			}

			name := p.cur()
			if name.Type != TokenIdent {
				p.errors.Errorf(name.Pos(), "expected parameter name in %s, found %s", fnName, name)
				return
			}
			param.Name = name.Text
			p.advance()

			if p.cur().Type == TokenColon {
				p.advance()
				param.Type = p.parseType()
			}
			if p.isOperator("=") {
				p.advance()
				param.Default = p.parseExpr(true)
				if param.Default == nil {
					p.errors.Errorf(p.cur().Pos(), "missing default value for parameter %s", param.Name)
				}
			}
			params = append(params, param)

			if p.cur().Type == TokenComma {
				p.advance()
				continue
			}
			if !p.atEnd() {
				p.errors.Errorf(p.cur().Pos(), "unexpected %s in the parameter list of %s", p.cur(), fnName)
			}
			return
		}
	})

	p.pos = close
	if ok {
		p.pos = close + 1
	}
	return params
}

// parseType reads a type annotation: Name, a.b.Name, Vector.<T>, * or void
func (p *Parser) parseType() string {
	t := p.cur()
	switch {
	case t.Type == TokenOperator && t.Text == "*":
		p.advance()
		return "*"
	case t.Type == TokenIdent || t.Is("void"):
	default:
		p.errors.Errorf(t.Pos(), "expected type name, found %s", t)
		return ""
	}

	var b strings.Builder
	b.WriteString(t.Text)
	p.advance()
	for p.cur().Type == TokenDot {
		next := p.peekAt(1)
		switch {
		case next.Type == TokenIdent:
			b.WriteString("." + next.Text)
			p.advance()
			p.advance()
		case next.Type == TokenOperator && next.Text == "<":
			p.advance()
			p.advance()
			b.WriteString(".<" + p.parseType())
			p.closeTypeParam()
			b.WriteString(">")
		default:
			return b.String()
		}
	}
	return b.String()
}

// closeTypeParam consumes the '>' of Vector.<T>, splitting a '>>' of nested vectors
func (p *Parser) closeTypeParam() {
	t := p.cur()
	switch {
	case t.Type == TokenOperator && t.Text == ">":
		p.advance()
	case t.Type == TokenOperator && strings.HasPrefix(t.Text, ">"):
		p.toks[p.pos].Text = t.Text[1:]
		p.toks[p.pos].Column++
	default:
		p.errors.Errorf(t.Pos(), "expected '>' to close type parameter, found %s", t)
	}
}

// Statements

func (p *Parser) parseBlock() *Block {
	open := p.cur()
	close, ok := p.match(p.pos, TokenLBrace, TokenRBrace)
	if !ok {
		p.errors.Errorf(open.Pos(), "unmatched '{': block is never closed")
	}

	block := &Block{Open: open.Pos(), Close: p.tokenAt(close).Pos()}
	p.within(p.pos+1, close, func() {
		block.Stmts = p.parseStatements()
	})

	p.pos = close
	if ok {
		p.pos = close + 1
	}
	return block
}

func (p *Parser) parseStatements() []Stmt {
	var stmts []Stmt
	for !p.atEnd() {
		start := p.pos
		stmts = append(stmts, p.parseStatement()...)
		if p.pos == start {
			p.advance()
		}
	}
	return stmts
}

// parseBody parses the body of an if/else/loop: a block, or a single statement
// wrapped in an implicit block
func (p *Parser) parseBody(owner string) *Block {
	t := p.cur()
	if t.Type == TokenLBrace {
		return p.parseBlock()
	}
	if p.atEnd() {
		p.errors.Errorf(t.Pos(), "expected body of %s, found %s", owner, t)
		return &Block{Implicit: true, Open: t.Pos(), Close: t.Pos()}
	}
	stmts := p.parseStatement()
	return &Block{Stmts: stmts, Implicit: true, Open: t.Pos(), Close: p.cur().Pos()}
}

func (p *Parser) parseStatement() []Stmt {
	t := p.cur()

	if t.Type == TokenIdent && p.peekAt(1).Type == TokenColon {
		return p.parseLabeled()
	}

	switch t.Type {
	case TokenLBrace:
		return []Stmt{&BlockStmt{Body: p.parseBlock()}}
	case TokenSemicolon:
		p.advance()
		return nil
	case TokenIf:
		return []Stmt{p.parseIf()}
	case TokenFor:
		if s := p.parseFor(); s != nil {
			return []Stmt{s}
		}
		return nil
	case TokenWhile:
		return []Stmt{p.parseWhile()}
	case TokenDo:
		return []Stmt{p.parseDoWhile()}
	case TokenReturn:
		return []Stmt{p.parseReturn()}
	case TokenVar, TokenLet, TokenConst:
		decls, ok := p.parseLocalVars()
		if ok {
			p.endStatement()
		}
		stmts := make([]Stmt, len(decls))
		for i, d := range decls {
			stmts[i] = d
		}
		return stmts
	case TokenBreak, TokenContinue:
		return []Stmt{p.parseBranch()}
	case TokenThrow:
		p.advance()
		x := p.parseExpr(false)
		if x == nil {
			p.errors.Errorf(t.Pos(), "expected expression after 'throw'")
		}
		p.endStatement()
		return []Stmt{&ThrowStmt{X: x, Pos: t.Pos()}}
	case TokenElse:
		p.errors.Errorf(t.Pos(), "'else' without a matching 'if'")
		p.advance()
		return nil
	case TokenFunction:
		p.errors.Unsupportedf(t.Pos(), "nested function declarations are not supported")
		p.skipStatement()
		return nil
	case TokenImport, TokenPublic, TokenPrivate, TokenProtected, TokenInternal,
		TokenStatic, TokenOverride, TokenFinal, TokenAsync:
		p.errors.Errorf(t.Pos(), "unexpected %s inside a function body", t)
		p.skipStatement()
		return nil
	case TokenRParen, TokenRBracket, TokenComma, TokenColon, TokenIn:
		p.errors.Errorf(t.Pos(), "unexpected %s", t)
		p.skipStatement()
		return nil
	case TokenKeyword:
		switch t.Text {
		case "switch", "try", "with", "class", "interface", "package":
			p.errors.Unsupportedf(t.Pos(), "'%s' statements are not supported", t.Text)
			p.skipStatement()
			return nil
		}
	}

	x := p.parseExpr(false)
	p.endStatement()
	if x == nil {
		return nil
	}
	return []Stmt{&ExprStmt{X: x, Pos: t.Pos()}}
}

// parseLabeled parses `label: stmt`. The label applies to the first statement when
// the body is a declaration list.
func (p *Parser) parseLabeled() []Stmt {
	label := p.cur()
	p.advance()
	p.advance()

	if p.atEnd() || p.cur().Type == TokenRBrace {
		p.errors.Errorf(label.Pos(), "expected statement after label %s", label.Text)
		return nil
	}
	body := p.parseStatement()
	if len(body) == 0 {
		// `label: ;` labels an empty statement
		return nil
	}
	body[0] = &LabeledStmt{Label: label.Text, Body: body[0], Pos: label.Pos()}
	return body
}

func (p *Parser) parseIf() *IfStmt {
	kw := p.cur()
	p.advance()

	stmt := &IfStmt{Pos: kw.Pos()}
	stmt.Cond = p.parseCondition("if")
	stmt.Then = p.parseBody("if")

	// The whole else-if/else chain belongs to this node
	for p.cur().Type == TokenElse {
		elseTok := p.cur()
		if p.peekAt(1).Type == TokenIf {
			p.advance()
			p.advance()
			arm := &ElseIf{Pos: elseTok.Pos()}
			arm.Cond = p.parseCondition("else if")
			arm.Body = p.parseBody("else if")
			stmt.ElseIfs = append(stmt.ElseIfs, arm)
			continue
		}
		p.advance()
		stmt.Else = p.parseBody("else")
		break
	}
	return stmt
}

func (p *Parser) parseWhile() *LoopStmt {
	kw := p.cur()
	p.advance()
	loop := &LoopStmt{Kind: LoopWhile, Pos: kw.Pos()}
	loop.Cond = p.parseCondition("while")
	loop.Body = p.parseBody("while")
	return loop
}

func (p *Parser) parseDoWhile() *LoopStmt {
	kw := p.cur()
	p.advance()
	loop := &LoopStmt{Kind: LoopDoWhile, Pos: kw.Pos()}
	loop.Body = p.parseBody("do")

	if p.cur().Type != TokenWhile {
		p.errors.Errorf(p.cur().Pos(), "expected 'while' after do block, found %s", p.cur())
		return loop
	}
	p.advance()
	loop.Cond = p.parseCondition("do-while")
	p.endStatement()
	return loop
}

func (p *Parser) parseFor() *LoopStmt {
	kw := p.cur()
	p.advance()

	loop := &LoopStmt{Kind: LoopFor, Pos: kw.Pos()}
	if p.cur().Is("each") {
		loop.Kind = LoopForEach
		p.advance()
	}

	open := p.cur()
	if open.Type != TokenLParen {
		p.errors.Errorf(open.Pos(), "expected '(' after '%s', found %s", loop.Kind, open)
		p.skipStatement()
		return nil
	}
	close, ok := p.match(p.pos, TokenLParen, TokenRParen)
	if !ok {
		p.errors.Errorf(open.Pos(), "unmatched '(' in %s header", loop.Kind)
	}

	p.within(p.pos+1, close, func() {
		if loop.Kind == LoopForEach || p.headerHasIn() {
			if loop.Kind == LoopFor {
				loop.Kind = LoopForIn
			}
			p.parseIterationHeader(loop)
		} else {
			p.parseClassicHeader(loop)
		}
		if !p.atEnd() {
			p.errors.Errorf(p.cur().Pos(), "unexpected %s in %s header", p.cur(), loop.Kind)
		}
	})

	p.pos = close
	if ok {
		p.pos = close + 1
	}
	loop.Body = p.parseBody(loop.Kind.String())
	return loop
}

// headerHasIn reports whether the loop header is `x in y` rather than init;cond;post
func (p *Parser) headerHasIn() bool {
	for i := p.pos; i < p.end; i++ {
		switch p.toks[i].Type {
		case TokenSemicolon:
			return false
		case TokenIn:
			return true
		case TokenLParen, TokenLBracket, TokenLBrace:
			close, ok := p.matchOpen(i)
			if !ok {
				return false
			}
			i = close
		}
	}
	return false
}

func (p *Parser) parseIterationHeader(loop *LoopStmt) {
	v := &LocalVarDecl{Pos: p.cur().Pos()}
	switch p.cur().Type {
	case TokenVar, TokenLet, TokenConst:
		v.Keyword = p.cur().Text
		p.advance()
	}

	name := p.cur()
	if name.Type != TokenIdent {
		p.errors.Errorf(name.Pos(), "expected identifier in %s header, found %s", loop.Kind, name)
		p.pos = p.end
		return
	}
	v.Name = name.Text
	v.Pos = name.Pos()
	p.advance()
	if p.cur().Type == TokenColon {
		p.advance()
		v.Type = p.parseType()
	}
	loop.Var = v

	if p.cur().Type != TokenIn {
		p.errors.Errorf(p.cur().Pos(), "expected 'in' in %s header, found %s", loop.Kind, p.cur())
		p.pos = p.end
		return
	}
	p.advance()
	loop.Iter = p.parseExpr(false)
	if loop.Iter == nil {
		p.errors.Errorf(p.cur().Pos(), "missing collection in %s header", loop.Kind)
	}
}

func (p *Parser) parseClassicHeader(loop *LoopStmt) {
	switch p.cur().Type {
	case TokenVar, TokenLet, TokenConst:
		decls, ok := p.parseLocalVars()
		if !ok {
			return
		}
		loop.InitDecls = decls
	case TokenSemicolon:
	default:
		loop.InitExpr = p.parseExpr(false)
	}
	if !p.expectSemicolon(loop.Kind) {
		return
	}

	loop.Cond = p.parseExpr(false)
	if !p.expectSemicolon(loop.Kind) {
		return
	}
	loop.Post = p.parseExpr(false)
}

func (p *Parser) expectSemicolon(kind LoopKind) bool {
	if p.cur().Type != TokenSemicolon {
		p.errors.Errorf(p.cur().Pos(), "expected ';' in %s header, found %s", kind, p.cur())
		p.pos = p.end
		return false
	}
	p.advance()
	return true
}

func (p *Parser) parseReturn() *ReturnStmt {
	kw := p.cur()
	p.advance()
	stmt := &ReturnStmt{Pos: kw.Pos()}
	if !p.atEnd() && p.cur().Type != TokenSemicolon && !p.cur().Newline {
		stmt.Result = p.parseExpr(false)
	}
	p.endStatement()
	return stmt
}

func (p *Parser) parseBranch() *BranchStmt {
	kw := p.cur()
	p.advance()
	stmt := &BranchStmt{Keyword: kw.Text, Pos: kw.Pos()}
	if p.cur().Type == TokenIdent && !p.cur().Newline {
		stmt.Label = p.cur().Text
		p.advance()
	}
	p.endStatement()
	return stmt
}

// parseLocalVars parses `var a:T = x, b` without the terminating ';'.
// ok is false when recovery already skipped the rest of the statement.
func (p *Parser) parseLocalVars() ([]*LocalVarDecl, bool) {
	kw := p.cur()
	p.advance()

	var decls []*LocalVarDecl
	for {
		name := p.cur()
		if name.Type != TokenIdent {
			p.errors.Errorf(name.Pos(), "expected identifier after '%s', found %s", kw.Text, name)
			p.skipStatement()
			return decls, false
		}
		p.advance()

		d := &LocalVarDecl{Keyword: kw.Text, Name: name.Text, Pos: name.Pos()}
		if p.cur().Type == TokenColon {
			p.advance()
			d.Type = p.parseType()
		}
		if p.isOperator("=") {
			p.advance()
			d.Init = p.parseExpr(true)
			if d.Init == nil {
				p.errors.Errorf(p.cur().Pos(), "missing initializer for %s", d.Name)
			}
		}
		decls = append(decls, d)

		if p.cur().Type != TokenComma {
			return decls, true
		}
		p.advance()
	}
}

// parseCondition parses the parenthesized condition of if/while
func (p *Parser) parseCondition(owner string) *Expr {
	open := p.cur()
	if open.Type != TokenLParen {
		p.errors.Errorf(open.Pos(), "expected '(' after '%s', found %s", owner, open)
		// Take everything up to the body as the condition
		start := p.pos
		for !p.atEnd() && p.cur().Type != TokenLBrace && p.cur().Type != TokenSemicolon {
			p.advance()
		}
		return p.exprOf(start, p.pos)
	}

	close, ok := p.match(p.pos, TokenLParen, TokenRParen)
	if !ok {
		p.errors.Errorf(open.Pos(), "unmatched '(' in %s condition", owner)
	}
	cond := p.exprOf(p.pos+1, close)
	if cond == nil {
		p.errors.Errorf(open.Pos(), "missing condition in '%s'", owner)
	}
	p.pos = close
	if ok {
		p.pos = close + 1
	}
	return cond
}

// parseExpr collects the tokens of one expression. It stops at a ';' at depth zero, at
// a ',' when commaEnds is set, at the end of the region, or at a line break that
// begins a new statement. Nested (), [] and {} are skipped with the same depth
// matching used for blocks.
func (p *Parser) parseExpr(commaEnds bool) *Expr {
	start := p.pos
loop:
	for !p.atEnd() {
		t := p.cur()
		switch t.Type {
		case TokenSemicolon, TokenRBrace, TokenElse:
			break loop
		case TokenComma:
			if commaEnds {
				break loop
			}
		case TokenLParen, TokenLBracket, TokenLBrace:
			close, ok := p.matchOpen(p.pos)
			if !ok {
				p.errors.Errorf(t.Pos(), "unmatched %s", t.Type)
				p.pos = p.end
				break loop
			}
			p.pos = close + 1
			continue
		case TokenRParen, TokenRBracket:
			p.errors.Errorf(t.Pos(), "unmatched %s", t.Type)
		}
		if p.pos > start && t.Newline && startsStatement(p.toks[p.pos-1], t) {
			break
		}
		p.advance()
	}
	return p.exprOf(start, p.pos)
}

// startsStatement reports whether next, on a new line after prev, begins a new
// statement in a script that omits semicolons
func startsStatement(prev, next Token) bool {
	if !endsOperand(prev) {
		return false
	}
	switch next.Type {
	case TokenIdent, TokenIf, TokenFor, TokenWhile, TokenDo, TokenReturn, TokenVar,
		TokenLet, TokenConst, TokenBreak, TokenContinue, TokenThrow:
		return true
	case TokenKeyword:
		return next.Text == "this" || next.Text == "super" || next.Text == "new" || next.Text == "delete"
	}
	return false
}

// endStatement consumes a ';' or accepts a line break / region end as terminator
func (p *Parser) endStatement() {
	t := p.cur()
	switch {
	case t.Type == TokenSemicolon:
		p.advance()
	case p.atEnd(), t.Newline:
	default:
		p.errors.Errorf(t.Pos(), "expected ';' after statement, found %s", t)
		p.skipStatement()
	}
}

// skipStatement advances to the next statement boundary after an error so that later
// problems in the same block are still reported.
func (p *Parser) skipStatement() {
	for !p.atEnd() {
		t := p.cur()
		switch t.Type {
		case TokenSemicolon:
			p.advance()
			return
		case TokenRBrace:
			return
		case TokenLBrace:
			close, ok := p.matchOpen(p.pos)
			if !ok {
				p.pos = p.end
				return
			}
			p.pos = close + 1
			next := p.cur()
			if next.Type == TokenElse || next.Type == TokenWhile || next.Is("catch") || next.Is("finally") {
				continue
			}
			return
		case TokenLParen, TokenLBracket:
			close, ok := p.matchOpen(p.pos)
			if !ok {
				p.pos = p.end
				return
			}
			p.pos = close + 1
			continue
		}
		p.advance()
	}
}

// Helper methods

// within parses the token range [from, to) as an isolated region
func (p *Parser) within(from, to int, fn func()) {
	savedEnd := p.end
	p.pos = from
	p.end = to
	fn()
	p.end = savedEnd
}

func (p *Parser) match(open int, left, right TokenType) (int, bool) {
	return matchPair(p.toks, open, p.end, left, right)
}

func (p *Parser) matchOpen(open int) (int, bool) {
	switch p.toks[open].Type {
	case TokenLParen:
		return p.match(open, TokenLParen, TokenRParen)
	case TokenLBracket:
		return p.match(open, TokenLBracket, TokenRBracket)
	default:
		return p.match(open, TokenLBrace, TokenRBrace)
	}
}

func (p *Parser) exprOf(from, to int) *Expr {
	if from >= to {
		return nil
	}
	tokens := make([]Token, to-from)
	copy(tokens, p.toks[from:to])
	return &Expr{Tokens: tokens}
}

func (p *Parser) atEnd() bool {
	return p.pos >= p.end
}

// cur returns the current token, or an EOF token positioned at the region end
func (p *Parser) cur() Token {
	if p.atEnd() {
		return p.eof()
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(n int) Token {
	if p.pos+n >= p.end {
		return p.eof()
	}
	return p.toks[p.pos+n]
}

func (p *Parser) eof() Token {
	t := p.tokenAt(p.end)
	return Token{Type: TokenEOF, Line: t.Line, Column: t.Column}
}

func (p *Parser) tokenAt(i int) Token {
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) advance() {
	if p.pos < p.end {
		p.pos++
	}
}

func (p *Parser) isOperator(op string) bool {
	t := p.cur()
	return t.Type == TokenOperator && t.Text == op
}

func modifiers(mods []Token) (visibility string, static bool) {
	for _, m := range mods {
		switch m.Type {
		case TokenPublic, TokenPrivate, TokenProtected, TokenInternal:
			if visibility == "" {
				visibility = m.Text
			}
		case TokenStatic:
			static = true
		}
	}
	return visibility, static
}
