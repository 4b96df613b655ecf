package script

import (
	"strings"

	"github.com/recera/mxc/internal/diag"
)

// Program is the root of a parsed script block
type Program struct {
	Imports []*Import
	Decls   []Decl
}

// Variables returns the top-level variable declarations in source order
func (p *Program) Variables() []*VariableDecl {
	var out []*VariableDecl
	for _, d := range p.Decls {
		if v, ok := d.(*VariableDecl); ok {
			out = append(out, v)
		}
	}
	return out
}

// Functions returns the top-level function declarations in source order
func (p *Program) Functions() []*FunctionDecl {
	var out []*FunctionDecl
	for _, d := range p.Decls {
		if f, ok := d.(*FunctionDecl); ok {
			out = append(out, f)
		}
	}
	return out
}

// Import is an `import a.b.C;` statement
type Import struct {
	Path string
	Pos  diag.Pos
}

// Name returns the last path segment, the name the import brings into scope
func (i *Import) Name() string {
	if idx := strings.LastIndexByte(i.Path, '.'); idx >= 0 {
		return i.Path[idx+1:]
	}
	return i.Path
}

// Decl is a top-level declaration: *VariableDecl or *FunctionDecl
type Decl interface {
	DeclName() string
	Position() diag.Pos
}

// Annotation is a metadata tag such as [Bindable] or [Event(name="x")]
type Annotation struct {
	Name string
	Args string
	Pos  diag.Pos
}

// VariableDecl is a top-level var/let/const declaration
type VariableDecl struct {
	Name        string
	Type        string
	Init        *Expr
	Bindable    bool
	Const       bool
	Static      bool
	Visibility  string
	Annotations []Annotation
	Pos         diag.Pos
}

func (d *VariableDecl) DeclName() string   { return d.Name }
func (d *VariableDecl) Position() diag.Pos { return d.Pos }

// Param is a function parameter
type Param struct {
	Name    string
	Type    string
	Default *Expr
	Rest    bool
	Pos     diag.Pos
}

// FunctionDecl is a top-level function declaration
type FunctionDecl struct {
	Name        string
	Params      []*Param
	ReturnType  string
	Body        *Block
	Static      bool
	Visibility  string
	Accessor    string // "get", "set" or empty
	Annotations []Annotation
	Pos         diag.Pos
}

func (d *FunctionDecl) DeclName() string   { return d.Name }
func (d *FunctionDecl) Position() diag.Pos { return d.Pos }

// Block is a brace-delimited sequence of statements. Implicit blocks wrap the single
// statement body of an if/else/loop written without braces.
type Block struct {
	Stmts    []Stmt
	Implicit bool
	Open     diag.Pos
	Close    diag.Pos
}

// Stmt is a statement inside a function body
type Stmt interface {
	Position() diag.Pos
}

// ExprStmt is an expression evaluated for its effect
type ExprStmt struct {
	X   *Expr
	Pos diag.Pos
}

// LocalVarDecl declares a single local variable. `var a = 1, b = 2;` yields two.
type LocalVarDecl struct {
	Keyword string // var, let or const
	Name    string
	Type    string
	Init    *Expr
	Pos     diag.Pos
}

// ReturnStmt returns from the enclosing function
type ReturnStmt struct {
	Result *Expr
	Pos    diag.Pos
}

// IfStmt carries an entire if / else if / else chain as one node
type IfStmt struct {
	Cond    *Expr
	Then    *Block
	ElseIfs []*ElseIf
	Else    *Block
	Pos     diag.Pos
}

// ElseIf is one `else if (cond) {...}` arm
type ElseIf struct {
	Cond *Expr
	Body *Block
	Pos  diag.Pos
}

// LoopKind distinguishes loop forms
type LoopKind int

const (
	LoopFor     LoopKind = iota // for (init; cond; post)
	LoopForIn                   // for (k in obj)
	LoopForEach                 // for each (v in list)
	LoopWhile                   // while (cond)
	LoopDoWhile                 // do {} while (cond)
)

func (k LoopKind) String() string {
	switch k {
	case LoopFor:
		return "for"
	case LoopForIn:
		return "for-in"
	case LoopForEach:
		return "for-each"
	case LoopWhile:
		return "while"
	case LoopDoWhile:
		return "do-while"
	}
	return "loop"
}

// LoopStmt is any loop form. Which fields are set depends on Kind.
type LoopStmt struct {
	Kind      LoopKind
	// InitDecls or InitExpr is the part before the first ';' of a for loop
	InitDecls []*LocalVarDecl
	InitExpr  *Expr
	Cond      *Expr
	Post      *Expr
	// Var is the iteration variable of for-in and for-each loops; Keyword is empty
	// when the loop assigns to an existing variable
	Var       *LocalVarDecl
	Iter      *Expr
	Body      *Block
	Pos       diag.Pos
}

// BranchStmt is break or continue
type BranchStmt struct {
	Keyword string
	Label   string
	Pos     diag.Pos
}

// ThrowStmt raises an exception
type ThrowStmt struct {
	X   *Expr
	Pos diag.Pos
}

// BlockStmt is a nested `{ ... }` block
type BlockStmt struct {
	Body *Block
}

// LabeledStmt is `label: stmt`, the target of a labelled break or continue
type LabeledStmt struct {
	Label string
	Body  Stmt
	Pos   diag.Pos
}

func (s *ExprStmt) Position() diag.Pos     { return s.Pos }
func (s *LocalVarDecl) Position() diag.Pos { return s.Pos }
func (s *ReturnStmt) Position() diag.Pos   { return s.Pos }
func (s *IfStmt) Position() diag.Pos       { return s.Pos }
func (s *LoopStmt) Position() diag.Pos     { return s.Pos }
func (s *BranchStmt) Position() diag.Pos   { return s.Pos }
func (s *ThrowStmt) Position() diag.Pos    { return s.Pos }
func (s *BlockStmt) Position() diag.Pos    { return s.Body.Open }
func (s *LabeledStmt) Position() diag.Pos  { return s.Pos }

// Expr is an expression kept as its token run. Code generation rewrites identifier
// tokens in place, so spacing and literals survive untouched.
type Expr struct {
	Tokens []Token
}

// Pos returns the position of the first token
func (e *Expr) Pos() diag.Pos {
	if e == nil || len(e.Tokens) == 0 {
		return diag.Pos{}
	}
	return e.Tokens[0].Pos()
}

// String renders the expression with single spaces where the source had whitespace
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return Render(e.Tokens)
}

// Render joins tokens back into source text
func Render(tokens []Token) string {
	var b strings.Builder
	for i, t := range tokens {
		if t.Type == TokenComment {
			continue
		}
		if i > 0 && t.Space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// CountBlocks returns the number of brace pairs a function body needs, counted
// recursively through every else-if, else and loop arm.
func CountBlocks(b *Block) int {
	if b == nil {
		return 0
	}
	n := 1
	for _, s := range b.Stmts {
		n += countStmt(s)
	}
	return n
}

func countStmt(s Stmt) int {
	switch s := s.(type) {
	case *IfStmt:
		n := CountBlocks(s.Then)
		for _, arm := range s.ElseIfs {
			n += CountBlocks(arm.Body)
		}
		return n + CountBlocks(s.Else)
	case *LoopStmt:
		return CountBlocks(s.Body)
	case *BlockStmt:
		return CountBlocks(s.Body)
	case *LabeledStmt:
		return countStmt(s.Body)
	}
	return 0
}
