// Package codegen turns a component tree and a parsed script into generated source:
// a JSON tree literal for the rendering runtime and a JavaScript class whose methods
// keep the exact block structure of the script.
package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/recera/mxc/internal/component"
	"github.com/recera/mxc/internal/diag"
	"github.com/recera/mxc/internal/script"
)

// Options configures generation
type Options struct {
	// ClassName names the generated class; defaults to "Component"
	ClassName string
	// Globals are names accepted without a declaration. Nil means DefaultGlobals.
	Globals []string
	// QualifyMethods also rewrites bare calls of the script's own functions to
	// this.name(). Off by default: only variables are qualified.
	QualifyMethods bool
}

// DefaultOptions returns the default generation options
func DefaultOptions() Options {
	return Options{ClassName: "Component", Globals: DefaultGlobals}
}

// GeneratedSource is the output for one document
type GeneratedSource struct {
	TreeLiteral string
	ClassSource string
	ClassName   string
	// Bindable lists the fields whose writes the runtime must observe
	Bindable []string
	Methods  []Method
}

// Method is the generated source of one function
type Method struct {
	Name   string
	Source string
	// Blocks is the number of brace pairs emitted for the body, which always
	// equals script.CountBlocks of the parsed body
	Blocks int
}

type generator struct {
	opts   Options
	prog   *script.Program
	syms   *symbolTable
	errors diag.List
}

// Generate produces the tree literal and class source. Callers must only invoke it
// for a program parsed without StructuralErrors; ReferenceWarnings are returned
// alongside the output.
func Generate(tree *component.Node, prog *script.Program, opts Options) (*GeneratedSource, diag.List) {
	if prog == nil {
		prog = &script.Program{}
	}
	if opts.ClassName == "" {
		opts.ClassName = "Component"
	}
	if opts.Globals == nil {
		opts.Globals = DefaultGlobals
	}

	g := &generator{opts: opts, prog: prog}
	g.syms = newSymbolTable(prog, tree, opts.Globals, &g.errors)

	literal, err := TreeLiteral(tree)
	if err != nil {
		g.errors.Errorf(diag.Pos{}, "serializing component tree: %v", err)
	}

	out := &GeneratedSource{TreeLiteral: literal, ClassName: opts.ClassName}
	for _, v := range prog.Variables() {
		if v.Bindable {
			out.Bindable = append(out.Bindable, v.Name)
		}
	}
	out.ClassSource, out.Methods = g.class(out.Bindable)
	g.checkEvents(tree)
	return out, g.errors
}

// TreeLiteral serializes the component tree as indented JSON. Binding expressions stay
// verbatim strings for the runtime to resolve.
func TreeLiteral(tree *component.Node) (string, error) {
	if tree == nil {
		return "null", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tree); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func (g *generator) class(bindable []string) (string, []Method) {
	name := g.opts.ClassName
	w := &writer{}
	w.open("class " + name)

	var instance, static []*script.VariableDecl
	for _, v := range g.prog.Variables() {
		if v.Static {
			static = append(static, v)
		} else {
			instance = append(instance, v)
		}
	}

	first := true
	if len(instance) > 0 {
		q := g.qualifier(false)
		w.open("constructor()")
		for _, v := range instance {
			w.line(fmt.Sprintf("this.%s = %s;", v.Name, g.initializer(q, v)))
		}
		w.close("")
		first = false
	}

	var methods []Method
	for _, fn := range g.prog.Functions() {
		if !first {
			w.line("")
		}
		first = false

		m := g.method(fn, w.indent)
		methods = append(methods, m)
		w.b.WriteString(m.Source)
	}
	w.close("")

	q := g.qualifier(true)
	for _, v := range static {
		w.line(fmt.Sprintf("%s.%s = %s;", name, v.Name, g.initializer(q, v)))
	}
	if len(bindable) > 0 {
		quoted := make([]string, len(bindable))
		for i, b := range bindable {
			quoted[i] = fmt.Sprintf("%q", b)
		}
		w.line(fmt.Sprintf("%s.bindable = [%s];", name, strings.Join(quoted, ", ")))
	}
	return w.String(), methods
}

// initializer returns the qualified initializer, or the default value of the
// declared type
func (g *generator) initializer(q *qualifier, v *script.VariableDecl) string {
	if v.Init != nil {
		return q.expr(v.Init, newFunctionScope())
	}
	switch v.Type {
	case "int", "uint":
		return "0"
	case "Number":
		return "NaN"
	case "Boolean":
		return "false"
	case "", "*":
		return "undefined"
	}
	return "null"
}

func (g *generator) qualifier(static bool) *qualifier {
	return &qualifier{
		syms:           g.syms,
		className:      g.opts.ClassName,
		static:         static,
		qualifyMethods: g.opts.QualifyMethods,
		errors:         &g.errors,
		warned:         make(map[string]bool),
	}
}

func (g *generator) method(fn *script.FunctionDecl, indent int) Method {
	q := g.qualifier(fn.Static)
	sc := newFunctionScope()
	w := &writer{indent: indent}

	params := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		switch {
		case p.Rest:
			params = append(params, "..."+p.Name)
		case p.Default != nil:
			params = append(params, p.Name+" = "+q.expr(p.Default, sc))
		default:
			params = append(params, p.Name)
		}
		sc.declare("var", p.Name)
	}

	header := fn.Name + "(" + strings.Join(params, ", ") + ")"
	if fn.Accessor != "" {
		header = fn.Accessor + " " + header
	}
	if fn.Static {
		header = "static " + header
	}

	g.block(w, q, fn.Body, sc, header)

	if want := script.CountBlocks(fn.Body); w.opened != want || w.closed != want {
		g.errors.Errorf(fn.Pos, "internal error: function %s emitted %d/%d braces for %d blocks",
			fn.Name, w.opened, w.closed, want)
	}
	return Method{Name: fn.Name, Source: w.String(), Blocks: w.opened}
}

// block emits `header {`, the statements and the closing brace. Implicit blocks get
// braces too, so every parsed block maps to exactly one emitted pair.
func (g *generator) block(w *writer, q *qualifier, b *script.Block, sc *scope, header string) {
	w.open(header)
	g.stmts(w, q, b, sc)
	w.close("")
}

func (g *generator) stmts(w *writer, q *qualifier, b *script.Block, sc *scope) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		g.stmt(w, q, s, sc)
	}
}

func (g *generator) stmt(w *writer, q *qualifier, s script.Stmt, sc *scope) {
	switch s := s.(type) {
	case *script.ExprStmt:
		w.line(q.expr(s.X, sc) + ";")

	case *script.LocalVarDecl:
		w.line(g.localDecls(q, []*script.LocalVarDecl{s}, sc) + ";")

	case *script.ReturnStmt:
		if s.Result == nil {
			w.line("return;")
		} else {
			w.line("return " + q.expr(s.Result, sc) + ";")
		}

	case *script.IfStmt:
		w.open("if (" + q.expr(s.Cond, sc) + ")")
		g.stmts(w, q, s.Then, sc.child())
		for _, arm := range s.ElseIfs {
			w.reopen("else if (" + q.expr(arm.Cond, sc) + ")")
			g.stmts(w, q, arm.Body, sc.child())
		}
		if s.Else != nil {
			w.reopen("else")
			g.stmts(w, q, s.Else, sc.child())
		}
		w.close("")

	case *script.LoopStmt:
		g.loop(w, q, s, sc)

	case *script.BranchStmt:
		if s.Label != "" {
			w.line(s.Keyword + " " + s.Label + ";")
		} else {
			w.line(s.Keyword + ";")
		}

	case *script.ThrowStmt:
		w.line("throw " + q.expr(s.X, sc) + ";")

	case *script.BlockStmt:
		g.block(w, q, s.Body, sc.child(), "")

	case *script.LabeledStmt:
		w.prefix = s.Label + ": "
		g.stmt(w, q, s.Body, sc)
	}
}

func (g *generator) loop(w *writer, q *qualifier, s *script.LoopStmt, sc *scope) {
	loopScope := sc.child()

	switch s.Kind {
	case script.LoopFor:
		var init string
		switch {
		case len(s.InitDecls) > 0:
			init = g.localDecls(q, s.InitDecls, loopScope)
		case s.InitExpr != nil:
			init = q.expr(s.InitExpr, loopScope)
		}
		header := fmt.Sprintf("for (%s; %s; %s)", init, q.expr(s.Cond, loopScope), q.expr(s.Post, loopScope))
		g.block(w, q, s.Body, loopScope, header)

	case script.LoopForIn, script.LoopForEach:
		iter := q.expr(s.Iter, loopScope)
		target := s.Var.Name
		if s.Var.Keyword != "" {
			target = s.Var.Keyword + " " + s.Var.Name
			loopScope.declare(s.Var.Keyword, s.Var.Name)
		} else {
			target = q.name(s.Var.Name, s.Var.Pos, loopScope)
		}
		header := fmt.Sprintf("for (%s in %s)", target, iter)
		if s.Kind == script.LoopForEach {
			// for each iterates values; Object.values covers arrays and plain objects
			header = fmt.Sprintf("for (%s of Object.values(%s))", target, iter)
		}
		g.block(w, q, s.Body, loopScope, header)

	case script.LoopWhile:
		g.block(w, q, s.Body, loopScope, "while ("+q.expr(s.Cond, sc)+")")

	case script.LoopDoWhile:
		w.open("do")
		g.stmts(w, q, s.Body, loopScope)
		w.close(" while (" + q.expr(s.Cond, sc) + ");")
	}
}

// localDecls renders `var a = x, b` and declares the names after their initializers
func (g *generator) localDecls(q *qualifier, decls []*script.LocalVarDecl, sc *scope) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		part := d.Name
		if d.Init != nil {
			part += " = " + q.expr(d.Init, sc)
		}
		parts = append(parts, part)
		sc.declare(d.Keyword, d.Name)
	}
	return decls[0].Keyword + " " + strings.Join(parts, ", ")
}

// checkEvents warns about event handlers that call a function the script does not
// declare
func (g *generator) checkEvents(tree *component.Node) {
	tree.Walk(func(n *component.Node) {
		for _, ev := range n.Events {
			tokens, errs := script.Tokenize(ev.Handler, ev.Pos)
			if len(errs) > 0 {
				g.errors.Warnf(ev.Pos, "event handler %q for %s is not valid script", ev.Handler, ev.Name)
				continue
			}
			for i, t := range tokens {
				if t.Type != script.TokenIdent || i+1 >= len(tokens) || tokens[i+1].Type != script.TokenLParen {
					continue
				}
				if i > 0 && tokens[i-1].Type == script.TokenDot {
					continue
				}
				if _, ok := g.syms.lookup(t.Text); ok || g.syms.mayBeImported(t.Text) {
					continue
				}
				g.errors.Warnf(ev.Pos, "event handler for %s on <%s> calls undeclared function %q", ev.Name, n.Type, t.Text)
			}
		}
	})
}
