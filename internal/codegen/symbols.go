package codegen

import (
	"unicode"
	"unicode/utf8"

	"github.com/recera/mxc/internal/component"
	"github.com/recera/mxc/internal/diag"
	"github.com/recera/mxc/internal/script"
)

type symbolKind int

const (
	symField symbolKind = iota + 1
	symStaticField
	symMethod
	symStaticMethod
	symComponentID
	symImport
	symGlobal
)

// DefaultGlobals are names the generated code may reference without a declaration
var DefaultGlobals = []string{
	"Math", "String", "Number", "Boolean", "Array", "Object", "Date", "JSON", "RegExp",
	"Error", "TypeError", "RangeError", "Map", "Set", "Promise", "Symbol", "Function",
	"parseInt", "parseFloat", "isNaN", "isFinite", "encodeURIComponent",
	"decodeURIComponent", "encodeURI", "decodeURI", "escape", "unescape",
	"console", "window", "document", "navigator", "localStorage", "fetch",
	"setTimeout", "clearTimeout", "setInterval", "clearInterval", "requestAnimationFrame",
	"arguments", "trace", "int", "uint", "Vector", "XML", "XMLList",
}

// symbolTable maps every top-level name of the script, the component ids of the tree
// and the known globals to what they denote. It is built once per document.
type symbolTable struct {
	names map[string]symbolKind
	// wildcard is set when an `import a.b.*` makes any type name potentially known
	wildcard bool
}

func newSymbolTable(prog *script.Program, tree *component.Node, globals []string, errs *diag.List) *symbolTable {
	s := &symbolTable{names: make(map[string]symbolKind)}

	for _, g := range globals {
		s.names[g] = symGlobal
	}
	for _, imp := range prog.Imports {
		if imp.Name() == "*" {
			s.wildcard = true
			continue
		}
		s.names[imp.Name()] = symImport
	}
	if tree != nil {
		for _, id := range tree.IDs() {
			s.names[id] = symComponentID
		}
	}

	declared := make(map[string]script.Decl)
	for _, d := range prog.Decls {
		kind := symField
		switch d := d.(type) {
		case *script.VariableDecl:
			if d.Static {
				kind = symStaticField
			}
		case *script.FunctionDecl:
			kind = symMethod
			if d.Static {
				kind = symStaticMethod
			}
		}

		if prev, ok := declared[d.DeclName()]; ok && !isAccessorPair(prev, d) {
			errs.Unsupportedf(d.Position(), "%s is already declared at %s", d.DeclName(), prev.Position())
			continue
		}
		declared[d.DeclName()] = d
		s.names[d.DeclName()] = kind
	}
	return s
}

func (s *symbolTable) lookup(name string) (symbolKind, bool) {
	kind, ok := s.names[name]
	return kind, ok
}

// mayBeImported reports whether name could come from a wildcard import
func (s *symbolTable) mayBeImported(name string) bool {
	if !s.wildcard {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// isAccessorPair reports whether a and b are the getter and setter of one property
func isAccessorPair(a, b script.Decl) bool {
	fa, ok1 := a.(*script.FunctionDecl)
	fb, ok2 := b.(*script.FunctionDecl)
	return ok1 && ok2 && fa.Accessor != "" && fb.Accessor != "" && fa.Accessor != fb.Accessor
}

// scope is one level of the local scope chain of a method body. Parameters and var
// declarations live in the function scope; let and const live in the block scope.
type scope struct {
	parent *scope
	fn     *scope
	names  map[string]bool
}

func newFunctionScope() *scope {
	s := &scope{names: make(map[string]bool)}
	s.fn = s
	return s
}

func (s *scope) child() *scope {
	return &scope{parent: s, fn: s.fn, names: make(map[string]bool)}
}

// declare records a local. var declarations are hoisted to the function scope.
func (s *scope) declare(keyword, name string) {
	if keyword == "" || keyword == "var" {
		s.fn.names[name] = true
		return
	}
	s.names[name] = true
}

func (s *scope) has(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.names[name] {
			return true
		}
	}
	return false
}
