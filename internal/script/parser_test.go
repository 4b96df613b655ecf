package script

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/recera/mxc/internal/diag"
)

func parse(t *testing.T, src string) (*Program, diag.List) {
	t.Helper()
	tokens, errs := Tokenize(src, diag.Pos{})
	if len(errs) > 0 {
		t.Fatalf("Tokenize errors:\n%s", errs)
	}
	return ParseProgram(tokens)
}

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, errs := parse(t, src)
	if len(errs) > 0 {
		t.Fatalf("ParseProgram errors:\n%s", errs)
	}
	return prog
}

// outline renders a block as indented lines so tests can compare structure
func outline(b *Block) []string {
	var lines []string
	var walk func(b *Block, indent string)
	walk = func(b *Block, indent string) {
		if b == nil {
			return
		}
		for _, s := range b.Stmts {
			switch s := s.(type) {
			case *ExprStmt:
				lines = append(lines, indent+"expr "+s.X.String())
			case *LocalVarDecl:
				lines = append(lines, fmt.Sprintf("%s%s %s = %s", indent, s.Keyword, s.Name, s.Init))
			case *ReturnStmt:
				lines = append(lines, strings.TrimRight(indent+"return "+s.Result.String(), " "))
			case *IfStmt:
				lines = append(lines, indent+"if "+s.Cond.String())
				walk(s.Then, indent+"  ")
				for _, arm := range s.ElseIfs {
					lines = append(lines, indent+"else if "+arm.Cond.String())
					walk(arm.Body, indent+"  ")
				}
				if s.Else != nil {
					lines = append(lines, indent+"else")
					walk(s.Else, indent+"  ")
				}
			case *LoopStmt:
				lines = append(lines, indent+s.Kind.String())
				walk(s.Body, indent+"  ")
			case *BranchStmt:
				lines = append(lines, indent+s.Keyword)
			case *ThrowStmt:
				lines = append(lines, indent+"throw "+s.X.String())
			case *BlockStmt:
				lines = append(lines, indent+"block")
				walk(s.Body, indent+"  ")
			case *LabeledStmt:
				lines = append(lines, indent+"label "+s.Label)
				walk(&Block{Stmts: []Stmt{s.Body}}, indent+"  ")
			}
		}
	}
	walk(b, "")
	return lines
}

func TestParseElsePreservation(t *testing.T) {
	prog := mustParse(t, `
function saveProduct() {
  if (selectedProduct != null) { a(); } else { b(); }
}`)

	fns := prog.Functions()
	if len(fns) != 1 {
		t.Fatalf("got %d functions, want 1", len(fns))
	}
	want := []string{
		"if selectedProduct != null",
		"  expr a()",
		"else",
		"  expr b()",
	}
	if diff := cmp.Diff(want, outline(fns[0].Body)); diff != "" {
		t.Errorf("saveProduct body mismatch (-want +got):\n%s", diff)
	}
	if got := CountBlocks(fns[0].Body); got != 3 {
		t.Errorf("CountBlocks = %d, want 3", got)
	}
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "else if chain is one statement",
			body: `if (a) { x(); } else if (b) { y(); } else if (c) { z(); } else { w(); }`,
			want: []string{
				"if a", "  expr x()",
				"else if b", "  expr y()",
				"else if c", "  expr z()",
				"else", "  expr w()",
			},
		},
		{
			name: "nested if inside else",
			body: `if (a) { if (b) { x(); } else { y(); } } else { z(); } done();`,
			want: []string{
				"if a",
				"  if b", "    expr x()", "  else", "    expr y()",
				"else", "  expr z()",
				"expr done()",
			},
		},
		{
			name: "brace characters inside strings",
			body: `var s = "} else {"; if (s == "{") { t = '}'; }`,
			want: []string{
				`var s = "} else {"`,
				`if s == "{"`,
				`  expr t = '}'`,
			},
		},
		{
			name: "implicit bodies",
			body: "if (a) x = 1; else if (b) x = 2;\nelse x = 3;",
			want: []string{
				"if a", "  expr x = 1",
				"else if b", "  expr x = 2",
				"else", "  expr x = 3",
			},
		},
		{
			name: "statements without semicolons",
			body: "a = 1\nb()\nreturn a",
			want: []string{"expr a = 1", "expr b()", "return a"},
		},
		{
			name: "multiple declarators",
			body: "var i:int = 0, j = i + 1, k;",
			want: []string{"var i = 0", "var j = i + 1", "var k = "},
		},
		{
			name: "object literal and inner function",
			body: "var o = {a: 1, b: function(e) { return e; }};\nlist.forEach(function(x) { n += x; })",
			want: []string{
				"var o = {a: 1, b: function(e) { return e; }}",
				"expr list.forEach(function(x) { n += x; })",
			},
		},
		{
			name: "loops",
			body: `for (var i:int = 0; i < n; i++) { s += i; }
for each (var item:Object in items) total++;
for (var k in obj) { continue; }
while (x > 0) { x--; if (x == 3) break; }
do { y++; } while (y < 10);`,
			want: []string{
				"for", "  expr s += i",
				"for-each", "  expr total++",
				"for-in", "  continue",
				"while", "  expr x--", "  if x == 3", "    break",
				"do-while", "  expr y++",
			},
		},
		{
			name: "labelled loop keeps its blocks",
			body: `outer: for (var i:int = 0; i < 3; i++) { if (i) { n++; } else { break outer; } }`,
			want: []string{
				"label outer",
				"  for",
				"    if i", "      expr n++",
				"    else", "      break",
			},
		},
		{
			name: "nested block and throw",
			body: `{ var t = 1; } throw new Error("bad");`,
			want: []string{"block", "  var t = 1", `throw new Error("bad")`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustParse(t, "function f() {\n"+tt.body+"\n}")
			fns := prog.Functions()
			if len(fns) != 1 {
				t.Fatalf("got %d functions, want 1", len(fns))
			}
			if diff := cmp.Diff(tt.want, outline(fns[0].Body)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLoopHeaders(t *testing.T) {
	prog := mustParse(t, `function f() {
  for (var i:int = 0; i < n; i++) {}
  for each (var item:Object in items) {}
  for (key in obj) {}
}`)
	stmts := prog.Functions()[0].Body.Stmts
	if len(stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(stmts))
	}

	classic := stmts[0].(*LoopStmt)
	if classic.Kind != LoopFor || len(classic.InitDecls) != 1 || classic.InitDecls[0].Name != "i" ||
		classic.InitDecls[0].Type != "int" || classic.Cond.String() != "i < n" || classic.Post.String() != "i++" {
		t.Errorf("classic for parsed as %+v", classic)
	}

	each := stmts[1].(*LoopStmt)
	if each.Kind != LoopForEach || each.Var.Name != "item" || each.Var.Keyword != "var" || each.Iter.String() != "items" {
		t.Errorf("for each parsed as %+v", each)
	}

	in := stmts[2].(*LoopStmt)
	if in.Kind != LoopForIn || in.Var.Name != "key" || in.Var.Keyword != "" || in.Iter.String() != "obj" {
		t.Errorf("for in parsed as %+v", in)
	}
}

func TestParseDeclarations(t *testing.T) {
	prog := mustParse(t, `
import flash.events.MouseEvent;
import mx.collections.*;

[Bindable]
public var count:Number = 0;

[Bindable(event="changed")] private static var items:Vector.<Vector.<String>> = new Vector.<Vector.<String>>();
[Inspectable] var plain:String;
const MAX:int = 10;

private function handleClick(event:MouseEvent, label:String = "ok", ...rest):void {
}

public function get total():Number { return count * 2; }
public function set total(value:Number):void { count = value / 2; }
`)

	var imports []string
	for _, imp := range prog.Imports {
		imports = append(imports, imp.Path+" "+imp.Name())
	}
	if diff := cmp.Diff([]string{"flash.events.MouseEvent MouseEvent", "mx.collections.* *"}, imports); diff != "" {
		t.Errorf("imports mismatch (-want +got):\n%s", diff)
	}

	type varSummary struct {
		Name, Type, Init, Visibility string
		Bindable, Static, Const      bool
	}
	var vars []varSummary
	for _, v := range prog.Variables() {
		vars = append(vars, varSummary{v.Name, v.Type, v.Init.String(), v.Visibility, v.Bindable, v.Static, v.Const})
	}
	wantVars := []varSummary{
		{Name: "count", Type: "Number", Init: "0", Visibility: "public", Bindable: true},
		{Name: "items", Type: "Vector.<Vector.<String>>", Init: "new Vector.<Vector.<String>>()", Visibility: "private", Bindable: true, Static: true},
		{Name: "plain", Type: "String"},
		{Name: "MAX", Type: "int", Init: "10", Const: true},
	}
	if diff := cmp.Diff(wantVars, vars); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}

	fns := prog.Functions()
	if len(fns) != 3 {
		t.Fatalf("got %d functions, want 3", len(fns))
	}

	type paramSummary struct {
		Name, Type, Default string
		Rest                bool
	}
	var params []paramSummary
	for _, p := range fns[0].Params {
		params = append(params, paramSummary{p.Name, p.Type, p.Default.String(), p.Rest})
	}
	wantParams := []paramSummary{
		{Name: "event", Type: "MouseEvent"},
		{Name: "label", Type: "String", Default: `"ok"`},
		{Name: "rest", Rest: true},
	}
	if diff := cmp.Diff(wantParams, params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if fns[0].ReturnType != "void" || fns[0].Visibility != "private" {
		t.Errorf("handleClick return type %q visibility %q", fns[0].ReturnType, fns[0].Visibility)
	}

	if fns[1].Accessor != "get" || fns[1].Name != "total" || fns[2].Accessor != "set" {
		t.Errorf("accessors parsed as %q %q / %q %q", fns[1].Accessor, fns[1].Name, fns[2].Accessor, fns[2].Name)
	}
}

func TestMatchBrace(t *testing.T) {
	tokens, _ := Tokenize(`{ a { b } "}" /* } */ }`, diag.Pos{})
	// {0 a1 {2 b3 }4 "}"5 comment6 }7 EOF8

	tests := []struct {
		open   int
		want   int
		wantOK bool
	}{
		{open: 0, want: 7, wantOK: true},
		{open: 2, want: 4, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("open %d", tt.open), func(t *testing.T) {
			got, ok := MatchBrace(tokens, tt.open)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("MatchBrace(%d) = %d, %v; want %d, %v", tt.open, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	unclosed, _ := Tokenize("{ a { b }", diag.Pos{})
	if _, ok := MatchBrace(unclosed, 0); ok {
		t.Errorf("MatchBrace on unclosed block reported ok")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		structural int
		unsupport  int
		functions  int
		firstPos   diag.Pos
	}{
		{
			name:       "missing identifiers are reported and parsing continues",
			input:      "function f() {\n  var ;\n  x();\n  var 1;\n}\nfunction g() {}",
			structural: 2,
			functions:  2,
			firstPos:   diag.Pos{Line: 2, Column: 7},
		},
		{
			name:       "unmatched open brace",
			input:      "function f() {\n  if (a) { x(); }\n",
			structural: 1,
			functions:  1,
			firstPos:   diag.Pos{Line: 1, Column: 14},
		},
		{
			name:       "unmatched close brace",
			input:      "var a = 1;\n}\nfunction f() {}",
			structural: 1,
			functions:  1,
			firstPos:   diag.Pos{Line: 2, Column: 1},
		},
		{
			name:       "unmatched paren",
			input:      "function f() { g(1, 2; }",
			structural: 1,
			functions:  1,
			firstPos:   diag.Pos{Line: 1, Column: 17},
		},
		{
			name:       "else without if",
			input:      "function f() { else { x(); } }",
			structural: 1,
			functions:  1,
			firstPos:   diag.Pos{Line: 1, Column: 16},
		},
		{
			name:      "switch is unsupported",
			input:     "function f() {\n  switch (x) { case 1: break; }\n  y();\n}",
			unsupport: 1,
			functions: 1,
			firstPos:  diag.Pos{Line: 2, Column: 3},
		},
		{
			name:      "top-level statement is unsupported",
			input:     "trace(1);\nfunction f() {}",
			unsupport: 1,
			functions: 1,
			firstPos:  diag.Pos{Line: 1, Column: 1},
		},
		{
			name:       "function without body",
			input:      "function f();\nfunction g() {}",
			structural: 1,
			functions:  1,
			firstPos:   diag.Pos{Line: 1, Column: 13},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, errs := parse(t, tt.input)
			if got := errs.Count(diag.StructuralError); got != tt.structural {
				t.Errorf("got %d structural errors, want %d:\n%s", got, tt.structural, errs)
			}
			if got := errs.Count(diag.UnsupportedConstructError); got != tt.unsupport {
				t.Errorf("got %d unsupported errors, want %d:\n%s", got, tt.unsupport, errs)
			}
			if got := len(prog.Functions()); got != tt.functions {
				t.Errorf("got %d functions, want %d", got, tt.functions)
			}
			if len(errs) > 0 {
				first := errs[0]
				if got := (diag.Pos{Line: first.Line, Column: first.Column}); got != tt.firstPos {
					t.Errorf("first error %q at %s, want %s", first.Message, got, tt.firstPos)
				}
			}
		})
	}
}

func TestParseSwitchRecovery(t *testing.T) {
	prog, _ := parse(t, "function f() {\n  switch (x) { case 1: break; }\n  y();\n}")
	if diff := cmp.Diff([]string{"expr y()"}, outline(prog.Functions()[0].Body)); diff != "" {
		t.Errorf("statements after unsupported switch mismatch (-want +got):\n%s", diff)
	}
}
