package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/recera/mxc/internal/component"
	"github.com/recera/mxc/internal/diag"
	"github.com/recera/mxc/internal/markup"
	"github.com/recera/mxc/internal/script"
)

func parseScript(t *testing.T, src string) *script.Program {
	t.Helper()
	tokens, errs := script.Tokenize(src, diag.Pos{})
	prog, perrs := script.ParseProgram(tokens)
	errs.Append(perrs)
	if errs.HasErrors() {
		t.Fatalf("script errors:\n%s", errs)
	}
	return prog
}

func generate(t *testing.T, src string, opts Options) (*GeneratedSource, diag.List) {
	t.Helper()
	return Generate(nil, parseScript(t, src), opts)
}

// bodyLines returns the trimmed lines of the named method
func bodyLines(t *testing.T, out *GeneratedSource, name string) []string {
	t.Helper()
	for _, m := range out.Methods {
		if m.Name == name {
			var lines []string
			for _, l := range strings.Split(strings.TrimRight(m.Source, "\n"), "\n") {
				lines = append(lines, strings.TrimSpace(l))
			}
			return lines
		}
	}
	t.Fatalf("method %s not generated", name)
	return nil
}

func TestGenerateEndToEnd(t *testing.T) {
	src := `<s:Application xmlns:fx="http://ns.adobe.com/mxml/2009" xmlns:s="library://ns.adobe.com/flex/spark">
  <fx:Script><![CDATA[
    [Bindable] var count:Number = 0;
    private function handleClick():void { count = count + 1; }
  ]]></fx:Script>
  <s:Button click="handleClick()" />
</s:Application>`

	doc, errs := markup.Parse(src, markup.DefaultOptions())
	if errs.HasErrors() {
		t.Fatalf("markup errors:\n%s", errs)
	}
	tree, errs := component.Build(doc, component.DefaultOptions())
	if len(errs) > 0 {
		t.Fatalf("component errors:\n%s", errs)
	}
	tokens, errs := script.Tokenize(doc.Script.Text, doc.Script.Pos())
	if len(errs) > 0 {
		t.Fatalf("tokenize errors:\n%s", errs)
	}
	prog, errs := script.ParseProgram(tokens)
	if len(errs) > 0 {
		t.Fatalf("parse errors:\n%s", errs)
	}

	out, errs := Generate(tree, prog, Options{ClassName: "Main"})
	if len(errs) > 0 {
		t.Fatalf("unexpected diagnostics:\n%s", errs)
	}

	if h, ok := tree.Children[0].Event("click"); !ok || h != "handleClick()" {
		t.Errorf("click event = %q, %v", h, ok)
	}
	if !strings.Contains(out.TreeLiteral, `"handler": "handleClick()"`) {
		t.Errorf("tree literal does not carry the click handler:\n%s", out.TreeLiteral)
	}

	want := `class Main {
  constructor() {
    this.count = 0;
  }

  handleClick() {
    this.count = this.count + 1;
  }
}
Main.bindable = ["count"];
`
	if diff := cmp.Diff(want, out.ClassSource); diff != "" {
		t.Errorf("class source mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"count"}, out.Bindable); diff != "" {
		t.Errorf("bindable mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateElsePreservation(t *testing.T) {
	out, _ := generate(t, `
var selectedProduct:Object;
function saveProduct() {
  if (selectedProduct != null) { a(); } else { b(); }
}`, Options{})

	want := []string{
		"saveProduct() {",
		"if (this.selectedProduct != null) {",
		"a();",
		"} else {",
		"b();",
		"}",
		"}",
	}
	if diff := cmp.Diff(want, bodyLines(t, out, "saveProduct")); diff != "" {
		t.Errorf("saveProduct mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateBraceBalance(t *testing.T) {
	src := `
var items:Array;
var total:int;
function a() {
  if (x) { one(); } else if (y) { two(); } else if (z) { three(); } else { four(); }
}
function b() {
  for (var i:int = 0; i < items.length; i++) {
    if (items[i] == null) continue;
    while (total < 10) { total++; if (total == 5) { break; } else total--; }
  }
  do { total--; } while (total > 0);
  { var inner = "} else { }"; }
}
function c() {
  if (p) if (q) r(); else s();
  for each (var v in items) if (v) { total += v; }
}
function d() {
  outer: for (var i:int = 0; i < 3; i++) { if (i) { total++; } else { break outer; } }
  done: { total = 0; }
}`
	prog := parseScript(t, src)
	out, _ := Generate(nil, prog, Options{})

	fns := prog.Functions()
	for i, m := range out.Methods {
		t.Run(m.Name, func(t *testing.T) {
			tokens, errs := script.Tokenize(m.Source, diag.Pos{})
			if len(errs) > 0 {
				t.Fatalf("generated source does not tokenize:\n%s", errs)
			}
			var open, close, elses int
			for _, tk := range tokens {
				switch tk.Type {
				case script.TokenLBrace:
					open++
				case script.TokenRBrace:
					close++
				case script.TokenElse:
					elses++
				}
			}

			want := script.CountBlocks(fns[i].Body)
			if open != want || close != want || m.Blocks != want {
				t.Errorf("braces {=%d }=%d Blocks=%d, want %d\n%s", open, close, m.Blocks, want, m.Source)
			}
			if got := countElses(fns[i].Body); elses != got {
				t.Errorf("emitted %d else keywords, AST has %d arms\n%s", elses, got, m.Source)
			}
		})
	}
}

func countElses(b *script.Block) int {
	if b == nil {
		return 0
	}
	n := 0
	for _, s := range b.Stmts {
		switch s := s.(type) {
		case *script.IfStmt:
			n += len(s.ElseIfs) + countElses(s.Then)
			for _, arm := range s.ElseIfs {
				n += countElses(arm.Body)
			}
			if s.Else != nil {
				n += 1 + countElses(s.Else)
			}
		case *script.LoopStmt:
			n += countElses(s.Body)
		case *script.BlockStmt:
			n += countElses(s.Body)
		case *script.LabeledStmt:
			n += countElses(&script.Block{Stmts: []script.Stmt{s.Body}})
		}
	}
	return n
}

func TestGenerateQualification(t *testing.T) {
	fields := `
var count:int = 0;
var name:String = "x";
var items:Array = [];
var total:Number = 0;
static var MAX:int = 10;
`
	tests := []struct {
		name string
		fn   string
		want []string
	}{
		{
			name: "already qualified reference is left alone",
			fn:   "function f() { this.count = count; }",
			want: []string{"this.count = this.count;"},
		},
		{
			name: "parameter shadows field",
			fn:   "function f(name:String, count:int = 1):void { this.name = name + count; }",
			want: []string{"this.name = name + count;"},
		},
		{
			name: "default value sees earlier parameters only",
			fn:   "function f(a:int = count, count:int = 2) { total = a + count; }",
			want: []string{"this.total = a + count;"},
		},
		{
			name: "var is hoisted to the function scope from its declaration on",
			fn:   "function f() { total = 1; if (count) { var total:int = 2; } total = 3; }",
			want: []string{"this.total = 1;", "if (this.count) {", "var total = 2;", "}", "total = 3;"},
		},
		{
			name: "let is block scoped",
			fn:   "function f() { if (count) { let total = 2; total++; } total = 3; }",
			want: []string{"if (this.count) {", "let total = 2;", "total++;", "}", "this.total = 3;"},
		},
		{
			name: "member names and object keys are not qualified",
			fn:   "function f() { var o = {count: count, name: items.name}; }",
			want: []string{"var o = {count: this.count, name: this.items.name};"},
		},
		{
			name: "loop variables",
			fn:   "function f() { for (var i:int = 0; i < count; i++) { total += items[i]; } }",
			want: []string{"for (var i = 0; i < this.count; i++) {", "this.total += this.items[i];", "}"},
		},
		{
			name: "for each iterates values",
			fn:   "function f() { for each (var item:Object in items) { total += item.price; } }",
			want: []string{"for (var item of Object.values(this.items)) {", "this.total += item.price;", "}"},
		},
		{
			name: "for in over existing field",
			fn:   "function f(o:Object) { for (name in o) { count++; } }",
			want: []string{"for (this.name in o) {", "this.count++;", "}"},
		},
		{
			name: "inline function becomes an arrow with its own parameters",
			fn:   "function f() { items.forEach(function(item:Object, count:int):void { total += item * count; }); }",
			want: []string{"this.items.forEach((item, count) => { this.total += item * count; });"},
		},
		{
			name: "inline function parameter shadows only inside the function",
			fn:   "function f() { count = items.filter(function(count:int):Boolean { return count > 0; }).length + count; }",
			want: []string{"this.count = this.items.filter((count) => { return count > 0; }).length + this.count;"},
		},
		{
			name: "arrow parameter shadows only the arrow body",
			fn:   "function f() { items = items.map(count => count * 2).concat([count]); }",
			want: []string{"this.items = this.items.map(count => count * 2).concat([this.count]);"},
		},
		{
			name: "arrow function parameters",
			fn:   "function f() { items = items.map(x => x * count); }",
			want: []string{"this.items = this.items.map(x => x * this.count);"},
		},
		{
			name: "casts and type tests",
			fn:   "function f(e:Object) { if (e is String) { name = (e as String).toUpperCase(); } }",
			want: []string{"if (e instanceof String) {", "this.name = (e).toUpperCase();", "}"},
		},
		{
			name: "static field",
			fn:   "function f() { if (count > MAX) { count = MAX; } }",
			want: []string{"if (this.count > Component.MAX) {", "this.count = Component.MAX;", "}"},
		},
		{
			name: "strings and literals untouched",
			fn:   `function f() { name = "count " + true + null; }`,
			want: []string{`this.name = "count " + true + null;`},
		},
		{
			name: "vector types become arrays",
			fn:   "function f() { var v:Vector.<int> = new Vector.<int>(); items = v; }",
			want: []string{"var v = new Array();", "this.items = v;"},
		},
		{
			name: "method calls stay bare",
			fn:   "function f() { g(count); }\nfunction g(n:int) {}",
			want: []string{"g(this.count);"},
		},
		{
			name: "labelled loop",
			fn:   "function f() { outer: while (count > 0) { count--; continue outer; } }",
			want: []string{"outer: while (this.count > 0) {", "this.count--;", "continue outer;", "}"},
		},
		{
			name: "do while",
			fn:   "function f() { do { count--; } while (count > 0); }",
			want: []string{"do {", "this.count--;", "} while (this.count > 0);"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errs := generate(t, fields+tt.fn, Options{})
			for _, d := range errs {
				t.Errorf("unexpected diagnostic: %s", d)
			}
			lines := bodyLines(t, out, "f")
			got := lines[1 : len(lines)-1]
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGenerateClassShape(t *testing.T) {
	out, errs := generate(t, `
import mx.controls.Alert;
[Bindable] public var label:String;
[Bindable] private var ready:Boolean;
var count:int;
var ratio:Number;
var data:*;
static var instances:int = 0;

public function get doubled():Number { return count * 2; }
public function set doubled(value:Number):void { count = value / 2; }
public static function create(...args):void { instances++; }
private function notify(msg:String = "done"):void { Alert.show(msg); }
`, Options{ClassName: "Panel"})
	for _, d := range errs {
		t.Errorf("unexpected diagnostic: %s", d)
	}

	want := `class Panel {
  constructor() {
    this.label = null;
    this.ready = false;
    this.count = 0;
    this.ratio = NaN;
    this.data = undefined;
  }

  get doubled() {
    return this.count * 2;
  }

  set doubled(value) {
    this.count = value / 2;
  }

  static create(...args) {
    Panel.instances++;
  }

  notify(msg = "done") {
    Alert.show(msg);
  }
}
Panel.instances = 0;
Panel.bindable = ["label", "ready"];
`
	if diff := cmp.Diff(want, out.ClassSource); diff != "" {
		t.Errorf("class source mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateDiagnostics(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		opts     Options
		wantKind []diag.Kind
		wantMsg  []string
	}{
		{
			name:     "unresolved identifier is reported once per function",
			src:      "var count:int;\nfunction f() {\n  count = mystery + mystery;\n}",
			wantKind: []diag.Kind{diag.ReferenceWarning},
			wantMsg:  []string{`3:11: warning: unresolved identifier "mystery" is emitted unqualified`},
		},
		{
			name:     "configured globals are known",
			src:      "function f() { $app.run(); }",
			opts:     Options{Globals: []string{"$app"}},
			wantKind: nil,
		},
		{
			name:     "wildcard import accepts type names",
			src:      "import mx.collections.*;\nfunction f() { var c = new ArrayCollection(); }",
			wantKind: nil,
		},
		{
			name:     "instance field from static function",
			src:      "var count:int;\nstatic function f() { count++; }",
			wantKind: []diag.Kind{diag.ReferenceWarning},
			wantMsg:  []string{`2:23: warning: instance field "count" is not accessible from a static function`},
		},
		{
			name:     "duplicate declaration",
			src:      "var count:int;\nfunction count() {}",
			wantKind: []diag.Kind{diag.UnsupportedConstructError},
			wantMsg:  []string{"2:1: error: count is already declared at 1:5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := generate(t, tt.src, tt.opts)
			var kinds []diag.Kind
			for _, d := range errs {
				kinds = append(kinds, d.Kind)
			}
			if diff := cmp.Diff(tt.wantKind, kinds); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s\n%s", diff, errs)
			}
			if tt.wantMsg != nil {
				var msgs []string
				for _, d := range errs {
					msgs = append(msgs, d.Error())
				}
				if diff := cmp.Diff(tt.wantMsg, msgs); diff != "" {
					t.Errorf("messages mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestGenerateQualifyMethods(t *testing.T) {
	out, _ := generate(t, "function f() { g(); }\nfunction g() {}", Options{QualifyMethods: true})
	if diff := cmp.Diff([]string{"f() {", "this.g();", "}"}, bodyLines(t, out, "f")); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateEventHandlers(t *testing.T) {
	tree := &component.Node{
		Type: "Application",
		Children: []*component.Node{
			{Type: "Button", Events: []component.Event{{Name: "click", Handler: "save(event)", Pos: diag.Pos{Line: 3, Column: 12}}}},
			{Type: "Button", Events: []component.Event{{Name: "click", Handler: "missing()", Pos: diag.Pos{Line: 4, Column: 12}}}},
			{Type: "List", Events: []component.Event{{Name: "change", Handler: "trace(event.target.selectedItem)"}}},
		},
	}
	_, errs := Generate(tree, parseScript(t, "function save(e:Object) {}"), Options{})

	var msgs []string
	for _, d := range errs {
		msgs = append(msgs, d.Error())
	}
	want := []string{`4:12: warning: event handler for click on <Button> calls undeclared function "missing"`}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestTreeLiteral(t *testing.T) {
	tree := &component.Node{
		Type:  "Label",
		Props: []component.Prop{{Name: "text", Value: "a < b & {c}", Dynamic: true}},
	}
	got, err := TreeLiteral(tree)
	if err != nil {
		t.Fatalf("TreeLiteral: %v", err)
	}
	want := `{
  "type": "Label",
  "props": [
    {
      "name": "text",
      "value": "a < b & {c}",
      "dynamic": true
    }
  ]
}`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("literal mismatch (-want +got):\n%s", diff)
	}

	if got, _ := TreeLiteral(nil); got != "null" {
		t.Errorf("TreeLiteral(nil) = %q", got)
	}
}
