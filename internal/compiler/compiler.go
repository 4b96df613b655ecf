// Package compiler runs the markup parser, the script parser and the code generator
// over whole documents and writes the resulting modules.
package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/recera/mxc/internal/cache"
	"github.com/recera/mxc/internal/codegen"
	"github.com/recera/mxc/internal/component"
	"github.com/recera/mxc/internal/diag"
	"github.com/recera/mxc/internal/markup"
	"github.com/recera/mxc/internal/script"
)

// Version is part of every cache key
const Version = "0.3.0"

// ErrUnusable is returned when writing a result that has StructuralErrors
var ErrUnusable = errors.New("output is unusable because the document has structural errors")

// Options configures a compile
type Options struct {
	Markup    markup.Options
	Component component.Options
	// Codegen.ClassName overrides the class name derived from the file name
	Codegen codegen.Options

	// Workers bounds CompileAll; <= 0 means runtime.NumCPU
	Workers int
	// Cache, when set, is consulted by CompileFile and CompileAll
	Cache *cache.Cache
	// Fingerprint identifies the configuration in cache keys
	Fingerprint string
}

// DefaultOptions returns options with the built-in vocabulary and namespaces
func DefaultOptions() Options {
	return Options{
		Markup:    markup.DefaultOptions(),
		Component: component.DefaultOptions(),
		Codegen:   codegen.Options{Globals: codegen.DefaultGlobals},
	}
}

// Result is the outcome of compiling one document. Document, Tree and Program are nil
// when the result came from the cache.
type Result struct {
	File      string
	ClassName string

	Document *markup.Document
	Tree     *component.Node
	Program  *script.Program
	Output   *codegen.GeneratedSource

	// Module is the complete ES module: tree export, class and default export
	Module string
	// TreeJSON is the component tree literal
	TreeJSON string
	// Style is the raw text of the style block
	Style string

	Diagnostics diag.List
	Cached      bool
}

// Usable reports whether the result may be written
func (r *Result) Usable() bool {
	return r.Module != "" && !r.Diagnostics.HasStructural()
}

// Compile compiles one document held in memory. name is used for diagnostics and to
// derive the class name.
func Compile(name, src string, opts Options) *Result {
	r := &Result{File: name, ClassName: opts.Codegen.ClassName}
	if r.ClassName == "" {
		r.ClassName = ClassName(name)
	}
	defer func() { r.Diagnostics = r.Diagnostics.WithFile(name) }()

	doc, errs := markup.Parse(src, opts.Markup)
	r.Document = doc
	r.Diagnostics.Append(errs)
	if doc == nil || doc.Root == nil {
		return r
	}
	if doc.Style != nil {
		r.Style = doc.Style.Text
	}

	tree, errs := component.Build(doc, opts.Component)
	r.Tree = tree
	r.Diagnostics.Append(errs)

	prog := &script.Program{}
	if doc.Script != nil {
		tokens, errs := script.Tokenize(doc.Script.Text, doc.Script.Pos())
		r.Diagnostics.Append(errs)
		if errs.HasStructural() {
			// an unterminated literal leaves no trustworthy token boundaries
			return r
		}
		var perrs diag.List
		prog, perrs = script.ParseProgram(tokens)
		r.Diagnostics.Append(perrs)
	}
	r.Program = prog

	if r.Diagnostics.HasStructural() {
		return r
	}

	cg := opts.Codegen
	cg.ClassName = r.ClassName
	out, errs := codegen.Generate(tree, prog, cg)
	r.Diagnostics.Append(errs)
	if r.Diagnostics.HasStructural() {
		return r
	}

	r.Output = out
	r.TreeJSON = out.TreeLiteral
	r.Module = Module(name, out)
	return r
}

// CompileFile reads and compiles path, consulting opts.Cache when set
func CompileFile(path string, opts Options) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var key string
	if opts.Cache != nil {
		key = cacheKey(path, string(src), opts)
		if r, ok := fromCache(opts.Cache, key, path); ok {
			return r, nil
		}
	}

	r := Compile(path, string(src), opts)
	if opts.Cache != nil && r.Usable() {
		if err := toCache(opts.Cache, key, r); err != nil {
			log.Printf("⚠️  Failed to cache %s: %v", path, err)
		}
	}
	return r, nil
}

// Module assembles the ES module for one document
func Module(source string, out *codegen.GeneratedSource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by mxc from %s. DO NOT EDIT.\n\n", filepath.Base(source))
	b.WriteString("export const tree = ")
	b.WriteString(out.TreeLiteral)
	b.WriteString(";\n\n")
	b.WriteString(out.ClassSource)
	b.WriteString("\nexport default ")
	b.WriteString(out.ClassName)
	b.WriteString(";\n")
	return b.String()
}

// Outputs names the files WriteOutputs produces for a document
type Outputs struct {
	Module string
	Tree   string
	Style  string // empty when the document has no style block
}

// OutputPaths returns where the outputs of source are written under outDir. rel is the
// source path relative to the source root, so directory structure is preserved.
func OutputPaths(outDir, rel string) Outputs {
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	base = filepath.Join(outDir, base)
	return Outputs{
		Module: base + ".js",
		Tree:   base + ".tree.json",
		Style:  base + ".css",
	}
}

// WriteOutputs writes the module, the tree JSON and the style sheet of r. It refuses
// to write anything when r is not usable.
func WriteOutputs(r *Result, outDir, rel string) (Outputs, error) {
	if !r.Usable() {
		return Outputs{}, fmt.Errorf("%s: %w", r.File, ErrUnusable)
	}

	paths := OutputPaths(outDir, rel)
	if err := os.MkdirAll(filepath.Dir(paths.Module), 0755); err != nil {
		return Outputs{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(paths.Module, []byte(r.Module), 0644); err != nil {
		return Outputs{}, fmt.Errorf("failed to write module: %w", err)
	}
	if err := os.WriteFile(paths.Tree, []byte(r.TreeJSON+"\n"), 0644); err != nil {
		return Outputs{}, fmt.Errorf("failed to write tree: %w", err)
	}

	if strings.TrimSpace(r.Style) == "" {
		paths.Style = ""
		return paths, nil
	}
	if err := os.WriteFile(paths.Style, []byte(strings.TrimSpace(r.Style)+"\n"), 0644); err != nil {
		return Outputs{}, fmt.Errorf("failed to write style sheet: %w", err)
	}
	return paths, nil
}

// ClassName derives a class name from a document path: Main.mxml gives Main,
// user-list.mxml gives UserList.
func ClassName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	upper := true
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$':
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		default:
			upper = true
		}
	}

	name := b.String()
	if name == "" {
		return "Component"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	return name
}

type cachedResult struct {
	ClassName   string    `json:"class"`
	Module      string    `json:"module"`
	Tree        string    `json:"tree"`
	Style       string    `json:"style,omitempty"`
	Diagnostics diag.List `json:"diagnostics,omitempty"`
}

func cacheKey(path, src string, opts Options) string {
	return cache.Key(Version, opts.Fingerprint, opts.Codegen.ClassName, filepath.ToSlash(path), src)
}

func fromCache(c *cache.Cache, key, path string) (*Result, bool) {
	data, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		c.Delete(key)
		return nil, false
	}
	return &Result{
		File:        path,
		ClassName:   cached.ClassName,
		Module:      cached.Module,
		TreeJSON:    cached.Tree,
		Style:       cached.Style,
		Diagnostics: cached.Diagnostics.WithFile(path),
		Cached:      true,
	}, true
}

func toCache(c *cache.Cache, key string, r *Result) error {
	data, err := json.Marshal(cachedResult{
		ClassName:   r.ClassName,
		Module:      r.Module,
		Tree:        r.TreeJSON,
		Style:       r.Style,
		Diagnostics: r.Diagnostics,
	})
	if err != nil {
		return err
	}
	return c.Put(key, data, r.File)
}
