package component

import (
	"strings"

	"github.com/recera/mxc/internal/diag"
	"github.com/recera/mxc/internal/markup"
)

// languageTags are compiler directives under the language namespaces; they never
// become components
var languageTags = map[string]bool{
	"Script":       true,
	"Style":        true,
	"Declarations": true,
	"Metadata":     true,
	"Binding":      true,
}

// Options configures tree construction
type Options struct {
	Events EventSet
	// Namespaces whose Script/Style/Declarations/Metadata/Binding children are
	// directives rather than components
	Namespaces []string
}

// DefaultOptions uses the built-in event vocabulary and the default markup namespaces
func DefaultOptions() Options {
	return Options{
		Events:     DefaultEvents(),
		Namespaces: markup.DefaultOptions().Namespaces(),
	}
}

type builder struct {
	opts      Options
	languages map[string]bool
	errors    diag.List
}

// Build derives the component tree from doc. It returns nil when the document has
// no root element.
func Build(doc *markup.Document, opts Options) (*Node, diag.List) {
	if opts.Events == nil {
		opts.Events = DefaultEvents()
	}
	b := &builder{opts: opts, languages: make(map[string]bool)}
	for _, ns := range opts.Namespaces {
		b.languages[ns] = true
	}

	if doc == nil || doc.Root == nil {
		return nil, nil
	}
	return b.node(doc.Root), b.errors
}

func (b *builder) node(el *markup.Element) *Node {
	n := &Node{Type: el.Name.Local, Namespace: el.Name.Space}

	for _, a := range el.Attrs {
		if a.IsNamespaceDecl() {
			continue
		}
		name := a.Name.String()
		pos := diag.Pos{Line: a.Line, Column: a.Column}

		if b.opts.Events.Has(name) {
			handler := strings.TrimSpace(a.Value)
			if handler == "" {
				b.errors.Notef(diag.UnsupportedConstructError, pos, "event %q on <%s> has an empty handler", name, el.Name)
			}
			n.Events = append(n.Events, Event{Name: name, Handler: handler, Pos: pos})
			continue
		}
		n.Props = append(n.Props, b.prop(name, a.Value, pos))
	}

	var text []string
	var textPos diag.Pos
	for _, child := range el.Children {
		switch c := child.(type) {
		case *markup.Element:
			if b.isDirective(c) {
				continue
			}
			n.Children = append(n.Children, b.node(c))
		case *markup.Text:
			if t := strings.TrimSpace(c.Data); t != "" {
				if len(text) == 0 {
					textPos = c.Pos()
				}
				text = append(text, t)
			}
		}
	}
	if len(text) > 0 {
		p := b.prop("text", strings.Join(text, " "), textPos)
		n.Text = &p
	}
	return n
}

func (b *builder) isDirective(el *markup.Element) bool {
	return languageTags[el.Name.Local] && b.languages[el.Name.Space]
}

func (b *builder) prop(name, value string, pos diag.Pos) Prop {
	sources, literal, open := splitBindings(value)
	if open >= 0 {
		b.errors.Notef(diag.UnsupportedConstructError, pos, "unclosed '{' in %q is kept as literal text", name)
	}
	if len(sources) == 0 {
		return Prop{Name: name, Value: literal}
	}

	p := Prop{Name: name, Value: value, Dynamic: true}
	for _, src := range sources {
		binding, err := parseBinding(src)
		if err != nil {
			b.errors.Notef(diag.UnsupportedConstructError, pos,
				"binding {%s} in %q is passed to the runtime unanalysed: %v", src, name, err)
		}
		p.Bindings = append(p.Bindings, binding)
	}
	return p
}
