// Package directive compiles `${...}` markers embedded in markup into a
// node tree and renders that tree against a state tree.
//
// The grammar has three directive kinds:
//
//	${PATH}                         value substitution
//	${if:PATH} ... ${else} ... ${endif}   conditional span
//	${loop:PATH} ... ${endloop}     repeated span, body sees ${item.FIELD}
//
// Directives nest to arbitrary depth. Compilation never fails: markers
// that do not parse (unknown path characters, unterminated spans, stray
// closers) degrade to literal text and are reported through
// Diagnostics. Rendering never fails either; unresolvable paths render
// as empty output.
package directive

import (
	"sort"
	"strings"

	"github.com/vidasaras/reactive/internal/statetree"
)

const itemPrefix = "item"

// Template is a compiled directive tree. Compile once, render many
// times; a Template is immutable and safe for concurrent Render calls.
type Template struct {
	src   string
	nodes []node
	diags []string
}

// Compile tokenizes src into a directive tree. It always returns a
// usable Template; malformed spans survive as literal text and are
// listed in Diagnostics.
func Compile(src string) *Template {
	p := parser{src: src}
	nodes := p.run()
	return &Template{src: src, nodes: nodes, diags: p.diags}
}

// Source returns the text the template was compiled from.
func (t *Template) Source() string {
	return t.src
}

// Diagnostics lists the degradations recorded during compilation, one
// message per marker that fell back to literal text.
func (t *Template) Diagnostics() []string {
	return t.diags
}

// Render substitutes directives against root and returns the resulting
// text. Conditional and loop spans are resolved structurally before the
// value directives inside them, so a value inside a dropped branch never
// renders.
func (t *Template) Render(root map[string]any) string {
	var sb strings.Builder
	sc := scope{root: root}
	for _, n := range t.nodes {
		n.render(&sb, sc)
	}
	return sb.String()
}

// Paths returns the sorted set of state paths the template reads,
// excluding item-scoped references inside loop bodies. Loop sources and
// conditional tests count as reads.
func (t *Template) Paths() []string {
	seen := make(map[string]bool)
	var walk func(nodes []node)
	walk = func(nodes []node) {
		for _, n := range nodes {
			switch v := n.(type) {
			case *valueNode:
				if !itemScoped(v.path) {
					seen[v.path] = true
				}
			case *condNode:
				if !itemScoped(v.path) {
					seen[v.path] = true
				}
				walk(v.then)
				walk(v.els)
			case *loopNode:
				if !itemScoped(v.path) {
					seen[v.path] = true
				}
				walk(v.body)
			}
		}
	}
	walk(t.nodes)

	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func itemScoped(path string) bool {
	return path == itemPrefix || strings.HasPrefix(path, itemPrefix+".")
}

// scope is the resolution context for one render position. Inside a
// loop body, item holds the current sequence element and shadows any
// outer loop's item.
type scope struct {
	root    map[string]any
	item    any
	hasItem bool
}

func (sc scope) resolve(path string) (any, bool) {
	if sc.hasItem {
		if path == itemPrefix {
			return sc.item, true
		}
		if rest, ok := strings.CutPrefix(path, itemPrefix+"."); ok {
			m, ok := sc.item.(map[string]any)
			if !ok {
				return nil, false
			}
			return statetree.Resolve(m, rest)
		}
	}
	return statetree.Resolve(sc.root, path)
}

type node interface {
	render(sb *strings.Builder, sc scope)
}

type textNode struct {
	text string
}

func (n *textNode) render(sb *strings.Builder, _ scope) {
	sb.WriteString(n.text)
}

type valueNode struct {
	path string
}

func (n *valueNode) render(sb *strings.Builder, sc scope) {
	value, _ := sc.resolve(n.path)
	sb.WriteString(statetree.Text(value))
}

type condNode struct {
	path string
	then []node
	els  []node
}

func (n *condNode) render(sb *strings.Builder, sc scope) {
	value, _ := sc.resolve(n.path)
	branch := n.els
	if statetree.Truthy(value) {
		branch = n.then
	}
	for _, child := range branch {
		child.render(sb, sc)
	}
}

type loopNode struct {
	path string
	body []node
}

func (n *loopNode) render(sb *strings.Builder, sc scope) {
	value, _ := sc.resolve(n.path)
	seq, ok := value.([]any)
	if !ok {
		return
	}
	for _, elem := range seq {
		child := scope{root: sc.root, item: elem, hasItem: true}
		for _, bodyNode := range n.body {
			bodyNode.render(sb, child)
		}
	}
}

// ValidPath reports whether path is a well-formed dotted state path:
// dot-separated segments of letters, digits, underscores, and hyphens.
func ValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return false
		}
		for _, r := range segment {
			switch {
			case r >= 'a' && r <= 'z':
			case r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
			case r == '_' || r == '-':
			default:
				return false
			}
		}
	}
	return true
}
