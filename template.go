package reactive

import (
	"github.com/vidasaras/reactive/internal/directive"
)

// Template is a compiled directive template. Engines compile templates
// automatically when they scan a document; compiling one directly is
// useful for rendering markup outside a managed document, for example
// from a CLI or a test.
//
// Compilation never fails: malformed directive markers degrade to
// literal text and are reported through Diagnostics. A Template is
// immutable and safe for concurrent use.
type Template struct {
	inner *directive.Template
}

// Compile parses the directive markers in src.
//
// The marker grammar is ${path} for substitution,
// ${if:path}...${else}...${endif} for conditionals, and
// ${loop:path}...${endloop} for iteration, nesting freely. Inside a
// loop body, item refers to the current element and item.field reaches
// into it.
func Compile(src string) *Template {
	return &Template{inner: directive.Compile(src)}
}

// Render substitutes state into the template and returns the markup.
// Missing paths render as empty text; rendering never fails.
func (t *Template) Render(state map[string]any) string {
	return t.inner.Render(state)
}

// Source returns the exact text the template was compiled from.
func (t *Template) Source() string {
	return t.inner.Source()
}

// Paths returns the state paths the template references, sorted and
// without duplicates. Loop-item paths resolve per element and are not
// included.
func (t *Template) Paths() []string {
	return t.inner.Paths()
}

// Diagnostics describes every marker that degraded to literal text
// during compilation, in source order.
func (t *Template) Diagnostics() []string {
	return t.inner.Diagnostics()
}

// ValidStatePath reports whether s is a well-formed dotted state path.
func ValidStatePath(s string) bool {
	return directive.ValidPath(s)
}
