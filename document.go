package reactive

import (
	"github.com/vidasaras/reactive/internal/dom"
)

// Document is a parsed HTML document for an Engine to manage. It wraps
// the internal representation so callers stay decoupled from the
// parsing library.
//
// A Document and the handles it returns belong to one goroutine at a
// time; the serve layer gives every connection its own Document.
type Document struct {
	inner *dom.Document
}

// ParseDocument parses full or partial HTML markup into a Document.
func ParseDocument(src string) (*Document, error) {
	inner, err := dom.Parse(src)
	if err != nil {
		return nil, err
	}
	return &Document{inner: inner}, nil
}

// Render serializes the document, reflecting every update applied so
// far.
func (d *Document) Render() string {
	return d.inner.Render()
}

// ElementByID returns the element with the given id attribute, or nil.
func (d *Document) ElementByID(id string) *Element {
	inner := d.inner.QueryByAttrValue("id", id)
	if inner == nil {
		return nil
	}
	return &Element{inner: inner}
}

// QueryByAttr returns the elements carrying the attribute, in document
// order.
func (d *Document) QueryByAttr(key string) []*Element {
	inners := d.inner.QueryByAttr(key)
	out := make([]*Element, len(inners))
	for i, inner := range inners {
		out[i] = &Element{inner: inner}
	}
	return out
}

// Element is a handle to one element of a Document. Handles obtained
// from separate queries may differ as values while still denoting the
// same element.
type Element struct {
	inner *dom.Element
}

// Tag returns the element's tag name.
func (el *Element) Tag() string {
	return el.inner.Tag()
}

// Attr returns an attribute value and whether it is present.
func (el *Element) Attr(key string) (string, bool) {
	return el.inner.Attr(key)
}

// SetAttr sets or replaces an attribute.
func (el *Element) SetAttr(key, value string) {
	el.inner.SetAttr(key, value)
}

// InnerHTML serializes the element's children.
func (el *Element) InnerHTML() string {
	return el.inner.InnerHTML()
}

// OuterHTML serializes the element itself.
func (el *Element) OuterHTML() string {
	return el.inner.OuterHTML()
}

// Value reads the element's displayed value using form-control
// conventions.
func (el *Element) Value() string {
	return el.inner.Value()
}

// SetValue writes the element's displayed value.
func (el *Element) SetValue(value string) {
	el.inner.SetValue(value)
}

// Dispatch synchronously runs the handlers attached for the event, in
// attachment order.
func (el *Element) Dispatch(event string) {
	el.inner.Dispatch(event)
}
