// Package dom gives the engine its narrow view of a host HTML document:
// query elements by attribute, read and replace inner markup, read and
// write form control values, and attach synchronous event handlers.
//
// Documents are parsed and serialized with golang.org/x/net/html. A
// Document is not safe for concurrent use; the owner serializes access.
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Document wraps a parsed HTML tree and hands out stable Element
// identities, so querying the same node twice yields the same *Element
// and handler registrations survive re-queries.
type Document struct {
	root     *html.Node
	elements map[*html.Node]*Element
}

// Element is one element node of a Document together with its attached
// event handlers.
type Element struct {
	node     *html.Node
	doc      *Document
	handlers map[string][]handlerEntry
	nextID   int
}

type handlerEntry struct {
	id int
	fn func()
}

// Parse builds a Document from full or partial HTML markup. The x/net
// parser is forgiving, so malformed markup yields a repaired tree
// rather than an error in almost all cases.
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{
		root:     root,
		elements: make(map[*html.Node]*Element),
	}, nil
}

func (d *Document) element(n *html.Node) *Element {
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{node: n, doc: d}
	d.elements[n] = el
	return el
}

// QueryByAttr returns every element carrying the attribute, in document
// order.
func (d *Document) QueryByAttr(key string) []*Element {
	var out []*Element
	walk(d.root, func(n *html.Node) {
		if _, ok := nodeAttr(n, key); ok {
			out = append(out, d.element(n))
		}
	})
	return out
}

// QueryByAttrValue returns the first element whose attribute equals
// value, or nil.
func (d *Document) QueryByAttrValue(key, value string) *Element {
	var found *html.Node
	walk(d.root, func(n *html.Node) {
		if found != nil {
			return
		}
		if v, ok := nodeAttr(n, key); ok && v == value {
			found = n
		}
	})
	if found == nil {
		return nil
	}
	return d.element(found)
}

// Render serializes the whole document.
func (d *Document) Render() string {
	var sb strings.Builder
	_ = html.Render(&sb, d.root)
	return sb.String()
}

func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, visit)
	}
}

func nodeAttr(n *html.Node, key string) (string, bool) {
	if n.Type != html.ElementNode {
		return "", false
	}
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// Tag returns the element's tag name, lowercased by the parser.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attr returns the attribute value and whether the attribute is present.
func (e *Element) Attr(key string) (string, bool) {
	return nodeAttr(e.node, key)
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(key, value string) {
	for i, attr := range e.node.Attr {
		if attr.Key == key {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr deletes an attribute if present.
func (e *Element) RemoveAttr(key string) {
	for i, attr := range e.node.Attr {
		if attr.Key == key {
			e.node.Attr = append(e.node.Attr[:i], e.node.Attr[i+1:]...)
			return
		}
	}
}

// InnerHTML serializes the element's children.
func (e *Element) InnerHTML() string {
	var sb strings.Builder
	for child := e.node.FirstChild; child != nil; child = child.NextSibling {
		_ = html.Render(&sb, child)
	}
	return sb.String()
}

// SetInnerHTML replaces the element's children with markup parsed in
// the element's own context, so content rules (table rows, option
// lists) apply the way a browser would apply them.
func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.node)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	e.removeChildren()
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

// OuterHTML serializes the element itself.
func (e *Element) OuterHTML() string {
	var sb strings.Builder
	_ = html.Render(&sb, e.node)
	return sb.String()
}

func (e *Element) removeChildren() {
	for child := e.node.FirstChild; child != nil; {
		next := child.NextSibling
		e.node.RemoveChild(child)
		e.doc.forget(child)
		child = next
	}
}

// forget drops cached Element identities for a removed subtree so they
// cannot be resurrected by a later query.
func (d *Document) forget(n *html.Node) {
	delete(d.elements, n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		d.forget(child)
	}
}

// On attaches a handler for the named event and returns a function that
// detaches exactly that handler.
func (e *Element) On(event string, fn func()) func() {
	if e.handlers == nil {
		e.handlers = make(map[string][]handlerEntry)
	}
	e.nextID++
	id := e.nextID
	e.handlers[event] = append(e.handlers[event], handlerEntry{id: id, fn: fn})
	return func() {
		entries := e.handlers[event]
		for i, entry := range entries {
			if entry.id == id {
				e.handlers[event] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Dispatch runs the element's handlers for the event, synchronously and
// in attachment order. Handlers attached or detached during dispatch
// take effect on the next Dispatch.
func (e *Element) Dispatch(event string) {
	entries := e.handlers[event]
	snapshot := make([]handlerEntry, len(entries))
	copy(snapshot, entries)
	for _, entry := range snapshot {
		entry.fn()
	}
}
