package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Value reads the element's displayed value the way a browser exposes
// it: the value attribute for inputs, "true"/"false" for checkboxes and
// radios, the text content for textareas, and the selected option's
// value for selects. Other elements read as their text content.
func (e *Element) Value() string {
	switch e.node.Data {
	case "input":
		if e.isCheckable() {
			if _, checked := e.Attr("checked"); checked {
				return "true"
			}
			return "false"
		}
		v, _ := e.Attr("value")
		return v
	case "textarea":
		return e.textContent()
	case "select":
		return e.selectedOptionValue()
	default:
		return e.textContent()
	}
}

// SetValue writes the displayed value, mirroring Value's conventions.
// For selects the option whose value matches becomes selected; a value
// no option carries clears the selection.
func (e *Element) SetValue(value string) {
	switch e.node.Data {
	case "input":
		if e.isCheckable() {
			if value == "true" {
				e.SetAttr("checked", "")
			} else {
				e.RemoveAttr("checked")
			}
			return
		}
		e.SetAttr("value", value)
	case "textarea":
		e.setTextContent(value)
	case "select":
		e.selectOption(value)
	default:
		e.setTextContent(value)
	}
}

func (e *Element) isCheckable() bool {
	typ, _ := e.Attr("type")
	return typ == "checkbox" || typ == "radio"
}

func (e *Element) textContent() string {
	var sb strings.Builder
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(e.node)
	return sb.String()
}

func (e *Element) setTextContent(value string) {
	e.removeChildren()
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: value})
}

func (e *Element) selectedOptionValue() string {
	var first, selected *html.Node
	walk(e.node, func(n *html.Node) {
		if n.Data != "option" {
			return
		}
		if first == nil {
			first = n
		}
		if selected == nil {
			if _, ok := nodeAttr(n, "selected"); ok {
				selected = n
			}
		}
	})
	option := selected
	if option == nil {
		option = first
	}
	if option == nil {
		return ""
	}
	return optionValue(option, e.doc)
}

func (e *Element) selectOption(value string) {
	walk(e.node, func(n *html.Node) {
		if n.Data != "option" {
			return
		}
		if optionValue(n, e.doc) == value {
			e.doc.element(n).SetAttr("selected", "")
		} else {
			e.doc.element(n).RemoveAttr("selected")
		}
	})
}

// optionValue is the option's value attribute, or its text when the
// attribute is absent, matching browser behavior.
func optionValue(n *html.Node, d *Document) string {
	if v, ok := nodeAttr(n, "value"); ok {
		return v
	}
	return d.element(n).textContent()
}
