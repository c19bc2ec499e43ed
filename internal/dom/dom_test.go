package dom

import (
	"strings"
	"testing"
)

const pageHTML = `<!DOCTYPE html>
<html><head><title>t</title></head><body>
<div data-live id="first"><span>one</span></div>
<section><p data-live id="second">two</p></section>
<input data-field="user.name" value="ada">
</body></html>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestQueryByAttrDocumentOrder(t *testing.T) {
	doc := mustParse(t, pageHTML)

	els := doc.QueryByAttr("data-live")
	if len(els) != 2 {
		t.Fatalf("QueryByAttr returned %d elements, want 2", len(els))
	}
	for i, wantID := range []string{"first", "second"} {
		if id, _ := els[i].Attr("id"); id != wantID {
			t.Errorf("element %d id = %q, want %q", i, id, wantID)
		}
	}
}

func TestQueryReturnsStableIdentity(t *testing.T) {
	doc := mustParse(t, pageHTML)

	a := doc.QueryByAttr("data-live")
	b := doc.QueryByAttr("data-live")
	if a[0] != b[0] {
		t.Error("re-query returned a different *Element for the same node")
	}
}

func TestAttrRoundTrip(t *testing.T) {
	doc := mustParse(t, pageHTML)
	el := doc.QueryByAttrValue("id", "first")
	if el == nil {
		t.Fatal("element not found")
	}

	if _, ok := el.Attr("data-template"); ok {
		t.Error("attribute should be absent before SetAttr")
	}
	el.SetAttr("data-template", "<b>${x}</b>")
	if v, ok := el.Attr("data-template"); !ok || v != "<b>${x}</b>" {
		t.Errorf("attr after SetAttr = %q, %v", v, ok)
	}
	el.SetAttr("data-template", "changed")
	if v, _ := el.Attr("data-template"); v != "changed" {
		t.Errorf("attr after second SetAttr = %q, want changed", v)
	}
	el.RemoveAttr("data-template")
	if _, ok := el.Attr("data-template"); ok {
		t.Error("attribute still present after RemoveAttr")
	}
}

func TestInnerHTML(t *testing.T) {
	doc := mustParse(t, pageHTML)
	el := doc.QueryByAttrValue("id", "first")

	if got := el.InnerHTML(); got != "<span>one</span>" {
		t.Errorf("InnerHTML = %q, want %q", got, "<span>one</span>")
	}

	if err := el.SetInnerHTML("<em>x</em><em>y</em>"); err != nil {
		t.Fatalf("SetInnerHTML failed: %v", err)
	}
	if got := el.InnerHTML(); got != "<em>x</em><em>y</em>" {
		t.Errorf("InnerHTML after replace = %q", got)
	}
}

func TestSetInnerHTMLForgetsRemovedElements(t *testing.T) {
	doc := mustParse(t, `<div id="parent"><span id="inner">x</span></div>`)
	parent := doc.QueryByAttrValue("id", "parent")
	if doc.QueryByAttrValue("id", "inner") == nil {
		t.Fatal("inner element should be found before replacement")
	}

	if err := parent.SetInnerHTML("<b>new</b>"); err != nil {
		t.Fatalf("SetInnerHTML failed: %v", err)
	}
	if doc.QueryByAttrValue("id", "inner") != nil {
		t.Error("removed element still reachable by query")
	}
}

func TestOuterHTML(t *testing.T) {
	doc := mustParse(t, `<p id="x">hi</p>`)
	el := doc.QueryByAttrValue("id", "x")
	if got := el.OuterHTML(); got != `<p id="x">hi</p>` {
		t.Errorf("OuterHTML = %q", got)
	}
}

func TestRenderWholeDocument(t *testing.T) {
	doc := mustParse(t, pageHTML)
	out := doc.Render()
	for _, want := range []string{"<!DOCTYPE html>", "<title>t</title>", `id="first"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Render output missing %q", want)
		}
	}
}

func TestInputValue(t *testing.T) {
	doc := mustParse(t, pageHTML)
	input := doc.QueryByAttr("data-field")[0]

	if got := input.Value(); got != "ada" {
		t.Errorf("Value = %q, want ada", got)
	}
	input.SetValue("grace")
	if got := input.Value(); got != "grace" {
		t.Errorf("Value after SetValue = %q, want grace", got)
	}
}

func TestCheckboxValue(t *testing.T) {
	doc := mustParse(t, `<input type="checkbox" id="c">`)
	box := doc.QueryByAttrValue("id", "c")

	if got := box.Value(); got != "false" {
		t.Errorf("unchecked Value = %q, want false", got)
	}
	box.SetValue("true")
	if got := box.Value(); got != "true" {
		t.Errorf("checked Value = %q, want true", got)
	}
	box.SetValue("false")
	if got := box.Value(); got != "false" {
		t.Errorf("re-unchecked Value = %q, want false", got)
	}
}

func TestTextareaValue(t *testing.T) {
	doc := mustParse(t, `<textarea id="t">hello</textarea>`)
	area := doc.QueryByAttrValue("id", "t")

	if got := area.Value(); got != "hello" {
		t.Errorf("Value = %q, want hello", got)
	}
	area.SetValue("rewritten")
	if got := area.Value(); got != "rewritten" {
		t.Errorf("Value after SetValue = %q, want rewritten", got)
	}
}

func TestSelectValue(t *testing.T) {
	doc := mustParse(t, `<select id="s">
<option value="a">A</option>
<option value="b" selected>B</option>
</select>`)
	sel := doc.QueryByAttrValue("id", "s")

	if got := sel.Value(); got != "b" {
		t.Errorf("Value = %q, want b", got)
	}
	sel.SetValue("a")
	if got := sel.Value(); got != "a" {
		t.Errorf("Value after SetValue = %q, want a", got)
	}
}

func TestSelectWithoutSelectionUsesFirstOption(t *testing.T) {
	doc := mustParse(t, `<select id="s"><option value="x">X</option><option value="y">Y</option></select>`)
	sel := doc.QueryByAttrValue("id", "s")
	if got := sel.Value(); got != "x" {
		t.Errorf("Value = %q, want x", got)
	}
}

func TestDispatchRunsHandlersInOrder(t *testing.T) {
	doc := mustParse(t, pageHTML)
	input := doc.QueryByAttr("data-field")[0]

	var order []string
	input.On("change", func() { order = append(order, "first") })
	detach := input.On("change", func() { order = append(order, "second") })

	input.Dispatch("change")
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("dispatch order = %v", order)
	}

	detach()
	input.Dispatch("change")
	if len(order) != 3 || order[2] != "first" {
		t.Errorf("after detach, order = %v", order)
	}
}

func TestDispatchUnknownEventIsNoop(t *testing.T) {
	doc := mustParse(t, pageHTML)
	input := doc.QueryByAttr("data-field")[0]
	input.Dispatch("keyup")
}
