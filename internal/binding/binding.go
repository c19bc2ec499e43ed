// Package binding keeps two-way bound form inputs and the state store
// synchronized without feedback loops.
//
// Each binding ties one input element to one dotted state path and one
// trigger event. The trigger direction writes the displayed value into
// the store; the refresh direction runs after renders and writes the
// store value back into the display, but only when the two differ, so a
// round trip of an unchanged value dies out after a single write.
package binding

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/vidasaras/reactive/internal/dom"
	"github.com/vidasaras/reactive/internal/statetree"
)

// Store is the slice of the state store a binding reconciles against.
// Write is expected to schedule whatever re-render the owner wants; the
// reconciler itself never renders.
type Store interface {
	Resolve(path string) (any, bool)
	Write(path string, value any)
}

// Hooks observe binding traffic. Nil funcs are skipped.
type Hooks struct {
	OnWrite   func()
	OnRefresh func()
	OnEcho    func()
}

// Binding is one live input-to-path connection.
type Binding struct {
	Element *dom.Element
	Path    string
	Event   string

	detach func()
}

// Reconciler owns the bindings of one document.
type Reconciler struct {
	store    Store
	hooks    Hooks
	ordered  []*Binding
	byTarget map[*dom.Element]*Binding
}

// NewReconciler creates an empty reconciler writing through store.
func NewReconciler(store Store, hooks Hooks) *Reconciler {
	return &Reconciler{
		store:    store,
		hooks:    hooks,
		byTarget: make(map[*dom.Element]*Binding),
	}
}

// Bind connects el to path, triggering on the named event. The display
// is synced from the store immediately when the path resolves; an
// absent path leaves whatever the markup carried.
func (r *Reconciler) Bind(el *dom.Element, path, event string) (*Binding, error) {
	if el == nil {
		return nil, fmt.Errorf("element is required")
	}
	if path == "" {
		return nil, fmt.Errorf("binding path is required")
	}
	if event == "" {
		return nil, fmt.Errorf("trigger event is required")
	}
	if _, exists := r.byTarget[el]; exists {
		return nil, fmt.Errorf("element already bound")
	}

	b := &Binding{Element: el, Path: path, Event: event}
	if value, ok := r.store.Resolve(path); ok {
		el.SetValue(statetree.Text(value))
	}
	b.detach = el.On(event, func() {
		r.store.Write(path, displayToValue(el))
		if r.hooks.OnWrite != nil {
			r.hooks.OnWrite()
		}
	})

	r.ordered = append(r.ordered, b)
	r.byTarget[el] = b
	return b, nil
}

// RefreshAll re-reads every bound path and updates displays that
// drifted from the store. Displays already equal to the store value are
// left untouched, which is what breaks the write-render-write cycle.
// Equality is checked on NFC-normalized text so recomposed input never
// counts as a change.
func (r *Reconciler) RefreshAll() {
	for _, b := range r.ordered {
		value, ok := r.store.Resolve(b.Path)
		if !ok {
			continue
		}
		want := statetree.Text(value)
		have := b.Element.Value()
		if norm.NFC.String(want) == norm.NFC.String(have) {
			if r.hooks.OnEcho != nil {
				r.hooks.OnEcho()
			}
			continue
		}
		b.Element.SetValue(want)
		if r.hooks.OnRefresh != nil {
			r.hooks.OnRefresh()
		}
	}
}

// Unbind disconnects the element's binding and reports whether one
// existed. The input keeps its current display.
func (r *Reconciler) Unbind(el *dom.Element) bool {
	b, ok := r.byTarget[el]
	if !ok {
		return false
	}
	b.detach()
	delete(r.byTarget, el)
	for i, other := range r.ordered {
		if other == b {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
	return true
}

// Close unbinds everything.
func (r *Reconciler) Close() {
	for _, b := range r.ordered {
		b.detach()
	}
	r.ordered = nil
	r.byTarget = make(map[*dom.Element]*Binding)
}

// Bindings returns the live bindings in bind order.
func (r *Reconciler) Bindings() []*Binding {
	out := make([]*Binding, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// displayToValue converts a displayed value to its state form. Checkable
// inputs store booleans; everything else stores the raw text.
func displayToValue(el *dom.Element) any {
	if typ, _ := el.Attr("type"); el.Tag() == "input" && (typ == "checkbox" || typ == "radio") {
		return el.Value() == "true"
	}
	return el.Value()
}
