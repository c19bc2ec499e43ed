package reactive

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vidasaras/reactive/internal/binding"
	"github.com/vidasaras/reactive/internal/directive"
	"github.com/vidasaras/reactive/internal/dom"
	"github.com/vidasaras/reactive/internal/metrics"
	"github.com/vidasaras/reactive/internal/statetree"
)

// Attributes names the markup attributes the engine scans for. All
// fields must be non-empty; DefaultAttributes supplies the standard
// set.
type Attributes struct {
	Templated string // marks an element whose inner markup is a template
	Template  string // archives the element's pristine template text
	ID        string // stable element identifier used by transports
	Bind      string // marks a bound input; the value is the state path
	BindEvent string // overrides the trigger event for a bound input
}

// DefaultAttributes returns the attribute names used unless
// WithAttributes overrides them.
func DefaultAttributes() Attributes {
	return Attributes{
		Templated: "data-reactive",
		Template:  "data-reactive-template",
		ID:        "data-reactive-id",
		Bind:      "data-bind",
		BindEvent: "data-bind-event",
	}
}

const defaultBindEvent = "change"

// Engine connects a Store to a Document: it archives each templated
// element's pristine markup once, re-renders every templated element
// when state changes, and keeps bound inputs synchronized with the
// store.
//
// Render requests may arrive from any goroutine and coalesce into the
// pass already running. Document access and event dispatch belong to
// the goroutine driving the engine.
type Engine struct {
	store          *Store
	doc            *Document
	logger         *slog.Logger
	attrs          Attributes
	minifyOutput   bool
	pathFilter     bool
	metricsEnabled bool
	collector      *metrics.Collector

	records    []*templateRecord
	reconciler *binding.Reconciler

	mu        sync.Mutex
	rendering bool
	pending   bool
	allDirty  bool
	dirty     []string
	closed    bool
}

// templateRecord pairs a templated element with its immutable compiled
// template. Renders always start from the pristine template, never from
// the element's last output.
type templateRecord struct {
	element  *dom.Element
	template *directive.Template
	paths    []string
}

// EngineOption configures an Engine instance
type EngineOption func(*Engine) error

// WithLogger sets the logger for engine diagnostics. The default
// discards everything.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) error {
		if logger == nil {
			return fmt.Errorf("logger is required")
		}
		e.logger = logger
		return nil
	}
}

// WithMinify minifies rendered fragments before they are applied to the
// document.
func WithMinify() EngineOption {
	return func(e *Engine) error {
		e.minifyOutput = true
		return nil
	}
}

// WithMetricsEnabled configures metrics collection for the engine
func WithMetricsEnabled(enabled bool) EngineOption {
	return func(e *Engine) error {
		e.metricsEnabled = enabled
		return nil
	}
}

// WithAttributes overrides the attribute names the engine scans for.
func WithAttributes(attrs Attributes) EngineOption {
	return func(e *Engine) error {
		if attrs.Templated == "" || attrs.Template == "" || attrs.ID == "" ||
			attrs.Bind == "" || attrs.BindEvent == "" {
			return fmt.Errorf("all attribute names are required")
		}
		e.attrs = attrs
		return nil
	}
}

// WithChangedPathFilter makes renders triggered by store mutations skip
// templated elements whose referenced paths are unrelated to the
// mutation. Manual RenderAll calls and Reset still re-render
// everything. Off by default: the engine's contract is a full re-render
// per change.
func WithChangedPathFilter() EngineOption {
	return func(e *Engine) error {
		e.pathFilter = true
		return nil
	}
}

// NewEngine scans doc for templated elements and bound inputs, attaches
// store so its mutations schedule renders, and performs the initial
// render. The store must not already belong to another engine.
func NewEngine(store *Store, doc *Document, options ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}

	e := &Engine{
		store:          store,
		doc:            doc,
		logger:         slog.New(slog.DiscardHandler),
		attrs:          DefaultAttributes(),
		metricsEnabled: true,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, fmt.Errorf("apply engine option: %w", err)
		}
	}

	if e.metricsEnabled {
		e.collector = metrics.NewCollector()
	}

	if !store.attach(e.onStoreChange) {
		return nil, fmt.Errorf("store is already attached to an engine")
	}

	e.scan()
	e.reconciler = binding.NewReconciler(reconcilerStore{e: e}, binding.Hooks{
		OnWrite:   func() { e.record(func(c *metrics.Collector) { c.RecordBindingWrite() }) },
		OnRefresh: func() { e.record(func(c *metrics.Collector) { c.RecordBindingRefresh() }) },
		OnEcho:    func() { e.record(func(c *metrics.Collector) { c.RecordEchoSuppressed() }) },
	})
	if err := e.bindInputs(); err != nil {
		store.detach()
		return nil, err
	}

	e.RenderAll()
	return e, nil
}

func (e *Engine) record(fn func(*metrics.Collector)) {
	if e.collector != nil {
		fn(e.collector)
	}
}

// scan archives each templated element's pristine template exactly
// once and gives every templated element a stable identifier. An
// element that already carries the template attribute, for example
// after a server round trip, keeps its archived text.
func (e *Engine) scan() {
	for i, el := range e.doc.inner.QueryByAttr(e.attrs.Templated) {
		if _, ok := el.Attr(e.attrs.ID); !ok {
			el.SetAttr(e.attrs.ID, fmt.Sprintf("r%d", i))
		}
		pristine, ok := el.Attr(e.attrs.Template)
		if !ok {
			pristine = el.InnerHTML()
			el.SetAttr(e.attrs.Template, pristine)
		}
		tmpl := directive.Compile(pristine)
		for _, diag := range tmpl.Diagnostics() {
			e.logger.Debug("template marker degraded to literal text",
				"element", el.Tag(), "detail", diag)
		}
		e.record(func(c *metrics.Collector) {
			c.RecordTemplateCompiled(int64(len(tmpl.Diagnostics())))
		})
		e.records = append(e.records, &templateRecord{
			element:  el,
			template: tmpl,
			paths:    tmpl.Paths(),
		})
	}
}

func (e *Engine) bindInputs() error {
	for i, el := range e.doc.inner.QueryByAttr(e.attrs.Bind) {
		if _, ok := el.Attr(e.attrs.ID); !ok {
			el.SetAttr(e.attrs.ID, fmt.Sprintf("f%d", i))
		}
		path, _ := el.Attr(e.attrs.Bind)
		if path == "" {
			return fmt.Errorf("empty %s attribute on <%s>", e.attrs.Bind, el.Tag())
		}
		if !directive.ValidPath(path) {
			return fmt.Errorf("bind path %q on <%s> is not a valid state path", path, el.Tag())
		}
		event := defaultBindEvent
		if custom, ok := el.Attr(e.attrs.BindEvent); ok && custom != "" {
			event = custom
		}
		if _, err := e.reconciler.Bind(el, path, event); err != nil {
			return fmt.Errorf("bind <%s> to %q: %w", el.Tag(), path, err)
		}
	}
	return nil
}

// reconcilerStore adapts the engine's store for the binding package.
// Writes go through Store.Set, so the attached change hook schedules
// the follow-up render.
type reconcilerStore struct {
	e *Engine
}

func (rs reconcilerStore) Resolve(path string) (any, bool) {
	return rs.e.store.resolve(path)
}

func (rs reconcilerStore) Write(path string, value any) {
	rs.e.store.Set(path, value)
}

func (e *Engine) onStoreChange(op changeOp, paths []string) {
	e.record(func(c *metrics.Collector) {
		switch op {
		case opSet:
			c.RecordStoreSet()
		case opMerge:
			c.RecordStoreMerge()
		}
	})
	if !e.pathFilter || op == opReset {
		paths = nil
	}
	e.requestRender(paths)
}

// UpdateState deep-merges patch into the store and re-renders. Map
// values merge recursively; primitives and sequences replace.
func (e *Engine) UpdateState(patch map[string]any) {
	e.store.Merge(patch)
}

// RenderAll unconditionally re-renders every templated element and then
// notifies store subscribers. Callers that mutate state through the
// store never need it; it exists for code that changed data out of
// band.
func (e *Engine) RenderAll() {
	e.requestRender(nil)
}

// requestRender either starts the render loop or, when a pass is
// already running, folds the request into it. nil paths means
// everything is dirty.
func (e *Engine) requestRender(paths []string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if paths == nil {
		e.allDirty = true
	} else {
		e.dirty = append(e.dirty, paths...)
	}
	if e.rendering {
		e.pending = true
		e.mu.Unlock()
		e.record(func(c *metrics.Collector) { c.RecordCoalescedRender() })
		return
	}
	e.rendering = true
	e.mu.Unlock()

	e.renderLoop()
}

// renderLoop runs passes until no further request arrived during the
// last one. Requests made by listeners or concurrent goroutines while a
// pass runs collapse into a single trailing pass.
func (e *Engine) renderLoop() {
	for {
		e.mu.Lock()
		all := e.allDirty
		dirty := e.dirty
		e.allDirty = false
		e.dirty = nil
		e.pending = false
		e.mu.Unlock()

		e.renderPass(all, dirty)

		e.mu.Lock()
		if !e.pending {
			e.rendering = false
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}

// renderPass recomputes templated elements from their pristine
// templates against a state snapshot, refreshes bound inputs, and
// notifies subscribers, in that order.
func (e *Engine) renderPass(all bool, dirty []string) {
	state := e.store.Snapshot()

	var rendered, skipped int64
	for _, rec := range e.records {
		if !all && !touchesAny(rec.paths, dirty) {
			skipped++
			continue
		}
		markup := rec.template.Render(state)
		if e.minifyOutput {
			markup = minifyFragment(markup)
		}
		if err := rec.element.SetInnerHTML(markup); err != nil {
			e.logger.Warn("skipping element, rendered markup did not apply",
				"element", rec.element.Tag(), "error", err)
			continue
		}
		rendered++
	}
	e.record(func(c *metrics.Collector) {
		c.RecordRenderPass(rendered)
		if skipped > 0 {
			c.RecordElementsSkipped(skipped)
		}
	})

	e.reconciler.RefreshAll()

	notified := e.store.notify()
	e.record(func(c *metrics.Collector) {
		if notified > 0 {
			c.RecordListenerNotifications(int64(notified))
		}
	})
}

func touchesAny(paths, dirty []string) bool {
	for _, p := range paths {
		for _, d := range dirty {
			if statetree.Related(p, d) {
				return true
			}
		}
	}
	return false
}

// Store returns the attached store.
func (e *Engine) Store() *Store {
	return e.store
}

// Document returns the managed document.
func (e *Engine) Document() *Document {
	return e.doc
}

// Unbind disconnects a bound input from the store and reports whether a
// binding existed. The input keeps its current display.
func (e *Engine) Unbind(el *Element) bool {
	if el == nil {
		return false
	}
	return e.reconciler.Unbind(el.inner)
}

// Close detaches the store and removes every binding. The document
// keeps its last rendered content. Further render requests are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.reconciler.Close()
	e.store.detach()
	return nil
}

// Fragment is one templated element's identifier and current inner
// markup, for transports that push rendered content to a client.
type Fragment struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}

// Fragments returns the current markup of every templated element, in
// document order. Identifiers come from the ID attribute, assigned at
// scan time when the markup did not set one.
func (e *Engine) Fragments() []Fragment {
	var out []Fragment
	for _, rec := range e.records {
		id, ok := rec.element.Attr(e.attrs.ID)
		if !ok || id == "" {
			continue
		}
		out = append(out, Fragment{ID: id, HTML: rec.element.InnerHTML()})
	}
	return out
}

// BoundValue is one bound input's identifier, path, and displayed
// value.
type BoundValue struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// BoundValues returns the displayed value of every bound input, in
// bind order.
func (e *Engine) BoundValues() []BoundValue {
	var out []BoundValue
	for _, b := range e.reconciler.Bindings() {
		id, ok := b.Element.Attr(e.attrs.ID)
		if !ok || id == "" {
			continue
		}
		out = append(out, BoundValue{ID: id, Path: b.Path, Value: b.Element.Value()})
	}
	return out
}

// EngineMetrics is a point-in-time copy of the engine's counters.
type EngineMetrics struct {
	RenderPasses          int64         `json:"render_passes"`
	CoalescedRenders      int64         `json:"coalesced_renders"`
	ElementsRendered      int64         `json:"elements_rendered"`
	ElementsSkipped       int64         `json:"elements_skipped"`
	MaxElementsPerPass    int64         `json:"max_elements_per_pass"`
	StoreSets             int64         `json:"store_sets"`
	StoreMerges           int64         `json:"store_merges"`
	ListenerNotifications int64         `json:"listener_notifications"`
	BindingWrites         int64         `json:"binding_writes"`
	BindingRefreshes      int64         `json:"binding_refreshes"`
	EchoesSuppressed      int64         `json:"echoes_suppressed"`
	TemplatesCompiled     int64         `json:"templates_compiled"`
	CompileDegradations   int64         `json:"compile_degradations"`
	Uptime                time.Duration `json:"uptime"`
}

// Metrics returns current engine metrics. The zero value is returned
// when collection is disabled.
func (e *Engine) Metrics() EngineMetrics {
	if e.collector == nil {
		return EngineMetrics{}
	}
	m := e.collector.GetMetrics()
	return EngineMetrics{
		RenderPasses:          m.RenderPasses,
		CoalescedRenders:      m.CoalescedRenders,
		ElementsRendered:      m.ElementsRendered,
		ElementsSkipped:       m.ElementsSkipped,
		MaxElementsPerPass:    m.MaxElementsPerPass,
		StoreSets:             m.StoreSets,
		StoreMerges:           m.StoreMerges,
		ListenerNotifications: m.ListenerNotifications,
		BindingWrites:         m.BindingWrites,
		BindingRefreshes:      m.BindingRefreshes,
		EchoesSuppressed:      m.EchoesSuppressed,
		TemplatesCompiled:     m.TemplatesCompiled,
		CompileDegradations:   m.CompileDegradations,
		Uptime:                m.Uptime,
	}
}
