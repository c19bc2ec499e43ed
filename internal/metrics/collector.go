package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides simple built-in metrics collection with no external dependencies
type Collector struct {
	engineMetrics  *EngineMetrics
	actionCounters map[string]*int64
	mu             sync.RWMutex
	startTime      time.Time
}

// EngineMetrics tracks engine-level performance data
type EngineMetrics struct {
	// Render scheduling
	RenderPasses     int64 `json:"render_passes"`
	CoalescedRenders int64 `json:"coalesced_renders"`

	// Per-pass element work
	ElementsRendered   int64 `json:"elements_rendered"`
	ElementsSkipped    int64 `json:"elements_skipped"`
	MaxElementsPerPass int64 `json:"max_elements_per_pass"`

	// Store activity
	StoreSets   int64 `json:"store_sets"`
	StoreMerges int64 `json:"store_merges"`

	// Listener registry
	ListenerNotifications int64 `json:"listener_notifications"`

	// Two-way bindings
	BindingWrites    int64 `json:"binding_writes"`
	BindingRefreshes int64 `json:"binding_refreshes"`
	EchoesSuppressed int64 `json:"echoes_suppressed"`

	// Template compilation
	TemplatesCompiled   int64 `json:"templates_compiled"`
	CompileDegradations int64 `json:"compile_degradations"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		engineMetrics: &EngineMetrics{
			StartTime: time.Now(),
		},
		actionCounters: make(map[string]*int64),
		startTime:      time.Now(),
	}
}

// RecordRenderPass records one completed render pass over the given
// number of elements
func (c *Collector) RecordRenderPass(elements int64) {
	atomic.AddInt64(&c.engineMetrics.RenderPasses, 1)
	atomic.AddInt64(&c.engineMetrics.ElementsRendered, elements)

	// Update max elements per pass if needed
	for {
		max := atomic.LoadInt64(&c.engineMetrics.MaxElementsPerPass)
		if elements <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.engineMetrics.MaxElementsPerPass, max, elements) {
			break
		}
	}
}

// RecordCoalescedRender records a render request folded into a pass
// already in progress
func (c *Collector) RecordCoalescedRender() {
	atomic.AddInt64(&c.engineMetrics.CoalescedRenders, 1)
}

// RecordElementsSkipped records elements left untouched by a filtered
// render pass
func (c *Collector) RecordElementsSkipped(count int64) {
	atomic.AddInt64(&c.engineMetrics.ElementsSkipped, count)
}

// RecordStoreSet records a single-path store write
func (c *Collector) RecordStoreSet() {
	atomic.AddInt64(&c.engineMetrics.StoreSets, 1)
}

// RecordStoreMerge records a deep-merge store write
func (c *Collector) RecordStoreMerge() {
	atomic.AddInt64(&c.engineMetrics.StoreMerges, 1)
}

// RecordListenerNotifications records listener callback invocations
func (c *Collector) RecordListenerNotifications(count int64) {
	atomic.AddInt64(&c.engineMetrics.ListenerNotifications, count)
}

// RecordBindingWrite records a bound input pushing its value into the
// store
func (c *Collector) RecordBindingWrite() {
	atomic.AddInt64(&c.engineMetrics.BindingWrites, 1)
}

// RecordBindingRefresh records a bound input refreshed from the store
// after a render
func (c *Collector) RecordBindingRefresh() {
	atomic.AddInt64(&c.engineMetrics.BindingRefreshes, 1)
}

// RecordEchoSuppressed records a refresh skipped because the displayed
// value already matched the store
func (c *Collector) RecordEchoSuppressed() {
	atomic.AddInt64(&c.engineMetrics.EchoesSuppressed, 1)
}

// RecordTemplateCompiled records one template compilation and the
// number of markers that degraded to literal text
func (c *Collector) RecordTemplateCompiled(degradations int64) {
	atomic.AddInt64(&c.engineMetrics.TemplatesCompiled, 1)
	atomic.AddInt64(&c.engineMetrics.CompileDegradations, degradations)
}

// IncrementActionCounter increments a named action counter
func (c *Collector) IncrementActionCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.actionCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.actionCounters[name] = &newCounter
	}
}

// GetMetrics returns current engine metrics
func (c *Collector) GetMetrics() EngineMetrics {
	return EngineMetrics{
		RenderPasses:          atomic.LoadInt64(&c.engineMetrics.RenderPasses),
		CoalescedRenders:      atomic.LoadInt64(&c.engineMetrics.CoalescedRenders),
		ElementsRendered:      atomic.LoadInt64(&c.engineMetrics.ElementsRendered),
		ElementsSkipped:       atomic.LoadInt64(&c.engineMetrics.ElementsSkipped),
		MaxElementsPerPass:    atomic.LoadInt64(&c.engineMetrics.MaxElementsPerPass),
		StoreSets:             atomic.LoadInt64(&c.engineMetrics.StoreSets),
		StoreMerges:           atomic.LoadInt64(&c.engineMetrics.StoreMerges),
		ListenerNotifications: atomic.LoadInt64(&c.engineMetrics.ListenerNotifications),
		BindingWrites:         atomic.LoadInt64(&c.engineMetrics.BindingWrites),
		BindingRefreshes:      atomic.LoadInt64(&c.engineMetrics.BindingRefreshes),
		EchoesSuppressed:      atomic.LoadInt64(&c.engineMetrics.EchoesSuppressed),
		TemplatesCompiled:     atomic.LoadInt64(&c.engineMetrics.TemplatesCompiled),
		CompileDegradations:   atomic.LoadInt64(&c.engineMetrics.CompileDegradations),
		StartTime:             c.engineMetrics.StartTime,
		Uptime:                time.Since(c.startTime),
	}
}

// GetActionCounters returns all named action counters
func (c *Collector) GetActionCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.actionCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.StoreInt64(&c.engineMetrics.RenderPasses, 0)
	atomic.StoreInt64(&c.engineMetrics.CoalescedRenders, 0)
	atomic.StoreInt64(&c.engineMetrics.ElementsRendered, 0)
	atomic.StoreInt64(&c.engineMetrics.ElementsSkipped, 0)
	atomic.StoreInt64(&c.engineMetrics.MaxElementsPerPass, 0)
	atomic.StoreInt64(&c.engineMetrics.StoreSets, 0)
	atomic.StoreInt64(&c.engineMetrics.StoreMerges, 0)
	atomic.StoreInt64(&c.engineMetrics.ListenerNotifications, 0)
	atomic.StoreInt64(&c.engineMetrics.BindingWrites, 0)
	atomic.StoreInt64(&c.engineMetrics.BindingRefreshes, 0)
	atomic.StoreInt64(&c.engineMetrics.EchoesSuppressed, 0)
	atomic.StoreInt64(&c.engineMetrics.TemplatesCompiled, 0)
	atomic.StoreInt64(&c.engineMetrics.CompileDegradations, 0)

	c.actionCounters = make(map[string]*int64)

	c.startTime = time.Now()
	c.engineMetrics.StartTime = time.Now()
}

// GetEchoSuppressionRate returns the share of binding refresh attempts
// suppressed as echoes, as a percentage
func (c *Collector) GetEchoSuppressionRate() float64 {
	refreshes := atomic.LoadInt64(&c.engineMetrics.BindingRefreshes)
	suppressed := atomic.LoadInt64(&c.engineMetrics.EchoesSuppressed)

	total := refreshes + suppressed
	if total == 0 {
		return 0.0
	}

	return float64(suppressed) / float64(total) * 100.0
}

// GetAverageElementsPerPass returns elements rendered per render pass
func (c *Collector) GetAverageElementsPerPass() float64 {
	passes := atomic.LoadInt64(&c.engineMetrics.RenderPasses)
	elements := atomic.LoadInt64(&c.engineMetrics.ElementsRendered)

	if passes == 0 {
		return 0.0
	}

	return float64(elements) / float64(passes)
}
