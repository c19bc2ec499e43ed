package metrics

import (
	"testing"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	if collector == nil {
		t.Fatal("NewCollector() returned nil")
	}

	if collector.engineMetrics == nil {
		t.Fatal("engineMetrics not initialized")
	}

	if collector.actionCounters == nil {
		t.Fatal("actionCounters not initialized")
	}

	metrics := collector.GetMetrics()
	if metrics.RenderPasses != 0 {
		t.Errorf("Expected initial render passes 0, got %d", metrics.RenderPasses)
	}
	if metrics.StartTime.IsZero() {
		t.Error("Expected start time to be set")
	}
}

func TestRenderPassMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordRenderPass(3)
	collector.RecordRenderPass(5)
	collector.RecordRenderPass(2)

	metrics := collector.GetMetrics()
	if metrics.RenderPasses != 3 {
		t.Errorf("Expected 3 render passes, got %d", metrics.RenderPasses)
	}

	if metrics.ElementsRendered != 10 {
		t.Errorf("Expected 10 elements rendered, got %d", metrics.ElementsRendered)
	}

	if metrics.MaxElementsPerPass != 5 {
		t.Errorf("Expected max elements per pass 5, got %d", metrics.MaxElementsPerPass)
	}

	avg := collector.GetAverageElementsPerPass()
	expectedAvg := 10.0 / 3.0
	if avg != expectedAvg {
		t.Errorf("Expected average elements per pass %.3f, got %.3f", expectedAvg, avg)
	}
}

func TestCoalescedRenderMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordRenderPass(1)
	collector.RecordCoalescedRender()
	collector.RecordCoalescedRender()

	metrics := collector.GetMetrics()
	if metrics.CoalescedRenders != 2 {
		t.Errorf("Expected 2 coalesced renders, got %d", metrics.CoalescedRenders)
	}

	// Coalesced requests must not count as passes of their own
	if metrics.RenderPasses != 1 {
		t.Errorf("Expected 1 render pass, got %d", metrics.RenderPasses)
	}
}

func TestStoreMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordStoreSet()
	collector.RecordStoreSet()
	collector.RecordStoreMerge()

	metrics := collector.GetMetrics()
	if metrics.StoreSets != 2 {
		t.Errorf("Expected 2 store sets, got %d", metrics.StoreSets)
	}
	if metrics.StoreMerges != 1 {
		t.Errorf("Expected 1 store merge, got %d", metrics.StoreMerges)
	}
}

func TestBindingMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordBindingWrite()
	collector.RecordBindingRefresh()
	collector.RecordEchoSuppressed()
	collector.RecordEchoSuppressed()
	collector.RecordEchoSuppressed()

	metrics := collector.GetMetrics()
	if metrics.BindingWrites != 1 {
		t.Errorf("Expected 1 binding write, got %d", metrics.BindingWrites)
	}
	if metrics.BindingRefreshes != 1 {
		t.Errorf("Expected 1 binding refresh, got %d", metrics.BindingRefreshes)
	}
	if metrics.EchoesSuppressed != 3 {
		t.Errorf("Expected 3 echoes suppressed, got %d", metrics.EchoesSuppressed)
	}

	// 3 suppressed out of 4 refresh attempts
	rate := collector.GetEchoSuppressionRate()
	if rate != 75.0 {
		t.Errorf("Expected echo suppression rate 75.0%%, got %.1f%%", rate)
	}
}

func TestEchoSuppressionRateWithNoActivity(t *testing.T) {
	collector := NewCollector()
	if rate := collector.GetEchoSuppressionRate(); rate != 0.0 {
		t.Errorf("Expected 0%% suppression rate with no activity, got %.1f%%", rate)
	}
}

func TestTemplateCompileMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordTemplateCompiled(0)
	collector.RecordTemplateCompiled(2)

	metrics := collector.GetMetrics()
	if metrics.TemplatesCompiled != 2 {
		t.Errorf("Expected 2 templates compiled, got %d", metrics.TemplatesCompiled)
	}
	if metrics.CompileDegradations != 2 {
		t.Errorf("Expected 2 compile degradations, got %d", metrics.CompileDegradations)
	}
}

func TestActionCounters(t *testing.T) {
	collector := NewCollector()

	collector.IncrementActionCounter("add-todo")
	collector.IncrementActionCounter("add-todo")
	collector.IncrementActionCounter("clear-completed")

	counters := collector.GetActionCounters()

	if counters["add-todo"] != 2 {
		t.Errorf("Expected add-todo count 2, got %d", counters["add-todo"])
	}

	if counters["clear-completed"] != 1 {
		t.Errorf("Expected clear-completed count 1, got %d", counters["clear-completed"])
	}
}

func TestMetricsReset(t *testing.T) {
	collector := NewCollector()

	collector.RecordRenderPass(4)
	collector.RecordStoreMerge()
	collector.RecordBindingWrite()
	collector.IncrementActionCounter("test-action")

	metrics := collector.GetMetrics()
	if metrics.RenderPasses == 0 {
		t.Error("Expected non-zero render passes before reset")
	}

	collector.Reset()

	metrics = collector.GetMetrics()
	if metrics.RenderPasses != 0 {
		t.Errorf("Expected render passes to be 0 after reset, got %d", metrics.RenderPasses)
	}
	if metrics.ElementsRendered != 0 {
		t.Errorf("Expected elements rendered to be 0 after reset, got %d", metrics.ElementsRendered)
	}
	if metrics.StoreMerges != 0 {
		t.Errorf("Expected store merges to be 0 after reset, got %d", metrics.StoreMerges)
	}
	if metrics.BindingWrites != 0 {
		t.Errorf("Expected binding writes to be 0 after reset, got %d", metrics.BindingWrites)
	}

	counters := collector.GetActionCounters()
	if len(counters) != 0 {
		t.Errorf("Expected action counters to be empty after reset, got %d", len(counters))
	}
}

func TestConcurrentAccess(t *testing.T) {
	collector := NewCollector()

	done := make(chan bool)

	// Writer goroutine
	go func() {
		for i := 0; i < 100; i++ {
			collector.RecordRenderPass(2)
			collector.RecordStoreMerge()
			collector.IncrementActionCounter("concurrent-action")
		}
		done <- true
	}()

	// Reader goroutine
	go func() {
		for i := 0; i < 100; i++ {
			_ = collector.GetMetrics()
			_ = collector.GetActionCounters()
			_ = collector.GetAverageElementsPerPass()
		}
		done <- true
	}()

	<-done
	<-done

	metrics := collector.GetMetrics()
	if metrics.RenderPasses != 100 {
		t.Errorf("Expected 100 render passes, got %d", metrics.RenderPasses)
	}

	if metrics.StoreMerges != 100 {
		t.Errorf("Expected 100 store merges, got %d", metrics.StoreMerges)
	}
}
