package reactive

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// TestLoad_Engines exercises the engine under realistic volume: many
// concurrent engines, sustained mutation on one engine, and latency
// percentiles for settled writes.
func TestLoad_Engines(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	t.Run("concurrent_engines", func(t *testing.T) {
		const numEngines = 200
		const setsPerEngine = 20

		faker := gofakeit.New(1)

		var wg sync.WaitGroup
		errs := make(chan error, numEngines)

		start := time.Now()
		for i := 0; i < numEngines; i++ {
			wg.Add(1)
			go func(id int, name, city string) {
				defer wg.Done()

				doc, err := ParseDocument(fmt.Sprintf(
					`<div id="p%d" data-reactive>%s lives in ${city}, likes ${hobby}</div>`, id, name))
				if err != nil {
					errs <- fmt.Errorf("engine %d: parse: %v", id, err)
					return
				}
				engine, err := NewEngine(NewStore(map[string]any{
					"city":  city,
					"hobby": "",
				}), doc)
				if err != nil {
					errs <- fmt.Errorf("engine %d: new: %v", id, err)
					return
				}
				defer engine.Close()

				last := ""
				for j := 0; j < setsPerEngine; j++ {
					last = fmt.Sprintf("hobby-%d-%d", id, j)
					engine.Store().Set("hobby", last)
				}

				got := doc.ElementByID(fmt.Sprintf("p%d", id)).InnerHTML()
				if !strings.Contains(got, last) {
					errs <- fmt.Errorf("engine %d: final render %q missing %q", id, got, last)
				}
				if strings.Contains(got, "${") {
					errs <- fmt.Errorf("engine %d: unprocessed marker in %q", id, got)
				}
			}(i, faker.Name(), faker.City())
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Error(err)
		}
		t.Logf("%d engines, %d writes each in %v", numEngines, setsPerEngine, time.Since(start))
	})

	t.Run("p95_settled_write_latency", func(t *testing.T) {
		const operations = 2000
		const targetP95 = 75 * time.Millisecond

		faker := gofakeit.New(2)

		doc, err := ParseDocument(
			`<div data-reactive>
				<h1>${title}</h1>
				<p>${user.name} / ${user.city}</p>
				<ul>${loop:rows}<li>${item.label}: ${item.qty}</li>${endloop}</ul>
			</div>`)
		if err != nil {
			t.Fatalf("ParseDocument failed: %v", err)
		}

		rows := make([]any, 30)
		for i := range rows {
			rows[i] = map[string]any{"label": faker.Word(), "qty": faker.Number(1, 99)}
		}
		engine, err := NewEngine(NewStore(map[string]any{
			"title": faker.Sentence(3),
			"user":  map[string]any{"name": faker.Name(), "city": faker.City()},
			"rows":  rows,
		}), doc)
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}
		defer engine.Close()

		// Set blocks until the render it requested has settled, so each
		// sample is a full write-to-render round trip.
		latencies := make([]time.Duration, 0, operations)
		for i := 0; i < operations; i++ {
			begin := time.Now()
			engine.Store().Set("user.name", faker.Name())
			latencies = append(latencies, time.Since(begin))
		}

		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		p50 := latencies[operations/2]
		p95 := latencies[operations*95/100]
		p99 := latencies[operations*99/100]
		t.Logf("settled write latency: p50=%v p95=%v p99=%v", p50, p95, p99)

		if p95 > targetP95 {
			t.Errorf("p95 latency %v exceeds target %v", p95, targetP95)
		}
	})

	t.Run("random_trees_render_clean", func(t *testing.T) {
		const trials = 100

		faker := gofakeit.New(3)

		for trial := 0; trial < trials; trial++ {
			n := faker.Number(0, 12)
			items := make([]any, n)
			for i := range items {
				items[i] = map[string]any{"word": faker.Word()}
			}
			premium := faker.Bool()

			doc, err := ParseDocument(
				`<div id="page" data-reactive>` +
					`<p>${name} of ${city}</p>` +
					`${if:premium}<p id="badge">premium</p>${endif}` +
					`<ul>${loop:items}<li>${item.word}</li>${endloop}</ul>` +
					`</div>`)
			if err != nil {
				t.Fatalf("trial %d: parse: %v", trial, err)
			}
			engine, err := NewEngine(NewStore(map[string]any{
				"name":    faker.Name(),
				"city":    faker.City(),
				"premium": premium,
				"items":   items,
			}), doc)
			if err != nil {
				t.Fatalf("trial %d: new engine: %v", trial, err)
			}

			got := doc.ElementByID("page").InnerHTML()
			if strings.Contains(got, "${") {
				t.Errorf("trial %d: unprocessed marker in %q", trial, got)
			}
			if want := strings.Count(got, "<li>"); want != n {
				t.Errorf("trial %d: rendered %d items, want %d", trial, want, n)
			}
			if n > 0 {
				first := items[0].(map[string]any)["word"].(string)
				if !strings.Contains(got, first) {
					t.Errorf("trial %d: render %q missing first item %q", trial, got, first)
				}
			}
			if strings.Contains(got, `id="badge"`) != premium {
				t.Errorf("trial %d: premium badge presence = %v, want %v",
					trial, !premium, premium)
			}

			engine.Close()
		}
	})
}
