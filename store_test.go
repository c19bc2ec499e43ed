package reactive

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStore_GetReturnsCopies(t *testing.T) {
	store := NewStore(map[string]any{
		"user": map[string]any{"name": "Ada", "tags": []any{"admin"}},
	})

	got, ok := store.Get("user")
	if !ok {
		t.Fatal("Get(user) reported missing")
	}
	user := got.(map[string]any)
	user["name"] = "mutated"
	user["tags"].([]any)[0] = "mutated"

	fresh, _ := store.Get("user.name")
	if fresh != "Ada" {
		t.Errorf("store value after mutating a Get result = %v, want Ada", fresh)
	}
	tag, _ := store.Get("user.tags")
	if diff := cmp.Diff([]any{"admin"}, tag); diff != "" {
		t.Errorf("sequence mutated through a Get result (-want +got):\n%s", diff)
	}
}

func TestStore_SetCopiesInputAndCreatesIntermediates(t *testing.T) {
	store := NewStore(nil)

	profile := map[string]any{"theme": "dark"}
	store.Set("settings.profile", profile)
	profile["theme"] = "mutated"

	got, ok := store.Get("settings.profile.theme")
	if !ok || got != "dark" {
		t.Errorf("Get(settings.profile.theme) = %v, %v, want dark, true", got, ok)
	}
}

func TestStore_MergeSemantics(t *testing.T) {
	tests := []struct {
		name    string
		initial map[string]any
		patch   map[string]any
		path    string
		want    any
	}{
		{
			name:    "maps merge recursively",
			initial: map[string]any{"user": map[string]any{"name": "Ada", "age": 36}},
			patch:   map[string]any{"user": map[string]any{"age": 37}},
			path:    "user.name",
			want:    "Ada",
		},
		{
			name:    "sequences replace wholesale",
			initial: map[string]any{"items": []any{"a", "b", "c"}},
			patch:   map[string]any{"items": []any{"z"}},
			path:    "items",
			want:    []any{"z"},
		},
		{
			name:    "primitive replaces map",
			initial: map[string]any{"flag": map[string]any{"nested": true}},
			patch:   map[string]any{"flag": false},
			path:    "flag",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(tt.initial)
			store.Merge(tt.patch)
			got, ok := store.Get(tt.path)
			if !ok {
				t.Fatalf("Get(%s) reported missing", tt.path)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Get(%s) mismatch (-want +got):\n%s", tt.path, diff)
			}
		})
	}
}

func TestStore_MergeCopiesPatch(t *testing.T) {
	store := NewStore(nil)

	patch := map[string]any{"user": map[string]any{"name": "Ada"}}
	store.Merge(patch)
	patch["user"].(map[string]any)["name"] = "mutated"

	got, _ := store.Get("user.name")
	if got != "Ada" {
		t.Errorf("store value after mutating the patch = %v, want Ada", got)
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store := NewStore(map[string]any{"n": 1})

	snap := store.Snapshot()
	snap["n"] = 99
	store.Set("n", 2)

	if snap["n"] != 99 {
		t.Errorf("snapshot value = %v, want caller's own 99", snap["n"])
	}
	if got, _ := store.Get("n"); got != 2 {
		t.Errorf("store value = %v, want 2", got)
	}
}

func TestStore_StandaloneNotifiesImmediately(t *testing.T) {
	store := NewStore(map[string]any{"n": 0})

	var order []string
	store.Subscribe(func() { order = append(order, "first") })
	store.Subscribe(func() { order = append(order, "second") })

	store.Set("n", 1)
	store.Merge(map[string]any{"n": 2})
	store.Reset(map[string]any{"n": 3})

	want := []string{"first", "second", "first", "second", "first", "second"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("notification order (-want +got):\n%s", diff)
	}
}

func TestStore_SubscribeCancel(t *testing.T) {
	store := NewStore(nil)

	var kept, cancelled int
	store.Subscribe(func() { kept++ })
	cancel := store.Subscribe(func() { cancelled++ })

	store.Set("n", 1)
	cancel()
	cancel() // second cancel is harmless
	store.Set("n", 2)

	if kept != 2 {
		t.Errorf("kept listener ran %d times, want 2", kept)
	}
	if cancelled != 1 {
		t.Errorf("cancelled listener ran %d times, want 1", cancelled)
	}
}

func TestStore_EmptyMutationsAreIgnored(t *testing.T) {
	store := NewStore(map[string]any{"n": 1})

	var fired int
	store.Subscribe(func() { fired++ })

	store.Set("", "x")
	store.Merge(nil)
	store.Merge(map[string]any{})

	if fired != 0 {
		t.Errorf("listeners fired %d times for no-op mutations, want 0", fired)
	}
	if got, _ := store.Get("n"); got != 1 {
		t.Errorf("state changed by no-op mutations: %v", got)
	}
}

func TestStore_ResetReplacesWholesale(t *testing.T) {
	store := NewStore(map[string]any{"old": true, "n": 1})

	store.Reset(map[string]any{"fresh": true})

	if _, ok := store.Get("old"); ok {
		t.Error("old key survived Reset")
	}
	if got, ok := store.Get("fresh"); !ok || got != true {
		t.Errorf("Get(fresh) = %v, %v, want true, true", got, ok)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(map[string]any{"shared": map[string]any{}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			path := fmt.Sprintf("shared.w%d", n)
			for j := 0; j < 50; j++ {
				store.Set(path, j)
				store.Get("shared")
				store.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		got, ok := store.Get(fmt.Sprintf("shared.w%d", i))
		if !ok || got != 49 {
			t.Errorf("Get(shared.w%d) = %v, %v, want 49, true", i, got, ok)
		}
	}
}
