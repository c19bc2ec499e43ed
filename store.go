package reactive

import (
	"sync"

	"github.com/vidasaras/reactive/internal/statetree"
)

// changeOp identifies which store entry point produced a mutation.
type changeOp int

const (
	opSet changeOp = iota
	opMerge
	opReset
)

// Store owns a nested state tree and an ordered listener registry. All
// reads hand out copies and all writes copy their input, so callers can
// never alias the tree. A Store is safe for concurrent use.
//
// A standalone Store notifies its subscribers right after each
// mutation. Once attached to an Engine the engine takes over delivery:
// mutations request a render and subscribers run after the render pass
// completes, in registration order.
type Store struct {
	mu        sync.RWMutex
	data      map[string]any
	listeners []storeListener
	nextID    int

	// changed is installed by the attached Engine. It runs outside the
	// store lock.
	changed func(op changeOp, paths []string)
}

type storeListener struct {
	id int
	fn func()
}

// NewStore creates a Store holding a deep copy of initial. A nil
// initial map yields an empty tree.
func NewStore(initial map[string]any) *Store {
	data := statetree.DeepCopy(initial)
	if data == nil {
		data = make(map[string]any)
	}
	return &Store{data: data}
}

// Get resolves a dotted path and returns a copy of the value there. The
// boolean is false when the path does not resolve.
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	value, ok := statetree.Resolve(s.data, path)
	if ok {
		value = statetree.CopyValue(value)
	}
	s.mu.RUnlock()
	return value, ok
}

// Set writes a copy of value at the dotted path, creating intermediate
// maps as needed. An existing non-map intermediate is replaced.
func (s *Store) Set(path string, value any) {
	if path == "" {
		return
	}
	s.mu.Lock()
	statetree.Set(s.data, path, statetree.CopyValue(value))
	s.mu.Unlock()
	s.dispatch(opSet, []string{path})
}

// Merge deep-merges a copy of patch into the state. Map values merge
// recursively; primitives and sequences replace wholesale.
func (s *Store) Merge(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	s.mu.Lock()
	statetree.Merge(s.data, statetree.DeepCopy(patch))
	s.mu.Unlock()
	s.dispatch(opMerge, statetree.Leaves(patch))
}

// Reset replaces the whole tree with a deep copy of initial.
func (s *Store) Reset(initial map[string]any) {
	data := statetree.DeepCopy(initial)
	if data == nil {
		data = make(map[string]any)
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	s.dispatch(opReset, nil)
}

// Snapshot returns a deep copy of the whole tree.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statetree.DeepCopy(s.data)
}

// Subscribe registers fn to run after state changes reach the document,
// or straight after each mutation while the store is unattached. The
// returned function cancels the subscription; calling it more than once
// is harmless.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, storeListener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// attach installs the engine's change hook. Fails when another engine
// already owns the store.
func (s *Store) attach(changed func(op changeOp, paths []string)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.changed != nil {
		return false
	}
	s.changed = changed
	return true
}

func (s *Store) detach() {
	s.mu.Lock()
	s.changed = nil
	s.mu.Unlock()
}

// dispatch routes a completed mutation either to the attached engine or,
// standalone, directly to subscribers.
func (s *Store) dispatch(op changeOp, paths []string) {
	s.mu.RLock()
	changed := s.changed
	s.mu.RUnlock()

	if changed != nil {
		changed(op, paths)
		return
	}
	s.notify()
}

// notify runs the subscribers in registration order and returns how
// many ran. Listeners added or removed while notifying take effect on
// the next notification.
func (s *Store) notify() int {
	s.mu.RLock()
	snapshot := make([]storeListener, len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.RUnlock()

	for _, l := range snapshot {
		l.fn()
	}
	return len(snapshot)
}

// resolve reads without copying. Callers must not retain or mutate the
// returned value; render paths use Snapshot instead.
func (s *Store) resolve(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statetree.Resolve(s.data, path)
}
