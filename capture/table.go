package capture

import (
	"fmt"
	"sync"

	"chromestream/event"
)

// spanState is the per-span record the table owns between creation and
// close. One explicit struct per span, keyed by the host's id; the host
// drives a given span from one owner at a time, so only the map itself
// needs locking.
type spanState struct {
	builder *event.Builder
	async   bool
	entered bool
}

type spanTable struct {
	mu    sync.RWMutex
	spans map[uint64]*spanState
}

func newSpanTable() *spanTable {
	return &spanTable{spans: make(map[uint64]*spanState)}
}

func (t *spanTable) insert(id uint64, st *spanState) {
	t.mu.Lock()
	t.spans[id] = st
	t.mu.Unlock()
}

// lookup returns the state for id. The host framework guarantees ids are
// valid while a span is open; a miss means the engine and the host disagree
// about live spans, and continuing would silently drop or duplicate records.
func (t *spanTable) lookup(id uint64) *spanState {
	t.mu.RLock()
	st := t.spans[id]
	t.mu.RUnlock()
	if st == nil {
		panic(fmt.Sprintf("capture: unknown span id %d, this is a bug", id))
	}
	return st
}

// remove deletes and returns the state for id, with the same invariant as
// lookup.
func (t *spanTable) remove(id uint64) *spanState {
	t.mu.Lock()
	st := t.spans[id]
	delete(t.spans, id)
	t.mu.Unlock()
	if st == nil {
		panic(fmt.Sprintf("capture: unknown span id %d, this is a bug", id))
	}
	return st
}

func (t *spanTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.spans)
}
