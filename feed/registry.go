package feed

import (
	"context"
	"sync"
)

// CellHandle is the imperative surface of a playback cell as seen by the
// feed. playback.Cell satisfies it.
type CellHandle interface {
	Play(ctx context.Context)
	Stop(ctx context.Context)
	Unload(ctx context.Context)
}

// Registry is the explicit item-id to cell-handle mapping, populated as
// cells mount and cleared as they unmount.
type Registry struct {
	mu    sync.Mutex
	cells map[string]CellHandle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{cells: make(map[string]CellHandle)}
}

// Attach registers the handle for an item as its cell mounts.
func (r *Registry) Attach(id string, h CellHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cells[id] = h
}

// Detach unloads and removes the handle as its cell unmounts. Unload runs
// unconditionally so the media engine is always released.
func (r *Registry) Detach(ctx context.Context, id string) {
	r.mu.Lock()
	h, ok := r.cells[id]
	delete(r.cells, id)
	r.mu.Unlock()
	if ok {
		h.Unload(ctx)
	}
}

// Get returns the handle for an item, or nil if its cell is not mounted.
func (r *Registry) Get(id string) CellHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cells[id]
}

// Each calls fn for every mounted cell.
func (r *Registry) Each(fn func(id string, h CellHandle)) {
	r.mu.Lock()
	snapshot := make(map[string]CellHandle, len(r.cells))
	for id, h := range r.cells {
		snapshot[id] = h
	}
	r.mu.Unlock()
	for id, h := range snapshot {
		fn(id, h)
	}
}
