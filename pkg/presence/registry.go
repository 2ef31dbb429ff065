package presence

import (
	"sync"
	"time"
)

// Registry owns a set of running watchers keyed by WatcherID.
type Registry struct {
	opts []Option

	mu       sync.RWMutex
	nextID   WatcherID
	watchers map[WatcherID]*Watcher
}

// NewRegistry creates an empty registry. The options are applied to every
// watcher it creates, before any per-watcher options.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:     opts,
		watchers: make(map[WatcherID]*Watcher),
	}
}

// AddWatcher creates and starts a watcher and returns its id. Ids are
// allocated monotonically and never reused by this registry.
func (r *Registry) AddWatcher(threshold time.Duration, callback Callback, opts ...Option) (WatcherID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID + 1
	all := make([]Option, 0, len(r.opts)+len(opts))
	all = append(all, r.opts...)
	all = append(all, opts...)

	w, err := NewWatcher(id, threshold, callback, all...)
	if err != nil {
		return 0, err
	}

	r.nextID = id
	r.watchers[id] = w
	w.Start()
	return id, nil
}

// Watcher returns the watcher with the given id.
func (r *Registry) Watcher(id WatcherID) (*Watcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.watchers[id]
	return w, ok
}

// RemoveWatcher stops and removes a watcher. It returns false if no watcher
// has that id.
func (r *Registry) RemoveWatcher(id WatcherID) bool {
	r.mu.Lock()
	w, ok := r.watchers[id]
	if ok {
		delete(r.watchers, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	w.Stop()
	return true
}

// RemoveAllWatchers stops and removes every watcher.
func (r *Registry) RemoveAllWatchers() {
	r.mu.Lock()
	watchers := r.watchers
	r.watchers = make(map[WatcherID]*Watcher)
	r.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
}

// Watchers returns a snapshot of the current watchers.
func (r *Registry) Watchers() map[WatcherID]*Watcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[WatcherID]*Watcher, len(r.watchers))
	for id, w := range r.watchers {
		out[id] = w
	}
	return out
}

// Len returns the number of watchers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.watchers)
}
