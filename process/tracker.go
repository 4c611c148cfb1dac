package process

import (
	"sort"
	"sync"

	"github.com/jowharshamshiri/Janus/errors"
)

// Tracker is an explicit registry of live process handles. The top-level
// runner owns one Tracker and passes it down; there is no ambient global
// list of spawned processes. Signal handlers and deferred cleanup can
// both call CleanupAll; whichever runs first does the work.
type Tracker struct {
	mgr *Manager

	mu      sync.Mutex
	handles map[string]*Handle // keyed by socket path
}

// NewTracker creates a tracker that stops handles through mgr.
func NewTracker(mgr *Manager) *Tracker {
	return &Tracker{
		mgr:     mgr,
		handles: make(map[string]*Handle),
	}
}

// Track registers a live handle.
func (t *Tracker) Track(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles[h.SocketPath()] = h
}

// Untrack removes a handle, typically after an orderly Stop.
func (t *Tracker) Untrack(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handles, h.SocketPath())
}

// Len returns the number of tracked handles.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// Names returns the implementation names with live handles, sorted.
func (t *Tracker) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.handles))
	for _, h := range t.handles {
		names = append(names, h.Name())
	}
	sort.Strings(names)
	return names
}

// Stop stops one handle and removes it from the tracker.
func (t *Tracker) Stop(h *Handle) error {
	t.Untrack(h)
	return t.mgr.Stop(h)
}

// CleanupAll stops every tracked handle. Safe to call repeatedly and
// from multiple goroutines; each handle is stopped exactly once.
func (t *Tracker) CleanupAll() {
	t.mu.Lock()
	drained := make([]*Handle, 0, len(t.handles))
	for _, h := range t.handles {
		drained = append(drained, h)
	}
	t.handles = make(map[string]*Handle)
	t.mu.Unlock()

	for _, h := range drained {
		if err := t.mgr.Stop(h); err != nil && !errors.Is(err, errors.ErrAlreadyStopped) {
			t.mgr.cfg.Logger.Warn("cleanup stop failed",
				"implementation", h.Name(), "error", err)
		}
	}
}
