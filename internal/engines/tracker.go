// Package engines adapts the scheduler/signal/risk/executor primitives
// into the concrete lanes named in spec.md §4.1: the 15m/5m window
// engines, the arbitrage scanner, the late-window scanner, and the
// market-making/hedge auxiliary engines — each implementing
// scheduler.Engine so main.go can start and stop them uniformly.
package engines

import (
	"sync"

	"github.com/oraclewindow/tradebot/internal/model"
)

// WindowTracker is a concurrency-safe registry of currently open
// windows, populated by WindowEngine and read by the late-window
// scanner so it can find candidates without its own duplicate polling
// of the window lifecycle.
type WindowTracker struct {
	mu      sync.RWMutex
	windows map[string]model.Window
}

// NewWindowTracker builds an empty WindowTracker.
func NewWindowTracker() *WindowTracker {
	return &WindowTracker{windows: make(map[string]model.Window)}
}

// Put registers or updates an open window.
func (t *WindowTracker) Put(w model.Window) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows[w.ID.String()] = w
}

// Remove drops a window once it resolves or is skipped.
func (t *WindowTracker) Remove(id model.WindowID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, id.String())
}

// OpenWindows implements latewindow.WindowSource.
func (t *WindowTracker) OpenWindows() []model.Window {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Window, 0, len(t.windows))
	for _, w := range t.windows {
		out = append(out, w)
	}
	return out
}
