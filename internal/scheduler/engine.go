// Package scheduler drives the per-window pipeline (anchor, then hand
// off for evaluation and ordering) against UTC-minute-aligned window boundaries and owns
// the tagged-union Engine capability surface from spec.md §9 Design
// Notes: every lane (15m, 5m, late-window, arb, mm, hedge) exposes the
// same start/stop contract so the orchestrator can manage them
// uniformly, replacing the teacher's ad hoc goroutine-per-bot wiring in
// cmd/polybot/main.go with one explicit registry.
package scheduler

import "context"

// Engine is the capability surface every trading lane implements.
type Engine interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}

// Registry holds the set of engines enabled for this run and starts or
// stops them together.
type Registry struct {
	engines []Engine
	cancel  []context.CancelFunc
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers an engine with the registry. Order of registration is
// the order engines are started in.
func (r *Registry) Add(e Engine) {
	r.engines = append(r.engines, e)
}

// StartAll starts every registered engine under its own cancellable
// child context derived from parent, collecting and continuing past any
// single engine's startup failure so one broken lane never blocks the
// rest; the caller logs the returned errors.
func (r *Registry) StartAll(parent context.Context) []error {
	var errs []error
	for _, e := range r.engines {
		ctx, cancel := context.WithCancel(parent)
		r.cancel = append(r.cancel, cancel)
		if err := e.Start(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// StopAll cancels every engine's context and calls its Stop method;
// bounding total shutdown time is the caller's responsibility.
func (r *Registry) StopAll() {
	for _, cancel := range r.cancel {
		cancel()
	}
	for _, e := range r.engines {
		e.Stop()
	}
}
