// Package oracle maintains a reconciled view of the resolution price
// across a primary streaming source and two secondary HTTP pollers,
// the way the teacher's feeds/polymarket_ws.go and internal/binance
// client combine a WS feed with REST polling fallbacks.
package oracle

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/model"
)

// Feed tracks the latest tick from each configured source and exposes a
// single reconciled price for the scheduler and signal engine to read.
type Feed struct {
	mu      sync.RWMutex
	latest  map[string]model.Tick
	staleAfter time.Duration

	subsMu sync.Mutex
	subs   []chan model.Tick
}

// NewFeed builds an empty Feed; sources push ticks into it via Ingest.
func NewFeed(staleAfter time.Duration) *Feed {
	return &Feed{
		latest:     make(map[string]model.Tick),
		staleAfter: staleAfter,
	}
}

// Ingest records a tick from a source and fans it out to subscribers.
func (f *Feed) Ingest(tick model.Tick) {
	f.mu.Lock()
	f.latest[tick.Source] = tick
	f.mu.Unlock()

	f.subsMu.Lock()
	for _, ch := range f.subs {
		select {
		case ch <- tick:
		default:
		}
	}
	f.subsMu.Unlock()
}

// Subscribe returns a channel that receives every ingested tick. The
// channel is buffered and never closed; callers read until ctx is done.
func (f *Feed) Subscribe(buffer int) <-chan model.Tick {
	ch := make(chan model.Tick, buffer)
	f.subsMu.Lock()
	f.subs = append(f.subs, ch)
	f.subsMu.Unlock()
	return ch
}

// Reconciled returns the freshest non-stale tick across all sources,
// preferring the primary source when it is fresh. Returns false if every
// source is stale or no tick has ever arrived.
func (f *Feed) Reconciled(primarySource string) (model.Tick, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if t, ok := f.latest[primarySource]; ok && !t.Stale(f.staleAfter) {
		return t, true
	}

	var best model.Tick
	found := false
	for _, t := range f.latest {
		if t.Stale(f.staleAfter) {
			continue
		}
		if !found || t.Timestamp.After(best.Timestamp) {
			best = t
			found = true
		}
	}
	if !found {
		log.Warn().Msg("oracle feed has no fresh source, all ticks stale")
	}
	return best, found
}

// Price returns the reconciled price against the primary WS source,
// satisfying the scheduler.PriceSource and latewindow.PriceSource
// interfaces without those packages depending on oracle's internals.
func (f *Feed) Price() (decimal.Decimal, bool) {
	t, ok := f.Reconciled(primarySourceName)
	return t.Price, ok
}

// Sources returns the names of all sources that have ever reported.
func (f *Feed) Sources() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.latest))
	for name := range f.latest {
		names = append(names, name)
	}
	return names
}
