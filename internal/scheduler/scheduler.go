// scheduler.go anchors, evaluates, and orders windows at UTC-minute
// boundaries for a single timeframe (5m or 15m). Two schedulers share
// the :00/:15/:30/:45 boundaries; when both fire on the same boundary
// the 5m loop defers to the 15m loop and records a single
// Skipped(overlap) event rather than double-firing, per spec.md §4.1.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/model"
)

// OverlapTracker coordinates the shared :00/:15/:30/:45 boundaries
// between the 5m and 15m loops so only one of them claims a given tick.
type OverlapTracker struct {
	mu      chan struct{}
	claimed map[time.Time]string
}

// NewOverlapTracker builds an OverlapTracker.
func NewOverlapTracker() *OverlapTracker {
	return &OverlapTracker{
		mu:      make(chan struct{}, 1),
		claimed: make(map[time.Time]string),
	}
}

// Claim registers timeframe as the owner of boundary; returns false if
// another timeframe already claimed it (the higher-priority caller
// should claim first - callers register 15m before 5m).
func (t *OverlapTracker) Claim(boundary time.Time, timeframe string) bool {
	t.mu <- struct{}{}
	defer func() { <-t.mu }()

	if owner, ok := t.claimed[boundary]; ok {
		log.Info().Time("boundary", boundary).Str("timeframe", timeframe).Str("owner", owner).
			Msg("window Skipped(overlap): boundary already claimed")
		return false
	}
	t.claimed[boundary] = timeframe
	return true
}

// PriceSource supplies the reconciled price used to anchor a window.
type PriceSource interface {
	Price() (decimal.Decimal, bool)
}

// Pipeline runs the anchor step of the per-window lifecycle for one
// timeframe: it wakes at each boundary, anchors the window to the
// current price, and hands the window to OnWindow, which does the
// evaluation and ordering. Run does not wake early by EntryLead, does
// not enforce EntryWindow as a submission deadline, and nothing resolves
// a window after its close.
type Pipeline struct {
	Timeframe   time.Duration
	Bucket      string
	EntryLead   time.Duration // carried from config; not read by Run
	StrategyDelay time.Duration // how long after open before evaluating
	EntryWindow time.Duration // carried from config; not read by Run

	Prices PriceSource
	Overlap *OverlapTracker

	OnWindow func(ctx context.Context, w model.Window)
}

// Run aligns to the timeframe's UTC boundaries and fires OnWindow for
// each non-overlapping window until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		next := nextBoundary(time.Now().UTC(), p.Timeframe)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if p.Overlap != nil && !p.Overlap.Claim(next, p.Timeframe.String()) {
			continue
		}

		w := model.Window{
			ID:     model.WindowID{Timeframe: p.Timeframe, OpenTS: next},
			Bucket: p.Bucket,
			OpenTS: next,
			CloseTS: next.Add(p.Timeframe),
			State:  model.WindowPending,
		}

		price, ok := p.Prices.Price()
		if !ok {
			w.State = model.WindowSkipped
			w.SkipReason = "no fresh price at anchor time"
			log.Warn().Str("window", w.ID.String()).Msg("window skipped: no fresh price")
			continue
		}
		w.AnchorPrice = price
		w.AnchorTS = time.Now().UTC()
		w.State = model.WindowAnchored

		if p.OnWindow != nil {
			go p.OnWindow(ctx, w)
		}
	}
}

// nextBoundary returns the next UTC minute-boundary aligned to
// timeframe strictly after now, re-derived from wall-clock UTC each
// call rather than accumulated monotonic deltas so the loop never
// drifts from real boundaries.
func nextBoundary(now time.Time, timeframe time.Duration) time.Time {
	truncated := now.Truncate(timeframe)
	if !truncated.After(now) {
		truncated = truncated.Add(timeframe)
	}
	return truncated
}
