// Package latewindow implements the auxiliary late-entry engine named in
// spec.md §4.1/§4.7: it scans windows in their final seconds for a
// drift large enough to justify a cheap directional bet, grounded on
// the teacher's feeds/window_scanner.go polling-loop shape.
package latewindow

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/model"
)

const (
	scanInterval    = 3 * time.Second
	minRemaining    = 30 * time.Second
	maxRemaining    = 150 * time.Second
)

// WindowSource supplies windows currently open for late entry.
type WindowSource interface {
	OpenWindows() []model.Window
}

// PriceSource supplies the latest reconciled price for drift calculation.
type PriceSource interface {
	Price() (decimal.Decimal, bool)
}

// Opportunity is a late-window candidate that cleared the drift and
// price filters.
type Opportunity struct {
	Window    model.Window
	Direction model.Direction
	DriftPct  float64
}

// Scanner polls open windows every 2-5s looking for a strong enough
// late drift to enter cheaply.
type Scanner struct {
	windows       WindowSource
	prices        PriceSource
	minDriftPct   float64
	maxEntryPrice decimal.Decimal
	impliedPrice  func(model.WindowID, model.Direction) decimal.Decimal

	onOpportunity func(Opportunity)
}

// NewScanner builds a late-window Scanner.
func NewScanner(windows WindowSource, prices PriceSource, minDriftPct float64, maxEntryPrice decimal.Decimal, impliedPrice func(model.WindowID, model.Direction) decimal.Decimal) *Scanner {
	return &Scanner{
		windows:       windows,
		prices:        prices,
		minDriftPct:   minDriftPct,
		maxEntryPrice: maxEntryPrice,
		impliedPrice:  impliedPrice,
	}
}

// OnOpportunity registers the callback invoked for each qualifying window.
func (s *Scanner) OnOpportunity(fn func(Opportunity)) {
	s.onOpportunity = fn
}

// Run polls on scanInterval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan()
		}
	}
}

func (s *Scanner) scan() {
	price, ok := s.prices.Price()
	if !ok {
		return
	}

	for _, w := range s.windows.OpenWindows() {
		remaining := time.Until(w.CloseTS)
		if remaining < minRemaining || remaining > maxRemaining {
			continue
		}

		anchor, _ := w.AnchorPrice.Float64()
		current, _ := price.Float64()
		if anchor == 0 {
			continue
		}
		driftPct := (current - anchor) / anchor * 100
		if math.Abs(driftPct) < s.minDriftPct {
			continue
		}

		direction := model.DirectionUp
		if driftPct < 0 {
			direction = model.DirectionDown
		}

		if s.impliedPrice != nil {
			entryPrice := s.impliedPrice(w.ID, direction)
			if entryPrice.GreaterThan(s.maxEntryPrice) {
				log.Debug().Str("window", w.ID.String()).Str("entry_price", entryPrice.String()).
					Msg("late window entry too expensive, skipping")
				continue
			}
		}

		if s.onOpportunity != nil {
			s.onOpportunity(Opportunity{Window: w, Direction: direction, DriftPct: driftPct})
		}
	}
}
