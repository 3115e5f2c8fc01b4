package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/model"
)

func testWindow(anchor float64) model.Window {
	return model.Window{
		ID:          model.WindowID{Timeframe: 15 * time.Minute, OpenTS: time.Now().UTC()},
		AnchorPrice: decimal.NewFromFloat(anchor),
	}
}

func flatPrices(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base
	}
	return out
}

func TestEvaluate_DeadZone(t *testing.T) {
	e := NewEngine(DefaultWeights(), 0.5, 0.04, 0.0, 100, 1.0)
	prices := flatPrices(30, 100)
	prices[len(prices)-1] = 100.01 // drift well under 0.04%

	sig := e.Evaluate(testWindow(100), prices, 0.5)
	if sig.Direction != model.DirectionHold {
		t.Fatalf("expected HOLD inside dead zone, got %s (%s)", sig.Direction, sig.Reason)
	}
	if sig.Reason != "dead zone" {
		t.Fatalf("expected dead zone reason, got %q", sig.Reason)
	}
}

func TestEvaluate_InsufficientData(t *testing.T) {
	e := NewEngine(DefaultWeights(), 0.5, 0.04, 0.0, 100, 1.0)
	sig := e.Evaluate(testWindow(100), flatPrices(5, 100), 0.5)
	if sig.Direction != model.DirectionHold || sig.Reason != "insufficient data" {
		t.Fatalf("expected insufficient-data HOLD, got %s/%s", sig.Direction, sig.Reason)
	}
}

func trendingPrices(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestEvaluate_VolatilityGate(t *testing.T) {
	e := NewEngine(DefaultWeights(), 0.0, 0.01, 0.0, 0.0001, 1.0)
	prices := trendingPrices(30, 100, 1)
	sig := e.Evaluate(testWindow(90), prices, 0.5)
	if sig.Direction != model.DirectionHold {
		t.Fatalf("expected HOLD when volatility exceeds the ceiling, got %s (%s)", sig.Direction, sig.Reason)
	}
}

// Mirrors the clean-trade scenario: anchor drift plus agreeing secondary
// indicators should clear every veto and land on the drift's direction.
func TestEvaluate_PriceVsOpenDrivesDirection(t *testing.T) {
	e := NewEngine(DefaultWeights(), 0.5, 0.04, 0.03, 3.0, 1.0)
	prices := trendingPrices(30, 59880, 8) // monotonic rise, ~0.2% drift by the end
	sig := e.Evaluate(testWindow(60000), prices, 0.5)
	if sig.Direction != model.DirectionUp {
		t.Fatalf("expected UP driven by price_vs_open, got %s (%s)", sig.Direction, sig.Reason)
	}
	if sig.IndicatorVotes["price_vs_open"] != 1 {
		t.Fatalf("expected price_vs_open vote of +1, got %d", sig.IndicatorVotes["price_vs_open"])
	}
}
