package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/config"
	"github.com/oraclewindow/tradebot/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Buckets: map[string]config.BucketConfig{
			"a": {
				BankrollCapUSD:  decimal.NewFromFloat(100),
				KellyFraction:   decimal.NewFromFloat(1.0),
				HardCapUSD:      decimal.NewFromFloat(50),
				DailyLossCapPct: decimal.NewFromFloat(0.5),
				MaxTrades:       10,
				MaxStreak:       3,
				CooldownMins:    30,
			},
			"b": {
				BankrollCapUSD:  decimal.NewFromFloat(100),
				KellyFraction:   decimal.NewFromFloat(1.0),
				HardCapUSD:      decimal.NewFromFloat(50),
				DailyLossCapPct: decimal.NewFromFloat(0.5),
				MaxTrades:       10,
				MaxStreak:       3,
				CooldownMins:    30,
			},
		},
	}
}

func strongSignal() model.Signal {
	return model.Signal{Direction: model.DirectionUp, Confidence: 0.9}
}

func TestEvaluate_UnknownBucket(t *testing.T) {
	m := NewManager(testConfig())
	d := m.Evaluate("nope", model.WindowID{}, strongSignal(), decimal.NewFromFloat(0.5))
	if d.Allowed {
		t.Fatal("expected unknown bucket to be rejected")
	}
}

func TestEvaluate_BucketIsolation(t *testing.T) {
	m := NewManager(testConfig())

	// Exhaust bucket "a" via repeated losses until cooldown trips.
	for i := 0; i < 3; i++ {
		m.RecordLoss("a", decimal.NewFromFloat(10), decimal.NewFromFloat(-10))
	}

	wA := model.WindowID{Timeframe: time.Minute, OpenTS: time.Now().UTC()}
	dA := m.Evaluate("a", wA, strongSignal(), decimal.NewFromFloat(0.5))
	if dA.Allowed {
		t.Fatal("expected bucket a to be in cooldown after max loss streak")
	}

	wB := model.WindowID{Timeframe: time.Minute, OpenTS: time.Now().UTC().Add(time.Second)}
	dB := m.Evaluate("b", wB, strongSignal(), decimal.NewFromFloat(0.5))
	if !dB.Allowed {
		t.Fatalf("expected bucket b to be unaffected by bucket a's cooldown, got reason %q", dB.Reason)
	}
}

func TestEvaluate_NoDuplicateWindow(t *testing.T) {
	m := NewManager(testConfig())
	w := model.WindowID{Timeframe: time.Minute, OpenTS: time.Now().UTC()}

	d1 := m.Evaluate("a", w, strongSignal(), decimal.NewFromFloat(0.5))
	if !d1.Allowed {
		t.Fatalf("expected first evaluation to be allowed, got %q", d1.Reason)
	}
	m.RecordSubmitted("a", w, d1.SizeUSD)

	d2 := m.Evaluate("a", w, strongSignal(), decimal.NewFromFloat(0.5))
	if d2.Allowed {
		t.Fatal("expected second evaluation of the same window to be rejected")
	}
}

func TestEvaluate_HardCapClamps(t *testing.T) {
	cfg := testConfig()
	bc := cfg.Buckets["a"]
	bc.HardCapUSD = decimal.NewFromFloat(1)
	cfg.Buckets["a"] = bc

	m := NewManager(cfg)
	w := model.WindowID{Timeframe: time.Minute, OpenTS: time.Now().UTC()}
	d := m.Evaluate("a", w, strongSignal(), decimal.NewFromFloat(0.2))
	if !d.Allowed {
		t.Fatalf("expected a sized-down trade to still be allowed, got %q", d.Reason)
	}
	if d.SizeUSD.GreaterThan(decimal.NewFromFloat(1)) {
		t.Fatalf("expected size to be clamped to the hard cap, got %s", d.SizeUSD)
	}
}

func TestRecordWin_ReleasesUsedAndResetsStreak(t *testing.T) {
	m := NewManager(testConfig())
	w1 := model.WindowID{Timeframe: time.Minute, OpenTS: time.Now().UTC()}

	d1 := m.Evaluate("a", w1, strongSignal(), decimal.NewFromFloat(0.2))
	if !d1.Allowed {
		t.Fatalf("expected first trade to be allowed, got %q", d1.Reason)
	}
	m.RecordSubmitted("a", w1, d1.SizeUSD)
	m.RecordLoss("a", d1.SizeUSD, decimal.NewFromFloat(-1))

	snap, ok := m.Snapshot("a")
	if !ok {
		t.Fatal("expected bucket a to exist")
	}
	if snap.LossStreak != 1 {
		t.Fatalf("expected loss streak 1, got %d", snap.LossStreak)
	}
	if !snap.UsedUSD.Equal(decimal.Zero) {
		t.Fatalf("expected used capacity released after loss, got %s", snap.UsedUSD)
	}

	w2 := model.WindowID{Timeframe: time.Minute, OpenTS: time.Now().UTC().Add(time.Second)}
	d2 := m.Evaluate("a", w2, strongSignal(), decimal.NewFromFloat(0.2))
	if !d2.Allowed {
		t.Fatalf("expected second trade to be allowed, got %q", d2.Reason)
	}
	m.RecordSubmitted("a", w2, d2.SizeUSD)
	m.RecordWin("a", d2.SizeUSD, decimal.NewFromFloat(1))

	snap, _ = m.Snapshot("a")
	if snap.LossStreak != 0 {
		t.Fatalf("expected win to reset loss streak, got %d", snap.LossStreak)
	}
	if !snap.UsedUSD.Equal(decimal.Zero) {
		t.Fatalf("expected used capacity to be fully released, got %s", snap.UsedUSD)
	}
}
