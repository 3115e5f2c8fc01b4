// Package risk is the GATEKEEPER - no order reaches the executor without
// risk approval. Each engine lane (15m, 5m, late_window, arb, mm) owns an
// independent RiskBucket so a losing streak in one lane never throttles
// another, per the bucket-isolation design carried over from the
// teacher's single-bucket RiskManager (internal/risk/manager.go in the
// original tree) generalized to multiple lanes.
package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/config"
	"github.com/oraclewindow/tradebot/internal/model"
)

// RiskBucket tracks exposure, streaks, and cooldowns for one lane.
type RiskBucket struct {
	Name   string
	Config config.BucketConfig

	UsedUSD        decimal.Decimal
	DailyPnL       decimal.Decimal
	TradeCount     int
	LossStreak     int
	WinStreak      int
	CooldownUntil  time.Time
	TradingDay     time.Time
	TradedWindows  map[string]time.Time
}

func newBucket(name string, cfg config.BucketConfig) *RiskBucket {
	return &RiskBucket{
		Name:          name,
		Config:        cfg,
		TradingDay:    time.Now().UTC().Truncate(24 * time.Hour),
		TradedWindows: make(map[string]time.Time),
	}
}

// Decision is the result of a risk check for a proposed trade.
type Decision struct {
	Allowed     bool
	Reason      string
	SizeUSD     decimal.Decimal
}

// Manager holds one independent RiskBucket per engine lane.
type Manager struct {
	mu      sync.Mutex
	buckets map[string]*RiskBucket
}

// NewManager builds a Manager with one bucket per configured lane.
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{buckets: make(map[string]*RiskBucket)}
	for name, bc := range cfg.Buckets {
		m.buckets[name] = newBucket(name, bc)
	}
	return m
}

// Evaluate checks whether a trade in the given bucket/window is allowed
// and, if so, returns the quarter-Kelly-scaled size to submit.
func (m *Manager) Evaluate(bucketName string, windowID model.WindowID, signal model.Signal, impliedPrice decimal.Decimal) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[bucketName]
	if !ok {
		return Decision{Allowed: false, Reason: "unknown bucket: " + bucketName}
	}

	m.resetIfNewDay(b)

	if time.Now().UTC().Before(b.CooldownUntil) {
		return Decision{Allowed: false, Reason: "bucket in cooldown"}
	}
	if b.TradeCount >= b.Config.MaxTrades {
		return Decision{Allowed: false, Reason: "bucket max trades reached"}
	}
	dailyLossCap := b.Config.BankrollCapUSD.Mul(b.Config.DailyLossCapPct)
	if b.DailyPnL.Neg().GreaterThanOrEqual(dailyLossCap) {
		return Decision{Allowed: false, Reason: "bucket daily loss cap reached"}
	}
	key := windowID.String()
	if _, traded := b.TradedWindows[key]; traded {
		return Decision{Allowed: false, Reason: "window already traded in this bucket"}
	}

	size := quarterKellySize(b, signal)
	remaining := b.Config.BankrollCapUSD.Sub(b.UsedUSD)
	if size.GreaterThan(remaining) {
		size = remaining
	}
	if size.GreaterThan(b.Config.HardCapUSD) {
		size = b.Config.HardCapUSD
	}
	if size.LessThan(minTradeUSD) {
		return Decision{Allowed: false, Reason: "sized below minimum trade"}
	}

	return Decision{Allowed: true, SizeUSD: size.Round(2)}
}

// minTradeUSD is the smallest stake worth submitting; anything under it
// vetoes regardless of how it was clamped.
var minTradeUSD = decimal.NewFromInt(1)

// quarterKellySize computes the bucket's quarter-Kelly stake from the
// signal's edge alone: e = 2*confidence - 1, s = bankroll * e * kelly_fraction.
// Unlike classic Kelly sizing this is independent of the market's implied
// price; confidence already reflects the signal engine's own edge estimate.
func quarterKellySize(b *RiskBucket, signal model.Signal) decimal.Decimal {
	edge := 2*signal.Confidence - 1
	if edge <= 0 {
		return decimal.Zero
	}
	kellyFrac, _ := b.Config.KellyFraction.Float64()
	bankroll, _ := b.Config.BankrollCapUSD.Float64()
	return decimal.NewFromFloat(bankroll * edge * kellyFrac)
}

// RecordSubmitted marks the window as traded in this bucket and reserves
// the size against the bucket's used-capacity accounting.
func (m *Manager) RecordSubmitted(bucketName string, windowID model.WindowID, sizeUSD decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucketName]
	if !ok {
		return
	}
	b.TradeCount++
	b.UsedUSD = b.UsedUSD.Add(sizeUSD)
	b.TradedWindows[windowID.String()] = time.Now().UTC()
}

// RecordWin releases the reserved size and credits realized PnL.
func (m *Manager) RecordWin(bucketName string, sizeUSD, pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucketName]
	if !ok {
		return
	}
	b.UsedUSD = b.UsedUSD.Sub(sizeUSD)
	b.DailyPnL = b.DailyPnL.Add(pnl)
	b.WinStreak++
	b.LossStreak = 0
}

// RecordLoss releases the reserved size, debits PnL, and arms a cooldown
// once the bucket's loss-streak threshold is reached.
func (m *Manager) RecordLoss(bucketName string, sizeUSD, pnl decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucketName]
	if !ok {
		return
	}
	b.UsedUSD = b.UsedUSD.Sub(sizeUSD)
	b.DailyPnL = b.DailyPnL.Add(pnl)
	b.WinStreak = 0
	b.LossStreak++
	if b.LossStreak >= b.Config.MaxStreak {
		b.CooldownUntil = time.Now().UTC().Add(time.Duration(b.Config.CooldownMins) * time.Minute)
		log.Warn().Str("bucket", bucketName).Int("loss_streak", b.LossStreak).
			Time("cooldown_until", b.CooldownUntil).Msg("risk bucket entering cooldown")
	}
}

// RecordPush releases the reserved size with no PnL impact (resolved push).
func (m *Manager) RecordPush(bucketName string, sizeUSD decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucketName]
	if !ok {
		return
	}
	b.UsedUSD = b.UsedUSD.Sub(sizeUSD)
}

// Snapshot returns a read-only copy of a bucket's state for persistence
// or dashboard reporting.
func (m *Manager) Snapshot(bucketName string) (RiskBucket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucketName]
	if !ok {
		return RiskBucket{}, false
	}
	return *b, true
}

func (m *Manager) resetIfNewDay(b *RiskBucket) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if today.After(b.TradingDay) {
		log.Info().Str("bucket", b.Name).Msg("new trading day, resetting bucket limits")
		b.DailyPnL = decimal.Zero
		b.TradeCount = 0
		b.TradingDay = today
		b.TradedWindows = make(map[string]time.Time)
	}
}
