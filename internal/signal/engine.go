// Package signal turns a window's anchor price and the live reconciled
// price feed into a directional Signal, combining weighted technical
// indicators the way the teacher's internal/strategy/crypto_15m.go
// weighs RSI/momentum/volume/order-book/funding/buy-sell-ratio scores,
// then applying the dead-zone, agreement, fee, and volatility vetoes
// described in spec.md §4.3.
package signal

import (
	"math"

	"github.com/oraclewindow/tradebot/internal/indicators"
	"github.com/oraclewindow/tradebot/internal/model"
)

// Weights mirrors the teacher's IndicatorWeights shape, generalized to
// the indicator set this spec actually scores on. PriceVsOpen carries
// the dominant share: drift against the window's anchor price is the
// thing being traded, the other four only confirm or veto it.
type Weights struct {
	PriceVsOpen float64
	Momentum    float64
	RSI         float64
	MACD        float64
	EMACross    float64
}

// DefaultWeights sums to 1.0. PriceVsOpen dominates; the four secondary
// indicators only exist to catch a drift that nothing else confirms.
func DefaultWeights() Weights {
	return Weights{
		PriceVsOpen: 0.70,
		Momentum:    0.09,
		RSI:         0.075,
		MACD:        0.075,
		EMACross:    0.06,
	}
}

// driftToScoreK maps a fractional drift to a [-1,+1] score such that a
// 0.10% drift scores ~1.0.
const driftToScoreK = 1000.0

// Engine scores a Window against recent prices and feed volatility.
type Engine struct {
	weights       Weights
	minConfidence float64
	deadZonePct   float64
	minVolPct     float64
	maxVolPct     float64
	feeRatePct    float64
}

// NewEngine builds a signal Engine from the configured thresholds.
func NewEngine(weights Weights, minConfidence, deadZonePct, minVolPct, maxVolPct, feeRatePct float64) *Engine {
	return &Engine{
		weights:       weights,
		minConfidence: minConfidence,
		deadZonePct:   deadZonePct,
		minVolPct:     minVolPct,
		maxVolPct:     maxVolPct,
		feeRatePct:    feeRatePct,
	}
}

// Evaluate computes a Signal for window given the trailing price series
// (oldest first, most recent last) and the market's implied price for
// the favored side, used by the fee-adjusted-edge veto.
func (e *Engine) Evaluate(w model.Window, prices []float64, impliedPrice float64) model.Signal {
	sig := model.Signal{
		WindowID:       w.ID,
		Direction:      model.DirectionHold,
		IndicatorVotes: make(map[string]int),
		Reason:         "insufficient data",
	}
	if len(prices) < 20 {
		return sig
	}

	current := prices[len(prices)-1]
	anchor, _ := w.AnchorPrice.Float64()
	driftFrac := 0.0
	if anchor != 0 {
		driftFrac = (current - anchor) / anchor
	}
	driftPct := driftFrac * 100
	volPct := indicators.Volatility(prices) / current * 100

	priceVsOpen := clamp(driftFrac*driftToScoreK, -1, 1)
	scores := e.scoreIndicators(prices)

	composite := priceVsOpen * e.weights.PriceVsOpen
	for name, s := range scores {
		composite += s * e.weightFor(name)
		if s > 0 {
			sig.IndicatorVotes[name] = 1
		} else if s < 0 {
			sig.IndicatorVotes[name] = -1
		}
	}
	sig.IndicatorVotes["price_vs_open"] = signOf(priceVsOpen)

	sig.DriftPct = driftPct
	sig.VolatilityPct = volPct
	sig.Confidence = math.Min(1.0, math.Abs(composite))

	// Dead zone: drift too small to be distinguishable from noise.
	if math.Abs(driftPct) < e.deadZonePct {
		sig.Direction = model.DirectionHold
		sig.Reason = "dead zone"
		return sig
	}

	direction := model.DirectionUp
	if composite < 0 {
		direction = model.DirectionDown
	}

	// Agreement filter: if price_vs_open has a clear sign and 3 or more of
	// the 4 secondary indicators oppose it, the drift is treated as
	// unconfirmed noise.
	if pvoSign := signOf(priceVsOpen); pvoSign != 0 {
		oppose := 0
		for _, s := range scores {
			if signOf(s) != 0 && signOf(s) != pvoSign {
				oppose++
			}
		}
		if oppose >= 3 {
			sig.Direction = model.DirectionHold
			sig.Reason = "agreement"
			return sig
		}
	}

	if sig.Confidence < e.minConfidence {
		sig.Direction = model.DirectionHold
		sig.Reason = "confidence below threshold"
		return sig
	}

	// Fee-adjusted edge veto: the implied win probability must clear the
	// CLOB's taker fee, or the edge is illusory.
	if impliedPrice > 0 && impliedPrice < 1 {
		edge := sig.Confidence - impliedPrice
		if edge < e.feeRatePct/100 {
			sig.Direction = model.DirectionHold
			sig.Reason = "edge does not clear fee"
			return sig
		}
	}

	// Volatility gate: too quiet means no real move is happening; too
	// wild means the anchor price itself is unreliable.
	if volPct < e.minVolPct || volPct > e.maxVolPct {
		sig.Direction = model.DirectionHold
		sig.Reason = "volatility outside tradeable band"
		return sig
	}

	sig.Direction = direction
	sig.Reason = "composite signal"
	return sig
}

// scoreIndicators computes the 4 non-drift components, each already
// mapped into [-1, +1].
func (e *Engine) scoreIndicators(prices []float64) map[string]float64 {
	scores := make(map[string]float64)

	// rsi_14: Wilder's RSI mapped from [0,100] to [-1,+1], 50 -> 0. RSI
	// above 50 agrees with an uptrend, so it scores positive.
	rsi := indicators.RSI(prices, 14)
	scores["rsi"] = clamp((rsi-50)/50, -1, 1)

	// ema_cross: sign(EMA5 - EMA15) * normalized gap.
	fast, slow := indicators.EMA(prices, 5), indicators.EMA(prices, 15)
	if slow != 0 {
		scores["ema_cross"] = clamp((fast-slow)/slow*50, -1, 1)
	}

	// momentum: sign and magnitude of price change over the last 3 candles.
	// 1% move over 3 candles scores +-1.
	scores["momentum"] = clamp(indicators.Momentum(prices, 3), -1, 1)

	// macd: sign of the MACD(12,26,9) histogram times a magnitude heuristic.
	macdLine, signalLine, _ := indicators.MACD(prices, 12, 26, 9)
	current := prices[len(prices)-1]
	if current != 0 {
		scores["macd"] = clamp((macdLine-signalLine)/current*50, -1, 1)
	}

	return scores
}

func (e *Engine) weightFor(indicator string) float64 {
	switch indicator {
	case "rsi":
		return e.weights.RSI
	case "ema_cross":
		return e.weights.EMACross
	case "momentum":
		return e.weights.Momentum
	case "macd":
		return e.weights.MACD
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func signOf(v float64) int {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
