package engines

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/clob"
	"github.com/oraclewindow/tradebot/internal/executor"
	"github.com/oraclewindow/tradebot/internal/model"
	"github.com/oraclewindow/tradebot/internal/oracle"
	"github.com/oraclewindow/tradebot/internal/risk"
	"github.com/oraclewindow/tradebot/internal/scheduler"
	"github.com/oraclewindow/tradebot/internal/signal"
	"github.com/oraclewindow/tradebot/internal/storage"
)

// TokenResolver maps a window and chosen direction to the CLOB token ID
// trading that outcome. Market discovery itself (which condition backs
// a given window) lives outside this spec's scope; the default resolver
// is a deterministic stand-in a real deployment replaces with a lookup
// against Polymarket's market listing.
type TokenResolver func(w model.Window, direction model.Direction) string

func defaultTokenResolver(w model.Window, direction model.Direction) string {
	return fmt.Sprintf("%s-%s", w.ID.String(), direction)
}

// WindowEngineParams configures one timeframe's window pipeline.
type WindowEngineParams struct {
	Name          string
	Bucket        string
	Timeframe     time.Duration
	EntryLead     time.Duration
	StrategyDelay time.Duration
	EntryWindow   time.Duration

	Feed     *oracle.Feed
	Signal   *signal.Engine
	Risk     *risk.Manager
	Executor *executor.Executor
	CLOB     *clob.Client
	Overlap  *scheduler.OverlapTracker
	Tracker  *WindowTracker
	Resolver TokenResolver

	DecisionLog *storage.JSONLStore
	ErrorLog    *storage.JSONLStore
}

// WindowEngine runs the anchor->evaluate->order pipeline for one
// timeframe, implementing scheduler.Engine.
type WindowEngine struct {
	p      WindowEngineParams
	cancel context.CancelFunc
	prices []float64
}

// NewWindowEngine builds a WindowEngine from its parameters.
func NewWindowEngine(p WindowEngineParams) *WindowEngine {
	if p.Resolver == nil {
		p.Resolver = defaultTokenResolver
	}
	if p.Tracker == nil {
		p.Tracker = NewWindowTracker()
	}
	return &WindowEngine{p: p}
}

func (e *WindowEngine) Name() string { return e.p.Name }

func (e *WindowEngine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	pipeline := &scheduler.Pipeline{
		Timeframe:     e.p.Timeframe,
		Bucket:        e.p.Bucket,
		EntryLead:     e.p.EntryLead,
		StrategyDelay: e.p.StrategyDelay,
		EntryWindow:   e.p.EntryWindow,
		Prices:        e.p.Feed,
		Overlap:       e.p.Overlap,
		OnWindow:      e.handleWindow,
	}
	go pipeline.Run(ctx)

	go e.collectPrices(ctx)
	return nil
}

func (e *WindowEngine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// collectPrices keeps a rolling trailing window of reconciled prices
// for the signal engine's indicator calculations.
func (e *WindowEngine) collectPrices(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if price, ok := e.p.Feed.Price(); ok {
				f, _ := price.Float64()
				e.prices = append(e.prices, f)
				if len(e.prices) > 600 {
					e.prices = e.prices[len(e.prices)-600:]
				}
			}
		}
	}
}

func (e *WindowEngine) handleWindow(ctx context.Context, w model.Window) {
	e.p.Tracker.Put(w)
	defer time.AfterFunc(time.Until(w.CloseTS), func() { e.p.Tracker.Remove(w.ID) })

	select {
	case <-ctx.Done():
		return
	case <-time.After(e.p.StrategyDelay):
	}

	prices := append([]float64(nil), e.prices...)
	if len(prices) < 20 {
		e.logDecision(w, model.DirectionHold, "insufficient price history", decimal.Zero)
		return
	}

	probeDirection := model.DirectionUp
	impliedPrice, _ := e.p.CLOB.MidPrice(e.p.Resolver(w, probeDirection))

	sig := e.p.Signal.Evaluate(w, prices, mustFloat(impliedPrice))
	if sig.Direction == model.DirectionHold {
		e.logDecision(w, sig.Direction, sig.Reason, decimal.Zero)
		return
	}

	decision := e.p.Risk.Evaluate(e.p.Bucket, w.ID, sig, impliedPrice)
	if !decision.Allowed {
		e.logDecision(w, sig.Direction, "risk: "+decision.Reason, decimal.Zero)
		return
	}

	tokenID := e.p.Resolver(w, sig.Direction)
	side := clob.SideBuy
	order, err := e.p.Executor.Submit(ctx, w.ID, tokenID, side, decision.SizeUSD, impliedPrice)
	if err != nil {
		e.logError(w, err)
		return
	}

	e.p.Risk.RecordSubmitted(e.p.Bucket, w.ID, decision.SizeUSD)
	e.logOrder(w, order)
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func (e *WindowEngine) logDecision(w model.Window, direction model.Direction, reason string, size decimal.Decimal) {
	if e.p.DecisionLog == nil {
		return
	}
	if err := e.p.DecisionLog.Append(map[string]interface{}{
		"window":    w.ID.String(),
		"bucket":    e.p.Bucket,
		"direction": string(direction),
		"reason":    reason,
		"size_usd":  size.String(),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to log window decision")
	}
}

func (e *WindowEngine) logOrder(w model.Window, order model.Order) {
	if e.p.DecisionLog == nil {
		return
	}
	if err := e.p.DecisionLog.Append(map[string]interface{}{
		"window":    w.ID.String(),
		"bucket":    e.p.Bucket,
		"order_id":  order.OrderID,
		"side":      string(order.Side),
		"size_usd":  order.SizeUSD.String(),
		"state":     string(order.State),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to log window order")
	}
}

func (e *WindowEngine) logError(w model.Window, cause error) {
	if e.p.ErrorLog == nil {
		log.Error().Err(cause).Str("window", w.ID.String()).Msg("order submission error")
		return
	}
	if err := e.p.ErrorLog.Append(map[string]interface{}{
		"window": w.ID.String(),
		"bucket": e.p.Bucket,
		"error":  cause.Error(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to log window error")
	}
}
