package engines

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/clob"
	"github.com/oraclewindow/tradebot/internal/config"
	"github.com/oraclewindow/tradebot/internal/executor"
	"github.com/oraclewindow/tradebot/internal/latewindow"
	"github.com/oraclewindow/tradebot/internal/model"
	"github.com/oraclewindow/tradebot/internal/oracle"
	"github.com/oraclewindow/tradebot/internal/risk"
	"github.com/oraclewindow/tradebot/internal/storage"
)

// LateWindowEngine wraps latewindow.Scanner, trading the small cheap
// edge it finds in a window's final seconds through the same
// risk/executor path as the window engines, booked under the
// late_window bucket.
type LateWindowEngine struct {
	scanner *latewindow.Scanner
	risk    *risk.Manager
	exec    *executor.Executor
	log     *storage.JSONLStore
	cancel  context.CancelFunc
}

// NewLateWindowEngine builds the auxiliary scanner that bets small and
// cheap when a window's price has drifted hard with little time left.
// tracker supplies the windows currently open in the 15m/5m lanes so the
// scanner shares one source of truth rather than re-deriving boundaries.
func NewLateWindowEngine(tracker *WindowTracker, feed *oracle.Feed, client *clob.Client, riskMgr *risk.Manager, orderExec *executor.Executor, cfg *config.Config, decisionLog *storage.JSONLStore) *LateWindowEngine {
	impliedPrice := func(windowID model.WindowID, direction model.Direction) decimal.Decimal {
		tokenID := defaultTokenResolver(model.Window{ID: windowID}, direction)
		price, err := client.MidPrice(tokenID)
		if err != nil {
			return decimal.Zero
		}
		return price
	}

	scanner := latewindow.NewScanner(tracker, feed, cfg.LateWindowMinDriftPct, cfg.LateWindowMaxEntry, impliedPrice)
	e := &LateWindowEngine{scanner: scanner, risk: riskMgr, exec: orderExec, log: decisionLog}

	scanner.OnOpportunity(func(opp latewindow.Opportunity) {
		e.handle(opp, client)
	})

	return e
}

func (e *LateWindowEngine) Name() string { return "late_window" }

func (e *LateWindowEngine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	go e.scanner.Run(ctx)
	return nil
}

func (e *LateWindowEngine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *LateWindowEngine) handle(opp latewindow.Opportunity, client *clob.Client) {
	sig := model.Signal{
		WindowID:   opp.Window.ID,
		Direction:  opp.Direction,
		Confidence: 0.55,
		DriftPct:   opp.DriftPct,
	}

	tokenID := defaultTokenResolver(opp.Window, opp.Direction)
	impliedPrice, err := client.MidPrice(tokenID)
	if err != nil {
		log.Debug().Err(err).Str("window", opp.Window.ID.String()).Msg("late window: price lookup failed")
		return
	}

	decision := e.risk.Evaluate("late_window", opp.Window.ID, sig, impliedPrice)
	if !decision.Allowed {
		e.record(opp, "skip: "+decision.Reason)
		return
	}

	order, err := e.exec.Submit(context.Background(), opp.Window.ID, tokenID, clob.SideBuy, decision.SizeUSD, impliedPrice)
	if err != nil {
		log.Error().Err(err).Str("window", opp.Window.ID.String()).Msg("late window order failed")
		e.record(opp, "error: "+err.Error())
		return
	}
	e.risk.RecordSubmitted("late_window", opp.Window.ID, decision.SizeUSD)
	e.record(opp, "submitted: "+order.OrderID)
}

func (e *LateWindowEngine) record(opp latewindow.Opportunity, outcome string) {
	if e.log == nil {
		return
	}
	if err := e.log.Append(map[string]interface{}{
		"bucket":    "late_window",
		"window":    opp.Window.ID.String(),
		"direction": string(opp.Direction),
		"drift_pct": opp.DriftPct,
		"outcome":   outcome,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to log late window decision")
	}
}
