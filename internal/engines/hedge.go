package engines

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oraclewindow/tradebot/internal/clob"
	"github.com/oraclewindow/tradebot/internal/config"
	"github.com/oraclewindow/tradebot/internal/risk"
)

const hedgeCheckInterval = 10 * time.Second

// HedgeEngine is a second line of defense behind arb.Scanner's own
// single-leg rollback: it periodically checks whether the arb bucket is
// carrying exposure a failed rollback left behind, and flags it for
// manual or automated neutralization rather than letting a naked
// position sit unnoticed until the next arb poll.
type HedgeEngine struct {
	client *clob.Client
	risk   *risk.Manager
	cfg    *config.Config
	cancel context.CancelFunc
}

// NewHedgeEngine builds the exposure-watcher for the arb bucket.
func NewHedgeEngine(client *clob.Client, riskMgr *risk.Manager, cfg *config.Config) *HedgeEngine {
	return &HedgeEngine{client: client, risk: riskMgr, cfg: cfg}
}

func (e *HedgeEngine) Name() string { return "hedge" }

func (e *HedgeEngine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	go e.run(ctx)
	return nil
}

func (e *HedgeEngine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *HedgeEngine) run(ctx context.Context) {
	ticker := time.NewTicker(hedgeCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checkExposure()
		}
	}
}

func (e *HedgeEngine) checkExposure() {
	snap, ok := e.risk.Snapshot("arb")
	if !ok || snap.UsedUSD.IsZero() {
		return
	}
	log.Warn().Str("used_usd", snap.UsedUSD.String()).
		Msg("hedge: arb bucket carrying unresolved exposure past a rollback window")
}
