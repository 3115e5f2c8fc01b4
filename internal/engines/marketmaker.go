package engines

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/clob"
	"github.com/oraclewindow/tradebot/internal/config"
	"github.com/oraclewindow/tradebot/internal/model"
	"github.com/oraclewindow/tradebot/internal/oracle"
	"github.com/oraclewindow/tradebot/internal/risk"
)

const (
	mmQuoteInterval = 5 * time.Second
	mmSpreadPct     = 0.02
	mmTimeframe     = 15 * time.Minute
)

// MarketMakerEngine quotes both sides of the current window at a fixed
// spread around the reconciled price, resting GTC orders rather than
// chasing the FoK-first path the directional lanes use. Each quote is
// sized at the mm bucket's hard cap. A one-sided fill is not rolled
// back, and resting quotes are not cancelled.
type MarketMakerEngine struct {
	feed   *oracle.Feed
	client *clob.Client
	risk   *risk.Manager
	cfg    *config.Config
	cancel context.CancelFunc
}

// NewMarketMakerEngine builds the passive quoting lane.
func NewMarketMakerEngine(feed *oracle.Feed, client *clob.Client, riskMgr *risk.Manager, cfg *config.Config) *MarketMakerEngine {
	return &MarketMakerEngine{feed: feed, client: client, risk: riskMgr, cfg: cfg}
}

func (e *MarketMakerEngine) Name() string { return "mm" }

func (e *MarketMakerEngine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	go e.run(ctx)
	return nil
}

func (e *MarketMakerEngine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *MarketMakerEngine) run(ctx context.Context) {
	ticker := time.NewTicker(mmQuoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.quote()
		}
	}
}

func (e *MarketMakerEngine) quote() {
	price, ok := e.feed.Price()
	if !ok {
		return
	}

	w := currentWindow(mmTimeframe)
	snap, ok := e.risk.Snapshot("mm")
	if !ok {
		return
	}
	size := snap.Config.HardCapUSD
	if size.LessThanOrEqual(decimal.Zero) {
		return
	}

	spread := decimal.NewFromFloat(mmSpreadPct)
	bid := price.Sub(price.Mul(spread)).Round(3)
	ask := price.Add(price.Mul(spread)).Round(3)

	yesToken := defaultTokenResolver(w, model.DirectionUp)
	noToken := defaultTokenResolver(w, model.DirectionDown)

	if _, err := e.client.PlaceOrder(yesToken, clob.SideBuy, bid, size, clob.TIFGTC); err != nil {
		log.Debug().Err(err).Msg("mm: yes-side quote failed")
	}
	if _, err := e.client.PlaceOrder(noToken, clob.SideBuy, ask, size, clob.TIFGTC); err != nil {
		log.Debug().Err(err).Msg("mm: no-side quote failed")
	}
}

// currentWindow builds the window identity for the timeframe boundary
// currently in progress, without depending on scheduler's private
// boundary helper.
func currentWindow(timeframe time.Duration) model.Window {
	now := time.Now().UTC()
	open := now.Truncate(timeframe)
	return model.Window{
		ID:     model.WindowID{Timeframe: timeframe, OpenTS: open},
		OpenTS: open,
		CloseTS: open.Add(timeframe),
	}
}
