// Package arb scans paired YES/NO markets across timeframes for
// mispricing where PYes+PNo diverges from 1.0, grounded on the
// teacher's internal/arbitrage/engine.go position-paired submission and
// single-leg rollback logic, generalized from a single timeframe to the
// {5m,15m,30m,1h} set spec.md §4.6 names.
package arb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/clob"
	"github.com/oraclewindow/tradebot/internal/model"
)

var timeframes = []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute, time.Hour}

// MarketPair names the YES/NO token IDs for one timeframe's market.
type MarketPair struct {
	Timeframe time.Duration
	MarketID  string
	YesToken  string
	NoToken   string
}

// Scanner polls each configured market pair for arbitrage opportunities.
type Scanner struct {
	client        *clob.Client
	pairs         []MarketPair
	pollInterval  time.Duration
	threshold     decimal.Decimal
	minEdgePct    decimal.Decimal
	sizeUSD       decimal.Decimal

	onOpportunity func(model.ArbOpportunity)
}

// NewScanner builds an arb Scanner over the given market pairs.
func NewScanner(client *clob.Client, pairs []MarketPair, pollInterval time.Duration, threshold, minEdgePct, sizeUSD decimal.Decimal) *Scanner {
	return &Scanner{
		client:       client,
		pairs:        pairs,
		pollInterval: pollInterval,
		threshold:    threshold,
		minEdgePct:   minEdgePct,
		sizeUSD:      sizeUSD,
	}
}

// OnOpportunity registers a callback invoked for each detected arbitrage
// opportunity that clears the edge threshold.
func (s *Scanner) OnOpportunity(fn func(model.ArbOpportunity)) {
	s.onOpportunity = fn
}

// Run polls every configured pair on s.pollInterval (spec default 8s)
// until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, pair := range s.pairs {
				s.scanPair(pair)
			}
		}
	}
}

func (s *Scanner) scanPair(pair MarketPair) {
	pYes, err := s.client.MidPrice(pair.YesToken)
	if err != nil {
		log.Debug().Err(err).Str("market", pair.MarketID).Msg("arb scan: yes price unavailable")
		return
	}
	pNo, err := s.client.MidPrice(pair.NoToken)
	if err != nil {
		log.Debug().Err(err).Str("market", pair.MarketID).Msg("arb scan: no price unavailable")
		return
	}

	sum := pYes.Add(pNo)
	edge := decimal.NewFromInt(1).Sub(sum).Abs()
	if sum.GreaterThan(s.threshold) && edge.LessThan(s.minEdgePct) {
		return
	}
	if edge.LessThan(s.minEdgePct) {
		return
	}

	opp := model.ArbOpportunity{
		MarketA:   pair.YesToken,
		MarketB:   pair.NoToken,
		Timeframe: pair.Timeframe,
		PYes:      pYes,
		PNo:       pNo,
		Sum:       sum,
		EdgePct:   edge,
		Timestamp: time.Now().UTC(),
	}
	log.Info().Str("market", pair.MarketID).Str("sum", sum.String()).Str("edge", edge.String()).
		Msg("arb opportunity detected")
	if s.onOpportunity != nil {
		s.onOpportunity(opp)
	}
}

// ExecutePaired submits both legs of an arbitrage opportunity and rolls
// back the first leg if the second fails to match, mirroring the
// teacher's paired-order rollback in internal/arbitrage/engine.go.
func (s *Scanner) ExecutePaired(pair MarketPair, opp model.ArbOpportunity) error {
	underpriced, overpriced := pair.YesToken, pair.NoToken
	underPrice, overPrice := opp.PYes, opp.PNo
	if opp.PYes.GreaterThan(opp.PNo) {
		underpriced, overpriced = pair.NoToken, pair.YesToken
		underPrice, overPrice = opp.PNo, opp.PYes
	}

	firstResp, err := s.client.PlaceOrder(underpriced, clob.SideBuy, underPrice, s.sizeUSD, clob.TIFFoK)
	if err != nil {
		return fmt.Errorf("arb leg 1 failed: %w", err)
	}

	secondResp, err := s.client.PlaceOrder(overpriced, clob.SideSell, overPrice, s.sizeUSD, clob.TIFFoK)
	if err != nil {
		log.Warn().Err(err).Msg("arb leg 2 failed, rolling back leg 1")
		if cancelErr := s.client.CancelOrder(firstResp.OrderID); cancelErr != nil {
			log.Error().Err(cancelErr).Str("order_id", firstResp.OrderID).Msg("arb rollback cancel failed")
		}
		return fmt.Errorf("arb leg 2 failed, leg 1 rolled back: %w", err)
	}

	log.Info().Str("leg1", firstResp.OrderID).Str("leg2", secondResp.OrderID).Msg("arb pair executed")
	return nil
}
