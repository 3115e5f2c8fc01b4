package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/model"
)

const minPollCadence = 2 * time.Second

// RunSecondaryPoller polls an HTTP price endpoint at the given cadence
// (clamped to at least 2s, per spec §4.2) and ingests each successful
// read into feed. parse extracts the decimal price from the response
// body, since Binance and Coinbase use different JSON shapes.
func RunSecondaryPoller(ctx context.Context, name, url, asset string, cadence time.Duration, parse func([]byte) (decimal.Decimal, error), feed *Feed) {
	if cadence < minPollCadence {
		cadence = minPollCadence
	}
	client := &http.Client{Timeout: cadence / 2}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			price, err := fetchPrice(ctx, client, url, parse)
			if err != nil {
				log.Debug().Err(err).Str("source", name).Msg("secondary oracle poll failed")
				continue
			}
			feed.Ingest(model.Tick{
				Source:    name,
				Asset:     asset,
				Price:     price,
				Timestamp: time.Now().UTC(),
			})
		}
	}
}

func fetchPrice(ctx context.Context, client *http.Client, url string, parse func([]byte) (decimal.Decimal, error)) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body []byte
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		body = append(body, buf[:n]...)
		if readErr != nil {
			break
		}
	}
	return parse(body)
}

// ParseBinanceTicker extracts the price field from Binance's
// /api/v3/ticker/price response: {"symbol":"BTCUSDT","price":"..."}.
func ParseBinanceTicker(body []byte) (decimal.Decimal, error) {
	var payload struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(payload.Price)
}

// ParseCoinbaseSpot extracts the price field from Coinbase's
// /v2/prices/{pair}/spot response: {"data":{"amount":"...","base":"BTC"}}.
func ParseCoinbaseSpot(body []byte) (decimal.Decimal, error) {
	var payload struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(payload.Data.Amount)
}
