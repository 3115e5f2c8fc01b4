package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/model"
)

const (
	primarySourceName  = "oracle_ws"
	initialBackoff     = 5 * time.Second
	maxBackoff         = 120 * time.Second
)

type wsTickMessage struct {
	Asset     string `json:"asset"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// RunPrimary maintains a persistent WebSocket subscription to the
// resolution oracle, reconnecting with doubling backoff (5s up to 120s)
// the way the teacher's feeds/polymarket_ws.go reconnect loop does,
// and ingests every tick into feed.
func RunPrimary(ctx context.Context, url, asset string, feed *Feed) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		connected, err := runPrimaryOnce(ctx, url, asset, feed)
		if connected {
			backoff = initialBackoff
		}
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("primary oracle feed disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func runPrimaryOnce(ctx context.Context, url, asset string, feed *Feed) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, fmt.Errorf("dial primary oracle: %w", err)
	}
	defer conn.Close()

	log.Info().Str("url", url).Msg("primary oracle feed connected")

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	// successful connection resets backoff for the caller's next failure
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read primary oracle: %w", err)
		}

		var msg wsTickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("unparseable primary oracle frame, skipping")
			continue
		}
		price, err := decimal.NewFromString(msg.Price)
		if err != nil {
			continue
		}
		ts := time.Now().UTC()
		if msg.Timestamp > 0 {
			ts = time.UnixMilli(msg.Timestamp).UTC()
		}

		feed.Ingest(model.Tick{
			Source:    primarySourceName,
			Asset:     msg.Asset,
			Price:     price,
			Timestamp: ts,
		})
	}
}
