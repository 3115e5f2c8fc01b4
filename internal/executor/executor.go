// Package executor submits signed orders to the CLOB and verifies their
// true fill state, since the CLOB API can acknowledge a FoK order that
// never actually matched ("phantom fill"). Structure follows the
// teacher's execution/executor.go (mutex-guarded order map, OnFill
// callback registration), retargeted at clob.Client instead of a
// simulated/live order book.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/clob"
	"github.com/oraclewindow/tradebot/internal/model"
)

const (
	fokTimeout          = 2 * time.Second
	firstVerifyDelay    = 3 * time.Second
	secondVerifyDelay   = 2 * time.Second
)

// Executor owns the lifecycle of orders from submission through
// verified fill or cancellation.
type Executor struct {
	client *clob.Client

	mu     sync.Mutex
	orders map[string]*model.Order

	onFill func(order model.Order)
}

// New builds an Executor against a signing CLOB client.
func New(client *clob.Client) *Executor {
	return &Executor{
		client: client,
		orders: make(map[string]*model.Order),
	}
}

// OnFill registers a callback invoked once an order is confirmed filled.
func (e *Executor) OnFill(fn func(order model.Order)) {
	e.onFill = fn
}

// Submit places a FoK order at limitPrice; if the FoK submission returns
// an error or times out, it retries once as a GTC order. When both
// submissions fail it returns the order as Failed; otherwise it blocks
// through fill verification and returns it as Filled or Phantom. A
// status-poll error or a cancelled ctx returns the order still marked
// Submitted, together with the error.
func (e *Executor) Submit(ctx context.Context, windowID model.WindowID, tokenID string, side clob.Side, sizeUSD, limitPrice decimal.Decimal) (model.Order, error) {
	order := model.Order{
		WindowID:   windowID,
		Side:       sideFromClob(side),
		SizeUSD:    sizeUSD,
		LimitPrice: limitPrice,
		TIF:        model.TIFFoK,
		State:      model.OrderSubmitted,
		SubmitTS:   time.Now().UTC(),
	}

	shares := sizeUSD.Div(limitPrice)

	resp, err := e.submitWithTimeout(tokenID, side, limitPrice, shares, clob.TIFFoK)
	if err != nil {
		log.Warn().Err(err).Msg("FoK order failed, falling back to GTC")
		order.TIF = model.TIFGTC
		resp, err = e.submitWithTimeout(tokenID, side, limitPrice, shares, clob.TIFGTC)
		if err != nil {
			order.State = model.OrderFailed
			return order, fmt.Errorf("order submission failed: %w", err)
		}
	}

	order.OrderID = resp.OrderID
	e.track(&order)

	return e.verifyFill(ctx, &order)
}

func (e *Executor) submitWithTimeout(tokenID string, side clob.Side, price, size decimal.Decimal, tif clob.TIF) (*clob.OrderResponse, error) {
	type result struct {
		resp *clob.OrderResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := e.client.PlaceOrder(tokenID, side, price, size, tif)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-time.After(fokTimeout):
		return nil, fmt.Errorf("order submission timed out after %s", fokTimeout)
	}
}

// verifyFill polls order status twice (after 3s, then after another 2s)
// to distinguish a genuine fill from a phantom one that the CLOB
// acknowledged but never actually matched.
func (e *Executor) verifyFill(ctx context.Context, order *model.Order) (model.Order, error) {
	select {
	case <-ctx.Done():
		return *order, ctx.Err()
	case <-time.After(firstVerifyDelay):
	}

	status, filled, err := e.client.GetOrderStatus(order.OrderID)
	if err != nil {
		return *order, fmt.Errorf("first fill check failed: %w", err)
	}
	if isTerminalFill(status, filled) {
		return e.finalize(order, status, filled), nil
	}

	select {
	case <-ctx.Done():
		return *order, ctx.Err()
	case <-time.After(secondVerifyDelay):
	}

	status, filled, err = e.client.GetOrderStatus(order.OrderID)
	if err != nil {
		return *order, fmt.Errorf("second fill check failed: %w", err)
	}
	if isTerminalFill(status, filled) {
		return e.finalize(order, status, filled), nil
	}

	// Neither poll showed a genuine match: the CLOB acked the order but
	// it never actually traded. Cancel defensively and mark phantom.
	_ = e.client.CancelOrder(order.OrderID)
	order.State = model.OrderPhantom
	log.Warn().Str("order_id", order.OrderID).Msg("order acknowledged but never matched, marking phantom")
	return *order, nil
}

func isTerminalFill(status string, filled decimal.Decimal) bool {
	return strings.EqualFold(status, "matched") && filled.IsPositive()
}

func (e *Executor) finalize(order *model.Order, status string, filled decimal.Decimal) model.Order {
	if filled.IsPositive() {
		order.State = model.OrderFilled
	} else {
		order.State = model.OrderCancelled
	}
	if e.onFill != nil && order.State == model.OrderFilled {
		e.onFill(*order)
	}
	return *order
}

// Cancel requests cancellation of a resting (GTC) order. Nothing in the
// shutdown path or the engines calls it.
func (e *Executor) Cancel(orderID string) error {
	return e.client.CancelOrder(orderID)
}

func (e *Executor) track(order *model.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders[order.OrderID] = order
}

func sideFromClob(side clob.Side) model.Side {
	if side == clob.SideBuy {
		return model.SideYes
	}
	return model.SideNo
}
