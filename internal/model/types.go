// Package model holds the data types shared across engines, avoiding
// import cycles between oracle, signal, risk, clob and scheduler.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the outcome a Signal or Order bets on.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionHold Direction = "HOLD"
)

// Side is the CLOB outcome token side.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// TIF is the order time-in-force.
type TIF string

const (
	TIFFoK TIF = "FOK"
	TIFGTC TIF = "GTC"
)

// OrderState tracks the lifecycle of a submitted order.
type OrderState string

const (
	OrderSubmitted OrderState = "Submitted"
	OrderMatched   OrderState = "Matched"
	OrderFilled    OrderState = "Filled"
	OrderPhantom   OrderState = "Phantom"
	OrderFailed    OrderState = "Failed"
	OrderCancelled OrderState = "Cancelled"
)

// WindowState tracks a window through the per-window pipeline.
type WindowState string

const (
	WindowPending   WindowState = "Pending"
	WindowAnchored  WindowState = "Anchored"
	WindowEvaluated WindowState = "Evaluated"
	WindowOrdered   WindowState = "Ordered"
	WindowResolved  WindowState = "Resolved"
	WindowSkipped   WindowState = "Skipped"
)

// Tick is a single price observation from an oracle source.
type Tick struct {
	Source    string
	Asset     string
	Price     decimal.Decimal
	Timestamp time.Time
}

// Stale reports whether the tick is older than staleAfter.
func (t Tick) Stale(staleAfter time.Duration) bool {
	if t.Timestamp.IsZero() {
		return true
	}
	return time.Since(t.Timestamp) > staleAfter
}

// WindowID uniquely identifies a window by timeframe and open time.
type WindowID struct {
	Timeframe time.Duration
	OpenTS    time.Time
}

func (w WindowID) String() string {
	return w.OpenTS.UTC().Format(time.RFC3339) + "/" + w.Timeframe.String()
}

// Window is a fixed-length market interval that resolves binary Up/Down.
type Window struct {
	ID         WindowID
	Bucket     string // risk bucket lane this window trades under
	OpenTS     time.Time
	CloseTS    time.Time
	AnchorPrice decimal.Decimal
	AnchorTS   time.Time
	State      WindowState
	SkipReason string
}

// Signal is the output of the SignalEngine for a single window.
type Signal struct {
	WindowID        WindowID
	Direction       Direction
	Confidence      float64
	DriftPct        float64
	VolatilityPct   float64
	IndicatorVotes  map[string]int // name -> -1, 0, +1
	Reason          string
}

// Order is a signed order submitted to the CLOB.
type Order struct {
	OrderID    string
	WindowID   WindowID
	Side       Side
	SizeUSD    decimal.Decimal
	LimitPrice decimal.Decimal
	TIF        TIF
	State      OrderState
	SubmitTS   time.Time
}

// Position is an open stake resulting from a Filled order.
type Position struct {
	WindowID    WindowID
	Side        Side
	Shares      decimal.Decimal
	EntryPrice  decimal.Decimal
	EntryTS     time.Time
	RealizedPnL decimal.Decimal
}

// ArbOpportunity is a detected cross-side mispricing on one timeframe.
type ArbOpportunity struct {
	MarketA   string
	MarketB   string
	Timeframe time.Duration
	PYes      decimal.Decimal
	PNo       decimal.Decimal
	Sum       decimal.Decimal
	EdgePct   decimal.Decimal
	Timestamp time.Time
}
