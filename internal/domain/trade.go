package domain

import (
	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	TradeSide_Buy  TradeSide = "BUY"
	TradeSide_Sell TradeSide = "SELL"
)

// CostBreakdown decomposes one trade's estimated friction.
type CostBreakdown struct {
	Spread decimal.Decimal
	Fixed  decimal.Decimal
	Impact decimal.Decimal
	Total  decimal.Decimal
	// Bps is Total relative to the trade's notional, in basis points.
	Bps float64
}

// Trade is one rebalance instruction, produced once per rebalance event and
// consumed by the orchestrator. A deferred trade was cut by the turnover cap
// and leaves its position at the prior weight for the period.
type Trade struct {
	Ticker         string
	Side           TradeSide
	WeightDelta    float64
	Notional       decimal.Decimal
	Cost           CostBreakdown
	Deferred       bool
	DeferredReason string
}
