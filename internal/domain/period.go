package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Regime string

const (
	Regime_Warmup   Regime = "WARMUP"
	Regime_Bull     Regime = "BULL"
	Regime_Bear     Regime = "BEAR"
	Regime_Sideways Regime = "SIDEWAYS"
)

// BacktestPeriod is one append-only entry in a backtest's audit trail. Frozen
// once written; the orchestrator never revisits a completed period.
type BacktestPeriod struct {
	Index          int
	Date           time.Time
	GrossReturn    float64
	NetReturn      float64
	PortfolioValue decimal.Decimal
	Costs          decimal.Decimal
	Turnover       float64
	Regime         Regime
	Portfolio      Portfolio
	Trades         []Trade
}

// PerformanceReport is a read-only aggregate over a full period sequence.
type PerformanceReport struct {
	Periods              int
	TotalReturn          float64
	AnnualizedReturn     float64
	AnnualizedVolatility float64
	SharpeRatio          float64
	SortinoRatio         float64
	CalmarRatio          float64
	MaxDrawdown          float64
	WinRate              float64
	Skewness             float64
	Kurtosis             float64
	EquityCurve          []float64
}
