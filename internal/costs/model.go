// Package costs estimates per-trade friction: spread, fixed cost, and
// square-root market impact, scaled up for less liquid names.
package costs

import (
	"fmt"
	"math"

	"factorlab/internal/domain"

	"github.com/shopspring/decimal"
)

type Config struct {
	// SpreadBps is the proportional cost of crossing the spread, in basis
	// points of notional.
	SpreadBps float64
	// FixedPerTrade is the flat per-trade cost in dollars.
	FixedPerTrade float64
	// ImpactBps scales the market impact term: impact in bps is
	// ImpactBps * sqrt(participation rate).
	ImpactBps float64
	// TradingDays is how many days a rebalance order is assumed to be worked
	// over when computing the participation rate.
	TradingDays float64
}

func (c Config) Validate() error {
	if c.SpreadBps < 0 || c.FixedPerTrade < 0 || c.ImpactBps < 0 {
		return fmt.Errorf("cost coefficients must be >= 0")
	}
	if c.TradingDays < 1 {
		return fmt.Errorf("tradingDays must be >= 1, got %f", c.TradingDays)
	}
	return nil
}

// market-cap tiers for the liquidity multiplier
const (
	largeCapFloor = 10e9
	midCapFloor   = 2e9
	smallCapFloor = 500e6
)

type Model struct {
	cfg Config
}

func NewModel(cfg Config) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return Model{}, fmt.Errorf("invalid cost config: %w", err)
	}
	return Model{cfg: cfg}, nil
}

// Estimate prices one trade. notional is the trade's absolute dollar value;
// avgDollarVolume is the instrument's average daily traded value. An unknown
// or zero volume is treated as full participation, the most expensive case.
func (m Model) Estimate(notional decimal.Decimal, marketCap, avgDollarVolume float64) domain.CostBreakdown {
	value := notional.Abs().InexactFloat64()
	if value == 0 {
		zero := decimal.Zero
		return domain.CostBreakdown{Spread: zero, Fixed: zero, Impact: zero, Total: zero}
	}

	participation := 1.0
	if avgDollarVolume > 0 {
		participation = math.Min(1, value/(avgDollarVolume*m.cfg.TradingDays))
	}

	multiplier := liquidityMultiplier(marketCap)

	spread := value * m.cfg.SpreadBps / 1e4 * multiplier
	fixed := m.cfg.FixedPerTrade * multiplier
	impact := value * m.cfg.ImpactBps / 1e4 * math.Sqrt(participation) * multiplier
	total := spread + fixed + impact

	return domain.CostBreakdown{
		Spread: decimal.NewFromFloat(spread).Round(6),
		Fixed:  decimal.NewFromFloat(fixed).Round(6),
		Impact: decimal.NewFromFloat(impact).Round(6),
		Total:  decimal.NewFromFloat(total).Round(6),
		Bps:    total / value * 1e4,
	}
}

// liquidityMultiplier raises costs for smaller-cap names, which trade wider
// and move more per dollar of flow.
func liquidityMultiplier(marketCap float64) float64 {
	switch {
	case marketCap >= largeCapFloor:
		return 1.0
	case marketCap >= midCapFloor:
		return 1.25
	case marketCap >= smallCapFloor:
		return 1.5
	default:
		return 2.0
	}
}
