// Package rebalance diffs the held portfolio against a target and produces
// the minimal trade list that respects the per-period turnover cap, deferring
// whatever doesn't fit.
package rebalance

import (
	"fmt"
	"math"
	"sort"

	"factorlab/internal/costs"
	"factorlab/internal/domain"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Buffer is the minimum absolute weight drift before a position is
	// traded at all; smaller diffs are left alone to avoid churn.
	Buffer float64
	// TurnoverCap bounds (buy value + sell value) / (2 x portfolio value)
	// per rebalance event.
	TurnoverCap float64
}

func (c Config) Validate() error {
	if c.Buffer < 0 || c.Buffer >= 1 {
		return fmt.Errorf("buffer must be in [0, 1), got %f", c.Buffer)
	}
	if c.TurnoverCap <= 0 || c.TurnoverCap > 1 {
		return fmt.Errorf("turnoverCap must be in (0, 1], got %f", c.TurnoverCap)
	}
	return nil
}

type Engine struct {
	cfg       Config
	costModel costs.Model
}

func NewEngine(cfg Config, costModel costs.Model) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rebalance config: %w", err)
	}
	return &Engine{cfg: cfg, costModel: costModel}, nil
}

type Input struct {
	Current        domain.Portfolio
	Target         domain.Portfolio
	PortfolioValue decimal.Decimal
	// Snapshots supplies market cap and volume for cost estimation. A ticker
	// with no snapshot is costed at the most conservative liquidity tier.
	Snapshots map[string]domain.InstrumentSnapshot
}

type Result struct {
	// Trades are the admitted trades in execution order. Deferred trades are
	// carried separately; their positions stay at the prior weight.
	Trades    []domain.Trade
	Deferred  []domain.Trade
	Turnover  float64
	TotalCost decimal.Decimal
	// Final is Current with the admitted trades applied. When trades are
	// deferred the weights can sum below 1; the shortfall is implicit cash
	// until the next period. The sum never exceeds 1: buys that deferred
	// sells would have funded are deferred too.
	Final domain.Portfolio
}

func (e *Engine) Rebalance(in Input) (*Result, error) {
	if in.PortfolioValue.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("cannot rebalance portfolio with value %s", in.PortfolioValue)
	}

	candidates := e.diff(in)

	// buys before sells, then by magnitude, then ticker for determinism
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Side != candidates[j].Side {
			return candidates[i].Side == domain.TradeSide_Buy
		}
		di := math.Abs(candidates[i].WeightDelta)
		dj := math.Abs(candidates[j].WeightDelta)
		if di != dj {
			return di > dj
		}
		return candidates[i].Ticker < candidates[j].Ticker
	})

	value := in.PortfolioValue.InexactFloat64()
	admitted := []domain.Trade{}
	deferred := []domain.Trade{}
	totalCost := decimal.Zero
	tradedValue := 0.0
	for _, trade := range candidates {
		notional := trade.Notional.InexactFloat64()
		if (tradedValue+notional)/(2*value) > e.cfg.TurnoverCap+1e-12 {
			trade.Deferred = true
			trade.DeferredReason = fmt.Sprintf("turnover cap %.2f reached", e.cfg.TurnoverCap)
			deferred = append(deferred, trade)
			continue
		}
		tradedValue += notional
		totalCost = totalCost.Add(trade.Cost.Total)
		admitted = append(admitted, trade)
	}

	// buys are admitted ahead of the sells that fund them, so a capped-out
	// sell can leave the book levered past fully invested. Drop the smallest
	// admitted buys until the result is funded by cash and admitted sells.
	projected := 0.0
	for _, h := range in.Current.Holdings {
		projected += h.Weight
	}
	for _, trade := range admitted {
		projected += trade.WeightDelta
	}
	for projected > 1+1e-9 {
		last := -1
		for i := len(admitted) - 1; i >= 0; i-- {
			if admitted[i].Side == domain.TradeSide_Buy {
				last = i
				break
			}
		}
		if last < 0 {
			break
		}
		trade := admitted[last]
		projected -= trade.WeightDelta
		tradedValue -= trade.Notional.InexactFloat64()
		totalCost = totalCost.Sub(trade.Cost.Total)
		trade.Deferred = true
		trade.DeferredReason = "deferred sells leave the buy unfunded"
		deferred = append(deferred, trade)
		admitted = append(admitted[:last], admitted[last+1:]...)
	}

	return &Result{
		Trades:    admitted,
		Deferred:  deferred,
		Turnover:  tradedValue / (2 * value),
		TotalCost: totalCost,
		Final:     applyTrades(in, admitted),
	}, nil
}

// diff emits one candidate trade per ticker whose target weight moved beyond
// the buffer, including new entries and full exits.
func (e *Engine) diff(in Input) []domain.Trade {
	tickers := map[string]bool{}
	for _, h := range in.Current.Holdings {
		tickers[h.Ticker] = true
	}
	for _, h := range in.Target.Holdings {
		tickers[h.Ticker] = true
	}

	ordered := make([]string, 0, len(tickers))
	for ticker := range tickers {
		ordered = append(ordered, ticker)
	}
	sort.Strings(ordered)

	candidates := []domain.Trade{}
	for _, ticker := range ordered {
		delta := in.Target.Weight(ticker) - in.Current.Weight(ticker)
		if math.Abs(delta) <= e.cfg.Buffer {
			continue
		}

		side := domain.TradeSide_Buy
		if delta < 0 {
			side = domain.TradeSide_Sell
		}
		notional := in.PortfolioValue.Mul(decimal.NewFromFloat(math.Abs(delta))).Round(6)

		snapshot := in.Snapshots[ticker]
		avgDollarVolume := 0.0
		if volume, ok := domain.Optional(snapshot.AvgVolume); ok {
			avgDollarVolume = volume * snapshot.Price
		}

		candidates = append(candidates, domain.Trade{
			Ticker:      ticker,
			Side:        side,
			WeightDelta: delta,
			Notional:    notional,
			Cost:        e.costModel.Estimate(notional, snapshot.MarketCap, avgDollarVolume),
		})
	}
	return candidates
}

// applyTrades produces the end-of-rebalance portfolio: current weights plus
// every admitted delta, holding metadata refreshed from the target where
// available.
func applyTrades(in Input, admitted []domain.Trade) domain.Portfolio {
	deltaByTicker := map[string]float64{}
	for _, trade := range admitted {
		deltaByTicker[trade.Ticker] = trade.WeightDelta
	}

	targetByTicker := map[string]domain.Holding{}
	for _, h := range in.Target.Holdings {
		targetByTicker[h.Ticker] = h
	}
	currentByTicker := map[string]domain.Holding{}
	for _, h := range in.Current.Holdings {
		currentByTicker[h.Ticker] = h
	}

	tickers := map[string]bool{}
	for ticker := range targetByTicker {
		tickers[ticker] = true
	}
	for ticker := range currentByTicker {
		tickers[ticker] = true
	}

	holdings := []domain.Holding{}
	for ticker := range tickers {
		weight := in.Current.Weight(ticker) + deltaByTicker[ticker]
		if weight < 1e-9 {
			continue
		}

		meta, ok := targetByTicker[ticker]
		if !ok {
			meta = currentByTicker[ticker]
		}
		holdings = append(holdings, domain.Holding{
			Ticker:         ticker,
			Weight:         weight,
			CompositeScore: meta.CompositeScore,
			Sector:         meta.Sector,
			MarketCap:      meta.MarketCap,
		})
	}
	return domain.NewPortfolio(holdings)
}
