package domain

import (
	"fmt"
	"math"
	"sort"
)

// Holding is one position in a Portfolio, owned by it for one period.
type Holding struct {
	Ticker         string
	Weight         float64
	CompositeScore float64
	Sector         string
	MarketCap      float64
}

// Portfolio is the ordered set of holdings for one period, long-only and
// fully invested. Holdings are kept sorted by descending composite score,
// ties broken by ticker, so identical inputs always serialize identically.
type Portfolio struct {
	Holdings []Holding
}

func NewPortfolio(holdings []Holding) Portfolio {
	p := Portfolio{Holdings: holdings}
	p.Sort()
	return p
}

func (p *Portfolio) Sort() {
	sort.SliceStable(p.Holdings, func(i, j int) bool {
		if p.Holdings[i].CompositeScore != p.Holdings[j].CompositeScore {
			return p.Holdings[i].CompositeScore > p.Holdings[j].CompositeScore
		}
		return p.Holdings[i].Ticker < p.Holdings[j].Ticker
	})
}

func (p Portfolio) Weight(ticker string) float64 {
	for _, h := range p.Holdings {
		if h.Ticker == ticker {
			return h.Weight
		}
	}
	return 0
}

func (p Portfolio) Tickers() []string {
	tickers := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		tickers = append(tickers, h.Ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func (p Portfolio) SectorWeights() map[string]float64 {
	weights := map[string]float64{}
	for _, h := range p.Holdings {
		weights[h.Sector] += h.Weight
	}
	return weights
}

func (p Portfolio) DeepCopy() Portfolio {
	holdings := make([]Holding, len(p.Holdings))
	copy(holdings, p.Holdings)
	return Portfolio{Holdings: holdings}
}

// Constraints bounds what a valid portfolio looks like. Nonsensical bounds are
// rejected up front, before any period is processed.
type Constraints struct {
	MinPositions    int
	MaxPositions    int
	MinPositionSize float64
	MaxPositionSize float64
	MaxSectorWeight float64
}

func (c Constraints) Validate() error {
	if c.MinPositions < 1 {
		return fmt.Errorf("minPositions must be >= 1, got %d", c.MinPositions)
	}
	if c.MinPositions > c.MaxPositions {
		return fmt.Errorf("minPositions %d exceeds maxPositions %d", c.MinPositions, c.MaxPositions)
	}
	if c.MinPositionSize < 0 || c.MaxPositionSize <= 0 {
		return fmt.Errorf("position size bounds must be positive, got [%f, %f]", c.MinPositionSize, c.MaxPositionSize)
	}
	if c.MinPositionSize > c.MaxPositionSize {
		return fmt.Errorf("minPositionSize %f exceeds maxPositionSize %f", c.MinPositionSize, c.MaxPositionSize)
	}
	if c.MaxSectorWeight <= 0 || c.MaxSectorWeight > 1 {
		return fmt.Errorf("maxSectorWeight must be in (0, 1], got %f", c.MaxSectorWeight)
	}
	if float64(c.MaxPositions)*c.MaxPositionSize < 1 {
		return fmt.Errorf("maxPositions x maxPositionSize = %f cannot reach full investment", float64(c.MaxPositions)*c.MaxPositionSize)
	}
	return nil
}

const weightSumTolerance = 1e-6

// Verify checks the portfolio invariants against the given constraints:
// non-negative weights summing to 1, per-position size bounds, position count
// bounds, and the sector cap.
func (p Portfolio) Verify(c Constraints) error {
	if len(p.Holdings) < c.MinPositions || len(p.Holdings) > c.MaxPositions {
		return fmt.Errorf("holding count %d outside [%d, %d]", len(p.Holdings), c.MinPositions, c.MaxPositions)
	}

	sum := 0.0
	for _, h := range p.Holdings {
		if h.Weight < 0 {
			return fmt.Errorf("negative weight %f for %s", h.Weight, h.Ticker)
		}
		if h.Weight < c.MinPositionSize-weightSumTolerance || h.Weight > c.MaxPositionSize+weightSumTolerance {
			return fmt.Errorf("weight %f for %s outside [%f, %f]", h.Weight, h.Ticker, c.MinPositionSize, c.MaxPositionSize)
		}
		sum += h.Weight
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights sum to %f, want 1", sum)
	}

	for sector, weight := range p.SectorWeights() {
		if weight > c.MaxSectorWeight+weightSumTolerance {
			return fmt.Errorf("sector %s weight %f exceeds cap %f", sector, weight, c.MaxSectorWeight)
		}
	}
	return nil
}
