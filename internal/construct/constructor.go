// Package construct turns a scored instrument universe into a
// constraint-satisfying portfolio: hard exclusion screens first, then ranking
// by composite score, then position sizing within the configured bounds.
package construct

import (
	"fmt"
	"math"
	"sort"

	"factorlab/internal/domain"
)

type SizingMethod string

const (
	Sizing_Equal             SizingMethod = "EQUAL"
	Sizing_ScoreProportional SizingMethod = "SCORE_PROPORTIONAL"
	Sizing_InverseVolatility SizingMethod = "INVERSE_VOLATILITY"
)

// Screens are the hard exclusion rules applied before any ranking. A screen
// that needs a field the snapshot doesn't carry is skipped for that
// instrument: unknown is not evidence of distress.
type Screens struct {
	MaxDebtToEquity    float64
	MinMarketCap       float64
	MinAvgDollarVolume float64
	MinAltmanZ         float64
	MaxAccrualsRatio   float64
	MinPrice           float64
}

func (s Screens) Validate() error {
	if s.MaxDebtToEquity <= 0 {
		return fmt.Errorf("maxDebtToEquity must be > 0, got %f", s.MaxDebtToEquity)
	}
	if s.MinMarketCap < 0 || s.MinAvgDollarVolume < 0 || s.MinPrice < 0 {
		return fmt.Errorf("liquidity floors must be >= 0")
	}
	if s.MaxAccrualsRatio <= 0 {
		return fmt.Errorf("maxAccrualsRatio must be > 0, got %f", s.MaxAccrualsRatio)
	}
	return nil
}

// Exclusion records why an instrument failed the screens. An excluded
// instrument stays out regardless of its composite score.
type Exclusion struct {
	Ticker  string
	Reasons []string
}

// InsufficientUniverseError reports that too few instruments survived the
// screens to build a valid portfolio.
type InsufficientUniverseError struct {
	Survivors int
	Required  int
}

func (e InsufficientUniverseError) Error() string {
	return fmt.Sprintf("only %d instruments survived screening, need %d", e.Survivors, e.Required)
}

type Constructor struct {
	constraints domain.Constraints
	screens     Screens
	sizing      SizingMethod
}

func NewConstructor(constraints domain.Constraints, screens Screens, sizing SizingMethod) (*Constructor, error) {
	if err := constraints.Validate(); err != nil {
		return nil, fmt.Errorf("invalid constraints: %w", err)
	}
	if err := screens.Validate(); err != nil {
		return nil, fmt.Errorf("invalid screens: %w", err)
	}
	switch sizing {
	case Sizing_Equal, Sizing_ScoreProportional, Sizing_InverseVolatility:
	default:
		return nil, fmt.Errorf("unknown sizing method %q", sizing)
	}
	return &Constructor{
		constraints: constraints,
		screens:     screens,
		sizing:      sizing,
	}, nil
}

type Input struct {
	Snapshots  []domain.InstrumentSnapshot
	Composites map[string]domain.CompositeScore
	// Volatility is each instrument's trailing return volatility, used by
	// inverse-volatility sizing. Missing entries fall back to the median.
	Volatility map[string]float64
}

type Result struct {
	Portfolio  domain.Portfolio
	Exclusions []Exclusion
	// SectorBreaches flags sectors whose aggregate weight exceeds the cap.
	// The constructor reports the breach rather than reshuffling; callers
	// failing the check must adjust inputs.
	SectorBreaches []string
}

func (c *Constructor) Construct(in Input) (*Result, error) {
	survivors := []domain.InstrumentSnapshot{}
	exclusions := []Exclusion{}
	for _, snapshot := range in.Snapshots {
		reasons := c.screen(snapshot)
		if _, ok := in.Composites[snapshot.Ticker]; !ok {
			reasons = append(reasons, "no composite score")
		}
		if len(reasons) > 0 {
			exclusions = append(exclusions, Exclusion{Ticker: snapshot.Ticker, Reasons: reasons})
			continue
		}
		survivors = append(survivors, snapshot)
	}

	numPositions, err := c.targetPositionCount(len(survivors))
	if err != nil {
		return nil, err
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		si := in.Composites[survivors[i].Ticker].Score
		sj := in.Composites[survivors[j].Ticker].Score
		if si != sj {
			return si > sj
		}
		return survivors[i].Ticker < survivors[j].Ticker
	})
	selected := survivors[:numPositions]

	weights, err := c.size(selected, in)
	if err != nil {
		return nil, fmt.Errorf("failed to size positions: %w", err)
	}

	holdings := make([]domain.Holding, len(selected))
	for i, snapshot := range selected {
		holdings[i] = domain.Holding{
			Ticker:         snapshot.Ticker,
			Weight:         weights[i],
			CompositeScore: in.Composites[snapshot.Ticker].Score,
			Sector:         snapshot.Sector,
			MarketCap:      snapshot.MarketCap,
		}
	}
	portfolio := domain.NewPortfolio(holdings)

	breaches := []string{}
	for sector, weight := range portfolio.SectorWeights() {
		if weight > c.constraints.MaxSectorWeight+1e-9 {
			breaches = append(breaches, sector)
		}
	}
	sort.Strings(breaches)

	return &Result{
		Portfolio:      portfolio,
		Exclusions:     exclusions,
		SectorBreaches: breaches,
	}, nil
}

var financialSectors = map[string]bool{
	"Financials":         true,
	"Financial Services": true,
}

func (c *Constructor) screen(s domain.InstrumentSnapshot) []string {
	reasons := []string{}

	if netIncome, ok := domain.Optional(s.NetIncome); ok && netIncome < 0 {
		reasons = append(reasons, "negative trailing earnings")
	}
	if de, ok := domain.Optional(s.DebtToEquity); ok && de > c.screens.MaxDebtToEquity {
		reasons = append(reasons, fmt.Sprintf("debt/equity %.2f above ceiling %.2f", de, c.screens.MaxDebtToEquity))
	}
	if s.MarketCap < c.screens.MinMarketCap {
		reasons = append(reasons, "market cap below illiquidity floor")
	}
	if volume, ok := domain.Optional(s.AvgVolume); ok && volume*s.Price < c.screens.MinAvgDollarVolume {
		reasons = append(reasons, "trading activity below illiquidity floor")
	}
	if bookValue, ok := domain.Optional(s.BookValue); ok && bookValue < 0 {
		reasons = append(reasons, "negative book value")
	}
	if z, ok := altmanZ(s); ok && !financialSectors[s.Sector] && z < c.screens.MinAltmanZ {
		reasons = append(reasons, fmt.Sprintf("altman z-score %.2f below distress threshold %.2f", z, c.screens.MinAltmanZ))
	}
	if accruals, ok := domain.Optional(s.Accruals); ok && accruals > c.screens.MaxAccrualsRatio {
		reasons = append(reasons, "excessive accruals")
	}
	if s.Price < c.screens.MinPrice {
		reasons = append(reasons, fmt.Sprintf("price %.2f below penny-stock floor %.2f", s.Price, c.screens.MinPrice))
	}

	return reasons
}

// altmanZ is the classic five-ratio bankruptcy predictor. Computable only
// when every component is known.
func altmanZ(s domain.InstrumentSnapshot) (float64, bool) {
	workingCapital, ok1 := domain.Optional(s.WorkingCapital)
	totalAssets, ok2 := domain.Optional(s.TotalAssets)
	retainedEarnings, ok3 := domain.Optional(s.RetainedEarnings)
	ebit, ok4 := domain.Optional(s.EBIT)
	totalLiabilities, ok5 := domain.Optional(s.TotalLiabilities)
	revenue, ok6 := domain.Optional(s.Revenue)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) || totalAssets <= 0 || totalLiabilities <= 0 {
		return 0, false
	}

	z := 1.2*workingCapital/totalAssets +
		1.4*retainedEarnings/totalAssets +
		3.3*ebit/totalAssets +
		0.6*s.MarketCap/totalLiabilities +
		1.0*revenue/totalAssets
	return z, true
}

// targetPositionCount picks how many names to hold: as many survivors as the
// position bounds allow, clamped so that per-position size bounds remain
// satisfiable after clipping.
func (c *Constructor) targetPositionCount(survivors int) (int, error) {
	numPositions := min(c.constraints.MaxPositions, survivors)

	// need at least ceil(1/maxPositionSize) names for weights to reach 1
	minFeasible := int(math.Ceil(1 / c.constraints.MaxPositionSize))
	required := max(c.constraints.MinPositions, minFeasible)
	if numPositions < required {
		return 0, InsufficientUniverseError{Survivors: survivors, Required: required}
	}

	if c.constraints.MinPositionSize > 0 {
		maxFeasible := int(math.Floor(1 / c.constraints.MinPositionSize))
		numPositions = min(numPositions, maxFeasible)
	}
	return numPositions, nil
}

func (c *Constructor) size(selected []domain.InstrumentSnapshot, in Input) ([]float64, error) {
	n := len(selected)
	weights := make([]float64, n)

	switch c.sizing {
	case Sizing_Equal:
		for i := range weights {
			weights[i] = 1 / float64(n)
		}

	case Sizing_ScoreProportional:
		// shift scores positive; the minimum-score name keeps a toehold
		minScore := math.Inf(1)
		for _, snapshot := range selected {
			minScore = math.Min(minScore, in.Composites[snapshot.Ticker].Score)
		}
		sum := 0.0
		for i, snapshot := range selected {
			weights[i] = in.Composites[snapshot.Ticker].Score - minScore + 0.1
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}

	case Sizing_InverseVolatility:
		vols := make([]float64, 0, n)
		for _, snapshot := range selected {
			if v := in.Volatility[snapshot.Ticker]; v > 0 {
				vols = append(vols, v)
			}
		}
		if len(vols) == 0 {
			return nil, fmt.Errorf("inverse-volatility sizing requires volatility estimates")
		}
		sort.Float64s(vols)
		medianVol := vols[len(vols)/2]

		sum := 0.0
		for i, snapshot := range selected {
			v := in.Volatility[snapshot.Ticker]
			if v <= 0 {
				v = medianVol
			}
			weights[i] = 1 / v
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}
	}

	return clipAndRenormalize(weights, c.constraints.MinPositionSize, c.constraints.MaxPositionSize)
}

// FitWeights clips externally produced weights (e.g. from a risk-parity
// allocator) into the constraint's position size bounds and renormalizes.
func FitWeights(weights []float64, c domain.Constraints) ([]float64, error) {
	return clipAndRenormalize(weights, c.MinPositionSize, c.MaxPositionSize)
}

// clipAndRenormalize forces every weight into [lo, hi] while keeping the sum
// at 1. Renormalizing after a clip can push other weights back out of bounds,
// so iterate until stable.
func clipAndRenormalize(weights []float64, lo, hi float64) ([]float64, error) {
	out := append([]float64{}, weights...)
	for iter := 0; iter < 100; iter++ {
		sum := 0.0
		for i := range out {
			out[i] = math.Max(lo, math.Min(hi, out[i]))
			sum += out[i]
		}
		if math.Abs(sum-1) < 1e-9 {
			return out, nil
		}
		for i := range out {
			out[i] /= sum
		}
	}

	// converged close enough if the final pass stays within bounds
	sum := 0.0
	for i := range out {
		if out[i] < lo-1e-9 || out[i] > hi+1e-9 {
			return nil, fmt.Errorf("could not fit weights into [%f, %f]", lo, hi)
		}
		sum += out[i]
	}
	if math.Abs(sum-1) > 1e-6 {
		return nil, fmt.Errorf("weights sum to %f after clipping, want 1", sum)
	}
	return out, nil
}
