// Package synthetic builds seeded, reproducible instrument histories for
// demonstration and testing. It is explicitly not a market data source; the
// same seed always yields the same universe.
package synthetic

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"factorlab/internal/domain"
)

// Source is the randomness strategy the generator draws from. *rand.Rand
// satisfies it; tests can substitute anything deterministic. Ambient global
// randomness is deliberately not an option.
type Source interface {
	Float64() float64
	NormFloat64() float64
}

// NewSeededSource is the standard Source for a given seed.
func NewSeededSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

type Config struct {
	NumInstruments int
	Periods        int
	StartDate      time.Time
}

func (c Config) Validate() error {
	if c.NumInstruments < 1 {
		return fmt.Errorf("numInstruments must be >= 1, got %d", c.NumInstruments)
	}
	if c.Periods < 2 {
		return fmt.Errorf("periods must be >= 2, got %d", c.Periods)
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("startDate is required")
	}
	return nil
}

// History is a full generated dataset. SnapshotsByPeriod[t] is the
// cross-section observable at period t; ReturnsByPeriod[t] is the return each
// instrument realizes during period t (from t to t+1).
type History struct {
	Dates             []time.Time
	SnapshotsByPeriod [][]domain.InstrumentSnapshot
	ReturnsByPeriod   []map[string]float64
}

var sectors = []string{
	"Technology", "Healthcare", "Financials", "Industrials",
	"Energy", "Consumer Staples", "Utilities",
}

type instrumentState struct {
	ticker    string
	sector    int
	price     float64
	marketCap float64
	avgVolume float64
	pe        float64
	roe       float64
	de        float64
	growth    float64
	quality   float64 // latent, drives a small return edge
	lastRet   float64
}

// Generate produces a monthly history. Returns are a market factor plus a
// sector factor plus idiosyncratic noise plus a small edge for high-quality
// cheap names, so that value and quality factors have genuine (noisy)
// predictive power for tests to find.
func Generate(cfg Config, src Source) (*History, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid synthetic config: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("randomness source is required")
	}

	states := make([]*instrumentState, cfg.NumInstruments)
	for i := range states {
		states[i] = &instrumentState{
			ticker:    fmt.Sprintf("SYN%03d", i),
			sector:    i % len(sectors),
			price:     20 + src.Float64()*180,
			marketCap: math.Exp(20 + src.NormFloat64()*1.5), // ~0.5B-100B
			avgVolume: math.Exp(13 + src.NormFloat64()),
			pe:        8 + src.Float64()*30,
			roe:       0.02 + src.Float64()*0.25,
			de:        0.2 + src.Float64()*1.5,
			growth:    -0.05 + src.Float64()*0.25,
			quality:   src.NormFloat64(),
		}
	}

	history := &History{}
	date := cfg.StartDate
	for t := 0; t < cfg.Periods; t++ {
		history.Dates = append(history.Dates, date)
		history.SnapshotsByPeriod = append(history.SnapshotsByPeriod, snapshotCrossSection(states))

		market := 0.006 + src.NormFloat64()*0.04
		sectorShocks := make([]float64, len(sectors))
		for s := range sectorShocks {
			sectorShocks[s] = src.NormFloat64() * 0.02
		}

		returns := map[string]float64{}
		for _, state := range states {
			edge := 0.002*state.quality + 0.001*(20-state.pe)/20
			ret := market + sectorShocks[state.sector] + edge + src.NormFloat64()*0.05
			if ret < -0.9 {
				ret = -0.9
			}
			returns[state.ticker] = ret

			state.price *= 1 + ret
			state.marketCap *= 1 + ret
			state.lastRet = ret
			// fundamentals drift slowly
			state.pe = math.Max(2, state.pe*(1+src.NormFloat64()*0.02))
			state.roe += src.NormFloat64() * 0.005
			state.growth += src.NormFloat64() * 0.01
		}
		history.ReturnsByPeriod = append(history.ReturnsByPeriod, returns)

		date = date.AddDate(0, 1, 0)
	}

	return history, nil
}

func snapshotCrossSection(states []*instrumentState) []domain.InstrumentSnapshot {
	snapshots := make([]domain.InstrumentSnapshot, len(states))
	for i, state := range states {
		assets := state.marketCap * 1.8
		liabilities := assets * state.de / (1 + state.de)
		netIncome := state.marketCap / state.pe
		revenue := netIncome * 8
		snapshots[i] = domain.InstrumentSnapshot{
			Ticker:           state.ticker,
			Sector:           sectors[state.sector],
			Price:            round6(state.price),
			MarketCap:        round6(state.marketCap),
			AvgVolume:        domain.Float64Pointer(round6(state.avgVolume)),
			PERatio:          domain.Float64Pointer(round6(state.pe)),
			ROE:              domain.Float64Pointer(round6(state.roe)),
			DebtToEquity:     domain.Float64Pointer(round6(state.de)),
			RevenueGrowth:    domain.Float64Pointer(round6(state.growth)),
			NetIncome:        domain.Float64Pointer(round6(netIncome)),
			BookValue:        domain.Float64Pointer(round6(assets - liabilities)),
			TotalAssets:      domain.Float64Pointer(round6(assets)),
			TotalLiabilities: domain.Float64Pointer(round6(liabilities)),
			Revenue:          domain.Float64Pointer(round6(revenue)),
			RetainedEarnings: domain.Float64Pointer(round6(netIncome * 3)),
			EBIT:             domain.Float64Pointer(round6(netIncome * 1.4)),
			WorkingCapital:   domain.Float64Pointer(round6(assets * 0.15)),
			Accruals:         domain.Float64Pointer(0.02),
			TrailingReturn:   domain.Float64Pointer(round6(state.lastRet)),
		}
	}
	return snapshots
}

// round6 keeps generated values at a fixed precision so serialized runs
// compare byte-identically across platforms.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
