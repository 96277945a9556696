// Package factor turns raw instrument snapshots into standardized,
// cross-sectionally comparable scores, measures their predictive power, and
// combines them into one composite ranking per instrument per period.
package factor

import (
	"sort"

	"factorlab/internal/domain"
)

type Neutralization int

const (
	Neutralize_None Neutralization = iota
	Neutralize_Sector
	Neutralize_Size
)

// Definition binds a factor name to its raw-field extraction and the
// neutralization applied after winsorized z-scoring. Extract returns false
// when the snapshot is missing a field the factor needs; that instrument is
// left out of the factor's cross-section for the period.
type Definition struct {
	Name       string
	Neutralize Neutralization
	Extract    func(domain.InstrumentSnapshot) (float64, bool)
}

// DefaultDefinitions is the stock four-factor set: value and quality are
// compared within sectors (accounting conventions differ too much across
// them), growth is stripped of its large-cap bias, and momentum is taken
// as-is.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Name:       "value",
			Neutralize: Neutralize_Sector,
			Extract: func(s domain.InstrumentSnapshot) (float64, bool) {
				pe, ok := domain.Optional(s.PERatio)
				if !ok || pe <= 0 {
					return 0, false
				}
				return 1 / pe, true
			},
		},
		{
			Name:       "quality",
			Neutralize: Neutralize_Sector,
			Extract: func(s domain.InstrumentSnapshot) (float64, bool) {
				return domain.Optional(s.ROE)
			},
		},
		{
			Name:       "momentum",
			Neutralize: Neutralize_None,
			Extract: func(s domain.InstrumentSnapshot) (float64, bool) {
				return domain.Optional(s.TrailingReturn)
			},
		},
		{
			Name:       "growth",
			Neutralize: Neutralize_Size,
			Extract: func(s domain.InstrumentSnapshot) (float64, bool) {
				return domain.Optional(s.RevenueGrowth)
			},
		},
	}
}

func sortedTickers(m map[string]float64) []string {
	tickers := make([]string, 0, len(m))
	for ticker := range m {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}
