package factor

import (
	"fmt"
	"math"

	"factorlab/internal/stat"
)

const (
	winsorLowerPct = 1.0
	winsorUpperPct = 99.0
	zScoreCap      = 3.0

	// sectors with fewer members than this get neutral scores instead of a
	// variance estimate from too few points
	minSectorMembers = 3
)

// Standardize winsorizes the raw cross-section at the 1st/99th percentile,
// z-scores it, and caps the result at ±3. Keys are tickers. The input map is
// not mutated. A zero-variance cross-section maps everything to 0.
func Standardize(raw map[string]float64) (map[string]float64, error) {
	if len(raw) == 0 {
		return map[string]float64{}, nil
	}

	tickers := sortedTickers(raw)
	values := make([]float64, len(tickers))
	for i, ticker := range tickers {
		values[i] = raw[ticker]
	}

	winsorized, err := stat.Winsorize(values, winsorLowerPct, winsorUpperPct)
	if err != nil {
		return nil, fmt.Errorf("failed to winsorize cross-section: %w", err)
	}
	scores, err := stat.ZScores(winsorized)
	if err != nil {
		return nil, fmt.Errorf("failed to z-score cross-section: %w", err)
	}
	scores = stat.Clip(scores, zScoreCap)

	out := make(map[string]float64, len(tickers))
	for i, ticker := range tickers {
		out[ticker] = scores[i]
	}
	return out, nil
}

// StandardizeBySector standardizes each sector's members independently, so a
// factor is only compared against same-sector peers. Sectors with fewer than
// 3 members score 0 for all members.
func StandardizeBySector(raw map[string]float64, sectorByTicker map[string]string) (map[string]float64, error) {
	bySector := map[string]map[string]float64{}
	for _, ticker := range sortedTickers(raw) {
		sector := sectorByTicker[ticker]
		if bySector[sector] == nil {
			bySector[sector] = map[string]float64{}
		}
		bySector[sector][ticker] = raw[ticker]
	}

	out := make(map[string]float64, len(raw))
	for sector, members := range bySector {
		if len(members) < minSectorMembers {
			for ticker := range members {
				out[ticker] = 0
			}
			continue
		}
		scores, err := Standardize(members)
		if err != nil {
			return nil, fmt.Errorf("failed to standardize sector %s: %w", sector, err)
		}
		for ticker, score := range scores {
			out[ticker] = score
		}
	}
	return out, nil
}

// StandardizeSizeNeutral removes size contamination by regressing the raw
// factor on log market cap across the full cross-section and standardizing
// the residuals. Instruments without a positive market cap are excluded from
// the regression and score 0.
func StandardizeSizeNeutral(raw map[string]float64, marketCapByTicker map[string]float64) (map[string]float64, error) {
	tickers := []string{}
	for _, ticker := range sortedTickers(raw) {
		if marketCapByTicker[ticker] > 0 {
			tickers = append(tickers, ticker)
		}
	}

	out := make(map[string]float64, len(raw))
	for ticker := range raw {
		out[ticker] = 0
	}
	if len(tickers) < minSectorMembers {
		return out, nil
	}

	logCaps := make([]float64, len(tickers))
	values := make([]float64, len(tickers))
	for i, ticker := range tickers {
		logCaps[i] = math.Log(marketCapByTicker[ticker])
		values[i] = raw[ticker]
	}

	winsorized, err := stat.Winsorize(values, winsorLowerPct, winsorUpperPct)
	if err != nil {
		return nil, fmt.Errorf("failed to winsorize cross-section: %w", err)
	}
	residuals, err := stat.OLSResiduals(logCaps, winsorized)
	if err != nil {
		return nil, fmt.Errorf("failed to regress factor on size: %w", err)
	}
	scores, err := stat.ZScores(residuals)
	if err != nil {
		return nil, fmt.Errorf("failed to z-score residuals: %w", err)
	}
	scores = stat.Clip(scores, zScoreCap)

	for i, ticker := range tickers {
		out[ticker] = scores[i]
	}
	return out, nil
}
