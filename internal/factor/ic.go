package factor

import (
	"math"

	"factorlab/internal/stat"
)

// minICObservations is the fewest paired observations that produce a real
// correlation estimate. Below it the analyzer reports a defined zero result
// instead of erroring, so sparse periods degrade the signal without killing
// the run.
const minICObservations = 3

const (
	significanceTStat = 1.96
	periodsPerYear    = 12
	defaultHalfLife   = 12
)

// InformationCoefficient is the Spearman rank correlation between a period's
// factor scores and the next period's realized returns, over the tickers
// present in both maps. Returns the IC and the number of paired observations;
// fewer than 3 pairs yields (0, n).
func InformationCoefficient(scores, forwardReturns map[string]float64) (float64, int) {
	pairedScores := []float64{}
	pairedReturns := []float64{}
	for _, ticker := range sortedTickers(scores) {
		ret, ok := forwardReturns[ticker]
		if !ok {
			continue
		}
		pairedScores = append(pairedScores, scores[ticker])
		pairedReturns = append(pairedReturns, ret)
	}

	n := len(pairedScores)
	if n < minICObservations {
		return 0, n
	}

	ic, err := stat.Spearman(pairedScores, pairedReturns)
	if err != nil || math.IsNaN(ic) {
		// degenerate cross-section (e.g. all-tied scores); treat as no signal
		return 0, n
	}
	return ic, n
}

// ICStats summarizes an IC time series over a rolling window.
type ICStats struct {
	MeanIC           float64
	StdIC            float64
	TStat            float64
	InformationRatio float64
	Observations     int
	Significant      bool
}

// SeriesStats computes rolling IC statistics. The information ratio is
// annualized assuming monthly periods; significance is |t| > 1.96. Fewer than
// 3 observations produces the defined insignificant zero result.
func SeriesStats(ics []float64) ICStats {
	n := len(ics)
	if n < minICObservations {
		return ICStats{Observations: n}
	}

	var sum float64
	for _, ic := range ics {
		sum += ic
	}
	mean := sum / float64(n)

	var sumSq float64
	for _, ic := range ics {
		sumSq += (ic - mean) * (ic - mean)
	}
	stdev := math.Sqrt(sumSq / float64(n-1))
	if stdev == 0 {
		return ICStats{MeanIC: mean, Observations: n}
	}

	tStat := mean / stdev * math.Sqrt(float64(n))
	return ICStats{
		MeanIC:           mean,
		StdIC:            stdev,
		TStat:            tStat,
		InformationRatio: mean / stdev * math.Sqrt(periodsPerYear),
		Observations:     n,
		Significant:      math.Abs(tStat) > significanceTStat,
	}
}

// DecayProfile recomputes the mean IC of a factor against returns at forward
// lags 1..maxLag. scoresByPeriod[t] is the factor cross-section at period t;
// returnsByPeriod[t] is the return realized during period t, i.e. already one
// step forward of the snapshot. The lag-k IC therefore pairs scores at t with
// returns over period t+k-1, so lag 1 reproduces the per-period IC series and
// the half-life baseline is the 1-month IC.
func DecayProfile(scoresByPeriod, returnsByPeriod []map[string]float64, maxLag int) []float64 {
	curve := make([]float64, maxLag)
	for lag := 1; lag <= maxLag; lag++ {
		ics := []float64{}
		for t := 0; t < len(scoresByPeriod) && t+lag-1 < len(returnsByPeriod); t++ {
			ic, n := InformationCoefficient(scoresByPeriod[t], returnsByPeriod[t+lag-1])
			if n >= minICObservations {
				ics = append(ics, ic)
			}
		}
		if len(ics) == 0 {
			continue
		}
		var sum float64
		for _, ic := range ics {
			sum += ic
		}
		curve[lag-1] = sum / float64(len(ics))
	}
	return curve
}

// HalfLife is the first lag (1-based) at which |IC| decays to half the
// 1-month IC or less. A factor showing no decay within the tested horizon
// defaults to 12.
func HalfLife(decayCurve []float64) int {
	if len(decayCurve) == 0 || decayCurve[0] == 0 {
		return defaultHalfLife
	}
	threshold := math.Abs(decayCurve[0]) / 2
	for lag := 1; lag < len(decayCurve); lag++ {
		if math.Abs(decayCurve[lag]) <= threshold {
			return lag + 1
		}
	}
	return defaultHalfLife
}
