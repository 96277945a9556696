// Package stat provides the cross-sectional statistics the scoring and
// validation layers are built on. Everything here is a pure function over
// float64 slices; inputs are never mutated.
package stat

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Winsorize returns a copy of values with everything below the lowerPct
// percentile raised to it and everything above the upperPct percentile
// lowered to it. Percentiles are expressed in [0, 100].
func Winsorize(values []float64, lowerPct, upperPct float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("cannot winsorize empty set")
	}
	if lowerPct >= upperPct {
		return nil, fmt.Errorf("invalid winsorization bounds [%f, %f]", lowerPct, upperPct)
	}

	lower, err := stats.Percentile(values, lowerPct)
	if err != nil {
		return nil, fmt.Errorf("failed to compute lower percentile: %w", err)
	}
	upper, err := stats.Percentile(values, upperPct)
	if err != nil {
		return nil, fmt.Errorf("failed to compute upper percentile: %w", err)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v < lower:
			out[i] = lower
		case v > upper:
			out[i] = upper
		default:
			out[i] = v
		}
	}
	return out, nil
}

// ZScores standardizes values to zero mean and unit variance. A zero-variance
// input yields all-zero scores rather than an error, since sparse or flat
// cross-sections must still produce a usable (neutral) signal.
func ZScores(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("cannot z-score empty set")
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return nil, err
	}
	stdev, err := stats.StandardDeviationSample(values)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate stdev: %w", err)
	}

	out := make([]float64, len(values))
	if stdev == 0 {
		return out, nil
	}
	for i, v := range values {
		out[i] = (v - mean) / stdev
	}
	return out, nil
}

// Clip returns a copy of values with every element clamped to [-limit, limit].
func Clip(values []float64, limit float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Max(-limit, math.Min(limit, v))
	}
	return out
}

// Ranks converts values to 1-based ranks, averaging ties so that tied
// observations don't bias rank correlations.
func Ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// average rank over the tie run [i, j]
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// Spearman computes the rank correlation between x and y.
func Spearman(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("mismatched series lengths %d and %d", len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("cannot correlate fewer than 2 observations")
	}
	return stats.Pearson(Ranks(x), Ranks(y))
}

// SkewKurtosis returns the sample skewness and excess kurtosis of values.
// montanaflynn/stats has no moment functions beyond variance, so the third
// and fourth moments are computed directly.
func SkewKurtosis(values []float64) (skew float64, kurtosis float64, err error) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0, fmt.Errorf("cannot compute moments of fewer than 2 observations")
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return 0, 0, err
	}
	stdev, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0, 0, err
	}
	if stdev == 0 {
		return 0, 0, nil
	}

	var m3, m4 float64
	for _, v := range values {
		d := v - mean
		m3 += d * d * d
		m4 += d * d * d * d
	}
	skew = (m3 / n) / math.Pow(stdev, 3)
	kurtosis = (m4/n)/math.Pow(stdev, 4) - 3
	return skew, kurtosis, nil
}

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// OLSResiduals regresses y on x (with intercept) and returns the residuals.
// Used to strip one variable's linear influence out of another, e.g. removing
// size contamination from a factor by regressing it on log market cap.
func OLSResiduals(x, y []float64) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("mismatched series lengths %d and %d", len(x), len(y))
	}
	if len(x) < 3 {
		return nil, fmt.Errorf("cannot regress fewer than 3 observations")
	}

	series := make(stats.Series, len(x))
	for i := range x {
		series[i] = stats.Coordinate{X: x[i], Y: y[i]}
	}
	fitted, err := stats.LinearRegression(series)
	if err != nil {
		return nil, fmt.Errorf("failed to fit regression: %w", err)
	}

	residuals := make([]float64, len(y))
	for i := range y {
		residuals[i] = y[i] - fitted[i].Y
	}
	return residuals, nil
}
