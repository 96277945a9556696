// Package validation estimates how much of a backtest's performance is a
// statistical artifact: deflated Sharpe ratios, probability of backtest
// overfitting, and combinatorial purged cross-validation splits.
package validation

import (
	"fmt"
	"math"

	"factorlab/internal/stat"

	"github.com/montanaflynn/stats"
)

// eulerMascheroni appears in the closed form for the expected maximum of n
// standard normal draws.
const eulerMascheroni = 0.5772156649015329

const significanceLevel = 0.05

type DeflatedSharpeInput struct {
	// ObservedSharpe is the per-period (non-annualized) Sharpe ratio.
	ObservedSharpe float64
	// Trials is the number of independent strategy variants tried before
	// settling on this one.
	Trials int
	// Observations is the number of return periods behind the Sharpe.
	Observations int
	// Skewness and Kurtosis (excess) of the return series adjust the
	// Sharpe's standard error for non-normality.
	Skewness float64
	Kurtosis float64
	// TrialVariance is the variance of Sharpe estimates across trials. When
	// zero, the estimator's own variance is used.
	TrialVariance float64
}

type DeflatedSharpeResult struct {
	ExpectedMaxSharpe float64
	StandardError     float64
	DeflatedSharpe    float64
	PValue            float64
	Significant       bool
}

// DeflatedSharpe corrects an observed Sharpe ratio for selection across many
// trials and for non-normal returns. The expected maximum Sharpe achievable
// by chance among N trials follows the closed form
//
//	E[max] = sigma * ((1-gamma)*sqrt(2 ln N) + gamma*sqrt(2 ln N - 2))
//
// and the result's p-value is one-sided against the standard normal.
func DeflatedSharpe(in DeflatedSharpeInput) (DeflatedSharpeResult, error) {
	if in.Trials < 1 {
		return DeflatedSharpeResult{}, fmt.Errorf("trials must be >= 1, got %d", in.Trials)
	}
	if in.Observations < 2 {
		return DeflatedSharpeResult{}, fmt.Errorf("observations must be >= 2, got %d", in.Observations)
	}

	sr := in.ObservedSharpe
	rawKurtosis := in.Kurtosis + 3

	variance := (1 - in.Skewness*sr + (rawKurtosis-1)/4*sr*sr) / float64(in.Observations-1)
	if variance <= 0 {
		// extreme skew/kurtosis combinations can push the estimate negative
		variance = 1 / float64(in.Observations-1)
	}
	se := math.Sqrt(variance)

	trialVariance := in.TrialVariance
	if trialVariance <= 0 {
		trialVariance = variance
	}

	expectedMax := 0.0
	if in.Trials > 1 {
		n := float64(in.Trials)
		first := math.Sqrt(2 * math.Log(n))
		second := 0.0
		if 2*math.Log(n)-2 > 0 {
			second = math.Sqrt(2*math.Log(n) - 2)
		}
		expectedMax = math.Sqrt(trialVariance) * ((1-eulerMascheroni)*first + eulerMascheroni*second)
	}

	dsr := (sr - expectedMax) / se
	pValue := 1 - stat.NormalCDF(dsr)

	return DeflatedSharpeResult{
		ExpectedMaxSharpe: expectedMax,
		StandardError:     se,
		DeflatedSharpe:    dsr,
		PValue:            pValue,
		Significant:       pValue < significanceLevel,
	}, nil
}

// DeflatedSharpeFromReturns derives the observed Sharpe and its moments from
// the raw return series and deflates against the given trial count.
func DeflatedSharpeFromReturns(returns []float64, trials int) (DeflatedSharpeResult, error) {
	if len(returns) < 2 {
		return DeflatedSharpeResult{}, fmt.Errorf("cannot deflate Sharpe of %d returns", len(returns))
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return DeflatedSharpeResult{}, err
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return DeflatedSharpeResult{}, fmt.Errorf("failed to calculate stdev: %w", err)
	}
	if stdev == 0 {
		return DeflatedSharpeResult{}, fmt.Errorf("cannot deflate Sharpe of zero-variance returns")
	}

	skew, kurtosis, err := stat.SkewKurtosis(returns)
	if err != nil {
		return DeflatedSharpeResult{}, err
	}

	return DeflatedSharpe(DeflatedSharpeInput{
		ObservedSharpe: mean / stdev,
		Trials:         trials,
		Observations:   len(returns),
		Skewness:       skew,
		Kurtosis:       kurtosis,
	})
}
