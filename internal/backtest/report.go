package backtest

import (
	"fmt"
	"math"

	"factorlab/internal/domain"
	"factorlab/internal/stat"

	"github.com/montanaflynn/stats"
)

const periodsPerYear = 12

// ComputeReport aggregates a completed period sequence into the read-only
// performance summary. Warmup entries (no portfolio, no return) are skipped.
func ComputeReport(periods []domain.BacktestPeriod) (*domain.PerformanceReport, error) {
	returns := []float64{}
	for _, period := range periods {
		if period.Regime == domain.Regime_Warmup {
			continue
		}
		returns = append(returns, period.NetReturn)
	}
	if len(returns) < 2 {
		return nil, fmt.Errorf("cannot compute report on %d active periods", len(returns))
	}

	equity := make([]float64, len(returns)+1)
	equity[0] = 1
	for i, ret := range returns {
		equity[i+1] = equity[i] * (1 + ret)
	}

	mean, err := stats.Mean(returns)
	if err != nil {
		return nil, err
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate stdev: %w", err)
	}

	years := float64(len(returns)) / periodsPerYear
	totalReturn := equity[len(equity)-1] - 1
	annualizedReturn := math.Pow(1+totalReturn, 1/years) - 1
	annualizedVol := stdev * math.Sqrt(periodsPerYear)

	sharpe := 0.0
	if stdev > 0 {
		sharpe = mean / stdev * math.Sqrt(periodsPerYear)
	}

	maxDrawdown := computeMaxDrawdown(equity)
	calmar := 0.0
	if maxDrawdown > 0 {
		calmar = annualizedReturn / maxDrawdown
	}

	wins := 0
	for _, ret := range returns {
		if ret > 0 {
			wins++
		}
	}

	skew, kurtosis, err := stat.SkewKurtosis(returns)
	if err != nil {
		return nil, err
	}

	return &domain.PerformanceReport{
		Periods:              len(returns),
		TotalReturn:          totalReturn,
		AnnualizedReturn:     annualizedReturn,
		AnnualizedVolatility: annualizedVol,
		SharpeRatio:          sharpe,
		SortinoRatio:         computeSortino(returns, mean),
		CalmarRatio:          calmar,
		MaxDrawdown:          maxDrawdown,
		WinRate:              float64(wins) / float64(len(returns)),
		Skewness:             skew,
		Kurtosis:             kurtosis,
		EquityCurve:          equity,
	}, nil
}

// computeMaxDrawdown is the largest peak-to-trough decline of the equity
// curve, as a positive fraction.
func computeMaxDrawdown(equity []float64) float64 {
	peak := equity[0]
	maxDrawdown := 0.0
	for _, value := range equity {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			drawdown := (peak - value) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}
	return maxDrawdown
}

// computeSortino penalizes only downside volatility. With no losing periods
// it degenerates to 0 rather than infinity.
func computeSortino(returns []float64, mean float64) float64 {
	var downsideSq float64
	for _, ret := range returns {
		if ret < 0 {
			downsideSq += ret * ret
		}
	}
	downside := math.Sqrt(downsideSq / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return mean / downside * math.Sqrt(periodsPerYear)
}
