package validation

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Evaluation bundles the overfitting checks run against one completed return
// series: the deflated Sharpe ratio of the full series, and the probability
// of backtest overfitting estimated over the combinatorially purged splits.
type Evaluation struct {
	DSR       DeflatedSharpeResult
	PBO       PBOResult
	NumSplits int
}

// Evaluate runs DSR over the full series and PBO over the CPCV partitions of
// it. Each split contributes one paired observation: its train-set Sharpe in
// sample and its test-set Sharpe out of sample. cfg.Observations must cover
// exactly the given returns.
func Evaluate(returns []float64, cfg CPCVConfig, trials int) (Evaluation, error) {
	if cfg.Observations != len(returns) {
		return Evaluation{}, fmt.Errorf("config covers %d observations, got %d returns", cfg.Observations, len(returns))
	}

	dsr, err := DeflatedSharpeFromReturns(returns, trials)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to deflate Sharpe: %w", err)
	}

	splits, err := Splits(cfg)
	if err != nil {
		return Evaluation{}, err
	}

	inSample := make([]float64, len(splits))
	outOfSample := make([]float64, len(splits))
	for i, split := range splits {
		inSample[i] = splitSharpe(returns, split.Train)
		outOfSample[i] = splitSharpe(returns, split.Test)
	}
	pbo, err := PBO(inSample, outOfSample)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to estimate overfitting probability: %w", err)
	}

	return Evaluation{
		DSR:       dsr,
		PBO:       pbo,
		NumSplits: len(splits),
	}, nil
}

// splitSharpe is the per-period Sharpe over the indexed subset. PBO only
// compares ranks, so no annualization is applied. Degenerate subsets score 0.
func splitSharpe(returns []float64, indexes []int) float64 {
	subset := make([]float64, len(indexes))
	for i, idx := range indexes {
		subset[i] = returns[idx]
	}
	if len(subset) < 2 {
		return 0
	}

	mean, err := stats.Mean(subset)
	if err != nil {
		return 0
	}
	stdev, err := stats.StandardDeviationSample(subset)
	if err != nil || stdev == 0 {
		return 0
	}
	return mean / stdev
}
