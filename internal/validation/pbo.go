package validation

import (
	"fmt"
)

// minPBOPairs is the fewest paired strategy observations that produce a
// meaningful overfitting estimate.
const minPBOPairs = 5

type PBOResult struct {
	// Probability is the best in-sample strategy's relative rank in the
	// out-of-sample ordering: 0 means it was also the best out of sample,
	// 1 means it was the worst.
	Probability float64
	// BestInSample is the index of the strategy with the highest in-sample
	// Sharpe.
	BestInSample int
	// OutOfSampleRank is that strategy's 1-based rank out of sample
	// (1 = best).
	OutOfSampleRank int
	// Overfit is set when the best in-sample strategy lands below the
	// out-of-sample median.
	Overfit bool
	// Insufficient marks the defined too-few-pairs result.
	Insufficient bool
	Observations int
}

// PBO estimates the probability of backtest overfitting from paired
// in-sample/out-of-sample Sharpe ratios across candidate strategies. Fewer
// than 5 pairs is a defined insufficient-data result, not an error.
func PBO(inSample, outOfSample []float64) (PBOResult, error) {
	if len(inSample) != len(outOfSample) {
		return PBOResult{}, fmt.Errorf("mismatched sample counts %d and %d", len(inSample), len(outOfSample))
	}
	n := len(inSample)
	if n < minPBOPairs {
		return PBOResult{Insufficient: true, Observations: n}, nil
	}

	best := 0
	for i := 1; i < n; i++ {
		if inSample[i] > inSample[best] {
			best = i
		}
	}

	rank := 1
	for i := 0; i < n; i++ {
		if i != best && outOfSample[i] > outOfSample[best] {
			rank++
		}
	}

	return PBOResult{
		Probability:     float64(rank-1) / float64(n-1),
		BestInSample:    best,
		OutOfSampleRank: rank,
		Overfit:         float64(rank) > float64(n+1)/2,
		Observations:    n,
	}, nil
}
