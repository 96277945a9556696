package factor

import (
	"fmt"
	"math"
	"sort"

	"factorlab/internal/domain"
)

// WeightOptimizer decides how much each factor contributes to the composite.
// The builder is agnostic to where weights come from; IC history is supplied
// so data-driven implementations can use it, period-scoped to avoid lookahead.
type WeightOptimizer interface {
	Weights(factorNames []string, icHistory map[string]ICStats) (map[string]float64, error)
}

// EqualWeightOptimizer assigns every factor the same weight.
type EqualWeightOptimizer struct{}

func (EqualWeightOptimizer) Weights(factorNames []string, _ map[string]ICStats) (map[string]float64, error) {
	if len(factorNames) == 0 {
		return nil, fmt.Errorf("cannot weight empty factor set")
	}
	weights := make(map[string]float64, len(factorNames))
	for _, name := range factorNames {
		weights[name] = 1 / float64(len(factorNames))
	}
	return weights, nil
}

// ICWeightOptimizer weights factors in proportion to |mean IC|, with a floor
// so a factor going through a cold stretch isn't zeroed out entirely. Falls
// back to equal weight when no factor has IC history yet.
type ICWeightOptimizer struct {
	Floor float64
}

func (o ICWeightOptimizer) Weights(factorNames []string, icHistory map[string]ICStats) (map[string]float64, error) {
	if len(factorNames) == 0 {
		return nil, fmt.Errorf("cannot weight empty factor set")
	}

	raw := make(map[string]float64, len(factorNames))
	sum := 0.0
	for _, name := range factorNames {
		w := math.Abs(icHistory[name].MeanIC)
		if w < o.Floor {
			w = o.Floor
		}
		raw[name] = w
		sum += w
	}
	if sum == 0 {
		return EqualWeightOptimizer{}.Weights(factorNames, nil)
	}

	for name := range raw {
		raw[name] /= sum
	}
	return raw, nil
}

// Combine produces one composite score per instrument as the weighted sum of
// its standardized factor scores, then re-standardizes the combination so
// composites stay comparable period over period. An instrument missing some
// factors is scored on the ones it has, with that instrument's weights
// renormalized; an instrument with no factor scores at all is omitted.
func Combine(scoresByFactor map[string]map[string]float64, weights map[string]float64) (map[string]domain.CompositeScore, error) {
	if len(scoresByFactor) == 0 {
		return nil, fmt.Errorf("cannot combine empty factor set")
	}

	weightSum := 0.0
	for name := range scoresByFactor {
		w, ok := weights[name]
		if !ok {
			return nil, fmt.Errorf("no weight supplied for factor %s", name)
		}
		if w < 0 {
			return nil, fmt.Errorf("negative weight %f for factor %s", w, name)
		}
		weightSum += w
	}
	if weightSum <= 0 {
		return nil, fmt.Errorf("factor weights sum to %f, want > 0", weightSum)
	}

	factorNames := make([]string, 0, len(scoresByFactor))
	for name := range scoresByFactor {
		factorNames = append(factorNames, name)
	}
	sort.Strings(factorNames)

	weightedSums := map[string]float64{}
	coveredWeight := map[string]float64{}
	components := map[string]map[string]float64{}
	for _, name := range factorNames {
		for ticker, score := range scoresByFactor[name] {
			weightedSums[ticker] += weights[name] / weightSum * score
			coveredWeight[ticker] += weights[name] / weightSum
			if components[ticker] == nil {
				components[ticker] = map[string]float64{}
			}
			components[ticker][name] = score
		}
	}

	rawComposite := make(map[string]float64, len(weightedSums))
	for ticker, sum := range weightedSums {
		if coveredWeight[ticker] == 0 {
			continue
		}
		rawComposite[ticker] = sum / coveredWeight[ticker]
	}

	standardized, err := Standardize(rawComposite)
	if err != nil {
		return nil, fmt.Errorf("failed to standardize composite: %w", err)
	}

	out := make(map[string]domain.CompositeScore, len(standardized))
	for ticker, score := range standardized {
		out[ticker] = domain.CompositeScore{
			Ticker:     ticker,
			Score:      score,
			Components: components[ticker],
		}
	}
	return out, nil
}
