// Package allocation implements hierarchical risk parity: long-only weights
// that diversify across correlation clusters instead of inverting a noisy
// covariance matrix.
package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// mergeRecord is one node of the clustering dendrogram. Leaves occupy ids
// 0..n-1 and merge nodes n..2n-2; an arena of these records replaces a
// pointer-based tree, so traversal is plain index lookups.
type mergeRecord struct {
	left     int
	right    int
	distance float64
}

const minClusterVariance = 1e-12

// Weights computes HRP weights from each instrument's return history. All
// series must be the same length. Output weights are non-negative and sum
// to 1. Fewer than 2 instruments returns the trivial single weight.
func Weights(returnsByTicker map[string][]float64) (map[string]float64, error) {
	tickers := make([]string, 0, len(returnsByTicker))
	for ticker := range returnsByTicker {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("cannot allocate empty instrument set")
	}
	if n == 1 {
		return map[string]float64{tickers[0]: 1}, nil
	}

	length := len(returnsByTicker[tickers[0]])
	for _, ticker := range tickers {
		if len(returnsByTicker[ticker]) != length {
			return nil, fmt.Errorf("return history for %s has %d observations, want %d", ticker, len(returnsByTicker[ticker]), length)
		}
	}
	if length < 2 {
		return nil, fmt.Errorf("cannot allocate with %d return observations", length)
	}

	series := make([][]float64, n)
	for i, ticker := range tickers {
		series[i] = returnsByTicker[ticker]
	}

	cov, dist, err := covarianceAndDistance(series)
	if err != nil {
		return nil, err
	}

	merges := singleLinkage(dist)
	order := quasiDiagonalize(merges, n)
	weights := recursiveBisection(order, cov)

	out := make(map[string]float64, n)
	for i, ticker := range tickers {
		out[ticker] = weights[i]
	}
	return out, nil
}

// covarianceAndDistance computes the sample covariance matrix and the
// correlation-derived distance matrix d = sqrt(0.5 * (1 - rho)).
func covarianceAndDistance(series [][]float64) ([][]float64, [][]float64, error) {
	n := len(series)
	cov := make([][]float64, n)
	dist := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
		dist[i] = make([]float64, n)
	}

	means := make([]float64, n)
	for i := range series {
		m, err := stats.Mean(series[i])
		if err != nil {
			return nil, nil, err
		}
		means[i] = m
	}

	length := float64(len(series[0]))
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum float64
			for k := range series[i] {
				sum += (series[i][k] - means[i]) * (series[j][k] - means[j])
			}
			c := sum / (length - 1)
			cov[i][j] = c
			cov[j][i] = c
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			denom := math.Sqrt(cov[i][i] * cov[j][j])
			rho := 0.0
			if denom > 0 {
				rho = cov[i][j] / denom
			}
			// clamp for floating point spill outside [-1, 1]
			rho = math.Max(-1, math.Min(1, rho))
			d := math.Sqrt(0.5 * (1 - rho))
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	return cov, dist, nil
}

// singleLinkage clusters the distance matrix bottom-up, always merging the
// two clusters with the smallest minimum pairwise distance. Returns the
// arena of n-1 merge records; record k describes node n+k.
func singleLinkage(dist [][]float64) []mergeRecord {
	n := len(dist)

	type cluster struct {
		id      int
		members []int
	}
	active := make([]cluster, n)
	for i := 0; i < n; i++ {
		active[i] = cluster{id: i, members: []int{i}}
	}

	merges := make([]mergeRecord, 0, n-1)
	for len(active) > 1 {
		bestI, bestJ := 0, 1
		bestDist := math.Inf(1)
		for i := 0; i < len(active); i++ {
			for j := i + 1; j < len(active); j++ {
				d := minMemberDistance(dist, active[i].members, active[j].members)
				if d < bestDist {
					bestDist = d
					bestI, bestJ = i, j
				}
			}
		}

		merged := cluster{
			id:      n + len(merges),
			members: append(append([]int{}, active[bestI].members...), active[bestJ].members...),
		}
		merges = append(merges, mergeRecord{
			left:     active[bestI].id,
			right:    active[bestJ].id,
			distance: bestDist,
		})

		// remove the higher index first so the lower stays valid
		active = append(active[:bestJ], active[bestJ+1:]...)
		active = append(active[:bestI], active[bestI+1:]...)
		active = append(active, merged)
	}

	return merges
}

func minMemberDistance(dist [][]float64, a, b []int) float64 {
	min := math.Inf(1)
	for _, i := range a {
		for _, j := range b {
			if dist[i][j] < min {
				min = dist[i][j]
			}
		}
	}
	return min
}

// quasiDiagonalize traverses the dendrogram depth-first from the root and
// returns the leaf ordering, which places correlated instruments adjacent.
func quasiDiagonalize(merges []mergeRecord, n int) []int {
	if n == 1 {
		return []int{0}
	}

	order := make([]int, 0, n)
	stack := []int{n + len(merges) - 1}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node < n {
			order = append(order, node)
			continue
		}
		record := merges[node-n]
		// push right first so left is visited first
		stack = append(stack, record.right, record.left)
	}
	return order
}

// recursiveBisection splits the quasi-diagonal ordering in half repeatedly,
// allocating weight between halves in inverse proportion to their aggregate
// variances.
func recursiveBisection(order []int, cov [][]float64) []float64 {
	weights := make([]float64, len(cov))
	for _, idx := range order {
		weights[idx] = 1
	}

	type span struct{ start, end int } // half-open over order
	stack := []span{{0, len(order)}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.end-s.start < 2 {
			continue
		}

		mid := s.start + (s.end-s.start)/2
		left := order[s.start:mid]
		right := order[mid:s.end]

		varLeft := clusterVariance(left, cov)
		varRight := clusterVariance(right, cov)

		alpha := 0.5
		if varLeft+varRight > 0 {
			alpha = 1 - varLeft/(varLeft+varRight)
		}

		for _, idx := range left {
			weights[idx] *= alpha
		}
		for _, idx := range right {
			weights[idx] *= 1 - alpha
		}

		stack = append(stack, span{s.start, mid}, span{mid, s.end})
	}

	// guard against drift from repeated multiplication
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum > 0 {
		for i := range weights {
			weights[i] /= sum
		}
	}
	return weights
}

// clusterVariance is the variance of the inverse-variance-weighted portfolio
// of the cluster's members, the standard HRP cluster risk estimate.
func clusterVariance(members []int, cov [][]float64) float64 {
	ivp := make([]float64, len(members))
	sum := 0.0
	for i, idx := range members {
		v := cov[idx][idx]
		if v < minClusterVariance {
			v = minClusterVariance
		}
		ivp[i] = 1 / v
		sum += ivp[i]
	}
	for i := range ivp {
		ivp[i] /= sum
	}

	variance := 0.0
	for i, a := range members {
		for j, b := range members {
			variance += ivp[i] * ivp[j] * cov[a][b]
		}
	}
	return variance
}
