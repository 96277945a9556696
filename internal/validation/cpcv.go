package validation

import (
	"fmt"
)

// CPCVConfig parameterizes combinatorial purged cross-validation over a
// timeline of Observations contiguous samples split into NumGroups groups.
type CPCVConfig struct {
	Observations int
	NumGroups    int
	TestGroups   int
	// PurgeWindow observations immediately before each test block and
	// EmbargoWindow observations immediately after are dropped from
	// training, so labels built near the boundary can't leak.
	PurgeWindow   int
	EmbargoWindow int
}

func (c CPCVConfig) Validate() error {
	if c.NumGroups < 2 {
		return fmt.Errorf("numGroups must be >= 2, got %d", c.NumGroups)
	}
	if c.TestGroups < 1 || c.TestGroups >= c.NumGroups {
		return fmt.Errorf("testGroups must be in [1, %d), got %d", c.NumGroups, c.TestGroups)
	}
	if c.Observations < c.NumGroups {
		return fmt.Errorf("cannot split %d observations into %d groups", c.Observations, c.NumGroups)
	}
	if c.PurgeWindow < 0 || c.EmbargoWindow < 0 {
		return fmt.Errorf("purge and embargo windows must be >= 0")
	}
	return nil
}

// Split is one train/test partition. Index slices are sorted ascending.
type Split struct {
	Train      []int
	Test       []int
	TestGroups []int
}

// Splits generates all C(NumGroups, TestGroups) train/test partitions. Every
// combination of TestGroups groups forms one test set; the remaining
// observations train, minus the purge window before and embargo window after
// each test group's block.
func Splits(cfg CPCVConfig) ([]Split, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bounds := groupBounds(cfg.Observations, cfg.NumGroups)

	splits := []Split{}
	for _, combo := range combinations(cfg.NumGroups, cfg.TestGroups) {
		inTest := make([]bool, cfg.Observations)
		excluded := make([]bool, cfg.Observations)
		for _, g := range combo {
			start, end := bounds[g][0], bounds[g][1]
			for i := start; i < end; i++ {
				inTest[i] = true
			}
			for i := max(0, start-cfg.PurgeWindow); i < start; i++ {
				excluded[i] = true
			}
			for i := end; i < min(cfg.Observations, end+cfg.EmbargoWindow); i++ {
				excluded[i] = true
			}
		}

		split := Split{TestGroups: append([]int{}, combo...)}
		for i := 0; i < cfg.Observations; i++ {
			switch {
			case inTest[i]:
				split.Test = append(split.Test, i)
			case !excluded[i]:
				split.Train = append(split.Train, i)
			}
		}
		splits = append(splits, split)
	}

	return splits, nil
}

// groupBounds partitions [0, observations) into numGroups contiguous
// half-open ranges whose sizes differ by at most one.
func groupBounds(observations, numGroups int) [][2]int {
	bounds := make([][2]int, numGroups)
	base := observations / numGroups
	remainder := observations % numGroups
	start := 0
	for g := 0; g < numGroups; g++ {
		size := base
		if g < remainder {
			size++
		}
		bounds[g] = [2]int{start, start + size}
		start += size
	}
	return bounds
}

// combinations enumerates all k-subsets of [0, n) in lexicographic order.
func combinations(n, k int) [][]int {
	out := [][]int{}
	combo := make([]int, k)
	var build func(start, depth int)
	build = func(start, depth int) {
		if depth == k {
			out = append(out, append([]int{}, combo...))
			return
		}
		for i := start; i <= n-(k-depth); i++ {
			combo[depth] = i
			build(i+1, depth+1)
		}
	}
	build(0, 0)
	return out
}
