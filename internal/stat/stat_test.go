package stat

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func Test_Winsorize(t *testing.T) {
	t.Run("clamps tails", func(t *testing.T) {
		values := []float64{1, 2, 3, 4, 1000}
		out, err := Winsorize(values, 10, 90)
		require.NoError(t, err)
		require.Less(t, out[4], 1000.0)
		require.Equal(t, 1000.0, values[4], "input must not be mutated")
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := Winsorize(nil, 1, 99)
		require.Error(t, err)
	})

	t.Run("rejects inverted bounds", func(t *testing.T) {
		_, err := Winsorize([]float64{1, 2, 3}, 99, 1)
		require.Error(t, err)
	})
}

func Test_ZScores(t *testing.T) {
	t.Run("zero mean unit variance", func(t *testing.T) {
		out, err := ZScores([]float64{1, 2, 3, 4, 5, 6, 7, 8})
		require.NoError(t, err)

		var sum, sumSq float64
		for _, v := range out {
			sum += v
		}
		mean := sum / float64(len(out))
		for _, v := range out {
			sumSq += (v - mean) * (v - mean)
		}
		stdev := math.Sqrt(sumSq / float64(len(out)-1))

		require.InDelta(t, 0, mean, 1e-9)
		require.InDelta(t, 1, stdev, 1e-9)
	})

	t.Run("zero variance yields neutral scores", func(t *testing.T) {
		out, err := ZScores([]float64{5, 5, 5, 5})
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff([]float64{0, 0, 0, 0}, out))
	})
}

func Test_Clip(t *testing.T) {
	out := Clip([]float64{-10, -1, 0, 1, 10}, 3)
	require.Equal(t, "", cmp.Diff([]float64{-3, -1, 0, 1, 3}, out))
}

func Test_Ranks(t *testing.T) {
	t.Run("distinct values", func(t *testing.T) {
		out := Ranks([]float64{30, 10, 20})
		require.Equal(t, "", cmp.Diff([]float64{3, 1, 2}, out))
	})

	t.Run("ties get averaged ranks", func(t *testing.T) {
		out := Ranks([]float64{10, 20, 20, 30})
		require.Equal(t, "", cmp.Diff([]float64{1, 2.5, 2.5, 4}, out))
	})
}

func Test_Spearman(t *testing.T) {
	t.Run("monotone relationship is perfect", func(t *testing.T) {
		rho, err := Spearman([]float64{1, 2, 3, 4}, []float64{10, 100, 1000, 10000})
		require.NoError(t, err)
		require.InDelta(t, 1, rho, 1e-9)
	})

	t.Run("inverted relationship", func(t *testing.T) {
		rho, err := Spearman([]float64{1, 2, 3, 4}, []float64{4, 3, 2, 1})
		require.NoError(t, err)
		require.InDelta(t, -1, rho, 1e-9)
	})

	t.Run("mismatched lengths rejected", func(t *testing.T) {
		_, err := Spearman([]float64{1, 2}, []float64{1})
		require.Error(t, err)
	})
}

func Test_SkewKurtosis(t *testing.T) {
	t.Run("symmetric series has zero skew", func(t *testing.T) {
		skew, _, err := SkewKurtosis([]float64{-2, -1, 0, 1, 2})
		require.NoError(t, err)
		require.InDelta(t, 0, skew, 1e-9)
	})

	t.Run("right tail produces positive skew", func(t *testing.T) {
		skew, _, err := SkewKurtosis([]float64{1, 1, 1, 1, 10})
		require.NoError(t, err)
		require.Greater(t, skew, 0.0)
	})
}

func Test_NormalCDF(t *testing.T) {
	require.InDelta(t, 0.5, NormalCDF(0), 1e-9)
	require.InDelta(t, 0.9772, NormalCDF(2), 1e-4)
	require.InDelta(t, 0.0228, NormalCDF(-2), 1e-4)
}

func Test_OLSResiduals(t *testing.T) {
	t.Run("perfect linear fit leaves zero residuals", func(t *testing.T) {
		x := []float64{1, 2, 3, 4}
		y := []float64{2, 4, 6, 8}
		res, err := OLSResiduals(x, y)
		require.NoError(t, err)
		for _, r := range res {
			require.InDelta(t, 0, r, 1e-9)
		}
	})

	t.Run("residuals are mean zero", func(t *testing.T) {
		x := []float64{1, 2, 3, 4, 5}
		y := []float64{2.2, 3.9, 6.1, 8.3, 9.4}
		res, err := OLSResiduals(x, y)
		require.NoError(t, err)
		var sum float64
		for _, r := range res {
			sum += r
		}
		require.InDelta(t, 0, sum/float64(len(res)), 1e-9)
	})
}
