package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Evaluate(t *testing.T) {
	cfg := CPCVConfig{
		Observations:  30,
		NumGroups:     6,
		TestGroups:    2,
		PurgeWindow:   1,
		EmbargoWindow: 1,
	}

	t.Run("pairs every split's train and test sharpe", func(t *testing.T) {
		returns := make([]float64, 30)
		for i := range returns {
			returns[i] = 0.01 + 0.004*float64(i%3)
		}

		evaluation, err := Evaluate(returns, cfg, 1)
		require.NoError(t, err)

		require.Equal(t, 15, evaluation.NumSplits) // C(6,2)
		require.Equal(t, 15, evaluation.PBO.Observations)
		require.False(t, evaluation.PBO.Insufficient)
		require.GreaterOrEqual(t, evaluation.PBO.Probability, 0.0)
		require.LessOrEqual(t, evaluation.PBO.Probability, 1.0)
		// steady positive returns with a single trial deflate to a strong DSR
		require.True(t, evaluation.DSR.Significant)
	})

	t.Run("flags a front-loaded series as overfit", func(t *testing.T) {
		// strong early periods, losses later: the split trained on the good
		// stretch tests on the bad one and lands at the bottom out of sample
		returns := make([]float64, 30)
		for i := range returns {
			if i < 15 {
				returns[i] = 0.02 + 0.001*float64(i%3)
			} else {
				returns[i] = -0.01 - 0.001*float64(i%3)
			}
		}

		evaluation, err := Evaluate(returns, cfg, 1)
		require.NoError(t, err)
		require.True(t, evaluation.PBO.Overfit)
		require.Greater(t, evaluation.PBO.Probability, 0.8)
	})

	t.Run("too few splits is the defined insufficient result", func(t *testing.T) {
		returns := make([]float64, 30)
		for i := range returns {
			returns[i] = 0.01 + 0.004*float64(i%3)
		}

		evaluation, err := Evaluate(returns, CPCVConfig{
			Observations: 30,
			NumGroups:    3,
			TestGroups:   1,
		}, 1)
		require.NoError(t, err)
		require.Equal(t, 3, evaluation.NumSplits)
		require.True(t, evaluation.PBO.Insufficient)
	})

	t.Run("rejects a config sized for a different series", func(t *testing.T) {
		_, err := Evaluate(make([]float64, 10), cfg, 1)
		require.Error(t, err)
	})
}
