package validation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_DeflatedSharpe(t *testing.T) {
	t.Run("zero-mean returns across many trials are not significant", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		returns := make([]float64, 100)
		for i := range returns {
			returns[i] = rng.NormFloat64() * 0.02
		}

		result, err := DeflatedSharpeFromReturns(returns, 100)
		require.NoError(t, err)
		require.Greater(t, result.PValue, significanceLevel)
		require.False(t, result.Significant)
		require.Greater(t, result.ExpectedMaxSharpe, 0.0)
	})

	t.Run("strong low-variance returns with one trial are significant", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		returns := make([]float64, 60)
		for i := range returns {
			returns[i] = 0.02 + rng.NormFloat64()*0.005
		}

		result, err := DeflatedSharpeFromReturns(returns, 1)
		require.NoError(t, err)
		require.Equal(t, 0.0, result.ExpectedMaxSharpe, "single trial has no selection bias to deflate")
		require.Less(t, result.PValue, significanceLevel)
		require.True(t, result.Significant)
	})

	t.Run("more trials raise the bar", func(t *testing.T) {
		in := DeflatedSharpeInput{
			ObservedSharpe: 0.3,
			Observations:   120,
		}

		in.Trials = 10
		few, err := DeflatedSharpe(in)
		require.NoError(t, err)

		in.Trials = 1000
		many, err := DeflatedSharpe(in)
		require.NoError(t, err)

		require.Greater(t, many.ExpectedMaxSharpe, few.ExpectedMaxSharpe)
		require.Less(t, many.DeflatedSharpe, few.DeflatedSharpe)
	})

	t.Run("invalid inputs rejected", func(t *testing.T) {
		_, err := DeflatedSharpe(DeflatedSharpeInput{Trials: 0, Observations: 10})
		require.Error(t, err)
		_, err = DeflatedSharpe(DeflatedSharpeInput{Trials: 5, Observations: 1})
		require.Error(t, err)
	})

	t.Run("zero variance returns rejected", func(t *testing.T) {
		_, err := DeflatedSharpeFromReturns([]float64{0.01, 0.01, 0.01}, 5)
		require.Error(t, err)
	})
}
