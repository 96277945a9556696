package backtest

import (
	"testing"

	"factorlab/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func activePeriods(returns []float64) []domain.BacktestPeriod {
	periods := make([]domain.BacktestPeriod, len(returns))
	for i, ret := range returns {
		periods[i] = domain.BacktestPeriod{
			Index:          i,
			NetReturn:      ret,
			PortfolioValue: decimal.NewFromInt(1),
			Regime:         domain.Regime_Sideways,
		}
	}
	return periods
}

func Test_ComputeReport(t *testing.T) {
	t.Run("compounds returns into the equity curve", func(t *testing.T) {
		report, err := ComputeReport(activePeriods([]float64{0.10, -0.05, 0.02}))
		require.NoError(t, err)

		require.Equal(t, 3, report.Periods)
		require.Len(t, report.EquityCurve, 4)
		require.InDelta(t, 1.0, report.EquityCurve[0], 1e-12)
		require.InDelta(t, 1.1, report.EquityCurve[1], 1e-12)
		require.InDelta(t, 1.1*0.95, report.EquityCurve[2], 1e-12)
		require.InDelta(t, 1.1*0.95*1.02, report.EquityCurve[3], 1e-12)
		require.InDelta(t, 1.1*0.95*1.02-1, report.TotalReturn, 1e-12)
		require.InDelta(t, 2.0/3.0, report.WinRate, 1e-12)
	})

	t.Run("skips warmup entries", func(t *testing.T) {
		periods := append([]domain.BacktestPeriod{
			{Index: 0, Regime: domain.Regime_Warmup},
			{Index: 1, Regime: domain.Regime_Warmup},
		}, activePeriods([]float64{0.01, 0.02, -0.01})...)

		report, err := ComputeReport(periods)
		require.NoError(t, err)
		require.Equal(t, 3, report.Periods)
	})

	t.Run("errors on fewer than two active periods", func(t *testing.T) {
		_, err := ComputeReport(activePeriods([]float64{0.01}))
		require.Error(t, err)

		_, err = ComputeReport([]domain.BacktestPeriod{
			{Regime: domain.Regime_Warmup},
			{Regime: domain.Regime_Warmup},
		})
		require.Error(t, err)
	})

	t.Run("all-positive returns degrade sortino to zero", func(t *testing.T) {
		report, err := ComputeReport(activePeriods([]float64{0.01, 0.02, 0.03}))
		require.NoError(t, err)
		require.Zero(t, report.SortinoRatio)
		require.Zero(t, report.MaxDrawdown)
		require.Zero(t, report.CalmarRatio)
		require.Equal(t, 1.0, report.WinRate)
	})
}

func Test_ComputeMaxDrawdown(t *testing.T) {
	t.Run("monotone rise has no drawdown", func(t *testing.T) {
		require.Zero(t, computeMaxDrawdown([]float64{1, 1.1, 1.2, 1.3}))
	})

	t.Run("measures peak to trough", func(t *testing.T) {
		// peak 1.5, trough 0.9
		require.InDelta(t, 0.4, computeMaxDrawdown([]float64{1, 1.5, 1.2, 0.9, 1.4}), 1e-12)
	})

	t.Run("recovery does not erase an earlier drawdown", func(t *testing.T) {
		require.InDelta(t, 0.5, computeMaxDrawdown([]float64{1, 2, 1, 3, 4}), 1e-12)
	})
}
