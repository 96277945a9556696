package store

import (
	"context"
	"testing"
	"time"

	"factorlab/internal/backtest"
	"factorlab/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() *backtest.RunResult {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &backtest.RunResult{
		RunID: uuid.New(),
		Periods: []domain.BacktestPeriod{
			{
				Index:          0,
				Date:           date,
				PortfolioValue: decimal.NewFromInt(1_000_000),
				Costs:          decimal.Zero,
				Regime:         domain.Regime_Warmup,
			},
			{
				Index:          1,
				Date:           date.AddDate(0, 1, 0),
				GrossReturn:    0.021,
				NetReturn:      0.0195,
				PortfolioValue: decimal.NewFromFloat(1_019_500),
				Costs:          decimal.NewFromInt(1500),
				Turnover:       0.18,
				Regime:         domain.Regime_Bull,
				Trades: []domain.Trade{
					{
						Ticker:      "SYN001",
						Side:        domain.TradeSide_Buy,
						WeightDelta: 0.12,
						Notional:    decimal.NewFromInt(120_000),
						Cost:        domain.CostBreakdown{Total: decimal.NewFromInt(900)},
					},
					{
						Ticker:         "SYN002",
						Side:           domain.TradeSide_Sell,
						WeightDelta:    -0.05,
						Notional:       decimal.NewFromInt(50_000),
						Deferred:       true,
						DeferredReason: "turnover cap 0.20 reached",
					},
				},
			},
		},
		FinalValue: decimal.NewFromFloat(1_019_500),
		TotalCosts: decimal.NewFromInt(1500),
	}
}

func Test_SaveRun(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a run", func(t *testing.T) {
		s := newTestStore(t)
		result := sampleResult()
		require.NoError(t, s.SaveRun(ctx, decimal.NewFromInt(1_000_000), result))

		runs, err := s.ListRuns(ctx)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		require.Equal(t, result.RunID, runs[0].RunID)
		require.True(t, runs[0].FinalValue.Equal(result.FinalValue))
		require.True(t, runs[0].TotalCosts.Equal(result.TotalCosts))
		require.Equal(t, 2, runs[0].NumPeriods)

		periods, err := s.LoadPeriods(ctx, result.RunID)
		require.NoError(t, err)
		require.Len(t, periods, 2)
		require.Equal(t, domain.Regime_Warmup, periods[0].Regime)
		require.Equal(t, domain.Regime_Bull, periods[1].Regime)
		require.Equal(t, 0.0195, periods[1].NetReturn)
		require.True(t, periods[1].Value.Equal(result.Periods[1].PortfolioValue))
		require.True(t, periods[1].Costs.Equal(result.Periods[1].Costs))
	})

	t.Run("rejects a duplicate run id", func(t *testing.T) {
		s := newTestStore(t)
		result := sampleResult()
		require.NoError(t, s.SaveRun(ctx, decimal.NewFromInt(1_000_000), result))
		require.Error(t, s.SaveRun(ctx, decimal.NewFromInt(1_000_000), result))
	})

	t.Run("unknown run has an empty period log", func(t *testing.T) {
		s := newTestStore(t)
		periods, err := s.LoadPeriods(ctx, uuid.New())
		require.NoError(t, err)
		require.Empty(t, periods)
	})
}
