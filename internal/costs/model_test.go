package costs

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{
		SpreadBps:     5,
		FixedPerTrade: 1,
		ImpactBps:     10,
		TradingDays:   5,
	}
}

func Test_NewModel(t *testing.T) {
	t.Run("rejects negative coefficients", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.SpreadBps = -1
		_, err := NewModel(cfg)
		require.Error(t, err)
	})

	t.Run("rejects zero trading days", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.TradingDays = 0
		_, err := NewModel(cfg)
		require.Error(t, err)
	})
}

func Test_Estimate(t *testing.T) {
	model, err := NewModel(defaultConfig())
	require.NoError(t, err)

	t.Run("breakdown sums to total", func(t *testing.T) {
		est := model.Estimate(decimal.NewFromInt(100_000), 50e9, 500e6)
		sum := est.Spread.Add(est.Fixed).Add(est.Impact)
		require.True(t, sum.Equal(est.Total), "breakdown %s != total %s", sum, est.Total)
		require.Greater(t, est.Bps, 0.0)
	})

	t.Run("zero notional costs nothing", func(t *testing.T) {
		est := model.Estimate(decimal.Zero, 50e9, 500e6)
		require.True(t, est.Total.IsZero())
	})

	t.Run("sign of notional is irrelevant", func(t *testing.T) {
		buy := model.Estimate(decimal.NewFromInt(100_000), 50e9, 500e6)
		sell := model.Estimate(decimal.NewFromInt(-100_000), 50e9, 500e6)
		require.True(t, buy.Total.Equal(sell.Total))
	})

	t.Run("small caps cost more than large caps", func(t *testing.T) {
		large := model.Estimate(decimal.NewFromInt(100_000), 50e9, 500e6)
		small := model.Estimate(decimal.NewFromInt(100_000), 300e6, 500e6)
		require.True(t, small.Total.GreaterThan(large.Total))
	})

	t.Run("impact grows with participation", func(t *testing.T) {
		thin := model.Estimate(decimal.NewFromInt(1_000_000), 50e9, 1e6)
		deep := model.Estimate(decimal.NewFromInt(1_000_000), 50e9, 1e9)
		require.True(t, thin.Impact.GreaterThan(deep.Impact))
	})

	t.Run("unknown volume is priced as full participation", func(t *testing.T) {
		unknown := model.Estimate(decimal.NewFromInt(100_000), 50e9, 0)
		known := model.Estimate(decimal.NewFromInt(100_000), 50e9, 1e9)
		require.True(t, unknown.Impact.GreaterThan(known.Impact))
	})
}
