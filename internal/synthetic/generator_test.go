package synthetic

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		NumInstruments: 10,
		Periods:        18,
		StartDate:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func Test_Generate(t *testing.T) {
	t.Run("same seed reproduces the same history", func(t *testing.T) {
		first, err := Generate(testConfig(), NewSeededSource(42))
		require.NoError(t, err)
		second, err := Generate(testConfig(), NewSeededSource(42))
		require.NoError(t, err)

		require.Equal(t, "", cmp.Diff(first.ReturnsByPeriod, second.ReturnsByPeriod))
		require.Equal(t, "", cmp.Diff(first.SnapshotsByPeriod, second.SnapshotsByPeriod))
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		first, err := Generate(testConfig(), NewSeededSource(1))
		require.NoError(t, err)
		second, err := Generate(testConfig(), NewSeededSource(2))
		require.NoError(t, err)
		require.NotEqual(t, first.ReturnsByPeriod[0], second.ReturnsByPeriod[0])
	})

	t.Run("shape matches config", func(t *testing.T) {
		history, err := Generate(testConfig(), NewSeededSource(7))
		require.NoError(t, err)
		require.Len(t, history.Dates, 18)
		require.Len(t, history.SnapshotsByPeriod, 18)
		require.Len(t, history.ReturnsByPeriod, 18)
		for _, snapshots := range history.SnapshotsByPeriod {
			require.Len(t, snapshots, 10)
		}
	})

	t.Run("snapshots carry usable fundamentals", func(t *testing.T) {
		history, err := Generate(testConfig(), NewSeededSource(7))
		require.NoError(t, err)
		for _, snapshot := range history.SnapshotsByPeriod[3] {
			require.NotEmpty(t, snapshot.Ticker)
			require.NotEmpty(t, snapshot.Sector)
			require.Greater(t, snapshot.Price, 0.0)
			require.Greater(t, snapshot.MarketCap, 0.0)
			require.NotNil(t, snapshot.PERatio)
			require.NotNil(t, snapshot.TrailingReturn)
		}
	})

	t.Run("nil source rejected", func(t *testing.T) {
		_, err := Generate(testConfig(), nil)
		require.Error(t, err)
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		cfg := testConfig()
		cfg.Periods = 1
		_, err := Generate(cfg, NewSeededSource(1))
		require.Error(t, err)
	})
}
