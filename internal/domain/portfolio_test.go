package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConstraints() Constraints {
	return Constraints{
		MinPositions:    2,
		MaxPositions:    5,
		MinPositionSize: 0.05,
		MaxPositionSize: 0.60,
		MaxSectorWeight: 0.80,
	}
}

func Test_Constraints_Validate(t *testing.T) {
	require.NoError(t, validConstraints().Validate())

	t.Run("rejects min above max positions", func(t *testing.T) {
		c := validConstraints()
		c.MinPositions = 6
		require.Error(t, c.Validate())
	})

	t.Run("rejects negative position size", func(t *testing.T) {
		c := validConstraints()
		c.MinPositionSize = -0.01
		require.Error(t, c.Validate())
	})

	t.Run("rejects unreachable weight sum", func(t *testing.T) {
		// 5 positions at 0.15 max can never sum to 1
		c := validConstraints()
		c.MaxPositionSize = 0.15
		require.Error(t, c.Validate())
	})
}

func Test_NewPortfolio_Sorts(t *testing.T) {
	p := NewPortfolio([]Holding{
		{Ticker: "B", Weight: 0.3, CompositeScore: 1.0},
		{Ticker: "C", Weight: 0.3, CompositeScore: 2.0},
		{Ticker: "A", Weight: 0.4, CompositeScore: 1.0},
	})
	require.Equal(t, []string{"A", "B", "C"}, p.Tickers())
	// descending score, ties by ticker
	require.Equal(t, "C", p.Holdings[0].Ticker)
	require.Equal(t, "A", p.Holdings[1].Ticker)
	require.Equal(t, "B", p.Holdings[2].Ticker)
}

func Test_Portfolio_Verify(t *testing.T) {
	c := validConstraints()

	t.Run("accepts a valid book", func(t *testing.T) {
		p := NewPortfolio([]Holding{
			{Ticker: "A", Weight: 0.5, Sector: "Technology"},
			{Ticker: "B", Weight: 0.3, Sector: "Energy"},
			{Ticker: "C", Weight: 0.2, Sector: "Energy"},
		})
		require.NoError(t, p.Verify(c))
	})

	t.Run("rejects weights not summing to 1", func(t *testing.T) {
		p := NewPortfolio([]Holding{
			{Ticker: "A", Weight: 0.5, Sector: "Technology"},
			{Ticker: "B", Weight: 0.3, Sector: "Energy"},
		})
		require.Error(t, p.Verify(c))
	})

	t.Run("rejects an oversized position", func(t *testing.T) {
		p := NewPortfolio([]Holding{
			{Ticker: "A", Weight: 0.7, Sector: "Technology"},
			{Ticker: "B", Weight: 0.3, Sector: "Energy"},
		})
		require.Error(t, p.Verify(c))
	})

	t.Run("rejects a sector over its cap", func(t *testing.T) {
		tight := c
		tight.MaxSectorWeight = 0.5
		p := NewPortfolio([]Holding{
			{Ticker: "A", Weight: 0.4, Sector: "Technology"},
			{Ticker: "B", Weight: 0.4, Sector: "Technology"},
			{Ticker: "C", Weight: 0.2, Sector: "Energy"},
		})
		require.Error(t, p.Verify(tight))
	})

	t.Run("rejects too few holdings", func(t *testing.T) {
		p := NewPortfolio([]Holding{{Ticker: "A", Weight: 1, Sector: "Technology"}})
		require.Error(t, p.Verify(c))
	})
}

func Test_Portfolio_SectorWeights(t *testing.T) {
	p := NewPortfolio([]Holding{
		{Ticker: "A", Weight: 0.5, Sector: "Technology"},
		{Ticker: "B", Weight: 0.3, Sector: "Technology"},
		{Ticker: "C", Weight: 0.2, Sector: "Energy"},
	})
	weights := p.SectorWeights()
	require.InDelta(t, 0.8, weights["Technology"], 1e-12)
	require.InDelta(t, 0.2, weights["Energy"], 1e-12)
}

func Test_Optional(t *testing.T) {
	_, ok := Optional(nil)
	require.False(t, ok)

	v, ok := Optional(Float64Pointer(1.5))
	require.True(t, ok)
	require.Equal(t, 1.5, v)
}
