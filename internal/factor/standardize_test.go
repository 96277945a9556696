package factor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Standardize(t *testing.T) {
	t.Run("output is zero mean unit variance within the cap", func(t *testing.T) {
		raw := map[string]float64{
			"AAPL": 10, "MSFT": 12, "GOOG": 8, "AMZN": 15, "META": 9,
			"NVDA": 11, "TSLA": 14, "NFLX": 7,
		}
		scores, err := Standardize(raw)
		require.NoError(t, err)
		require.Len(t, scores, len(raw))

		var sum float64
		for _, s := range scores {
			sum += s
			require.LessOrEqual(t, math.Abs(s), zScoreCap)
		}
		require.InDelta(t, 0, sum/float64(len(scores)), 1e-9)

		var sumSq float64
		for _, s := range scores {
			sumSq += s * s
		}
		stdev := math.Sqrt(sumSq / float64(len(scores)-1))
		require.InDelta(t, 1, stdev, 1e-9)
	})

	t.Run("extreme outlier is capped at 3", func(t *testing.T) {
		raw := map[string]float64{}
		tickers := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
		for i, ticker := range tickers {
			raw[ticker] = float64(i)
		}
		raw["OUTLIER"] = 1e9

		scores, err := Standardize(raw)
		require.NoError(t, err)
		for ticker, s := range scores {
			require.LessOrEqual(t, math.Abs(s), zScoreCap, "ticker %s", ticker)
		}
	})

	t.Run("zero variance maps to neutral scores", func(t *testing.T) {
		scores, err := Standardize(map[string]float64{"A": 5, "B": 5, "C": 5, "D": 5, "E": 5})
		require.NoError(t, err)
		for _, s := range scores {
			require.Equal(t, 0.0, s)
		}
	})

	t.Run("empty cross-section is fine", func(t *testing.T) {
		scores, err := Standardize(map[string]float64{})
		require.NoError(t, err)
		require.Empty(t, scores)
	})
}

func Test_StandardizeBySector(t *testing.T) {
	t.Run("two-member sector scores neutral", func(t *testing.T) {
		raw := map[string]float64{"A": 1, "B": 100, "C": 1, "D": 2, "E": 3}
		sectors := map[string]string{
			"A": "Energy", "B": "Energy",
			"C": "Tech", "D": "Tech", "E": "Tech",
		}
		scores, err := StandardizeBySector(raw, sectors)
		require.NoError(t, err)
		require.Equal(t, 0.0, scores["A"])
		require.Equal(t, 0.0, scores["B"])
		require.NotEqual(t, 0.0, scores["C"])
	})

	t.Run("equal raw values within sector score neutral", func(t *testing.T) {
		raw := map[string]float64{"A": 7, "B": 7, "C": 7, "D": 7, "E": 7}
		sectors := map[string]string{"A": "Tech", "B": "Tech", "C": "Tech", "D": "Tech", "E": "Tech"}
		scores, err := StandardizeBySector(raw, sectors)
		require.NoError(t, err)
		for ticker, s := range scores {
			require.Equal(t, 0.0, s, "ticker %s", ticker)
		}
	})

	t.Run("sectors are standardized independently", func(t *testing.T) {
		raw := map[string]float64{
			"A": 1, "B": 2, "C": 3,
			"X": 1000, "Y": 2000, "Z": 3000,
		}
		sectors := map[string]string{
			"A": "Tech", "B": "Tech", "C": "Tech",
			"X": "Energy", "Y": "Energy", "Z": "Energy",
		}
		scores, err := StandardizeBySector(raw, sectors)
		require.NoError(t, err)
		// identical shapes produce identical sector-relative scores
		require.InDelta(t, scores["A"], scores["X"], 1e-9)
		require.InDelta(t, scores["C"], scores["Z"], 1e-9)
	})
}

func Test_StandardizeSizeNeutral(t *testing.T) {
	t.Run("pure size factor is neutralized away", func(t *testing.T) {
		// raw value is exactly linear in log market cap, so residuals vanish
		raw := map[string]float64{}
		caps := map[string]float64{}
		tickers := []string{"A", "B", "C", "D", "E", "F"}
		for i, ticker := range tickers {
			caps[ticker] = math.Pow(10, float64(i+6))
			raw[ticker] = math.Log(caps[ticker]) * 2.5
		}
		scores, err := StandardizeSizeNeutral(raw, caps)
		require.NoError(t, err)
		for ticker, s := range scores {
			require.InDelta(t, 0, s, 1e-6, "ticker %s", ticker)
		}
	})

	t.Run("too few instruments scores neutral", func(t *testing.T) {
		scores, err := StandardizeSizeNeutral(
			map[string]float64{"A": 1, "B": 2},
			map[string]float64{"A": 1e9, "B": 2e9},
		)
		require.NoError(t, err)
		require.Equal(t, 0.0, scores["A"])
		require.Equal(t, 0.0, scores["B"])
	})

	t.Run("missing market cap scores neutral", func(t *testing.T) {
		raw := map[string]float64{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5}
		caps := map[string]float64{"A": 1e9, "B": 2e9, "C": 4e9, "D": 8e9}
		scores, err := StandardizeSizeNeutral(raw, caps)
		require.NoError(t, err)
		require.Equal(t, 0.0, scores["E"])
	})
}
