// Package export writes a run's period log and equity curve to CSV, one row
// per period, for analysis outside the engine.
package export

import (
	"fmt"
	"os"
	"time"

	"factorlab/internal/domain"

	"github.com/gocarina/gocsv"
)

// PeriodRow is one CSV row of the period log.
type PeriodRow struct {
	Index       int     `csv:"index"`
	Date        string  `csv:"date"`
	Regime      string  `csv:"regime"`
	GrossReturn float64 `csv:"gross_return"`
	NetReturn   float64 `csv:"net_return"`
	Value       string  `csv:"portfolio_value"`
	Costs       string  `csv:"costs"`
	Turnover    float64 `csv:"turnover"`
	NumHoldings int     `csv:"num_holdings"`
	NumTrades   int     `csv:"num_trades"`
	NumDeferred int     `csv:"num_deferred"`
}

// Rows flattens a period log into CSV rows.
func Rows(periods []domain.BacktestPeriod) []PeriodRow {
	rows := make([]PeriodRow, len(periods))
	for i, period := range periods {
		deferred := 0
		for _, trade := range period.Trades {
			if trade.Deferred {
				deferred++
			}
		}
		rows[i] = PeriodRow{
			Index:       period.Index,
			Date:        period.Date.Format(time.DateOnly),
			Regime:      string(period.Regime),
			GrossReturn: period.GrossReturn,
			NetReturn:   period.NetReturn,
			Value:       period.PortfolioValue.String(),
			Costs:       period.Costs.String(),
			Turnover:    period.Turnover,
			NumHoldings: len(period.Portfolio.Holdings),
			NumTrades:   len(period.Trades) - deferred,
			NumDeferred: deferred,
		}
	}
	return rows
}

// WritePeriods writes the period log to path, overwriting any existing file.
func WritePeriods(path string, periods []domain.BacktestPeriod) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(Rows(periods), f); err != nil {
		return fmt.Errorf("failed to write csv file %s: %w", path, err)
	}
	return nil
}

// ReadPeriods loads a previously exported period log.
func ReadPeriods(path string) ([]PeriodRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file %s: %w", path, err)
	}
	defer f.Close()

	rows := []PeriodRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse csv file %s: %w", path, err)
	}
	return rows, nil
}
