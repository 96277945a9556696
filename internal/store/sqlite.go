// Package store persists completed backtest runs to SQLite for later
// inspection. The audit trail is append-only: a run is written exactly once,
// after it finishes, and never updated.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"factorlab/internal/backtest"
	"factorlab/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id        TEXT PRIMARY KEY,
    created_at    DATETIME NOT NULL,
    initial_value TEXT     NOT NULL,
    final_value   TEXT     NOT NULL,
    total_costs   TEXT     NOT NULL,
    num_periods   INTEGER  NOT NULL
);

CREATE TABLE IF NOT EXISTS periods (
    run_id       TEXT    NOT NULL REFERENCES runs(run_id),
    idx          INTEGER NOT NULL,
    date         DATETIME NOT NULL,
    gross_return REAL    NOT NULL,
    net_return   REAL    NOT NULL,
    value        TEXT    NOT NULL,
    costs        TEXT    NOT NULL,
    turnover     REAL    NOT NULL,
    regime       TEXT    NOT NULL,
    PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS trades (
    run_id       TEXT    NOT NULL REFERENCES runs(run_id),
    period_idx   INTEGER NOT NULL,
    ticker       TEXT    NOT NULL,
    side         TEXT    NOT NULL,
    weight_delta REAL    NOT NULL,
    notional     TEXT    NOT NULL,
    cost         TEXT    NOT NULL,
    deferred     INTEGER NOT NULL DEFAULT 0,
    reason       TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_periods_run ON periods(run_id, idx);
CREATE INDEX IF NOT EXISTS idx_trades_run  ON trades(run_id, period_idx);
`

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
// ":memory:" works for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db %s: %w", path, err)
	}
	// sqlite is single-writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes a completed run and its full period and trade log in one
// transaction. Saving the same run id twice is an error.
func (s *Store) SaveRun(ctx context.Context, initialValue decimal.Decimal, result *backtest.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, initial_value, final_value, total_costs, num_periods)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.RunID.String(), time.Now().UTC(), initialValue.String(),
		result.FinalValue.String(), result.TotalCosts.String(), len(result.Periods))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}

	for _, period := range result.Periods {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO periods (run_id, idx, date, gross_return, net_return, value, costs, turnover, regime)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID.String(), period.Index, period.Date.UTC(), period.GrossReturn,
			period.NetReturn, period.PortfolioValue.String(), period.Costs.String(),
			period.Turnover, string(period.Regime))
		if err != nil {
			return fmt.Errorf("failed to insert period %d: %w", period.Index, err)
		}

		for _, trade := range period.Trades {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO trades (run_id, period_idx, ticker, side, weight_delta, notional, cost, deferred, reason)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				result.RunID.String(), period.Index, trade.Ticker, string(trade.Side),
				trade.WeightDelta, trade.Notional.String(), trade.Cost.Total.String(),
				trade.Deferred, trade.DeferredReason)
			if err != nil {
				return fmt.Errorf("failed to insert trade %s in period %d: %w", trade.Ticker, period.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", result.RunID, err)
	}
	return nil
}

// RunSummary is the stored top-level record of one run.
type RunSummary struct {
	RunID        uuid.UUID
	CreatedAt    time.Time
	InitialValue decimal.Decimal
	FinalValue   decimal.Decimal
	TotalCosts   decimal.Decimal
	NumPeriods   int
}

// ListRuns returns all stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, created_at, initial_value, final_value, total_costs, num_periods
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	summaries := []RunSummary{}
	for rows.Next() {
		var (
			runID                           string
			createdAt                       time.Time
			initialValue, finalValue, costs string
			numPeriods                      int
		)
		if err := rows.Scan(&runID, &createdAt, &initialValue, &finalValue, &costs, &numPeriods); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		summary, err := parseSummary(runID, createdAt, initialValue, finalValue, costs, numPeriods)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// StoredPeriod is one row of a run's period log as persisted.
type StoredPeriod struct {
	Index       int
	Date        time.Time
	GrossReturn float64
	NetReturn   float64
	Value       decimal.Decimal
	Costs       decimal.Decimal
	Turnover    float64
	Regime      domain.Regime
}

// LoadPeriods reads back a run's full period log in index order.
func (s *Store) LoadPeriods(ctx context.Context, runID uuid.UUID) ([]StoredPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, date, gross_return, net_return, value, costs, turnover, regime
		 FROM periods WHERE run_id = ? ORDER BY idx`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query periods for run %s: %w", runID, err)
	}
	defer rows.Close()

	periods := []StoredPeriod{}
	for rows.Next() {
		var (
			period       StoredPeriod
			value, costs string
			regime       string
		)
		if err := rows.Scan(&period.Index, &period.Date, &period.GrossReturn,
			&period.NetReturn, &value, &costs, &period.Turnover, &regime); err != nil {
			return nil, fmt.Errorf("failed to scan period row: %w", err)
		}
		if period.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("failed to parse stored value %q: %w", value, err)
		}
		if period.Costs, err = decimal.NewFromString(costs); err != nil {
			return nil, fmt.Errorf("failed to parse stored costs %q: %w", costs, err)
		}
		period.Regime = domain.Regime(regime)
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

func parseSummary(runID string, createdAt time.Time, initialValue, finalValue, costs string, numPeriods int) (RunSummary, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to parse stored run id %q: %w", runID, err)
	}
	initial, err := decimal.NewFromString(initialValue)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to parse stored initial value %q: %w", initialValue, err)
	}
	final, err := decimal.NewFromString(finalValue)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to parse stored final value %q: %w", finalValue, err)
	}
	totalCosts, err := decimal.NewFromString(costs)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to parse stored costs %q: %w", costs, err)
	}
	return RunSummary{
		RunID:        id,
		CreatedAt:    createdAt,
		InitialValue: initial,
		FinalValue:   final,
		TotalCosts:   totalCosts,
		NumPeriods:   numPeriods,
	}, nil
}
