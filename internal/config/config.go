// Package config loads a full run configuration from YAML and rejects
// nonsensical bounds before any engine component is built.
package config

import (
	"fmt"
	"os"
	"time"

	"factorlab/internal/backtest"
	"factorlab/internal/construct"
	"factorlab/internal/costs"
	"factorlab/internal/domain"
	"factorlab/internal/rebalance"
	"factorlab/internal/validation"

	"gopkg.in/yaml.v3"
)

type Run struct {
	Universe    Universe    `yaml:"universe"`
	Backtest    Backtest    `yaml:"backtest"`
	Constraints Constraints `yaml:"constraints"`
	Screens     Screens     `yaml:"screens"`
	Costs       Costs       `yaml:"costs"`
	Rebalance   Rebalance   `yaml:"rebalance"`
	Validation  Validation  `yaml:"validation"`
}

type Universe struct {
	NumInstruments int    `yaml:"num_instruments"`
	Seed           int64  `yaml:"seed"`
	StartDate      string `yaml:"start_date"` // YYYY-MM-DD
}

type Backtest struct {
	InitialValue     float64 `yaml:"initial_value"`
	WarmupPeriods    int     `yaml:"warmup_periods"`
	Periods          int     `yaml:"periods"`
	Workers          int     `yaml:"workers"`
	Sizing           string  `yaml:"sizing"` // equal | score_proportional | inverse_volatility
	UseHRP           bool    `yaml:"use_hrp"`
	VolatilityWindow int     `yaml:"volatility_window"`
}

type Constraints struct {
	MinPositions    int     `yaml:"min_positions"`
	MaxPositions    int     `yaml:"max_positions"`
	MinPositionSize float64 `yaml:"min_position_size"`
	MaxPositionSize float64 `yaml:"max_position_size"`
	MaxSectorWeight float64 `yaml:"max_sector_weight"`
}

type Screens struct {
	MaxDebtToEquity    float64 `yaml:"max_debt_to_equity"`
	MinMarketCap       float64 `yaml:"min_market_cap"`
	MinAvgDollarVolume float64 `yaml:"min_avg_dollar_volume"`
	MinAltmanZ         float64 `yaml:"min_altman_z"`
	MaxAccrualsRatio   float64 `yaml:"max_accruals_ratio"`
	MinPrice           float64 `yaml:"min_price"`
}

type Costs struct {
	SpreadBps     float64 `yaml:"spread_bps"`
	FixedPerTrade float64 `yaml:"fixed_per_trade"`
	ImpactBps     float64 `yaml:"impact_bps"`
	TradingDays   float64 `yaml:"trading_days"`
}

type Rebalance struct {
	Buffer      float64 `yaml:"buffer"`
	TurnoverCap float64 `yaml:"turnover_cap"`
}

type Validation struct {
	CPCVGroups     int `yaml:"cpcv_groups"`
	CPCVTestGroups int `yaml:"cpcv_test_groups"`
	PurgeWindow    int `yaml:"purge_window"`
	EmbargoWindow  int `yaml:"embargo_window"`
	DSRTrials      int `yaml:"dsr_trials"`
}

// Default is a runnable baseline: a 50-name universe, three years of monthly
// history, moderate constraints. Loaded files only need to override what they
// care about.
func Default() Run {
	return Run{
		Universe: Universe{
			NumInstruments: 50,
			Seed:           1,
			StartDate:      "2020-01-01",
		},
		Backtest: Backtest{
			InitialValue:     1_000_000,
			WarmupPeriods:    6,
			Periods:          36,
			Workers:          4,
			Sizing:           "score_proportional",
			VolatilityWindow: 6,
		},
		Constraints: Constraints{
			MinPositions:    5,
			MaxPositions:    15,
			MinPositionSize: 0.02,
			MaxPositionSize: 0.20,
			MaxSectorWeight: 0.40,
		},
		Screens: Screens{
			MaxDebtToEquity:    3,
			MinMarketCap:       200e6,
			MinAvgDollarVolume: 1e6,
			MinAltmanZ:         1.8,
			MaxAccrualsRatio:   0.15,
			MinPrice:           5,
		},
		Costs: Costs{
			SpreadBps:     5,
			FixedPerTrade: 1,
			ImpactBps:     10,
			TradingDays:   5,
		},
		Rebalance: Rebalance{
			Buffer:      0.005,
			TurnoverCap: 0.25,
		},
		Validation: Validation{
			CPCVGroups:     6,
			CPCVTestGroups: 2,
			PurgeWindow:    1,
			EmbargoWindow:  1,
			DSRTrials:      1,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the merged
// result. Every bounds error is caught here, before any component exists.
func Load(path string) (*Run, error) {
	run := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &run, nil
}

// Validate checks every section with the owning component's own rules, so a
// config that loads is a config that constructs.
func (r Run) Validate() error {
	if r.Universe.NumInstruments < 1 {
		return fmt.Errorf("universe.num_instruments must be >= 1, got %d", r.Universe.NumInstruments)
	}
	if _, err := r.StartDate(); err != nil {
		return err
	}
	if r.Backtest.Periods < r.Backtest.WarmupPeriods+2 {
		return fmt.Errorf("backtest.periods %d too short for %d warmup periods",
			r.Backtest.Periods, r.Backtest.WarmupPeriods)
	}
	if _, err := r.SizingMethod(); err != nil {
		return err
	}
	if err := r.BacktestConfig().Validate(); err != nil {
		return fmt.Errorf("invalid backtest section: %w", err)
	}
	if err := r.DomainConstraints().Validate(); err != nil {
		return fmt.Errorf("invalid constraints section: %w", err)
	}
	if err := r.ConstructScreens().Validate(); err != nil {
		return fmt.Errorf("invalid screens section: %w", err)
	}
	if err := r.CostsConfig().Validate(); err != nil {
		return fmt.Errorf("invalid costs section: %w", err)
	}
	if err := r.RebalanceConfig().Validate(); err != nil {
		return fmt.Errorf("invalid rebalance section: %w", err)
	}
	if err := r.CPCVConfig().Validate(); err != nil {
		return fmt.Errorf("invalid validation section: %w", err)
	}
	if r.Validation.DSRTrials < 1 {
		return fmt.Errorf("validation.dsr_trials must be >= 1, got %d", r.Validation.DSRTrials)
	}
	return nil
}

func (r Run) StartDate() (time.Time, error) {
	date, err := time.Parse("2006-01-02", r.Universe.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("universe.start_date must be YYYY-MM-DD, got %q", r.Universe.StartDate)
	}
	return date, nil
}

func (r Run) SizingMethod() (construct.SizingMethod, error) {
	switch r.Backtest.Sizing {
	case "equal":
		return construct.Sizing_Equal, nil
	case "score_proportional":
		return construct.Sizing_ScoreProportional, nil
	case "inverse_volatility":
		return construct.Sizing_InverseVolatility, nil
	default:
		return "", fmt.Errorf("unknown backtest.sizing %q", r.Backtest.Sizing)
	}
}

func (r Run) BacktestConfig() backtest.Config {
	return backtest.Config{
		InitialValue:     r.Backtest.InitialValue,
		WarmupPeriods:    r.Backtest.WarmupPeriods,
		Workers:          r.Backtest.Workers,
		UseHRP:           r.Backtest.UseHRP,
		VolatilityWindow: r.Backtest.VolatilityWindow,
	}
}

func (r Run) DomainConstraints() domain.Constraints {
	return domain.Constraints{
		MinPositions:    r.Constraints.MinPositions,
		MaxPositions:    r.Constraints.MaxPositions,
		MinPositionSize: r.Constraints.MinPositionSize,
		MaxPositionSize: r.Constraints.MaxPositionSize,
		MaxSectorWeight: r.Constraints.MaxSectorWeight,
	}
}

func (r Run) ConstructScreens() construct.Screens {
	return construct.Screens{
		MaxDebtToEquity:    r.Screens.MaxDebtToEquity,
		MinMarketCap:       r.Screens.MinMarketCap,
		MinAvgDollarVolume: r.Screens.MinAvgDollarVolume,
		MinAltmanZ:         r.Screens.MinAltmanZ,
		MaxAccrualsRatio:   r.Screens.MaxAccrualsRatio,
		MinPrice:           r.Screens.MinPrice,
	}
}

func (r Run) CostsConfig() costs.Config {
	return costs.Config{
		SpreadBps:     r.Costs.SpreadBps,
		FixedPerTrade: r.Costs.FixedPerTrade,
		ImpactBps:     r.Costs.ImpactBps,
		TradingDays:   r.Costs.TradingDays,
	}
}

func (r Run) RebalanceConfig() rebalance.Config {
	return rebalance.Config{
		Buffer:      r.Rebalance.Buffer,
		TurnoverCap: r.Rebalance.TurnoverCap,
	}
}

func (r Run) CPCVConfig() validation.CPCVConfig {
	return validation.CPCVConfig{
		Observations:  r.Backtest.Periods - r.Backtest.WarmupPeriods,
		NumGroups:     r.Validation.CPCVGroups,
		TestGroups:    r.Validation.CPCVTestGroups,
		PurgeWindow:   r.Validation.PurgeWindow,
		EmbargoWindow: r.Validation.EmbargoWindow,
	}
}
