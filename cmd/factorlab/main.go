package main

import (
	"context"
	"fmt"
	"os"

	"factorlab/internal/backtest"
	"factorlab/internal/config"
	"factorlab/internal/construct"
	"factorlab/internal/costs"
	"factorlab/internal/domain"
	"factorlab/internal/export"
	"factorlab/internal/factor"
	"factorlab/internal/logger"
	"factorlab/internal/rebalance"
	"factorlab/internal/store"
	"factorlab/internal/synthetic"
	"factorlab/internal/validation"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "factorlab",
		Short:         "factor scoring and portfolio backtesting engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBacktestCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newBacktestCommand() *cobra.Command {
	var (
		configPath string
		dbPath     string
		csvPath    string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "run a walk-forward backtest over a seeded synthetic universe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			run := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				run = *loaded
			}

			log := logger.New()
			defer log.Sync()
			ctx := logger.AddToContext(cmd.Context(), log)

			return runBacktest(ctx, run, dbPath, csvPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML run configuration")
	cmd.Flags().StringVar(&dbPath, "db", "", "persist the audit trail to this SQLite file")
	cmd.Flags().StringVar(&csvPath, "csv", "", "export the period log to this CSV file")
	return cmd
}

func runBacktest(ctx context.Context, run config.Run, dbPath, csvPath string) error {
	log := logger.FromContext(ctx)

	startDate, err := run.StartDate()
	if err != nil {
		return err
	}
	sizing, err := run.SizingMethod()
	if err != nil {
		return err
	}

	log.Infow("generating synthetic universe",
		"instruments", run.Universe.NumInstruments,
		"periods", run.Backtest.Periods,
		"seed", run.Universe.Seed)
	history, err := synthetic.Generate(synthetic.Config{
		NumInstruments: run.Universe.NumInstruments,
		Periods:        run.Backtest.Periods,
		StartDate:      startDate,
	}, synthetic.NewSeededSource(run.Universe.Seed))
	if err != nil {
		return err
	}

	constructor, err := construct.NewConstructor(run.DomainConstraints(), run.ConstructScreens(), sizing)
	if err != nil {
		return err
	}
	costModel, err := costs.NewModel(run.CostsConfig())
	if err != nil {
		return err
	}
	rebalancer, err := rebalance.NewEngine(run.RebalanceConfig(), costModel)
	if err != nil {
		return err
	}
	orchestrator, err := backtest.NewOrchestrator(
		run.BacktestConfig(),
		factor.DefaultDefinitions(),
		factor.ICWeightOptimizer{Floor: 0.1},
		constructor,
		rebalancer,
		run.DomainConstraints(),
	)
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, backtest.RunInput{
		Dates:             history.Dates,
		SnapshotsByPeriod: history.SnapshotsByPeriod,
		ReturnsByPeriod:   history.ReturnsByPeriod,
	})
	if err != nil {
		return err
	}
	log.Infow("backtest complete",
		"runID", result.RunID,
		"periods", len(result.Periods),
		"finalValue", result.FinalValue.String())

	printReport(result)
	printFactors(result)
	printValidation(result, run)
	printPortfolio(result.FinalPortfolio)

	if csvPath != "" {
		if err := export.WritePeriods(csvPath, result.Periods); err != nil {
			return err
		}
		log.Infow("period log exported", "path", csvPath)
	}
	if dbPath != "" {
		s, err := store.New(dbPath)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.SaveRun(ctx, decimal.NewFromFloat(run.Backtest.InitialValue), result); err != nil {
			return err
		}
		log.Infow("audit trail persisted", "path", dbPath, "runID", result.RunID)
	}
	return nil
}

func printReport(result *backtest.RunResult) {
	if result.Report == nil {
		return
	}
	report := result.Report

	fmt.Println("\nPerformance")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Periods", fmt.Sprintf("%d", report.Periods))
	table.Append("Total return", fmt.Sprintf("%.2f%%", report.TotalReturn*100))
	table.Append("Annualized return", fmt.Sprintf("%.2f%%", report.AnnualizedReturn*100))
	table.Append("Annualized volatility", fmt.Sprintf("%.2f%%", report.AnnualizedVolatility*100))
	table.Append("Sharpe", fmt.Sprintf("%.2f", report.SharpeRatio))
	table.Append("Sortino", fmt.Sprintf("%.2f", report.SortinoRatio))
	table.Append("Calmar", fmt.Sprintf("%.2f", report.CalmarRatio))
	table.Append("Max drawdown", fmt.Sprintf("%.2f%%", report.MaxDrawdown*100))
	table.Append("Win rate", fmt.Sprintf("%.0f%%", report.WinRate*100))
	table.Append("Total costs", result.TotalCosts.StringFixed(2))
	table.Append("Final value", result.FinalValue.StringFixed(2))
	table.Render()
}

func printFactors(result *backtest.RunResult) {
	if len(result.Factors) == 0 {
		return
	}

	fmt.Println("\nFactors")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Factor", "Mean IC", "IC t-stat", "Significant", "IR", "Half-life")
	for _, name := range []string{"value", "quality", "momentum", "growth"} {
		report, ok := result.Factors[name]
		if !ok {
			continue
		}
		table.Append(
			name,
			fmt.Sprintf("%.4f", report.Stats.MeanIC),
			fmt.Sprintf("%.2f", report.Stats.TStat),
			fmt.Sprintf("%t", report.Stats.Significant),
			fmt.Sprintf("%.2f", report.Stats.InformationRatio),
			fmt.Sprintf("%dm", report.HalfLife),
		)
	}
	table.Render()
}

func printValidation(result *backtest.RunResult, run config.Run) {
	if result.Report == nil {
		return
	}

	returns := []float64{}
	for _, period := range result.Periods {
		if period.Regime != domain.Regime_Warmup {
			returns = append(returns, period.NetReturn)
		}
	}

	// cancelled runs can end with fewer active periods than configured
	cfg := run.CPCVConfig()
	cfg.Observations = len(returns)
	evaluation, err := validation.Evaluate(returns, cfg, run.Validation.DSRTrials)
	if err != nil {
		return
	}

	fmt.Println("\nValidation")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Check", "Value")
	table.Append("Deflated Sharpe", fmt.Sprintf("%.2f", evaluation.DSR.DeflatedSharpe))
	table.Append("DSR p-value", fmt.Sprintf("%.3f", evaluation.DSR.PValue))
	table.Append("DSR significant", fmt.Sprintf("%t", evaluation.DSR.Significant))
	table.Append("Trials", fmt.Sprintf("%d", run.Validation.DSRTrials))
	table.Append("CPCV splits", fmt.Sprintf("%d", evaluation.NumSplits))
	if evaluation.PBO.Insufficient {
		table.Append("Overfit probability", "insufficient splits")
	} else {
		table.Append("Overfit probability", fmt.Sprintf("%.2f", evaluation.PBO.Probability))
		table.Append("Overfit", fmt.Sprintf("%t", evaluation.PBO.Overfit))
	}
	table.Render()
}

func printPortfolio(portfolio domain.Portfolio) {
	if len(portfolio.Holdings) == 0 {
		return
	}

	fmt.Println("\nFinal portfolio")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Ticker", "Sector", "Weight", "Score")
	for _, holding := range portfolio.Holdings {
		table.Append(
			holding.Ticker,
			holding.Sector,
			fmt.Sprintf("%.2f%%", holding.Weight*100),
			fmt.Sprintf("%.3f", holding.CompositeScore),
		)
	}
	table.Render()
}
