// Package backtest runs the walk-forward loop: score the universe with only
// information available at each period, construct a target portfolio,
// rebalance under the turnover cap, apply realized returns net of costs, and
// append to the period log. The loop is strictly sequential across periods
// because portfolio state is path-dependent; scoring within one period is
// parallelized and deterministically merged.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"factorlab/internal/allocation"
	"factorlab/internal/construct"
	"factorlab/internal/domain"
	"factorlab/internal/factor"
	"factorlab/internal/logger"
	"factorlab/internal/rebalance"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Config struct {
	InitialValue  float64
	WarmupPeriods int
	// Workers bounds the scoring worker pool within one period. Results are
	// merged in a fixed order, so the worker count never changes outcomes.
	Workers int
	// UseHRP replaces the constructor's sizing with hierarchical risk parity
	// over each selected name's trailing returns, falling back to the
	// constructor's weights while history is too short.
	UseHRP bool
	// VolatilityWindow is how many trailing periods feed volatility and HRP
	// estimates.
	VolatilityWindow int
}

func (c Config) Validate() error {
	if c.InitialValue <= 0 {
		return fmt.Errorf("initialValue must be > 0, got %f", c.InitialValue)
	}
	if c.WarmupPeriods < 1 {
		return fmt.Errorf("warmupPeriods must be >= 1, got %d", c.WarmupPeriods)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.VolatilityWindow < 3 {
		return fmt.Errorf("volatilityWindow must be >= 3, got %d", c.VolatilityWindow)
	}
	return nil
}

type Orchestrator struct {
	cfg         Config
	definitions []factor.Definition
	optimizer   factor.WeightOptimizer
	constructor *construct.Constructor
	rebalancer  *rebalance.Engine
	constraints domain.Constraints
}

func NewOrchestrator(
	cfg Config,
	definitions []factor.Definition,
	optimizer factor.WeightOptimizer,
	constructor *construct.Constructor,
	rebalancer *rebalance.Engine,
	constraints domain.Constraints,
) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if len(definitions) == 0 {
		return nil, fmt.Errorf("at least one factor definition is required")
	}
	if optimizer == nil || constructor == nil || rebalancer == nil {
		return nil, fmt.Errorf("optimizer, constructor and rebalancer are required")
	}
	if err := constraints.Validate(); err != nil {
		return nil, fmt.Errorf("invalid constraints: %w", err)
	}
	return &Orchestrator{
		cfg:         cfg,
		definitions: definitions,
		optimizer:   optimizer,
		constructor: constructor,
		rebalancer:  rebalancer,
		constraints: constraints,
	}, nil
}

// RunInput is the fully materialized dataset for one walk-forward run.
// SnapshotsByPeriod[t] is the cross-section observable at period t and
// ReturnsByPeriod[t] the return realized during period t; the loop only ever
// reads index t or earlier when deciding period t.
type RunInput struct {
	Dates             []time.Time
	SnapshotsByPeriod [][]domain.InstrumentSnapshot
	ReturnsByPeriod   []map[string]float64
}

func (in RunInput) validate(warmup int) error {
	if len(in.Dates) == 0 {
		return fmt.Errorf("empty input")
	}
	if len(in.SnapshotsByPeriod) != len(in.Dates) || len(in.ReturnsByPeriod) != len(in.Dates) {
		return fmt.Errorf("misaligned input: %d dates, %d snapshot periods, %d return periods",
			len(in.Dates), len(in.SnapshotsByPeriod), len(in.ReturnsByPeriod))
	}
	if len(in.Dates) < warmup+2 {
		return fmt.Errorf("need at least %d periods for %d warmup periods, got %d", warmup+2, warmup, len(in.Dates))
	}
	return nil
}

// FactorReport is per-factor attribution computed at the end of a run.
type FactorReport struct {
	Stats    factor.ICStats
	Decay    []float64
	HalfLife int
}

type RunResult struct {
	RunID          uuid.UUID
	Periods        []domain.BacktestPeriod
	FinalPortfolio domain.Portfolio
	FinalValue     decimal.Decimal
	TotalCosts     decimal.Decimal
	Report         *domain.PerformanceReport
	Factors        map[string]FactorReport
}

const decayLags = 6

// Run executes the walk-forward state machine: Warmup until the configured
// period count elapses, then Active until the input is exhausted, then
// Terminal. Cancelling the context stops the loop between periods; everything
// completed so far is returned as a valid partial result.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if err := in.validate(o.cfg.WarmupPeriods); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)

	value := decimal.NewFromFloat(o.cfg.InitialValue)
	current := domain.Portfolio{}
	totalCosts := decimal.Zero
	periods := []domain.BacktestPeriod{}
	scoreHistory := []map[string]map[string]float64{}
	icSeries := map[string][]float64{}

	factorNames := make([]string, len(o.definitions))
	for i, def := range o.definitions {
		factorNames[i] = def.Name
	}

	for t := range in.Dates {
		if err := ctx.Err(); err != nil {
			log.Infow("walk-forward aborted between periods", "completedPeriods", len(periods))
			break
		}

		scores, err := o.scoreUniverse(in.SnapshotsByPeriod[t])
		if err != nil {
			return nil, fmt.Errorf("failed to score period %d: %w", t, err)
		}

		// period t-1's returns are now realized; complete its IC pairs
		if t >= 1 {
			for _, name := range factorNames {
				ic, n := factor.InformationCoefficient(scoreHistory[t-1][name], in.ReturnsByPeriod[t-1])
				if n >= 3 {
					icSeries[name] = append(icSeries[name], ic)
				}
			}
		}
		scoreHistory = append(scoreHistory, scores)

		if t < o.cfg.WarmupPeriods {
			periods = append(periods, domain.BacktestPeriod{
				Index:          t,
				Date:           in.Dates[t],
				PortfolioValue: value,
				Costs:          decimal.Zero,
				Regime:         domain.Regime_Warmup,
			})
			continue
		}

		icStats := map[string]factor.ICStats{}
		for _, name := range factorNames {
			icStats[name] = factor.SeriesStats(icSeries[name])
		}
		weights, err := o.optimizer.Weights(factorNames, icStats)
		if err != nil {
			return nil, fmt.Errorf("failed to compute factor weights for period %d: %w", t, err)
		}
		composites, err := factor.Combine(scores, weights)
		if err != nil {
			return nil, fmt.Errorf("failed to combine factors for period %d: %w", t, err)
		}

		target, tradable := o.buildTarget(log, in, t, composites)
		if !tradable {
			target = current
		}

		snapshotByTicker := map[string]domain.InstrumentSnapshot{}
		for _, snapshot := range in.SnapshotsByPeriod[t] {
			snapshotByTicker[snapshot.Ticker] = snapshot
		}
		rebalanced, err := o.rebalancer.Rebalance(rebalance.Input{
			Current:        current,
			Target:         target,
			PortfolioValue: value,
			Snapshots:      snapshotByTicker,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to rebalance period %d: %w", t, err)
		}
		current = rebalanced.Final

		gross := 0.0
		for _, holding := range current.Holdings {
			gross += holding.Weight * in.ReturnsByPeriod[t][holding.Ticker]
		}

		newValue := value.Mul(decimal.NewFromFloat(1 + gross)).Sub(rebalanced.TotalCost).Round(6)
		netReturn := newValue.Sub(value).Div(value).InexactFloat64()
		totalCosts = totalCosts.Add(rebalanced.TotalCost)

		trades := append(append([]domain.Trade{}, rebalanced.Trades...), rebalanced.Deferred...)
		periods = append(periods, domain.BacktestPeriod{
			Index:          t,
			Date:           in.Dates[t],
			GrossReturn:    gross,
			NetReturn:      netReturn,
			PortfolioValue: newValue,
			Costs:          rebalanced.TotalCost,
			Turnover:       rebalanced.Turnover,
			Regime:         classifyRegime(in.ReturnsByPeriod, t),
			Portfolio:      current.DeepCopy(),
			Trades:         trades,
		})
		value = newValue
	}

	report, err := ComputeReport(periods)
	if err != nil {
		if ctx.Err() == nil {
			return nil, fmt.Errorf("failed to compute performance report: %w", err)
		}
		// aborted before enough active periods accrued; the partial log is
		// still valid without a summary
		report = nil
	}

	factors := map[string]FactorReport{}
	for _, name := range factorNames {
		decay := factor.DecayProfile(factorScoreSeries(scoreHistory, name), in.ReturnsByPeriod, decayLags)
		factors[name] = FactorReport{
			Stats:    factor.SeriesStats(icSeries[name]),
			Decay:    decay,
			HalfLife: factor.HalfLife(decay),
		}
	}

	return &RunResult{
		RunID:          uuid.New(),
		Periods:        periods,
		FinalPortfolio: current,
		FinalValue:     value,
		TotalCosts:     totalCosts,
		Report:         report,
		Factors:        factors,
	}, nil
}

// scoreUniverse standardizes every factor's cross-section using a bounded
// worker pool. Each worker owns distinct result slots, so the merge is
// deterministic regardless of scheduling.
func (o *Orchestrator) scoreUniverse(snapshots []domain.InstrumentSnapshot) (map[string]map[string]float64, error) {
	results := make([]map[string]float64, len(o.definitions))
	errs := make([]error, len(o.definitions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx], errs[idx] = scoreDefinition(o.definitions[idx], snapshots)
			}
		}()
	}
	for i := range o.definitions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	merged := map[string]map[string]float64{}
	for i, def := range o.definitions {
		if errs[i] != nil {
			return nil, fmt.Errorf("failed to standardize factor %s: %w", def.Name, errs[i])
		}
		merged[def.Name] = results[i]
	}
	return merged, nil
}

func scoreDefinition(def factor.Definition, snapshots []domain.InstrumentSnapshot) (map[string]float64, error) {
	raw := map[string]float64{}
	sectorByTicker := map[string]string{}
	capByTicker := map[string]float64{}
	for _, snapshot := range snapshots {
		value, ok := def.Extract(snapshot)
		if !ok {
			continue
		}
		raw[snapshot.Ticker] = value
		sectorByTicker[snapshot.Ticker] = snapshot.Sector
		capByTicker[snapshot.Ticker] = snapshot.MarketCap
	}

	switch def.Neutralize {
	case factor.Neutralize_Sector:
		return factor.StandardizeBySector(raw, sectorByTicker)
	case factor.Neutralize_Size:
		return factor.StandardizeSizeNeutral(raw, capByTicker)
	default:
		return factor.Standardize(raw)
	}
}

// buildTarget constructs the period's target portfolio. A screened-out
// universe too small to trade is not an error: the engine holds its current
// book and the degradation shows up in the period log.
func (o *Orchestrator) buildTarget(
	log loggerish,
	in RunInput,
	t int,
	composites map[string]domain.CompositeScore,
) (domain.Portfolio, bool) {
	volatility := o.trailingVolatility(in, t)

	result, err := o.constructor.Construct(construct.Input{
		Snapshots:  in.SnapshotsByPeriod[t],
		Composites: composites,
		Volatility: volatility,
	})
	var insufficientErr construct.InsufficientUniverseError
	if errors.As(err, &insufficientErr) {
		log.Infow("holding current portfolio: universe too small after screens",
			"period", t, "survivors", insufficientErr.Survivors, "required", insufficientErr.Required)
		return domain.Portfolio{}, false
	}
	if err != nil {
		log.Warnw("holding current portfolio: construction failed", "period", t, "error", err)
		return domain.Portfolio{}, false
	}
	if len(result.SectorBreaches) > 0 {
		log.Infow("sector cap exceeded in target portfolio", "period", t, "sectors", result.SectorBreaches)
	}

	if !o.cfg.UseHRP {
		return result.Portfolio, true
	}
	return o.applyHRP(log, in, t, result.Portfolio), true
}

// applyHRP re-weights the selected names with hierarchical risk parity over
// their trailing returns, keeping the constructor's weights until enough
// history exists.
func (o *Orchestrator) applyHRP(log loggerish, in RunInput, t int, target domain.Portfolio) domain.Portfolio {
	history := map[string][]float64{}
	start := max(0, t-o.cfg.VolatilityWindow)
	for _, holding := range target.Holdings {
		series := []float64{}
		for u := start; u < t; u++ {
			if ret, ok := in.ReturnsByPeriod[u][holding.Ticker]; ok {
				series = append(series, ret)
			}
		}
		if len(series) < 3 {
			return target
		}
		history[holding.Ticker] = series
	}
	// ragged histories (names entering the universe mid-window) keep the
	// constructor's sizing
	length := len(history[target.Holdings[0].Ticker])
	for _, series := range history {
		if len(series) != length {
			return target
		}
	}

	hrpWeights, err := allocation.Weights(history)
	if err != nil {
		log.Warnw("keeping constructor weights: HRP failed", "period", t, "error", err)
		return target
	}

	weights := make([]float64, len(target.Holdings))
	for i, holding := range target.Holdings {
		weights[i] = hrpWeights[holding.Ticker]
	}
	fitted, err := construct.FitWeights(weights, o.constraints)
	if err != nil {
		log.Warnw("keeping constructor weights: HRP weights unfittable", "period", t, "error", err)
		return target
	}

	holdings := make([]domain.Holding, len(target.Holdings))
	for i, holding := range target.Holdings {
		holding.Weight = fitted[i]
		holdings[i] = holding
	}
	return domain.NewPortfolio(holdings)
}

// trailingVolatility estimates each instrument's return volatility over the
// configured window ending at period t-1.
func (o *Orchestrator) trailingVolatility(in RunInput, t int) map[string]float64 {
	start := max(0, t-o.cfg.VolatilityWindow)
	seriesByTicker := map[string][]float64{}
	for u := start; u < t; u++ {
		for ticker, ret := range in.ReturnsByPeriod[u] {
			seriesByTicker[ticker] = append(seriesByTicker[ticker], ret)
		}
	}

	volatility := map[string]float64{}
	for ticker, series := range seriesByTicker {
		if len(series) < 3 {
			continue
		}
		mean := 0.0
		for _, ret := range series {
			mean += ret
		}
		mean /= float64(len(series))
		sumSq := 0.0
		for _, ret := range series {
			sumSq += (ret - mean) * (ret - mean)
		}
		volatility[ticker] = math.Sqrt(sumSq / float64(len(series)-1))
	}
	return volatility
}

const (
	regimeWindow        = 3
	regimeBullThreshold = 0.005
	regimeBearThreshold = -0.005
)

// classifyRegime labels period t from the trailing equal-weight universe
// return, using only periods before t.
func classifyRegime(returnsByPeriod []map[string]float64, t int) domain.Regime {
	start := max(0, t-regimeWindow)
	if start == t {
		return domain.Regime_Sideways
	}

	total := 0.0
	count := 0
	for u := start; u < t; u++ {
		periodSum := 0.0
		for _, ret := range returnsByPeriod[u] {
			periodSum += ret
		}
		if len(returnsByPeriod[u]) > 0 {
			total += periodSum / float64(len(returnsByPeriod[u]))
			count++
		}
	}
	if count == 0 {
		return domain.Regime_Sideways
	}

	mean := total / float64(count)
	switch {
	case mean > regimeBullThreshold:
		return domain.Regime_Bull
	case mean < regimeBearThreshold:
		return domain.Regime_Bear
	default:
		return domain.Regime_Sideways
	}
}

func factorScoreSeries(scoreHistory []map[string]map[string]float64, name string) []map[string]float64 {
	series := make([]map[string]float64, len(scoreHistory))
	for t, scores := range scoreHistory {
		series[t] = scores[name]
	}
	return series
}

// loggerish is the slice of zap's sugared logger the orchestrator needs;
// narrowing it keeps helpers testable without a real logger.
type loggerish interface {
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}
