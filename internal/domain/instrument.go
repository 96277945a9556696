package domain

// InstrumentSnapshot is one instrument's raw fields at one period, as supplied
// by the upstream data collector. Immutable once recorded. Every field beyond
// the identifying ones is optional: a nil pointer means the value is unknown,
// and the instrument is excluded from any factor that needs it, rather than
// the missing value being coerced to zero and dragging cross-sectional stats.
type InstrumentSnapshot struct {
	Ticker    string
	Sector    string
	Price     float64
	MarketCap float64

	AvgVolume        *float64
	PERatio          *float64
	PBRatio          *float64
	PSRatio          *float64
	ROE              *float64
	ROA              *float64
	GrossMargin      *float64
	DebtToEquity     *float64
	CurrentRatio     *float64
	RevenueGrowth    *float64
	EarningsGrowth   *float64
	NetIncome        *float64
	EPS              *float64
	BookValue        *float64
	TotalAssets      *float64
	TotalLiabilities *float64
	Revenue          *float64
	RetainedEarnings *float64
	EBIT             *float64
	WorkingCapital   *float64
	Accruals         *float64
	TrailingReturn   *float64
}

// Optional unwraps a maybe-missing field.
func Optional(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// OptionalOr unwraps a maybe-missing field with a fallback.
func OptionalOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

// Float64Pointer is a convenience for building snapshots.
func Float64Pointer(v float64) *float64 {
	return &v
}

// FactorScore is one instrument's standardized score for one factor at one
// period. Derived only from that period's cross-section, never from future
// periods.
type FactorScore struct {
	Ticker string
	Factor string
	Period int
	Score  float64
}

// CompositeScore is the weighted combination of an instrument's factor scores
// for one period, re-standardized across the cross-section. Components holds
// each constituent factor's standardized score, which is what single-name
// valuation models consume.
type CompositeScore struct {
	Ticker     string
	Score      float64
	Components map[string]float64
}
