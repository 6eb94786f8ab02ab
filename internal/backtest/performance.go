package backtest

import (
	"fmt"
	"math"
	"time"

	"ETFRotation/internal/model"
)

// TradingDaysPerYear annualizes returns.
const TradingDaysPerYear = 252

// Stats summarizes an equity curve.
type Stats struct {
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	FinalValue       float64   `json:"final_value"`
	Days             int       `json:"days"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
}

// Summarize computes total return, annualized return and max drawdown. An empty curve
// is reported as model.ErrInsufficientData.
func Summarize(curve model.EquityCurve, initialCash float64) (*Stats, error) {
	if len(curve) == 0 {
		return nil, fmt.Errorf("summarize: empty equity curve: %w", model.ErrInsufficientData)
	}
	if initialCash <= 0 {
		return nil, fmt.Errorf("summarize: initial cash must be positive, got %v", initialCash)
	}

	last := curve[len(curve)-1].Value
	total := last/initialCash - 1
	n := len(curve)

	return &Stats{
		TotalReturn:      total,
		AnnualizedReturn: math.Pow(1+total, float64(TradingDaysPerYear)/float64(n)) - 1,
		MaxDrawdown:      MaxDrawdown(curve.Values()),
		FinalValue:       last,
		Days:             n,
		Start:            curve[0].Date,
		End:              curve[n-1].Date,
	}, nil
}

// MaxDrawdown returns min(value/runningMax - 1); always <= 0.
func MaxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := v/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}
