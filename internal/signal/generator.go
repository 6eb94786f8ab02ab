package signal

import (
	"errors"
	"fmt"
	"time"

	"ETFRotation/internal/model"
	"ETFRotation/internal/strategy"
)

// LiveSignal is today's recommendation. When Insufficient is set there was no defined
// momentum on the latest date; Ranking and Target are then empty and must not be read
// as "hold nothing because the regime rejected every candidate".
type LiveSignal struct {
	Date         time.Time         `json:"date"`
	Policy       string            `json:"policy"`
	Ranking      []model.RankEntry `json:"ranking"`
	Regime       model.Regime      `json:"-"`
	RegimeLabel  string            `json:"regime"`
	Benchmark    string            `json:"benchmark,omitempty"`
	BenchClose   float64           `json:"benchmark_close,omitempty"`
	BenchAverage float64           `json:"benchmark_average,omitempty"`
	Target       string            `json:"target"`
	Insufficient bool              `json:"insufficient"`
	Reason       string            `json:"reason"`
}

// Generate applies the policy once at the latest date with no prior holding, so the
// result is the target position rather than a transition.
func Generate(policy strategy.Policy, prices *model.PriceSeries, mom *model.MomentumSeries, regime *model.RegimeSeries) (*LiveSignal, error) {
	if policy == nil {
		return nil, errors.New("signal: policy is required")
	}
	if prices == nil || prices.Len() == 0 {
		return nil, fmt.Errorf("signal: %w", model.ErrInsufficientData)
	}

	i := prices.Latest()
	sig := &LiveSignal{
		Date:   prices.Date(i),
		Policy: policy.Name(),
		Regime: regime.At(i),
	}
	sig.RegimeLabel = sig.Regime.String()
	if regime != nil {
		sig.Benchmark = regime.Benchmark
		sig.BenchClose, _ = prices.Close(regime.Benchmark, i)
		sig.BenchAverage, _ = regime.AverageAt(i)
	}

	row := mom.At(i)
	if len(row) == 0 {
		sig.Insufficient = true
		sig.Reason = "动量数据不足"
		return sig, nil
	}

	d := policy.Decide(strategy.Input{Momentum: row, Regime: sig.Regime})
	if d.NoData {
		sig.Insufficient = true
		sig.Reason = d.Reason
		return sig, nil
	}
	sig.Ranking = d.Ranking
	sig.Target = d.Target
	sig.Reason = d.Reason
	return sig, nil
}
