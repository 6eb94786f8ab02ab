package calculator

import (
	"fmt"

	"ETFRotation/internal/model"
)

// CalculateRegime flags each date bullish when the benchmark close is strictly above its
// trailing average, bearish otherwise. Dates before the average is ready stay undefined.
func CalculateRegime(prices *model.PriceSeries, benchmark string, period int) (*model.RegimeSeries, error) {
	if !prices.Has(benchmark) {
		return nil, fmt.Errorf("benchmark %s not in price series", benchmark)
	}
	closes := prices.Closes(benchmark)
	avg, ready, err := RollingSMA(closes, period)
	if err != nil {
		return nil, err
	}

	flags := make([]model.Regime, len(closes))
	for i := range closes {
		switch {
		case !ready[i]:
			flags[i] = model.RegimeUndefined
		case closes[i] > avg[i]:
			flags[i] = model.RegimeBullish
		default:
			flags[i] = model.RegimeBearish
		}
	}
	return &model.RegimeSeries{
		Benchmark: benchmark,
		Period:    period,
		Flags:     flags,
		Average:   avg,
	}, nil
}
