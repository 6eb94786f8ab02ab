package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ETFRotation/internal/model"
)

// weekdays returns n weekdays starting Monday 2024-01-01.
func weekdays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

func buildSeries(t *testing.T, pool []string, closes map[string][]float64) *model.PriceSeries {
	t.Helper()
	days := weekdays(len(closes[pool[0]]))
	bars := make(map[string][]model.Bar, len(pool))
	for _, sym := range pool {
		for i, c := range closes[sym] {
			bars[sym] = append(bars[sym], model.Bar{Date: days[i], Close: c})
		}
	}
	ps, err := model.NewPriceSeries(pool, bars)
	require.NoError(t, err)
	return ps
}

func constantRegime(n int, r model.Regime) *model.RegimeSeries {
	flags := make([]model.Regime, n)
	for i := range flags {
		flags[i] = r
	}
	return &model.RegimeSeries{Benchmark: "A", Period: 200, Flags: flags, Average: make([]float64, n)}
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func geometric(n int, start, step float64) []float64 {
	out := make([]float64, n)
	p := start
	for i := range out {
		out[i] = p
		p *= step
	}
	return out
}
