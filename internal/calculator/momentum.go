package calculator

import (
	"fmt"
	"math"

	"ETFRotation/internal/model"
)

// CalculateMomentum derives price[t]/price[t-window] - 1 for every instrument. The first
// window dates carry no row. An entry is left out when either price is unusable.
func CalculateMomentum(prices *model.PriceSeries, window int) (*model.MomentumSeries, error) {
	if window < 1 {
		return nil, fmt.Errorf("momentum window must be >= 1, got %d", window)
	}
	n := prices.Len()
	dates := prices.Dates()
	if n <= window {
		return model.NewMomentumSeries(window, window, dates, nil), nil
	}

	symbols := prices.Instruments()
	cols := make(map[string][]float64, len(symbols))
	for _, sym := range symbols {
		cols[sym] = prices.Closes(sym)
	}

	rows := make([]model.MomentumRow, 0, n-window)
	for t := window; t < n; t++ {
		row := make(model.MomentumRow, len(symbols))
		for _, sym := range symbols {
			prev, cur := cols[sym][t-window], cols[sym][t]
			if !usable(prev) || !usable(cur) {
				continue
			}
			row[sym] = cur/prev - 1
		}
		rows = append(rows, row)
	}
	return model.NewMomentumSeries(window, window, dates, rows), nil
}

func usable(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
