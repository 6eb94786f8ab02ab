package backtest

import (
	"fmt"
	"time"

	"ETFRotation/internal/model"
)

// RebalanceFunc reports whether dates[i] is a rebalance date.
type RebalanceFunc func(dates []time.Time, i int) bool

// EveryDate rebalances on every trading date.
func EveryDate(_ []time.Time, _ int) bool { return true }

// WeekEnd rebalances on the last trading date of each ISO calendar week. The final
// date of the series only qualifies when it falls on Friday or later; an unfinished
// week is not rebalanced.
func WeekEnd(dates []time.Time, i int) bool {
	if i+1 < len(dates) {
		y1, w1 := dates[i].ISOWeek()
		y2, w2 := dates[i+1].ISOWeek()
		return y1 != y2 || w1 != w2
	}
	switch dates[i].Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// NewRebalance maps a cadence to its predicate.
func NewRebalance(c model.Cadence) (RebalanceFunc, error) {
	switch c {
	case model.CadenceDaily:
		return EveryDate, nil
	case model.CadenceWeekly:
		return WeekEnd, nil
	default:
		return nil, fmt.Errorf("unknown rebalance cadence %q", c)
	}
}
