package model

import "time"

// MomentumRow maps instrument to trailing momentum for one date. An absent key means
// the momentum is undefined for that instrument on that date.
type MomentumRow map[string]float64

// MomentumSeries holds momentum rows for every date from Start onward.
type MomentumSeries struct {
	Window int
	Start  int // index of the first date carrying a row
	dates  []time.Time
	rows   []MomentumRow
}

// NewMomentumSeries builds a series over dates where rows[k] belongs to dates[start+k].
func NewMomentumSeries(window, start int, dates []time.Time, rows []MomentumRow) *MomentumSeries {
	return &MomentumSeries{Window: window, Start: start, dates: dates, rows: rows}
}

// At returns the row at price index i. Dates before Start have no row (nil).
func (m *MomentumSeries) At(i int) MomentumRow {
	if m == nil || i < m.Start || i-m.Start >= len(m.rows) {
		return nil
	}
	return m.rows[i-m.Start]
}

// Len returns the number of dates that carry a row.
func (m *MomentumSeries) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rows)
}

// Dates returns the dates that carry a row.
func (m *MomentumSeries) Dates() []time.Time {
	if m == nil || len(m.rows) == 0 {
		return nil
	}
	return append([]time.Time(nil), m.dates[m.Start:m.Start+len(m.rows)]...)
}

// Regime is the market condition flag for one date.
type Regime int

const (
	RegimeUndefined Regime = iota
	RegimeBullish
	RegimeBearish
)

func (r Regime) String() string {
	switch r {
	case RegimeBullish:
		return "bullish"
	case RegimeBearish:
		return "bearish"
	default:
		return "undefined"
	}
}

// RegimeSeries holds one regime flag per price date, plus the trailing benchmark average.
type RegimeSeries struct {
	Benchmark string
	Period    int
	Flags     []Regime
	Average   []float64 // zero where undefined
}

// At returns the regime at price index i; out-of-range or nil series is undefined.
func (r *RegimeSeries) At(i int) Regime {
	if r == nil || i < 0 || i >= len(r.Flags) {
		return RegimeUndefined
	}
	return r.Flags[i]
}

// AverageAt returns the trailing benchmark average at i when defined.
func (r *RegimeSeries) AverageAt(i int) (float64, bool) {
	if r.At(i) == RegimeUndefined {
		return 0, false
	}
	return r.Average[i], true
}
