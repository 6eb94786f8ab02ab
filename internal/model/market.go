package model

import (
	"fmt"
	"sort"
	"time"
)

// Bar is a single adjusted daily close.
type Bar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries holds strictly aligned daily closes for a pool of instruments.
// Every date present has a price for every instrument; it is immutable after construction.
type PriceSeries struct {
	instruments []string
	dates       []time.Time
	closes      map[string][]float64
}

// TruncateDay normalizes t to midnight UTC of its calendar date.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewPriceSeries aligns per-instrument bars on their common dates. Dates missing for any
// instrument are dropped (no forward fill). Instrument order follows pool.
func NewPriceSeries(pool []string, bars map[string][]Bar) (*PriceSeries, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	byDate := make(map[string]map[time.Time]float64, len(pool))
	for _, sym := range pool {
		rows, ok := bars[sym]
		if !ok {
			return nil, fmt.Errorf("no bars for %s", sym)
		}
		m := make(map[time.Time]float64, len(rows))
		for _, b := range rows {
			m[TruncateDay(b.Date)] = b.Close
		}
		byDate[sym] = m
	}

	var dates []time.Time
	for d := range byDate[pool[0]] {
		shared := true
		for _, sym := range pool[1:] {
			if _, ok := byDate[sym][d]; !ok {
				shared = false
				break
			}
		}
		if shared {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	ps := &PriceSeries{
		instruments: append([]string(nil), pool...),
		dates:       dates,
		closes:      make(map[string][]float64, len(pool)),
	}
	for _, sym := range pool {
		col := make([]float64, len(dates))
		for i, d := range dates {
			col[i] = byDate[sym][d]
		}
		ps.closes[sym] = col
	}
	return ps, nil
}

// Instruments returns the pool in configured order.
func (p *PriceSeries) Instruments() []string {
	return append([]string(nil), p.instruments...)
}

// Has reports whether symbol belongs to the series.
func (p *PriceSeries) Has(symbol string) bool {
	_, ok := p.closes[symbol]
	return ok
}

// Len returns the number of aligned dates.
func (p *PriceSeries) Len() int { return len(p.dates) }

// Date returns the i-th trading date.
func (p *PriceSeries) Date(i int) time.Time { return p.dates[i] }

// Dates returns a copy of all trading dates.
func (p *PriceSeries) Dates() []time.Time {
	return append([]time.Time(nil), p.dates...)
}

// Close returns the closing price of symbol at position i.
func (p *PriceSeries) Close(symbol string, i int) (float64, bool) {
	col, ok := p.closes[symbol]
	if !ok || i < 0 || i >= len(col) {
		return 0, false
	}
	return col[i], true
}

// Closes returns a copy of the close column for symbol, or nil if unknown.
func (p *PriceSeries) Closes(symbol string) []float64 {
	col, ok := p.closes[symbol]
	if !ok {
		return nil
	}
	return append([]float64(nil), col...)
}

// Latest returns the last date index, or -1 when the series is empty.
func (p *PriceSeries) Latest() int { return len(p.dates) - 1 }
