package collector

import (
	"context"
	"sync"
	"time"

	"ETFRotation/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price  float64
	Days   int
	Bars   map[string][]model.Bar
	Errors map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyCloses(ctx context.Context, symbol string, start time.Time) ([]model.Bar, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		out := make([]model.Bar, 0, len(bars))
		for _, b := range bars {
			if !b.Date.Before(start) {
				out = append(out, b)
			}
		}
		return out, nil
	}
	days := m.Days
	if days == 0 {
		days = 300
	}
	price := m.Price
	if price == 0 {
		price = 1
	}
	return generateMockBars(price, days, start), nil
}

// Calls reports how many times symbol was requested.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// generateMockBars produces count weekday closes beginning at start.
func generateMockBars(basePrice float64, count int, start time.Time) []model.Bar {
	bars := make([]model.Bar, 0, count)
	d := model.TruncateDay(start)
	for len(bars) < count {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n := len(bars)
			bars = append(bars, model.Bar{
				Date:  d,
				Close: basePrice * (1 + float64(n-count/2)*0.001),
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}
