package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFRotation/internal/model"
)

func d(m time.Month, day int) time.Time { return time.Date(2024, m, day, 0, 0, 0, 0, time.UTC) }

func TestWeekEnd(t *testing.T) {
	// Thu 4 Jan, Fri 5 Jan, Mon 8, Wed 10 (Thu/Fri holiday), Mon 15, Tue 16
	dates := []time.Time{d(1, 4), d(1, 5), d(1, 8), d(1, 10), d(1, 15), d(1, 16)}
	got := make([]bool, len(dates))
	for i := range dates {
		got[i] = WeekEnd(dates, i)
	}
	assert.Equal(t, []bool{false, true, false, true, false, false}, got)
}

func TestWeekEnd_FinalFridayCounts(t *testing.T) {
	dates := []time.Time{d(1, 8), d(1, 12)}
	assert.True(t, WeekEnd(dates, 1))
}

func TestWeekEnd_YearBoundary(t *testing.T) {
	// Fri 29 Dec 2023 and Tue 2 Jan 2024 are in different ISO weeks
	dates := []time.Time{
		time.Date(2023, 12, 28, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	assert.False(t, WeekEnd(dates, 0))
	assert.True(t, WeekEnd(dates, 1))
	assert.False(t, WeekEnd(dates, 2))
}

func TestNewRebalance(t *testing.T) {
	f, err := NewRebalance(model.CadenceDaily)
	require.NoError(t, err)
	assert.True(t, f(nil, 0))

	_, err = NewRebalance(model.CadenceWeekly)
	require.NoError(t, err)

	_, err = NewRebalance("monthly")
	assert.Error(t, err)
}
