package calculator

import (
	"errors"

	"ETFRotation/internal/model"
)

// RegimePeriod is the benchmark trailing-average length used by the regime filter.
const RegimePeriod = 200

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, model.ErrInsufficientData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// RollingSMA returns the trailing mean at every index and a parallel ready flag.
// Index i is ready once period observations exist including i itself.
func RollingSMA(prices []float64, period int) ([]float64, []bool, error) {
	if period <= 0 {
		return nil, nil, errors.New("period must be positive")
	}
	avg := make([]float64, len(prices))
	ready := make([]bool, len(prices))
	for i := period - 1; i < len(prices); i++ {
		v, err := CalculateSMA(prices[:i+1], period)
		if err != nil {
			return nil, nil, err
		}
		avg[i] = v
		ready[i] = true
	}
	return avg, ready, nil
}
