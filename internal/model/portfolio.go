package model

import "time"

// PortfolioState is the simulation's cash/position state. The fund is either entirely
// in cash (Holding empty, Shares zero) or entirely in one instrument (Cash zero).
type PortfolioState struct {
	Cash    float64
	Holding string
	Shares  float64
}

// InCash reports whether no instrument is held.
func (s *PortfolioState) InCash() bool { return s.Holding == "" }

// Value returns cash plus the marked position at price.
func (s *PortfolioState) Value(price float64) float64 {
	if s.InCash() {
		return s.Cash
	}
	return s.Cash + s.Shares*price
}

// Liquidate converts the held position to cash at price. No-op when in cash.
func (s *PortfolioState) Liquidate(price float64) {
	if s.InCash() {
		return
	}
	s.Cash = s.Shares * price
	s.Shares = 0
	s.Holding = ""
}

// Buy converts all cash into symbol at price. Conversions are exact: no fees, no lot sizes.
func (s *PortfolioState) Buy(symbol string, price float64) {
	s.Shares = s.Cash / price
	s.Cash = 0
	s.Holding = symbol
}

// EquityPoint is one mark-to-market entry of the equity curve.
type EquityPoint struct {
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	Holding string    `json:"holding,omitempty"`
	Cash    float64   `json:"cash"`
	Shares  float64   `json:"shares"`
}

// EquityCurve is ordered by date, one entry per simulated date.
type EquityCurve []EquityPoint

// Values returns the total values in order.
func (c EquityCurve) Values() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Value
	}
	return out
}

// Trade records a position switch on a rebalance date.
type Trade struct {
	Date  time.Time `json:"date"`
	From  string    `json:"from,omitempty"`
	To    string    `json:"to,omitempty"`
	Price float64   `json:"price"` // close of To, or of From when moving to cash
	Value float64   `json:"value"`
}
