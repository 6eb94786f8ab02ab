package model

// RankEntry is one instrument's place in a momentum ranking.
type RankEntry struct {
	Symbol   string  `json:"symbol"`
	Momentum float64 `json:"momentum"`
}

// PolicyMode selects the rotation rule set.
type PolicyMode string

const (
	PolicyRegime PolicyMode = "regime"
	PolicyTop    PolicyMode = "top"
)

// Cadence selects rebalance dates.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)
