package recorder

import (
	"time"

	"ETFRotation/internal/backtest"
	"ETFRotation/internal/model"
	"ETFRotation/internal/signal"
)

// RunRecord holds everything one pipeline run produced.
type RunRecord struct {
	RunID       string
	Timestamp   time.Time
	Status      string // "ok" or "error"
	Error       string
	Policy      string
	Cadence     string
	Pool        []string
	Window      int
	InitialCash float64
	Excluded    []string
	Stats       *backtest.Stats
	Signal      *signal.LiveSignal
	Curve       model.EquityCurve
	Trades      []model.Trade
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID            string  `db:"run_id" json:"run_id"`
	Timestamp        int64   `db:"timestamp" json:"timestamp"`
	Status           string  `db:"status" json:"status"`
	Error            string  `db:"error" json:"error,omitempty"`
	Policy           string  `db:"policy" json:"policy"`
	Cadence          string  `db:"cadence" json:"cadence"`
	Pool             string  `db:"pool" json:"pool"`
	Window           int     `db:"momentum_window" json:"momentum_window"`
	InitialCash      float64 `db:"initial_cash" json:"initial_cash"`
	Excluded         string  `db:"excluded" json:"excluded,omitempty"`
	TotalReturn      float64 `db:"total_return" json:"total_return"`
	AnnualizedReturn float64 `db:"annualized_return" json:"annualized_return"`
	MaxDrawdown      float64 `db:"max_drawdown" json:"max_drawdown"`
	FinalValue       float64 `db:"final_value" json:"final_value"`
	SignalDate       string  `db:"signal_date" json:"signal_date"`
	Regime           string  `db:"regime" json:"regime"`
	Holding          string  `db:"holding" json:"holding"`
	Insufficient     bool    `db:"insufficient" json:"insufficient"`
}

// Recorder persists run history for analysis. Nothing reads it back during a run.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	RecentRuns(limit int) ([]RunSummary, error)
	Close() error
}

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunRecord) error          { return nil }
func (n *NoopRecorder) RecentRuns(_ int) ([]RunSummary, error) { return nil, nil }
func (n *NoopRecorder) Close() error                          { return nil }
