package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sqlx.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			timestamp         INTEGER NOT NULL,
			status            TEXT NOT NULL,
			error             TEXT NOT NULL DEFAULT '',
			policy            TEXT,
			cadence           TEXT,
			pool              TEXT,
			momentum_window   INTEGER,
			initial_cash      REAL,
			excluded          TEXT NOT NULL DEFAULT '',
			total_return      REAL NOT NULL DEFAULT 0,
			annualized_return REAL NOT NULL DEFAULT 0,
			max_drawdown      REAL NOT NULL DEFAULT 0,
			final_value       REAL NOT NULL DEFAULT 0,
			signal_date       TEXT NOT NULL DEFAULT '',
			regime            TEXT NOT NULL DEFAULT '',
			holding           TEXT NOT NULL DEFAULT '',
			insufficient      BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS equity_points (
			run_id  TEXT NOT NULL,
			date    TEXT NOT NULL,
			value   REAL NOT NULL,
			holding TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			date      TEXT NOT NULL,
			from_code TEXT NOT NULL DEFAULT '',
			to_code   TEXT NOT NULL DEFAULT '',
			price     REAL,
			value     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,

		`CREATE TABLE IF NOT EXISTS rankings (
			run_id   TEXT NOT NULL,
			rank     INTEGER NOT NULL,
			symbol   TEXT NOT NULL,
			momentum REAL NOT NULL,
			PRIMARY KEY (run_id, rank)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func summarize(rec *RunRecord) RunSummary {
	s := RunSummary{
		RunID:       rec.RunID,
		Timestamp:   rec.Timestamp.Unix(),
		Status:      rec.Status,
		Error:       rec.Error,
		Policy:      rec.Policy,
		Cadence:     rec.Cadence,
		Pool:        strings.Join(rec.Pool, ","),
		Window:      rec.Window,
		InitialCash: rec.InitialCash,
		Excluded:    strings.Join(rec.Excluded, ","),
	}
	if rec.Stats != nil {
		s.TotalReturn = rec.Stats.TotalReturn
		s.AnnualizedReturn = rec.Stats.AnnualizedReturn
		s.MaxDrawdown = rec.Stats.MaxDrawdown
		s.FinalValue = rec.Stats.FinalValue
	}
	if rec.Signal != nil {
		s.SignalDate = rec.Signal.Date.Format("2006-01-02")
		s.Regime = rec.Signal.RegimeLabel
		s.Holding = rec.Signal.Target
		s.Insufficient = rec.Signal.Insufficient
	}
	return s
}

// RecordRun writes the run and its curve, trades and ranking in one transaction.
func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExec(`INSERT INTO runs
		(run_id, timestamp, status, error, policy, cadence, pool, momentum_window, initial_cash, excluded,
		 total_return, annualized_return, max_drawdown, final_value,
		 signal_date, regime, holding, insufficient)
		VALUES
		(:run_id, :timestamp, :status, :error, :policy, :cadence, :pool, :momentum_window, :initial_cash, :excluded,
		 :total_return, :annualized_return, :max_drawdown, :final_value,
		 :signal_date, :regime, :holding, :insufficient)`, summarize(rec)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(rec.Curve) > 0 {
		stmt, err := tx.Preparex(`INSERT INTO equity_points (run_id, date, value, holding) VALUES (?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare equity: %w", err)
		}
		defer stmt.Close()
		for _, p := range rec.Curve {
			if _, err := stmt.Exec(rec.RunID, p.Date.Format("2006-01-02"), p.Value, p.Holding); err != nil {
				return fmt.Errorf("insert equity point: %w", err)
			}
		}
	}

	for _, t := range rec.Trades {
		if _, err := tx.Exec(`INSERT INTO trades (run_id, date, from_code, to_code, price, value) VALUES (?,?,?,?,?,?)`,
			rec.RunID, t.Date.Format("2006-01-02"), t.From, t.To, t.Price, t.Value); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
	}

	if rec.Signal != nil {
		for i, e := range rec.Signal.Ranking {
			if _, err := tx.Exec(`INSERT INTO rankings (run_id, rank, symbol, momentum) VALUES (?,?,?,?)`,
				rec.RunID, i+1, e.Symbol, e.Momentum); err != nil {
				return fmt.Errorf("insert ranking: %w", err)
			}
		}
	}

	return tx.Commit()
}

// RecentRuns lists the latest runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []RunSummary
	if err := r.db.Select(&runs, `SELECT * FROM runs ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
