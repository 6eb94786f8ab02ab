package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ETFRotation/internal/backtest"
	"ETFRotation/internal/calculator"
	"ETFRotation/internal/chart"
	"ETFRotation/internal/collector"
	"ETFRotation/internal/metrics"
	"ETFRotation/internal/model"
	"ETFRotation/internal/notifier"
	"ETFRotation/internal/recorder"
	"ETFRotation/internal/signal"
	"ETFRotation/internal/strategy"
)

// Settings are the strategy parameters of a run.
type Settings struct {
	Pool          []string
	Window        int
	InitialCash   float64
	Mode          model.PolicyMode
	Cadence       model.Cadence
	Benchmark     string
	Defensive     string
	RegimePeriod  int
	NotifyRetries int
}

// RunOptions select the optional side effects of one run.
type RunOptions struct {
	Notify bool
	Chart  bool
}

// Outcome is everything one run produced.
type Outcome struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	Prices      *model.PriceSeries
	Result      *backtest.Result
	Stats       *backtest.Stats
	StatsErr    error
	Signal      *signal.LiveSignal
	Report      string
	Chart       []byte
	Excluded    []string
	Delivered   bool
	DeliveryErr error
}

// Pipeline runs collect, indicators, backtest, stats, live signal, report, delivery,
// recording and metrics in that order.
type Pipeline struct {
	Settings  Settings
	Collector *collector.Collector
	Policy    strategy.Policy
	Rebalance backtest.RebalanceFunc
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Metrics   *metrics.Recorder

	now     func() time.Time
	chartMu sync.Mutex
}

type Option func(*Pipeline)

func WithNotifier(n notifier.Notifier) Option { return func(p *Pipeline) { p.Notifier = n } }
func WithRecorder(r recorder.Recorder) Option { return func(p *Pipeline) { p.Recorder = r } }
func WithMetrics(m *metrics.Recorder) Option  { return func(p *Pipeline) { p.Metrics = m } }

// New builds a pipeline from settings and a collector.
func New(s Settings, coll *collector.Collector, opts ...Option) (*Pipeline, error) {
	if len(s.Pool) == 0 {
		return nil, model.ErrEmptyPool
	}
	if s.RegimePeriod == 0 {
		s.RegimePeriod = calculator.RegimePeriod
	}
	policy, err := strategy.New(s.Mode, s.Defensive)
	if err != nil {
		return nil, err
	}
	rebalance, err := backtest.NewRebalance(s.Cadence)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Settings:  s,
		Collector: coll,
		Policy:    policy,
		Rebalance: rebalance,
		Recorder:  recorder.NewNoopRecorder(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.Metrics != nil && coll.OnFailure == nil {
		m := p.Metrics
		coll.OnFailure = func(symbol string, _ error) { m.RecordFetchFailure(symbol) }
	}
	return p, nil
}

// Run executes one full run. Delivery and recording failures are logged and never fail the run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Outcome, error) {
	out := &Outcome{RunID: uuid.NewString(), StartedAt: p.now()}
	logger := log.With().Str("run_id", out.RunID).Logger()
	logger.Info().Strs("pool", p.Settings.Pool).Str("policy", p.Policy.Name()).Msg("run started")

	err := p.compute(ctx, out)
	out.Duration = p.now().Sub(out.StartedAt)
	status := "ok"
	if err != nil {
		status = "error"
		logger.Error().Err(err).Msg("run failed")
	}

	if err == nil && opts.Chart {
		p.ChartFor(out)
	}
	if err == nil && opts.Notify && p.Notifier != nil {
		p.deliver(ctx, out)
	}
	p.record(out, status, err)
	if p.Metrics != nil {
		p.Metrics.RecordRun(status, out.Duration)
		if err == nil {
			p.Metrics.RecordStats(out.Stats)
			p.Metrics.RecordSignal(out.Signal)
		}
	}
	if err != nil {
		return out, err
	}

	logger.Info().Str("holding", out.Signal.Target).Bool("insufficient", out.Signal.Insufficient).
		Dur("took", out.Duration).Msg("run completed")
	return out, nil
}

func (p *Pipeline) compute(ctx context.Context, out *Outcome) error {
	s := p.Settings

	coll, err := p.Collector.Collect(ctx, s.Pool)
	if err != nil {
		return fmt.Errorf("collect prices: %w", err)
	}
	out.Prices = coll.Prices
	out.Excluded = coll.Excluded
	if coll.Prices.Len() == 0 {
		return fmt.Errorf("no common trading dates across the pool: %w", model.ErrInsufficientData)
	}

	mom, err := calculator.CalculateMomentum(coll.Prices, s.Window)
	if err != nil {
		return fmt.Errorf("momentum: %w", err)
	}
	var regime *model.RegimeSeries
	if p.Policy.Mode() == model.PolicyRegime {
		regime, err = calculator.CalculateRegime(coll.Prices, s.Benchmark, s.RegimePeriod)
		if err != nil {
			return fmt.Errorf("regime: %w", err)
		}
	}

	sim := &backtest.Simulator{Policy: p.Policy, InitialCash: s.InitialCash, Rebalance: p.Rebalance}
	res, err := sim.Run(coll.Prices, mom, regime)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	out.Result = res
	out.Stats, out.StatsErr = backtest.Summarize(res.Curve, s.InitialCash)

	out.Signal, err = signal.Generate(p.Policy, coll.Prices, mom, regime)
	if err != nil {
		return fmt.Errorf("live signal: %w", err)
	}

	out.Report = notifier.FormatReport(notifier.ReportInput{
		Mode:         p.Policy.Mode(),
		Cadence:      s.Cadence,
		Stats:        out.Stats,
		Trades:       len(res.Trades),
		Signal:       out.Signal,
		RegimePeriod: s.RegimePeriod,
		Excluded:     out.Excluded,
	})
	return nil
}

func (p *Pipeline) deliver(ctx context.Context, out *Outcome) {
	r := notifier.Report{Text: out.Report, Chart: p.ChartFor(out)}
	if err := notifier.SendWithRetry(ctx, p.Notifier, r, p.Settings.NotifyRetries); err != nil {
		out.DeliveryErr = err
		log.Error().Err(err).Str("run_id", out.RunID).Msg("report delivery failed")
		if p.Metrics != nil {
			p.Metrics.RecordDeliveryFailure()
		}
		return
	}
	out.Delivered = true
}

// ChartFor renders and caches the equity chart of out. Rendering failures yield nil.
func (p *Pipeline) ChartFor(out *Outcome) []byte {
	p.chartMu.Lock()
	defer p.chartMu.Unlock()
	if out.Chart != nil || out.Result == nil || len(out.Result.Curve) == 0 {
		return out.Chart
	}
	title := fmt.Sprintf("Equity %s ~ %s", out.Result.Curve[0].Date.Format("2006-01-02"),
		out.Result.Curve[len(out.Result.Curve)-1].Date.Format("2006-01-02"))
	buf, err := chart.RenderEquity(out.Result.Curve, title)
	if err != nil {
		log.Warn().Err(err).Str("run_id", out.RunID).Msg("equity chart failed")
		return nil
	}
	out.Chart = buf
	return buf
}

func (p *Pipeline) record(out *Outcome, status string, runErr error) {
	rec := &recorder.RunRecord{
		RunID:       out.RunID,
		Timestamp:   out.StartedAt,
		Status:      status,
		Policy:      string(p.Policy.Mode()),
		Cadence:     string(p.Settings.Cadence),
		Pool:        p.Settings.Pool,
		Window:      p.Settings.Window,
		InitialCash: p.Settings.InitialCash,
		Excluded:    out.Excluded,
		Stats:       out.Stats,
		Signal:      out.Signal,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if out.Result != nil {
		rec.Curve = out.Result.Curve
		rec.Trades = out.Result.Trades
	}
	if err := p.Recorder.RecordRun(rec); err != nil {
		log.Warn().Err(err).Str("run_id", out.RunID).Msg("record run failed")
	}
}
