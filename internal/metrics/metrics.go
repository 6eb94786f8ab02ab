package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ETFRotation/internal/backtest"
	"ETFRotation/internal/signal"
)

// Recorder publishes run results as Prometheus metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	totalReturn      prometheus.Gauge
	annualizedReturn prometheus.Gauge
	maxDrawdown      prometheus.Gauge
	holding          *prometheus.GaugeVec
	momentum         *prometheus.GaugeVec
	runs             *prometheus.CounterVec
	fetchFailures    *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	runDuration      prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		totalReturn: f.NewGauge(prometheus.GaugeOpts{
			Name: "rotator_total_return",
			Help: "Backtest total return of the latest run",
		}),
		annualizedReturn: f.NewGauge(prometheus.GaugeOpts{
			Name: "rotator_annualized_return",
			Help: "Backtest annualized return of the latest run",
		}),
		maxDrawdown: f.NewGauge(prometheus.GaugeOpts{
			Name: "rotator_max_drawdown",
			Help: "Backtest maximum drawdown of the latest run (non-positive)",
		}),
		holding: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rotator_recommended_holding",
			Help: "1 for the instrument recommended by the latest live signal",
		}, []string{"symbol"}),
		momentum: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rotator_momentum",
			Help: "Latest momentum per instrument",
		}, []string{"symbol"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rotator_runs_total",
			Help: "Total number of pipeline runs by status",
		}, []string{"status"}),
		fetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rotator_fetch_failures_total",
			Help: "Total number of price retrieval failures",
		}, []string{"symbol"}),
		deliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "rotator_delivery_failures_total",
			Help: "Total number of report deliveries that failed after retries",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rotator_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordStats sets the backtest gauges.
func (r *Recorder) RecordStats(s *backtest.Stats) {
	if s == nil {
		return
	}
	r.totalReturn.Set(s.TotalReturn)
	r.annualizedReturn.Set(s.AnnualizedReturn)
	r.maxDrawdown.Set(s.MaxDrawdown)
}

// RecordSignal replaces the holding and momentum gauges with the latest signal.
func (r *Recorder) RecordSignal(sig *signal.LiveSignal) {
	if sig == nil {
		return
	}
	r.holding.Reset()
	r.momentum.Reset()
	for _, e := range sig.Ranking {
		r.momentum.WithLabelValues(e.Symbol).Set(e.Momentum)
		v := 0.0
		if e.Symbol == sig.Target {
			v = 1
		}
		r.holding.WithLabelValues(e.Symbol).Set(v)
	}
}

func (r *Recorder) RecordRun(status string, d time.Duration) {
	r.runs.WithLabelValues(status).Inc()
	r.runDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordFetchFailure(symbol string) {
	r.fetchFailures.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordDeliveryFailure() {
	r.deliveryFailures.Inc()
}
