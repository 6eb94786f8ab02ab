package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFRotation/internal/collector"
	"ETFRotation/internal/metrics"
	"ETFRotation/internal/model"
	"ETFRotation/internal/notifier"
	"ETFRotation/internal/recorder"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func series(n int, f func(i int) float64) []model.Bar {
	bars := make([]model.Bar, 0, n)
	d := start
	for len(bars) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			bars = append(bars, model.Bar{Date: d, Close: f(len(bars))})
		}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

func market(n int) map[string][]model.Bar {
	return map[string][]model.Bar{
		"BENCH": series(n, func(i int) float64 { return 100 + 0.2*float64(i) }),
		"GOLD":  series(n, func(i int) float64 { return 100 + 0.01*float64(i) }),
		"TECH":  series(n, func(i int) float64 { return 100 * math.Pow(1.003, float64(i)) }),
	}
}

func settings() Settings {
	return Settings{
		Pool:        []string{"BENCH", "GOLD", "TECH"},
		Window:      20,
		InitialCash: 1e6,
		Mode:        model.PolicyRegime,
		Cadence:     model.CadenceWeekly,
		Benchmark:   "BENCH",
		Defensive:   "GOLD",
	}
}

type fakeNotifier struct {
	err  error
	mu   sync.Mutex
	sent []notifier.Report
}

func (f *fakeNotifier) Name() string { return "fake" }
func (f *fakeNotifier) Send(_ context.Context, r notifier.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, r)
	return nil
}

type fakeRecorder struct {
	recorder.NoopRecorder
	runs []*recorder.RunRecord
}

func (f *fakeRecorder) RecordRun(r *recorder.RunRecord) error {
	f.runs = append(f.runs, r)
	return nil
}

func scrape(t *testing.T, m *metrics.Recorder) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestPipeline_Run(t *testing.T) {
	fetcher := &collector.MockFetcher{Bars: market(260)}
	n := &fakeNotifier{}
	rec := &fakeRecorder{}
	m := metrics.New()

	p, err := New(settings(), collector.NewCollector(fetcher, start, collector.WithRequired("BENCH")),
		WithNotifier(n), WithRecorder(rec), WithMetrics(m))
	require.NoError(t, err)

	out, err := p.Run(context.Background(), RunOptions{Notify: true})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 260, out.Prices.Len())
	require.NotNil(t, out.Stats)
	assert.Greater(t, out.Stats.TotalReturn, 0.0)
	assert.LessOrEqual(t, out.Stats.MaxDrawdown, 0.0)
	assert.Equal(t, "TECH", out.Signal.Target)
	assert.Equal(t, model.RegimeBullish, out.Signal.Regime)
	assert.Contains(t, out.Report, "周频双动量趋势系统报告")
	assert.Contains(t, out.Report, "今日建议持仓: TECH")
	assert.True(t, out.Delivered)

	require.Len(t, n.sent, 1)
	assert.Equal(t, out.Report, n.sent[0].Text)
	assert.True(t, bytes.HasPrefix(n.sent[0].Chart, []byte{0x89, 'P', 'N', 'G'}))

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "ok", rec.runs[0].Status)
	assert.Equal(t, out.RunID, rec.runs[0].RunID)
	assert.Len(t, rec.runs[0].Curve, 260)

	body := scrape(t, m)
	assert.Contains(t, body, `rotator_runs_total{status="ok"} 1`)
	assert.Contains(t, body, `rotator_recommended_holding{symbol="TECH"} 1`)
}

func TestPipeline_ExcludesFailedDefensive(t *testing.T) {
	fetcher := &collector.MockFetcher{
		Bars:   market(260),
		Errors: map[string]error{"GOLD": errors.New("provider timeout")},
	}
	m := metrics.New()
	p, err := New(settings(), collector.NewCollector(fetcher, start, collector.WithRequired("BENCH")), WithMetrics(m))
	require.NoError(t, err)

	out, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"GOLD"}, out.Excluded)
	assert.Equal(t, []string{"BENCH", "TECH"}, out.Prices.Instruments())
	assert.Contains(t, out.Report, "数据获取失败已剔除: GOLD")
	assert.Nil(t, out.Chart)
	assert.Contains(t, scrape(t, m), `rotator_fetch_failures_total{symbol="GOLD"} 1`)
}

func TestPipeline_BenchmarkFailureAborts(t *testing.T) {
	fetcher := &collector.MockFetcher{
		Bars:   market(260),
		Errors: map[string]error{"BENCH": errors.New("provider timeout")},
	}
	n := &fakeNotifier{}
	rec := &fakeRecorder{}
	p, err := New(settings(), collector.NewCollector(fetcher, start, collector.WithRequired("BENCH")),
		WithNotifier(n), WithRecorder(rec))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), RunOptions{Notify: true})
	assert.ErrorIs(t, err, collector.ErrFetch)
	assert.Empty(t, n.sent)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, "error", rec.runs[0].Status)
	assert.NotEmpty(t, rec.runs[0].Error)
}

func TestPipeline_DeliveryFailureKeepsRun(t *testing.T) {
	fetcher := &collector.MockFetcher{Bars: market(260)}
	m := metrics.New()
	p, err := New(settings(), collector.NewCollector(fetcher, start),
		WithNotifier(&fakeNotifier{err: errors.New("webhook down")}), WithMetrics(m))
	require.NoError(t, err)

	out, err := p.Run(context.Background(), RunOptions{Notify: true})
	require.NoError(t, err)
	assert.False(t, out.Delivered)
	assert.Error(t, out.DeliveryErr)
	assert.Contains(t, scrape(t, m), "rotator_delivery_failures_total 1")
}

func TestPipeline_ShortHistoryIsInsufficientNotFatal(t *testing.T) {
	fetcher := &collector.MockFetcher{Bars: market(10)}
	p, err := New(settings(), collector.NewCollector(fetcher, start))
	require.NoError(t, err)

	out, err := p.Run(context.Background(), RunOptions{Chart: true})
	require.NoError(t, err)
	assert.True(t, out.Signal.Insufficient)
	assert.Empty(t, out.Signal.Target)
	assert.Equal(t, model.RegimeUndefined, out.Signal.Regime)
	require.NotNil(t, out.Stats)
	assert.Equal(t, 0.0, out.Stats.TotalReturn)
	assert.Empty(t, out.Result.Trades)
	assert.NotEmpty(t, out.Chart)
	assert.Contains(t, out.Report, "今日建议持仓: 数据不足")
}

func TestPipeline_TopMode(t *testing.T) {
	s := settings()
	s.Mode = model.PolicyTop
	s.Cadence = model.CadenceDaily
	fetcher := &collector.MockFetcher{Bars: market(60)}
	p, err := New(s, collector.NewCollector(fetcher, start))
	require.NoError(t, err)

	out, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "TECH", out.Signal.Target)
	assert.Empty(t, out.Signal.Benchmark)
	assert.Contains(t, out.Report, "日频动量轮动系统报告")
}

func TestNew_RejectsBadSettings(t *testing.T) {
	c := collector.NewCollector(&collector.MockFetcher{}, start)

	_, err := New(Settings{}, c)
	assert.ErrorIs(t, err, model.ErrEmptyPool)

	s := settings()
	s.Cadence = "monthly"
	_, err = New(s, c)
	assert.Error(t, err)
}
