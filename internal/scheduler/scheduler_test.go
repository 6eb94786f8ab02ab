package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFRotation/internal/collector"
	"ETFRotation/internal/model"
	"ETFRotation/internal/notifier"
	"ETFRotation/internal/pipeline"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func rising(n int, base, step float64) []model.Bar {
	bars := make([]model.Bar, 0, n)
	d := start
	for len(bars) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			bars = append(bars, model.Bar{Date: d, Close: base + step*float64(len(bars))})
		}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notifier.Report
}

func (c *captureNotifier) Name() string { return "capture" }
func (c *captureNotifier) Send(_ context.Context, r notifier.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, r)
	return nil
}

func newScheduler(t *testing.T, fetcher collector.Fetcher, n notifier.Notifier) *Scheduler {
	s := pipeline.Settings{
		Pool:        []string{"A", "B"},
		Window:      5,
		InitialCash: 1e6,
		Mode:        model.PolicyTop,
		Cadence:     model.CadenceWeekly,
	}
	var opts []pipeline.Option
	if n != nil {
		opts = append(opts, pipeline.WithNotifier(n))
	}
	p, err := pipeline.New(s, collector.NewCollector(fetcher, start), opts...)
	require.NoError(t, err)
	return NewScheduler(context.Background(), p)
}

func goodFetcher() *collector.MockFetcher {
	return &collector.MockFetcher{Bars: map[string][]model.Bar{
		"A": rising(40, 10, 0.1),
		"B": rising(40, 10, 0.3),
	}}
}

func TestHandleCommand_BeforeFirstRun(t *testing.T) {
	s := newScheduler(t, goodFetcher(), nil)
	assert.Nil(t, s.Latest())
	assert.Contains(t, s.HandleCommand(context.Background(), "/signal").Text, "暂无运行结果")
	assert.Contains(t, s.HandleCommand(context.Background(), "回测报告").Text, "暂无运行结果")
	assert.Equal(t, helpText, s.HandleCommand(context.Background(), "hello").Text)
}

func TestHandleCommand_AfterRun(t *testing.T) {
	s := newScheduler(t, goodFetcher(), nil)
	ctx := context.Background()

	out, err := s.RunNow(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	assert.Same(t, out, s.Latest())

	sig := s.HandleCommand(ctx, "/signal@rotator_bot")
	assert.Contains(t, sig.Text, "今日建议持仓: B")
	assert.Empty(t, sig.Chart)

	bt := s.HandleCommand(ctx, "/backtest")
	assert.Equal(t, out.Report, bt.Text)
	assert.True(t, bytes.HasPrefix(bt.Chart, []byte{0x89, 'P', 'N', 'G'}))

	assert.Equal(t, "暂无运行记录", s.HandleCommand(ctx, "/history").Text)
}

func TestHandleCommand_RunReplacesLatest(t *testing.T) {
	s := newScheduler(t, goodFetcher(), nil)
	ctx := context.Background()

	first, err := s.RunNow(ctx, pipeline.RunOptions{})
	require.NoError(t, err)
	reply := s.HandleCommand(ctx, "立即运行")
	assert.Contains(t, reply.Text, "动量轮动系统报告")
	assert.NotEqual(t, first.RunID, s.Latest().RunID)
}

func TestRunNow_Busy(t *testing.T) {
	s := newScheduler(t, goodFetcher(), nil)
	s.runMu.Lock()
	defer s.runMu.Unlock()

	_, err := s.RunNow(context.Background(), pipeline.RunOptions{})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRunNow_FailureKeepsPreviousOutcome(t *testing.T) {
	f := goodFetcher()
	s := newScheduler(t, f, nil)
	out, err := s.RunNow(context.Background(), pipeline.RunOptions{})
	require.NoError(t, err)

	f.Errors = map[string]error{"A": errors.New("x"), "B": errors.New("y")}
	_, err = s.RunNow(context.Background(), pipeline.RunOptions{})
	require.Error(t, err)
	assert.Same(t, out, s.Latest())
}

func TestScheduledRun_NotifiesReportAndFailures(t *testing.T) {
	n := &captureNotifier{}
	f := goodFetcher()
	s := newScheduler(t, f, n)

	s.scheduledRun()
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0].Text, "动量轮动系统报告")

	f.Errors = map[string]error{"A": errors.New("x"), "B": errors.New("y")}
	s.scheduledRun()
	require.Len(t, n.sent, 2)
	assert.Contains(t, n.sent[1].Text, "轮动任务运行失败")
}

func TestRegister(t *testing.T) {
	s := newScheduler(t, goodFetcher(), nil)
	require.NoError(t, s.Register("0 30 15 * * 1-5"))
	assert.Error(t, s.Register("not a cron"))
	assert.Len(t, s.Cron.Entries(), 1)

	s.Start()
	s.Stop()
}
