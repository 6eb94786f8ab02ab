package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"ETFRotation/internal/notifier"
	"ETFRotation/internal/pipeline"
	"ETFRotation/internal/recorder"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("a run is already in progress")

const helpText = "可用命令:\n• /signal 今日信号\n• /backtest 回测报告\n• /run 立即运行\n• /history 最近运行记录"

// Scheduler runs the pipeline on a cron schedule and keeps the latest outcome.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *pipeline.Pipeline
	Ctx      context.Context

	runMu  sync.Mutex
	mu     sync.RWMutex
	latest *pipeline.Outcome
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, p *pipeline.Pipeline) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Pipeline: p,
		Ctx:      ctx,
	}
}

// Register schedules a notifying run on spec (cron with seconds field).
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.scheduledRun); err != nil {
		return fmt.Errorf("register run task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("entries", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// Latest returns the most recent successful outcome, or nil before the first one.
func (s *Scheduler) Latest() *pipeline.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// RunNow executes one run immediately. Overlapping runs are refused with ErrBusy.
func (s *Scheduler) RunNow(ctx context.Context, opts pipeline.RunOptions) (*pipeline.Outcome, error) {
	if !s.runMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.runMu.Unlock()

	out, err := s.Pipeline.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.latest = out
	s.mu.Unlock()
	return out, nil
}

// Chart returns the equity chart of out, rendering it on first use.
func (s *Scheduler) Chart(out *pipeline.Outcome) []byte {
	return s.Pipeline.ChartFor(out)
}

// RecentRuns lists recorded runs, newest first.
func (s *Scheduler) RecentRuns(limit int) ([]recorder.RunSummary, error) {
	return s.Pipeline.Recorder.RecentRuns(limit)
}

func (s *Scheduler) scheduledRun() {
	log.Info().Msg("running scheduled task")
	if _, err := s.RunNow(s.Ctx, pipeline.RunOptions{Notify: true}); err != nil {
		log.Error().Err(err).Msg("scheduled run failed")
		s.trySend(fmt.Sprintf("❌ 轮动任务运行失败: %v", err))
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) notifier.Report {
	cmd := strings.TrimSpace(command)
	if i := strings.IndexAny(cmd, " @"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "今日信号", "/signal":
		out := s.Latest()
		if out == nil {
			return notifier.Report{Text: "暂无运行结果，请稍后再试"}
		}
		return notifier.Report{Text: notifier.FormatSignal(out.Signal, s.Pipeline.Settings.RegimePeriod)}
	case "回测报告", "/backtest":
		out := s.Latest()
		if out == nil {
			return notifier.Report{Text: "暂无运行结果，请稍后再试"}
		}
		return notifier.Report{Text: out.Report, Chart: s.Chart(out)}
	case "立即运行", "/run":
		out, err := s.RunNow(ctx, pipeline.RunOptions{})
		if err != nil {
			return notifier.Report{Text: fmt.Sprintf("❌ 运行失败: %v", err)}
		}
		return notifier.Report{Text: out.Report, Chart: s.Chart(out)}
	case "运行记录", "/history":
		runs, err := s.RecentRuns(5)
		if err != nil {
			return notifier.Report{Text: fmt.Sprintf("❌ 读取运行记录失败: %v", err)}
		}
		return notifier.Report{Text: notifier.FormatHistory(runs)}
	default:
		return notifier.Report{Text: helpText}
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Pipeline.Notifier == nil {
		return
	}
	if err := notifier.SendWithRetry(s.Ctx, s.Pipeline.Notifier, notifier.Report{Text: text}, s.Pipeline.Settings.NotifyRetries); err != nil {
		log.Error().Err(err).Msg("send notification failed")
	}
}
