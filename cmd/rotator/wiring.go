package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ETFRotation/internal/cache"
	"ETFRotation/internal/collector"
	"ETFRotation/internal/config"
	"ETFRotation/internal/metrics"
	"ETFRotation/internal/model"
	"ETFRotation/internal/notifier"
	"ETFRotation/internal/pipeline"
	"ETFRotation/internal/recorder"
)

// app holds the wired components of one process.
type app struct {
	pipeline *pipeline.Pipeline
	metrics  *metrics.Recorder
	telegram *notifier.TelegramNotifier
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func newFetcher(c *config.Config) (collector.Fetcher, error) {
	switch c.DataSource.Provider {
	case "eastmoney":
		return collector.NewEastmoneyFetcher(c.Proxy), nil
	case "yahoo":
		f := collector.NewYahooFetcher(c.Proxy)
		for k, v := range c.DataSource.YahooSymbols {
			f.SymbolMap[k] = v
		}
		return f, nil
	case "mock":
		return &collector.MockFetcher{Price: 1, Days: 600}, nil
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", config.ErrInvalidConfig, c.DataSource.Provider)
	}
}

// newRecorder opens the run history store, or a noop one when no path is configured.
func newRecorder(c *config.Config) (recorder.Recorder, error) {
	if c.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder(), nil
	}
	sr, err := recorder.NewSQLiteRecorder(c.Database.SQLitePath)
	if err != nil {
		return nil, err
	}
	return sr, nil
}

func buildApp(c *config.Config) (*app, error) {
	a := &app{metrics: metrics.New()}

	fetcher, err := newFetcher(c)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", fetcher.Name()).Msg("data source selected")

	switch c.DataSource.Cache.Backend {
	case "memory":
		fetcher = cache.NewCachingFetcher(fetcher, cache.NewMemoryStore(), c.DataSource.Cache.TTL)
	case "redis":
		store, err := cache.NewRedisStore(c.DataSource.Cache.RedisAddr)
		if err != nil {
			log.Warn().Err(err).Msg("redis cache unavailable, using memory cache")
			fetcher = cache.NewCachingFetcher(fetcher, cache.NewMemoryStore(), c.DataSource.Cache.TTL)
		} else {
			a.closers = append(a.closers, store.Close)
			fetcher = cache.NewCachingFetcher(fetcher, store, c.DataSource.Cache.TTL)
		}
	}

	start, err := c.Start()
	if err != nil {
		return nil, err
	}
	opts := []collector.Option{
		collector.WithRateLimit(c.DataSource.RateLimit, 2),
		collector.WithFailurePolicy(collector.FailurePolicy(c.DataSource.FailurePolicy)),
	}
	if c.Strategy.Policy == string(model.PolicyRegime) {
		opts = append(opts, collector.WithRequired(c.Strategy.Benchmark))
	}
	coll := collector.NewCollector(fetcher, start, opts...)

	var notifiers notifier.Multi
	if c.Notify.FeishuWebhook != "" {
		notifiers = append(notifiers, notifier.NewFeishuNotifier(c.Notify.FeishuWebhook, c.Proxy))
	}
	if c.TelegramEnabled() {
		tn, err := notifier.NewTelegramNotifier(c.Notify.Telegram.BotToken, c.Notify.Telegram.ChatID, c.Proxy)
		if err != nil {
			log.Warn().Err(err).Msg("telegram disabled")
		} else {
			a.telegram = tn
			notifiers = append(notifiers, tn)
		}
	}

	rec, err := newRecorder(c)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		rec = recorder.NewNoopRecorder()
	}
	a.closers = append(a.closers, rec.Close)

	popts := []pipeline.Option{pipeline.WithRecorder(rec), pipeline.WithMetrics(a.metrics)}
	switch len(notifiers) {
	case 0:
	case 1:
		popts = append(popts, pipeline.WithNotifier(notifiers[0]))
	default:
		popts = append(popts, pipeline.WithNotifier(notifiers))
	}

	p, err := pipeline.New(pipeline.Settings{
		Pool:          c.Strategy.Pool,
		Window:        c.Strategy.MomentumWindow,
		InitialCash:   c.Strategy.InitialCash,
		Mode:          model.PolicyMode(c.Strategy.Policy),
		Cadence:       model.Cadence(c.Strategy.Rebalance),
		Benchmark:     c.Strategy.Benchmark,
		Defensive:     c.Strategy.Defensive,
		RegimePeriod:  c.Strategy.RegimePeriod,
		NotifyRetries: c.Notify.Retries,
	}, coll, popts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = p
	return a, nil
}

const shutdownTimeout = 10 * time.Second
