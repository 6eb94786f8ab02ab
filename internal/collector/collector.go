package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"ETFRotation/internal/model"
)

// FailurePolicy decides what happens when one instrument cannot be retrieved.
type FailurePolicy string

const (
	FailExclude FailurePolicy = "exclude"
	FailAbort   FailurePolicy = "abort"
)

var (
	ErrFetch  = errors.New("price retrieval failed")
	ErrNoBars = errors.New("no bars returned")
)

// FetchError ties a retrieval failure to its instrument.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Collection is the aligned result of one retrieval pass.
type Collection struct {
	Prices   *model.PriceSeries
	Excluded []string
	Failures map[string]error
}

// Collector fetches every pool instrument and aligns them into one series.
type Collector struct {
	Fetcher   Fetcher
	Start     time.Time
	Policy    FailurePolicy
	Required  []string
	OnFailure func(symbol string, err error)

	limiter *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

type Option func(*Collector)

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Collector) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(c *Collector) { c.Policy = p }
}

// WithRequired marks instruments whose failure aborts the run under any policy.
func WithRequired(symbols ...string) Option {
	return func(c *Collector) { c.Required = append(c.Required, symbols...) }
}

func WithFailureHook(fn func(symbol string, err error)) Option {
	return func(c *Collector) { c.OnFailure = fn }
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, start time.Time, opts ...Option) *Collector {
	c := &Collector{
		Fetcher: fetcher,
		Start:   start,
		Policy:  FailExclude,
		limiter: rate.NewLimiter(rate.Limit(5), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breakers = make(map[string]*gobreaker.CircuitBreaker)
	return c
}

// breakerFor returns the symbol's own breaker so one bad code never trips another.
func (c *Collector) breakerFor(symbol string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[symbol]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "fetch-" + c.Fetcher.Name() + "-" + symbol,
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
	})
	c.breakers[symbol] = cb
	return cb
}

type fetchResult struct {
	bars []model.Bar
	err  error
}

// Collect fetches all pool instruments concurrently and aligns them by date.
func (c *Collector) Collect(ctx context.Context, pool []string) (*Collection, error) {
	if len(pool) == 0 {
		return nil, model.ErrEmptyPool
	}

	results := make([]fetchResult, len(pool))
	var wg sync.WaitGroup
	for i, symbol := range pool {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			bars, err := c.fetchOne(ctx, symbol)
			results[i] = fetchResult{bars: bars, err: err}
		}(i, symbol)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coll := &Collection{Failures: make(map[string]error)}
	bars := make(map[string][]model.Bar, len(pool))
	var survivors []string
	var errs []error
	for i, symbol := range pool {
		r := results[i]
		if r.err != nil {
			ferr := &FetchError{Symbol: symbol, Err: r.err}
			coll.Failures[symbol] = r.err
			coll.Excluded = append(coll.Excluded, symbol)
			errs = append(errs, ferr)
			log.Warn().Str("symbol", symbol).Err(r.err).Msg("price retrieval failed")
			if c.OnFailure != nil {
				c.OnFailure(symbol, r.err)
			}
			continue
		}
		bars[symbol] = r.bars
		survivors = append(survivors, symbol)
	}

	if len(errs) > 0 {
		if c.Policy == FailAbort {
			return nil, errors.Join(errs...)
		}
		for _, req := range c.Required {
			if err, failed := coll.Failures[req]; failed {
				return nil, &FetchError{Symbol: req, Err: err}
			}
		}
	}
	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: all %d instruments failed: %v", model.ErrEmptyPool, len(pool), errors.Join(errs...))
	}

	prices, err := model.NewPriceSeries(survivors, bars)
	if err != nil {
		return nil, err
	}
	coll.Prices = prices
	log.Info().Int("instruments", len(survivors)).Int("dates", prices.Len()).Strs("excluded", coll.Excluded).Msg("prices collected")
	return coll, nil
}

func (c *Collector) fetchOne(ctx context.Context, symbol string) ([]model.Bar, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	out, err := c.breakerFor(symbol).Execute(func() (interface{}, error) {
		return c.Fetcher.FetchDailyCloses(ctx, symbol, c.Start)
	})
	if err != nil {
		return nil, err
	}
	bars := out.([]model.Bar)
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	return bars, nil
}
