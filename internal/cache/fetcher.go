package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ETFRotation/internal/collector"
	"ETFRotation/internal/model"
)

// CachingFetcher serves bars from a Store and falls through to Next on a miss.
// Store failures degrade to a direct fetch.
type CachingFetcher struct {
	Next  collector.Fetcher
	Store Store
	TTL   time.Duration
}

func NewCachingFetcher(next collector.Fetcher, store Store, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{Next: next, Store: store, TTL: ttl}
}

func (c *CachingFetcher) Name() string { return c.Next.Name() }

func Key(source, symbol string, start time.Time) string {
	return fmt.Sprintf("bars:%s:%s:%s", source, symbol, start.Format("20060102"))
}

func (c *CachingFetcher) FetchDailyCloses(ctx context.Context, symbol string, start time.Time) ([]model.Bar, error) {
	key := Key(c.Next.Name(), symbol, start)

	data, ok, err := c.Store.Get(ctx, key)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	case ok:
		var bars []model.Bar
		if err := json.Unmarshal(data, &bars); err == nil {
			log.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("cache hit")
			return bars, nil
		}
		log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	bars, err := c.Next.FetchDailyCloses(ctx, symbol, start)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return bars, nil
	}
	if data, err := json.Marshal(bars); err == nil {
		if err := c.Store.Set(ctx, key, data, c.TTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return bars, nil
}
