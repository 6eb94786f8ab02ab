package collector

import (
	"context"
	"time"

	"ETFRotation/internal/model"
)

const fetchTimeout = 30 * time.Second

// Fetcher retrieves adjusted daily closes for one instrument from start onward.
type Fetcher interface {
	FetchDailyCloses(ctx context.Context, symbol string, start time.Time) ([]model.Bar, error)
	Name() string
}
