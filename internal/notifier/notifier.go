package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Report is one delivery: the text plus an optional PNG chart.
type Report struct {
	Text  string
	Chart []byte
}

// Notifier delivers a report to one destination.
type Notifier interface {
	Send(ctx context.Context, r Report) error
	Name() string
}

// Multi fans a report out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, r Report) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Backoff is the delay before retry attempt i (0-based).
var Backoff = func(i int) time.Duration { return time.Duration(1<<uint(i)) * time.Second }

// SendWithRetry sends a report with exponential backoff retry.
func SendWithRetry(ctx context.Context, n Notifier, r Report, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := n.Send(ctx, r)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := Backoff(i)
		log.Warn().Err(err).Str("notifier", n.Name()).
			Int("attempt", i+1).Int("max", maxRetries+1).Dur("backoff", backoff).
			Msg("send failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts exhausted: %w", maxRetries+1, lastErr)
}
