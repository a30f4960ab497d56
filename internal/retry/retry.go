// Package retry re-runs units of work that lost an optimistic-concurrency race.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tinoosan/fintrack/internal/errs"
	"github.com/tinoosan/fintrack/internal/telemetry"
)

// Options tune OnConflict. Zero values take the defaults.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 10 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 200 * time.Millisecond
	}
	return o
}

// OnConflict runs fn until it returns anything other than errs.ErrConflict or attempts run out.
// Only ErrConflict is retried; the last error is returned unchanged.
func OnConflict(ctx context.Context, logger *slog.Logger, op string, opts Options, fn func() error) error {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	delay := opts.InitialDelay
	var err error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, errs.ErrConflict) || attempt == opts.MaxAttempts {
			return err
		}
		telemetry.ConflictRetries.WithLabelValues(op).Inc()
		logger.Warn("conflict, retrying", "op", op, "attempt", attempt, "max_attempts", opts.MaxAttempts, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return err
}
