package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinoosan/fintrack/internal/errs"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOnConflictRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := OnConflict(context.Background(), quiet, "test", Options{InitialDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("adjust: %w", errs.ErrConflict)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestOnConflictGivesUp(t *testing.T) {
	calls := 0
	err := OnConflict(context.Background(), quiet, "test", Options{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		calls++
		return errs.ErrConflict
	})
	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.Equal(t, 2, calls)
}

func TestOnConflictDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := OnConflict(context.Background(), quiet, "test", Options{}, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestOnConflictStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := OnConflict(ctx, quiet, "test", Options{InitialDelay: time.Second}, func() error { return errs.ErrConflict })
	assert.ErrorIs(t, err, context.Canceled)
}
