package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"notico/internal/infra/retry"
)

func TestDo(t *testing.T) {
	t.Parallel()

	cfg := retry.Config{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("returns first success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		got, err := retry.Do(context.Background(), cfg, func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		require.NoError(t, err)
		require.Equal(t, "ok", got)
		require.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		got, err := retry.Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("transient")
			}
			return 7, nil
		})
		require.NoError(t, err)
		require.Equal(t, 7, got)
		require.Equal(t, 3, calls)
	})

	t.Run("returns last error on exhaustion", func(t *testing.T) {
		t.Parallel()

		calls := 0
		wantErr := errors.New("permanent")
		_, err := retry.Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
			calls++
			return 0, wantErr
		})
		require.ErrorIs(t, err, wantErr)
		require.Equal(t, 3, calls)
	})

	t.Run("cancellation stops retries", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := retry.Do(ctx, retry.Config{Attempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second},
			func(ctx context.Context) (int, error) {
				calls++
				cancel()
				return 0, errors.New("transient")
			})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
	})

	t.Run("zero config falls back to defaults", func(t *testing.T) {
		t.Parallel()

		calls := 0
		_, err := retry.Do(context.Background(), retry.Config{}, func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("nope")
		})
		require.Error(t, err)
		require.Equal(t, retry.DefaultAttempts, calls)
	})
}
