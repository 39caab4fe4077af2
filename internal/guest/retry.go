package guest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/alextreichler/detailacademy/internal/api"
)

// RetryConfig bounds the retries of payment-status updates.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

var DefaultRetry = RetryConfig{Attempts: 3, Delay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}

// retryUpdate replays fn only when the request never got an answer. The
// caller's idempotency key makes a replay of a delivered update harmless.
func retryUpdate(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var netErr *api.NetworkError
			return errors.As(err, &netErr)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying payment status update", "op", op, "attempt", n+1, "error", err)
		}),
	)
}
