package commands

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// connectWithRetry retries connect with exponential backoff until it succeeds or
// maxElapsed passes. Backing services often start alongside the server.
func connectWithRetry[T any](ctx context.Context, name string, maxElapsed time.Duration, connect func() (T, error)) (T, error) {
	return backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("service", name).Dur("retry_in", next).Msg("Connection failed, retrying")
		}),
	)
}
