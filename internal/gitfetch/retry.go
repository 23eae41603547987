package gitfetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// Rate-limited remotes get a longer pause than the base backoff.
const rateLimitDelayMultiplier = 3.0

// withRetry runs fn until it succeeds, fails permanently, or the retry
// budget is spent. Delays come from the configured policy and respect
// context cancellation.
func (f *Fetcher) withRetry(ctx context.Context, spec RepoSpec, fn func(context.Context) (Result, error)) (Result, error) {
	maxRetries := f.syncCfg.MaxRetries
	if maxRetries <= 0 {
		return fn(ctx)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying git materialization",
				logfields.Repository(spec.FullName()), logfields.Attempt(attempt))
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if isPermanent(err) {
			slog.Error("permanent git failure",
				logfields.Repository(spec.FullName()), logfields.Error(err))
			return Result{}, err
		}
		if ctx.Err() != nil {
			return Result{}, err
		}
		if attempt == maxRetries {
			break
		}

		f.recorder.IncFetchRetry(retryReason(err))
		delay := f.policy.Delay(attempt + 1)
		if errors.As(err, new(*RateLimitError)) {
			delay = time.Duration(float64(delay) * rateLimitDelayMultiplier)
		}
		select {
		case <-ctx.Done():
			return Result{}, lastErr
		case <-time.After(delay):
		}
	}
	return Result{}, fmt.Errorf("git materialization failed after %d retries: %w", maxRetries, lastErr)
}
