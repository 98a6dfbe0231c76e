package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/kgest/internal/extract"
	"github.com/dgallion1/kgest/internal/kg"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *extract.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// extractWithRetry calls the extractor, retrying transient failures up to
// MaxRetries attempts in total.
func (w *Worker) extractWithRetry(ctx context.Context, log *slog.Logger, idx int, prompt string) ([]kg.Triplet, error) {
	var lastErr error
	for attempt := range MaxRetries {
		triplets, err := w.extractor.ExtractTriplets(ctx, prompt)
		if err == nil {
			return triplets, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable extraction error", "chunk", idx, "attempt", attempt, "error", err)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
