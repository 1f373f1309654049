package indexer

import (
	"context"
	"time"

	"github.com/hyperjump/tsumiki/internal/embedding"
	"go.uber.org/zap"
)

const (
	defaultRetryBase = 500 * time.Millisecond
	defaultRetryMax  = 10 * time.Second
)

// retryDelay doubles base per attempt, capped at max.
func retryDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return max
	}
	d := base << attempt
	if d > max || d <= 0 {
		d = max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// embedWithRetry waits on the rate limiter before every attempt and retries transient failures.
func (w *Writer) embedWithRetry(ctx context.Context, batch int, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			d := retryDelay(attempt-1, w.retryBase, w.retryMax)
			w.logger.Warn("indexer retrying embedding batch",
				zap.Int("batch", batch),
				zap.Int("attempt", attempt),
				zap.Duration("delay", d),
				zap.Error(lastErr))
			if err := w.sleep(ctx, d); err != nil {
				return nil, err
			}
		}
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		vecs, err := w.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if ctx.Err() != nil || !embedding.IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}
