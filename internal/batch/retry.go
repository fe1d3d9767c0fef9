package batch

import (
	"context"
	"errors"
	"time"

	"github.com/earpeace/earpeace/internal/audio"
	"github.com/earpeace/earpeace/internal/discord"
	"github.com/earpeace/earpeace/internal/dsp"
)

const backoffBase = 500 * time.Millisecond

// permanent reports whether an error can never succeed on retry: bad
// credentials, corrupt or unsupported audio, unusable measurements, or a
// cancelled context.
func permanent(err error) bool {
	return errors.Is(err, discord.ErrAuth) ||
		errors.Is(err, audio.ErrCorruptInput) ||
		errors.Is(err, audio.ErrUnsupportedFormat) ||
		errors.Is(err, audio.ErrEncode) ||
		errors.Is(err, dsp.ErrInsufficientAudio) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// retryDelay picks the wait before the next attempt. Rate limit responses
// dictate their own wait; anything else backs off exponentially.
func retryDelay(err error, attempt int) time.Duration {
	var rl *discord.RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return backoffBase << attempt
}

// withRetry runs fn up to retries+1 times, sleeping between transient
// failures. Permanent errors and context cancellation return immediately.
func withRetry(ctx context.Context, retries int, fn func() error) (attempts int, err error) {
	for attempt := 0; ; attempt++ {
		err = fn()
		attempts = attempt + 1
		if err == nil || permanent(err) || attempt >= retries {
			return attempts, err
		}
		select {
		case <-time.After(retryDelay(err, attempt)):
		case <-ctx.Done():
			return attempts, ctx.Err()
		}
	}
}
