package match

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// RetryOptions bound the retries of a persistence hook.
type RetryOptions struct {
	Attempts uint64        // default: 5
	Base     time.Duration // first backoff, doubled per attempt, default: 1s
}

// RetryRecorder retries transient persistence failures with exponential
// backoff. Errors wrapping ErrRecordRejected are not retried.
type RetryRecorder struct {
	next   Recorder
	opts   RetryOptions
	logger zerolog.Logger
}

func NewRetryRecorder(next Recorder, opts RetryOptions, logger zerolog.Logger) *RetryRecorder {
	if opts.Attempts == 0 {
		opts.Attempts = 5
	}
	if opts.Base <= 0 {
		opts.Base = time.Second
	}
	return &RetryRecorder{
		next:   next,
		opts:   opts,
		logger: logger.With().Str("component", "match_recorder").Logger(),
	}
}

// RecordMatch forwards rec to the wrapped recorder until it succeeds, fails
// permanently, or runs out of attempts.
func (r *RetryRecorder) RecordMatch(ctx context.Context, rec Record) error {
	attempt := 0
	backoff := retry.WithMaxRetries(r.opts.Attempts-1, retry.NewExponential(r.opts.Base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.next.RecordMatch(ctx, rec)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRecordRejected) {
			return err
		}
		r.logger.Warn().Err(err).
			Str("match_id", rec.MatchID.String()).
			Int("attempt", attempt).
			Msg("recording match failed, retrying")
		return retry.RetryableError(err)
	})
}
