package connectors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	// initialBackoffDuration is the starting duration for exponential backoff
	initialBackoffDuration = 100 * time.Millisecond

	// maxBackoffDuration is the maximum duration for backoff
	maxBackoffDuration = 10 * time.Second
)

// NewEventChannel creates a channel that reads events from the source reader.
// The channel closes when the reader reaches end of input or the context is
// canceled. Consecutive retryable read errors delay the next read with
// exponential backoff.
func NewEventChannel(ctx context.Context, sourceReader SourceReader) <-chan ReadResult {
	channel := make(chan ReadResult)
	go func() {
		defer close(channel)

		// Track consecutive failures for backoff calculations
		consecutiveFailures := 0

		for {
			select {
			case <-ctx.Done():
				return
			default:
				backoff(ctx, consecutiveFailures)

				events, err := sourceReader.ReadEvents()
				if err != nil && !errors.Is(err, ErrEndOfInput) && IsRetryable(err) {
					consecutiveFailures++
				} else {
					consecutiveFailures = 0
				}

				select {
				case <-ctx.Done():
					return
				case channel <- ReadResult{
					Events: events,
					Err:    err,
				}:
					if errors.Is(err, ErrEndOfInput) {
						return
					}
				}
			}
		}
	}()

	return channel
}

// backoff sleeps for an increasingly longer duration as failures accumulate, up
// to a maximum duration.
func backoff(ctx context.Context, consecutiveFailures int) {
	if consecutiveFailures == 0 {
		return
	}

	// Calculate exponential backoff with a maximum limit
	factor := math.Pow(2, float64(consecutiveFailures))
	duration := min(time.Duration(float64(initialBackoffDuration)*factor), maxBackoffDuration)

	select {
	case <-ctx.Done():
		return
	case <-time.After(duration):
	}
}
