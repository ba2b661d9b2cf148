// Package retry wraps a feed source with exponential backoff.
// The conversion core never retries; fetch retries live here, at the
// feed collaborator, and re-enter through the same Fetch entry point.
package retry

import (
	"context"
	"math/rand"
	"time"

	"tokenswap/internal/feed"
)

const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
	defaultMultiplier      = 2.0
	defaultJitter          = 0.1
)

// Source retries failed fetches with exponential backoff and jitter.
type Source struct {
	S          feed.Source
	MaxRetries int
	// InitialInterval is the delay before the first retry; subsequent
	// delays grow by Multiplier up to MaxInterval.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
}

func (r *Source) Name() string { return r.S.Name() }

func (r *Source) Fetch(ctx context.Context) ([]feed.Record, error) {
	initial := r.InitialInterval
	if initial <= 0 {
		initial = defaultInitialInterval
	}
	max := r.MaxInterval
	if max <= 0 {
		max = defaultMaxInterval
	}
	multiplier := r.Multiplier
	if multiplier <= 1 {
		multiplier = defaultMultiplier
	}
	jitter := r.Jitter
	if jitter < 0 || jitter > 1 {
		jitter = defaultJitter
	}

	var records []feed.Record
	var err error
	interval := initial

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			spread := (rand.Float64()*2 - 1) * jitter * float64(interval)
			sleep := time.Duration(float64(interval) + spread)
			if sleep < 0 {
				sleep = 0
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
			interval = time.Duration(float64(interval) * multiplier)
			if interval > max {
				interval = max
			}
		}

		records, err = r.S.Fetch(ctx)
		if err == nil {
			return records, nil
		}
	}
	return nil, err
}
