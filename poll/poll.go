// Package poll runs a check at a fixed interval until it is satisfied,
// the caller goes away, or the attempts run out.
package poll

import (
	"context"
	"errors"
	"time"
)

var ErrGaveUp = errors.New("poll: max attempts reached")

// DefaultInterval replaces a non-positive interval.
const DefaultInterval = 5 * time.Second

func interval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	return d
}

type Poller struct {
	Interval time.Duration
	// MaxAttempts <= 0 means poll until the context ends.
	MaxAttempts int
}

// Until calls check right away and then once per interval. It returns nil
// as soon as check reports true, the check's error if it fails, ctx.Err()
// when the context is done, or ErrGaveUp after MaxAttempts checks.
func (p Poller) Until(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	ticker := time.NewTicker(interval(p.Interval))
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return ErrGaveUp
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Every calls fn once per interval until ctx is done.
func Every(ctx context.Context, every time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval(every))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
