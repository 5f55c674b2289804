package chat

import (
	"context"
	"time"
)

// DefaultPollInterval is the refresh period used when no push feed is configured.
const DefaultPollInterval = 2 * time.Second

// Trigger decides when the channel should refresh next. Wait blocks until a refresh
// is due or ctx is done.
type Trigger interface {
	Wait(ctx context.Context) error
}

// Interval fires on a fixed period.
type Interval struct {
	Period time.Duration
}

// Every returns an interval trigger; non-positive periods fall back to the default.
func Every(period time.Duration) Interval {
	if period <= 0 {
		period = DefaultPollInterval
	}
	return Interval{Period: period}
}

func (i Interval) Wait(ctx context.Context) error {
	timer := time.NewTimer(i.Period)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
