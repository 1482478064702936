package service

import (
	"context"
	"time"

	"github.com/lewisgerrard/divafitness-backend/internal/retry"
)

// Throttle inserts a fixed pause between consecutive submissions of a batch so
// the email provider's rate limit is respected.
type Throttle struct {
	Pause time.Duration
	Sleep retry.SleepFunc
}

func NewThrottle(pause time.Duration) *Throttle {
	return &Throttle{Pause: pause, Sleep: retry.SleepContext}
}

// Wait blocks for Pause or until ctx is done. A nil Throttle never waits.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.Pause <= 0 {
		return ctx.Err()
	}
	sleep := t.Sleep
	if sleep == nil {
		sleep = retry.SleepContext
	}
	return sleep(ctx, t.Pause)
}
