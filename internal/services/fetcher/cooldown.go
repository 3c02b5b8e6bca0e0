package fetcher

import (
	"context"
	"sync"
	"time"
)

// Cooldown pauses new dispatches for a randomized interval after every N completions.
// Workers already in flight are not affected.
type Cooldown struct {
	mu    sync.Mutex
	every int
	lo    time.Duration
	hi    time.Duration
	count int
	until time.Time
	now   func() time.Time
}

// NewCooldown creates a cooldown policy. every <= 0 disables it.
func NewCooldown(every int, lo, hi time.Duration) *Cooldown {
	return &Cooldown{every: every, lo: lo, hi: hi, now: time.Now}
}

// Complete counts a finished target. When the count reaches a multiple of every, a pause
// is scheduled and its length returned.
func (c *Cooldown) Complete() time.Duration {
	if c == nil || c.every <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	if c.count%c.every != 0 {
		return 0
	}
	d := randBetween(c.lo, c.hi)
	c.until = c.now().Add(d)
	return d
}

// Wait blocks until any scheduled pause has elapsed or ctx is done.
func (c *Cooldown) Wait(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	c.mu.Lock()
	remaining := c.until.Sub(c.now())
	c.mu.Unlock()
	return sleep(ctx, remaining)
}
