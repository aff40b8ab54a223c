package classification

import (
	"context"
	"sync"
	"time"
)

var epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type reply struct {
	text string
	err  error
}

// scriptedBackend replays replies in order and repeats the last one.
type scriptedBackend struct {
	clock   *fakeClock
	replies []reply
	calls   []time.Time
	prompts []string
}

func (b *scriptedBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.calls = append(b.calls, b.clock.Now())
	b.prompts = append(b.prompts, prompt)
	i := len(b.calls) - 1
	if i >= len(b.replies) {
		i = len(b.replies) - 1
	}
	return b.replies[i].text, b.replies[i].err
}
