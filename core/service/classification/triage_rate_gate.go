package classification

import (
	"context"
	"time"

	"triage_server/pkg/logger"
)

// RateGateConfig bounds calls to the generative backend.
type RateGateConfig struct {
	MinInterval time.Duration // between consecutive call starts
	WindowLimit int           // calls per window
	Window      time.Duration
}

func DefaultRateGateConfig() RateGateConfig {
	return RateGateConfig{
		MinInterval: 6 * time.Second,
		WindowLimit: 9,
		Window:      60 * time.Second,
	}
}

// RateGate enforces a minimum spacing between calls and a per-window call cap.
// Acquire is a critical section: callers are admitted one at a time and each
// holds the gate through its waits, so two callers can never both observe
// spare quota.
type RateGate struct {
	// lock is a one-slot semaphore; a waiter can abandon it on ctx.
	lock  chan struct{}
	cfg   RateGateConfig
	clock Clock
	log   *logger.Logger

	lastCall    time.Time // zero until the first call
	count       int
	windowStart time.Time
}

func NewRateGate(cfg RateGateConfig, clock Clock, log *logger.Logger) *RateGate {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = logger.Default()
	}
	if cfg.WindowLimit < 1 {
		cfg.WindowLimit = 1
	}
	return &RateGate{
		lock:        make(chan struct{}, 1),
		cfg:         cfg,
		clock:       clock,
		log:         log,
		windowStart: clock.Now(),
	}
}

// Acquire blocks until a call may start and records it. It only fails when ctx
// ends while waiting; in that case the call is not recorded.
func (g *RateGate) Acquire(ctx context.Context) error {
	select {
	case g.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.lock }()
	// select picks randomly when both cases are ready
	if err := ctx.Err(); err != nil {
		return err
	}

	now := g.clock.Now()
	if now.Sub(g.windowStart) >= g.cfg.Window {
		g.count = 0
		g.windowStart = now
	}

	if g.count >= g.cfg.WindowLimit {
		wait := g.cfg.Window - now.Sub(g.windowStart)
		if wait > 0 {
			g.log.WithContext(ctx).Event("classification.window_wait").
				WithFields(map[string]any{"wait_ms": wait.Milliseconds(), "calls": g.count}).
				Info("window quota reached, waiting %s", wait)
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
		g.count = 0
		g.windowStart = g.clock.Now()
	}

	if !g.lastCall.IsZero() {
		if elapsed := g.clock.Now().Sub(g.lastCall); elapsed < g.cfg.MinInterval {
			wait := g.cfg.MinInterval - elapsed
			g.log.WithContext(ctx).Event("classification.interval_wait").
				WithField("wait_ms", wait.Milliseconds()).
				Debug("spacing backend calls, waiting %s", wait)
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	g.lastCall = g.clock.Now()
	g.count++
	return nil
}

// GateState is a point-in-time copy of the gate counters.
type GateState struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	LastCall    time.Time `json:"last_call"`
}

// State waits for any in-flight Acquire to finish.
func (g *RateGate) State() GateState {
	g.lock <- struct{}{}
	defer func() { <-g.lock }()
	return GateState{Count: g.count, WindowStart: g.windowStart, LastCall: g.lastCall}
}
