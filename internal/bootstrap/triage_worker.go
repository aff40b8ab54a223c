package bootstrap

import (
	"context"
	"time"

	"triage_server/adapter/in/worker"
	"triage_server/config"
)

// Worker runs the inbox poller until Stop is called.
type Worker struct {
	poller *worker.Poller
	deps   *Dependencies
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorker(cfg *config.Config, deps *Dependencies) *Worker {
	poller := worker.NewPoller(deps.Triage, deps.MailboxAuth, worker.PollerConfig{
		Interval:     cfg.PollInterval,
		MaxResults:   cfg.PollMaxResults,
		Workers:      cfg.WorkerPoolSize,
		BatchTimeout: 10 * time.Minute,
		StartDelay:   5 * time.Second,
	}, deps.ZLog)

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		poller: poller,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start blocks until Stop.
func (w *Worker) Start() {
	if w.deps.Config.PollInterval <= 0 {
		w.deps.ZLog.Warn().Msg("POLL_INTERVAL is 0, poller disabled")
	}
	w.poller.Start()
	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.poller.Stop()
	w.cancel()
}
