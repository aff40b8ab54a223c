package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"triage_server/core/port/in"
	"triage_server/pkg/apperr"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
)

// PollerConfig holds the background poller settings.
type PollerConfig struct {
	Interval     time.Duration // 0 disables the poller
	MaxResults   int           // unread messages fetched per mailbox per round
	Workers      int           // mailboxes processed in parallel
	BatchTimeout time.Duration // upper bound for one mailbox batch
	StartDelay   time.Duration // wait before the first round
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:     0,
		MaxResults:   10,
		Workers:      2,
		BatchTimeout: 10 * time.Minute,
		StartDelay:   5 * time.Second,
	}
}

// MailboxLister reports which mailboxes have a stored credential.
type MailboxLister interface {
	ConnectedMailboxes(ctx context.Context) ([]string, error)
}

// RoundStats counts what one polling round did.
type RoundStats struct {
	Mailboxes int
	Processed int64
	Failed    int64
}

// Poller runs an inbox batch for every connected mailbox on a fixed interval.
// Batches inside one mailbox stay sequential; only mailboxes fan out.
type Poller struct {
	triage    in.TriageService
	mailboxes MailboxLister
	config    PollerConfig
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started bool
	mu      sync.Mutex

	rounds int64
}

// mailboxWorker implements pool.Worker for one mailbox address.
type mailboxWorker struct {
	poller *Poller
	stats  *RoundStats
}

func (w *mailboxWorker) Do(ctx context.Context, mailbox string) error {
	return w.poller.processMailbox(ctx, mailbox, w.stats)
}

func NewPoller(triage in.TriageService, mailboxes MailboxLister, config PollerConfig, log zerolog.Logger) *Poller {
	defaults := DefaultPollerConfig()
	if config.MaxResults <= 0 {
		config.MaxResults = defaults.MaxResults
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = defaults.BatchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		triage:    triage,
		mailboxes: mailboxes,
		config:    config,
		log:       log.With().Str("component", "poller").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the polling loop. It is a no-op when Interval is 0.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.config.Interval <= 0 {
		return
	}
	p.started = true

	p.wg.Add(1)
	go p.run()

	p.log.Info().
		Dur("interval", p.config.Interval).
		Int("workers", p.config.Workers).
		Int("max_results", p.config.MaxResults).
		Msg("poller started")
}

// Stop cancels the running round and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	p.log.Info().Msg("stopping poller...")
	p.cancel()
	p.wg.Wait()
	p.log.Info().Int64("rounds", atomic.LoadInt64(&p.rounds)).Msg("poller stopped")
}

func (p *Poller) run() {
	defer p.wg.Done()

	if p.config.StartDelay > 0 {
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(p.config.StartDelay):
		}
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(p.ctx); err != nil && p.ctx.Err() == nil {
			p.log.Error().Err(err).Msg("polling round failed")
		}
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce processes every connected mailbox once and waits for all of them.
func (p *Poller) PollOnce(ctx context.Context) (*RoundStats, error) {
	mailboxes, err := p.mailboxes.ConnectedMailboxes(ctx)
	if err != nil {
		return nil, err
	}
	stats := &RoundStats{Mailboxes: len(mailboxes)}
	if len(mailboxes) == 0 {
		return stats, nil
	}

	start := time.Now()
	workers := p.config.Workers
	if workers > len(mailboxes) {
		workers = len(mailboxes)
	}

	wg := pool.New[string](workers, &mailboxWorker{poller: p, stats: stats}).WithContinueOnError()
	if err := wg.Go(ctx); err != nil {
		return stats, err
	}
	for _, mb := range mailboxes {
		wg.Submit(mb)
	}
	// per-mailbox failures are logged and counted in processMailbox
	_ = wg.Close(ctx)

	atomic.AddInt64(&p.rounds, 1)
	p.log.Info().
		Int("mailboxes", stats.Mailboxes).
		Int64("processed", atomic.LoadInt64(&stats.Processed)).
		Int64("failed", atomic.LoadInt64(&stats.Failed)).
		Dur("took", time.Since(start)).
		Msg("polling round finished")
	return stats, ctx.Err()
}

func (p *Poller) processMailbox(ctx context.Context, mailbox string, stats *RoundStats) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.BatchTimeout)
	defer cancel()

	summary, err := p.triage.ProcessInbox(ctx, mailbox, p.config.MaxResults, nil)
	if err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		ev := p.log.Error()
		if apperr.HasCode(err, apperr.CodeMailboxNotConnected) || apperr.HasCode(err, apperr.CodeConflict) {
			ev = p.log.Warn()
		}
		ev.Err(err).Str("mailbox", mailbox).Msg("mailbox batch failed")
		return err
	}

	atomic.AddInt64(&stats.Processed, int64(summary.Processed))
	if summary.Fetched > 0 {
		p.log.Info().
			Str("mailbox", mailbox).
			Int("processed", summary.Processed).
			Int("queued_for_review", summary.QueuedReview).
			Msg("mailbox batch finished")
	}
	return nil
}
