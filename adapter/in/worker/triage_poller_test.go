package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/pkg/apperr"

	"github.com/rs/zerolog"
)

type fakeTriage struct {
	in.TriageService

	mu    sync.Mutex
	seen  []string
	max   int
	fails map[string]error
	block chan struct{}
}

func (f *fakeTriage) ProcessInbox(ctx context.Context, mailbox string, maxResults int, _ in.ProgressFunc) (*domain.ProcessSummary, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.seen = append(f.seen, mailbox)
	f.max = maxResults
	f.mu.Unlock()

	if err := f.fails[mailbox]; err != nil {
		return nil, err
	}
	return &domain.ProcessSummary{Mailbox: mailbox, Fetched: 2, Processed: 2}, nil
}

func (f *fakeTriage) mailboxes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.seen...)
	sort.Strings(out)
	return out
}

type staticLister struct {
	mailboxes []string
	err       error
}

func (l staticLister) ConnectedMailboxes(context.Context) ([]string, error) {
	return l.mailboxes, l.err
}

func TestPollOnce_ProcessesEveryMailbox(t *testing.T) {
	triage := &fakeTriage{fails: map[string]error{
		"b@co.com": apperr.MailboxNotConnected("b@co.com"),
	}}
	lister := staticLister{mailboxes: []string{"a@co.com", "b@co.com", "c@co.com"}}
	p := NewPoller(triage, lister, PollerConfig{MaxResults: 5, Workers: 2}, zerolog.Nop())

	stats, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}
	got := triage.mailboxes()
	want := []string{"a@co.com", "b@co.com", "c@co.com"}
	if len(got) != len(want) {
		t.Fatalf("processed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("processed %v, want %v", got, want)
			break
		}
	}
	if stats.Processed != 4 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want processed 4 failed 1", stats)
	}
	if triage.max != 5 {
		t.Errorf("maxResults = %d, want 5", triage.max)
	}
}

func TestPollOnce_NoMailboxes(t *testing.T) {
	p := NewPoller(&fakeTriage{}, staticLister{}, PollerConfig{}, zerolog.Nop())
	stats, err := p.PollOnce(context.Background())
	if err != nil || stats.Mailboxes != 0 {
		t.Errorf("PollOnce() = %+v, %v", stats, err)
	}
}

func TestPollOnce_ListError(t *testing.T) {
	p := NewPoller(&fakeTriage{}, staticLister{err: errors.New("db down")}, PollerConfig{}, zerolog.Nop())
	if _, err := p.PollOnce(context.Background()); err == nil {
		t.Error("expected list error")
	}
}

func TestPoller_StartDisabledWithoutInterval(t *testing.T) {
	p := NewPoller(&fakeTriage{}, staticLister{}, PollerConfig{}, zerolog.Nop())
	p.Start()
	if p.started {
		t.Error("poller started with zero interval")
	}
	p.Stop()
}

func TestPoller_StopCancelsRunningBatch(t *testing.T) {
	triage := &fakeTriage{block: make(chan struct{})}
	lister := staticLister{mailboxes: []string{"a@co.com"}}
	p := NewPoller(triage, lister, PollerConfig{Interval: time.Hour}, zerolog.Nop())
	p.config.StartDelay = 0

	p.Start()
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a batch was blocked")
	}
}
