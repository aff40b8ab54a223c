package triage

import (
	"context"
	"errors"
	"sync"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

type fakeEngine struct {
	results  map[string]domain.ClassificationResult // by subject
	requests []domain.ClassificationRequest
}

func (f *fakeEngine) Classify(_ context.Context, req domain.ClassificationRequest) domain.ClassificationResult {
	f.requests = append(f.requests, req)
	if r, ok := f.results[req.Subject]; ok {
		return r
	}
	return domain.ClassificationResult{Categories: []string{"General"}, Confidence: 0.95, Recipients: []string{}}
}

type fakeRoster struct {
	roster domain.Roster
	err    error
}

func (f *fakeRoster) Roster(context.Context) (domain.Roster, error) { return f.roster, f.err }

type fakeMailbox struct {
	emails    []*domain.InboundEmail
	fetchErr  error
	sendErr   map[string]error // by recipient
	markErr   error
	sent      []*domain.OutboundEmail
	markedIDs []string
	profile   *domain.MailboxProfile
}

func (m *fakeMailbox) FetchUnread(_ context.Context, max int) ([]*domain.InboundEmail, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if max < len(m.emails) {
		return m.emails[:max], nil
	}
	return m.emails, nil
}

func (m *fakeMailbox) Send(_ context.Context, msg *domain.OutboundEmail) error {
	if err := m.sendErr[msg.To]; err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailbox) MarkRead(_ context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.markedIDs = append(m.markedIDs, id)
	return nil
}

func (m *fakeMailbox) Profile(context.Context) (*domain.MailboxProfile, error) {
	return m.profile, nil
}

type fakeGateway struct {
	boxes map[string]*fakeMailbox
	err   error
}

func (g *fakeGateway) Open(_ context.Context, mailbox string) (out.Mailbox, error) {
	if g.err != nil {
		return nil, g.err
	}
	mb, ok := g.boxes[mailbox]
	if !ok {
		return nil, errors.New("not connected")
	}
	return mb, nil
}

type fakeClassifications struct {
	mu      sync.Mutex
	records []*domain.ClassificationRecord
	saveErr error
	status  map[int64]string
}

func (f *fakeClassifications) Save(_ context.Context, rec *domain.ClassificationRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeClassifications) GetByID(_ context.Context, id int64) (*domain.ClassificationRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, out.ErrNotFound
}

func (f *fakeClassifications) GetByEmailID(_ context.Context, emailID string) (*domain.ClassificationRecord, error) {
	for _, r := range f.records {
		if r.EmailID == emailID {
			return r, nil
		}
	}
	return nil, out.ErrNotFound
}

func (f *fakeClassifications) ListRecent(context.Context, int) ([]*domain.ClassificationRecord, error) {
	return f.records, nil
}

func (f *fakeClassifications) UpdateStatus(_ context.Context, id int64, status string) error {
	if f.status == nil {
		f.status = map[int64]string{}
	}
	f.status[id] = status
	return nil
}

func (f *fakeClassifications) Stats(context.Context) (*domain.DashboardStats, error) {
	return &domain.DashboardStats{}, nil
}

type fakeReviews struct {
	entries []*domain.ReviewQueueEntry
}

func (f *fakeReviews) Add(_ context.Context, e *domain.ReviewQueueEntry) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeReviews) ListPending(context.Context) ([]*domain.ReviewQueueEntry, error) {
	return f.entries, nil
}
func (f *fakeReviews) CountPending(context.Context) (int, error) { return len(f.entries), nil }
func (f *fakeReviews) MarkReviewed(context.Context, int64) error { return nil }

type fakeEvents struct {
	events []*domain.TriagedEvent
}

func (f *fakeEvents) PublishTriaged(_ context.Context, evt *domain.TriagedEvent) error {
	f.events = append(f.events, evt)
	return nil
}

type fakeArchive struct {
	stored []string
}

func (f *fakeArchive) Store(_ context.Context, _ string, e *domain.InboundEmail) error {
	f.stored = append(f.stored, e.ID)
	return nil
}
func (f *fakeArchive) Get(context.Context, string) (*domain.InboundEmail, error) {
	return nil, out.ErrNotFound
}

type fakeStats struct{ invalidated int }

func (f *fakeStats) Invalidate(context.Context) { f.invalidated++ }
