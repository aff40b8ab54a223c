package http

import (
	"context"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/pkg/apperr"
)

type fakeTriage struct {
	events  []domain.ProgressEvent
	summary *domain.ProcessSummary
	err     error

	gotMailbox string
	gotMax     int

	forwardMailbox string
	forwardID      int64
	forwardTo      string

	profile *domain.MailboxProfile
	result  *domain.ClassificationResult
}

func (f *fakeTriage) ProcessInbox(_ context.Context, mailbox string, maxResults int, emit in.ProgressFunc) (*domain.ProcessSummary, error) {
	f.gotMailbox = mailbox
	f.gotMax = maxResults
	for _, ev := range f.events {
		if emit != nil {
			emit(ev)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.summary == nil {
		return &domain.ProcessSummary{Mailbox: mailbox}, nil
	}
	return f.summary, nil
}

func (f *fakeTriage) ManualForward(_ context.Context, mailbox string, id int64, recipient string) error {
	f.forwardMailbox, f.forwardID, f.forwardTo = mailbox, id, recipient
	return f.err
}

func (f *fakeTriage) TestConnection(_ context.Context, mailbox string) (*domain.MailboxProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func (f *fakeTriage) Classify(_ context.Context, subject, content string) (*domain.ClassificationResult, error) {
	if subject == "" && content == "" {
		return nil, apperr.BadRequest("subject or content is required")
	}
	return f.result, nil
}

type fakeDashboard struct {
	in.DashboardService
	history   []*domain.ClassificationRecord
	gotLimit  int
	completed int64
	details   map[string]*domain.EmailDetails
	stats     *domain.DashboardStats
}

func (f *fakeDashboard) History(_ context.Context, limit int) ([]*domain.ClassificationRecord, error) {
	f.gotLimit = limit
	return f.history, nil
}

func (f *fakeDashboard) PendingReviews(context.Context) ([]*domain.ReviewQueueEntry, error) {
	return nil, nil
}

func (f *fakeDashboard) CompleteReview(_ context.Context, id int64) error {
	if id == 404 {
		return apperr.NotFound("review")
	}
	f.completed = id
	return nil
}

func (f *fakeDashboard) Stats(context.Context) (*domain.DashboardStats, error) {
	return f.stats, nil
}

func (f *fakeDashboard) EmailDetails(_ context.Context, emailID string) (*domain.EmailDetails, error) {
	d, ok := f.details[emailID]
	if !ok {
		return nil, apperr.NotFound("email")
	}
	return d, nil
}

type fakeTeam struct {
	members []*domain.StoredTeamMember
	nextID  int64
	deleted int64
}

func (f *fakeTeam) List(context.Context) ([]*domain.StoredTeamMember, error) {
	return f.members, nil
}

func (f *fakeTeam) Add(_ context.Context, m *domain.StoredTeamMember) error {
	if m.Name == "" {
		return apperr.MissingField("name")
	}
	f.nextID++
	m.ID = f.nextID
	f.members = append(f.members, m)
	return nil
}

func (f *fakeTeam) Update(_ context.Context, m *domain.StoredTeamMember) error {
	for i, existing := range f.members {
		if existing.ID == m.ID {
			f.members[i] = m
			return nil
		}
	}
	return apperr.NotFound("team member")
}

func (f *fakeTeam) Delete(_ context.Context, id int64) error {
	f.deleted = id
	return nil
}

type fakeAuth struct {
	connected   map[string]bool
	callbackErr error
}

func (f *fakeAuth) ConnectURL(context.Context) (string, string, error) {
	return "https://accounts.example.com/auth?state=s1", "s1", nil
}

func (f *fakeAuth) Callback(_ context.Context, code, state string) (*domain.MailboxProfile, error) {
	if f.callbackErr != nil {
		return nil, f.callbackErr
	}
	return &domain.MailboxProfile{EmailAddress: "ops@example.com"}, nil
}

func (f *fakeAuth) Status(_ context.Context, mailbox string) (*domain.MailboxStatus, error) {
	return &domain.MailboxStatus{Email: mailbox, Authenticated: f.connected[mailbox]}, nil
}

func (f *fakeAuth) Disconnect(_ context.Context, mailbox string) error {
	if !f.connected[mailbox] {
		return apperr.NotFound("token")
	}
	delete(f.connected, mailbox)
	return nil
}

func (f *fakeAuth) ConnectedMailboxes(context.Context) ([]string, error) {
	var out []string
	for mb := range f.connected {
		out = append(out, mb)
	}
	return out, nil
}
