package in

import (
	"context"

	"triage_server/core/domain"
)

// ProgressFunc receives events while an inbox batch runs. It must not block for long.
type ProgressFunc func(domain.ProgressEvent)

type TriageService interface {
	// ProcessInbox classifies every unread message of a connected mailbox, one at a time.
	ProcessInbox(ctx context.Context, mailbox string, maxResults int, emit ProgressFunc) (*domain.ProcessSummary, error)
	// ManualForward sends a stored classification to recipient.
	ManualForward(ctx context.Context, mailbox string, classificationID int64, recipient string) error
	TestConnection(ctx context.Context, mailbox string) (*domain.MailboxProfile, error)
	// Classify runs the engine on ad-hoc input with the current roster.
	Classify(ctx context.Context, subject, content string) (*domain.ClassificationResult, error)
}

type DashboardService interface {
	History(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error)
	PendingReviews(ctx context.Context) ([]*domain.ReviewQueueEntry, error)
	CompleteReview(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*domain.DashboardStats, error)
	EmailDetails(ctx context.Context, emailID string) (*domain.EmailDetails, error)
	// Invalidate drops cached aggregates after new classifications are stored.
	Invalidate(ctx context.Context)
}

type TeamService interface {
	List(ctx context.Context) ([]*domain.StoredTeamMember, error)
	Add(ctx context.Context, m *domain.StoredTeamMember) error
	Update(ctx context.Context, m *domain.StoredTeamMember) error
	Delete(ctx context.Context, id int64) error
}

type MailboxAuthService interface {
	// ConnectURL returns the provider consent URL and the one-time state embedded in it.
	ConnectURL(ctx context.Context) (url, state string, err error)
	Callback(ctx context.Context, code, state string) (*domain.MailboxProfile, error)
	Status(ctx context.Context, mailbox string) (*domain.MailboxStatus, error)
	Disconnect(ctx context.Context, mailbox string) error
	ConnectedMailboxes(ctx context.Context) ([]string, error)
}
