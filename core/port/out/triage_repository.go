package out

import (
	"context"

	"triage_server/core/domain"
)

type ClassificationRepository interface {
	// Save upserts by email id and fills in ID and CreatedAt.
	Save(ctx context.Context, rec *domain.ClassificationRecord) error
	GetByID(ctx context.Context, id int64) (*domain.ClassificationRecord, error)
	GetByEmailID(ctx context.Context, emailID string) (*domain.ClassificationRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	Stats(ctx context.Context) (*domain.DashboardStats, error)
}

type ReviewQueueRepository interface {
	Add(ctx context.Context, entry *domain.ReviewQueueEntry) error
	ListPending(ctx context.Context) ([]*domain.ReviewQueueEntry, error)
	CountPending(ctx context.Context) (int, error)
	MarkReviewed(ctx context.Context, id int64) error
}

type TeamMemberRepository interface {
	List(ctx context.Context) ([]*domain.StoredTeamMember, error)
	Create(ctx context.Context, m *domain.StoredTeamMember) error
	Update(ctx context.Context, m *domain.StoredTeamMember) error
	Delete(ctx context.Context, id int64) error
}

type TokenRepository interface {
	Save(ctx context.Context, token *domain.MailboxToken) error
	Get(ctx context.Context, mailbox string) (*domain.MailboxToken, error)
	List(ctx context.Context) ([]*domain.MailboxToken, error)
	Delete(ctx context.Context, mailbox string) error
}

// OAuthStateStore holds one-time OAuth state values.
type OAuthStateStore interface {
	Save(ctx context.Context, state string) error
	// Consume returns false if the state is unknown or expired.
	Consume(ctx context.Context, state string) (bool, error)
}
