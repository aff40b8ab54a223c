package out

import (
	"context"

	"triage_server/core/domain"
)

// Mailbox is one connected account.
type Mailbox interface {
	FetchUnread(ctx context.Context, maxResults int) ([]*domain.InboundEmail, error)
	Send(ctx context.Context, msg *domain.OutboundEmail) error
	MarkRead(ctx context.Context, messageID string) error
	Profile(ctx context.Context) (*domain.MailboxProfile, error)
}

// MailboxGateway opens a Mailbox for a stored account.
type MailboxGateway interface {
	Open(ctx context.Context, mailbox string) (Mailbox, error)
}

// MailboxAuthorizer runs the provider OAuth exchange.
type MailboxAuthorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.MailboxToken, *domain.MailboxProfile, error)
}
