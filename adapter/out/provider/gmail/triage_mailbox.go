package gmail

import (
	"context"
	"time"

	"google.golang.org/api/gmail/v1"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/resilience"
)

const me = "me"

type mailbox struct {
	svc     *gmail.Service
	address string
	breaker *resilience.Breaker
}

func (m *mailbox) do(op string, fn func() error) error {
	return mapError(m.breaker.Execute(fn), m.address, op)
}

// FetchUnread lists unread messages newest first and loads each one in full.
func (m *mailbox) FetchUnread(ctx context.Context, maxResults int) ([]*domain.InboundEmail, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	var list *gmail.ListMessagesResponse
	err := m.do("list messages", func() error {
		var err error
		list, err = m.svc.Users.Messages.List(me).
			Q("is:unread").
			MaxResults(int64(maxResults)).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	emails := make([]*domain.InboundEmail, 0, len(list.Messages))
	for _, ref := range list.Messages {
		var msg *gmail.Message
		err := m.do("get message", func() error {
			var err error
			msg, err = m.svc.Users.Messages.Get(me, ref.Id).Format("full").Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		emails = append(emails, parseMessage(msg))
	}
	return emails, nil
}

func (m *mailbox) Send(ctx context.Context, email *domain.OutboundEmail) error {
	raw, err := composeRaw(m.address, email, time.Now())
	if err != nil {
		return err
	}
	msg := &gmail.Message{Raw: raw, ThreadId: email.ThreadID}
	return m.do("send message", func() error {
		_, err := m.svc.Users.Messages.Send(me, msg).Context(ctx).Do()
		return err
	})
}

func (m *mailbox) MarkRead(ctx context.Context, messageID string) error {
	return m.do("mark read", func() error {
		_, err := m.svc.Users.Messages.Modify(me, messageID, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
		return err
	})
}

func (m *mailbox) Profile(ctx context.Context) (*domain.MailboxProfile, error) {
	var p *gmail.Profile
	err := m.do("get profile", func() error {
		var err error
		p, err = m.svc.Users.GetProfile(me).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &domain.MailboxProfile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: p.MessagesTotal,
		ThreadsTotal:  p.ThreadsTotal,
	}, nil
}

var _ out.Mailbox = (*mailbox)(nil)
