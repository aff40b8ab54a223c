// Package auth connects and disconnects Gmail mailboxes through OAuth.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

type Service struct {
	authorizer out.MailboxAuthorizer
	tokens     out.TokenRepository
	states     out.OAuthStateStore
	log        *logger.Logger
	newState   func() string
}

func NewService(authorizer out.MailboxAuthorizer, tokens out.TokenRepository, states out.OAuthStateStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		authorizer: authorizer,
		tokens:     tokens,
		states:     states,
		log:        log,
		newState:   uuid.NewString,
	}
}

func (s *Service) ConnectURL(ctx context.Context) (string, string, error) {
	state := s.newState()
	if err := s.states.Save(ctx, state); err != nil {
		return "", "", apperr.InternalWithError(err)
	}
	return s.authorizer.AuthCodeURL(state), state, nil
}

// Callback consumes state exactly once, exchanges the code and stores the token.
func (s *Service) Callback(ctx context.Context, code, state string) (*domain.MailboxProfile, error) {
	if code == "" {
		return nil, apperr.MissingField("code")
	}
	ok, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}
	if !ok {
		return nil, apperr.OAuthStateInvalid()
	}

	token, profile, err := s.authorizer.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return nil, apperr.DatabaseError("save token", err)
	}

	s.log.WithContext(logger.ContextWithMailbox(ctx, profile.EmailAddress)).
		Event("auth.mailbox_connected").
		Info("mailbox connected")
	return profile, nil
}

func (s *Service) Status(ctx context.Context, mailbox string) (*domain.MailboxStatus, error) {
	mailbox = strings.TrimSpace(mailbox)
	if mailbox == "" {
		return nil, apperr.MissingField("email")
	}
	tok, err := s.tokens.Get(ctx, mailbox)
	if errors.Is(err, out.ErrNotFound) {
		return &domain.MailboxStatus{Email: mailbox, Authenticated: false}, nil
	}
	if err != nil {
		return nil, apperr.DatabaseError("get token", err)
	}
	status := &domain.MailboxStatus{Email: mailbox, Authenticated: true}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		status.Expiry = &exp
	}
	return status, nil
}

func (s *Service) Disconnect(ctx context.Context, mailbox string) error {
	mailbox = strings.TrimSpace(mailbox)
	if mailbox == "" {
		return apperr.MissingField("email")
	}
	if err := s.tokens.Delete(ctx, mailbox); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("token")
		}
		return apperr.DatabaseError("delete token", err)
	}
	s.log.WithContext(logger.ContextWithMailbox(ctx, mailbox)).
		Event("auth.mailbox_disconnected").
		Info("mailbox disconnected")
	return nil
}

func (s *Service) ConnectedMailboxes(ctx context.Context) ([]string, error) {
	tokens, err := s.tokens.List(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("list tokens", err)
	}
	boxes := make([]string, 0, len(tokens))
	for _, t := range tokens {
		boxes = append(boxes, t.Mailbox)
	}
	return boxes, nil
}

var _ in.MailboxAuthService = (*Service)(nil)
