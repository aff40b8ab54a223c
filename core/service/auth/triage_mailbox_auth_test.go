package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"triage_server/adapter/out/persistence"
	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

type fakeAuthorizer struct {
	lastState string
	err       error
}

func (f *fakeAuthorizer) AuthCodeURL(state string) string {
	f.lastState = state
	return "https://accounts.example/auth?state=" + state
}

func (f *fakeAuthorizer) Exchange(_ context.Context, code string) (*domain.MailboxToken, *domain.MailboxProfile, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &domain.MailboxToken{Mailbox: "team@example.com", AccessToken: "a-" + code, Expiry: time.Now().Add(time.Hour)},
		&domain.MailboxProfile{EmailAddress: "team@example.com"}, nil
}

type memTokens struct {
	tokens map[string]*domain.MailboxToken
}

func (m *memTokens) Save(_ context.Context, t *domain.MailboxToken) error {
	m.tokens[t.Mailbox] = t
	return nil
}

func (m *memTokens) Get(_ context.Context, mailbox string) (*domain.MailboxToken, error) {
	if t, ok := m.tokens[mailbox]; ok {
		return t, nil
	}
	return nil, out.ErrNotFound
}

func (m *memTokens) List(context.Context) ([]*domain.MailboxToken, error) {
	var list []*domain.MailboxToken
	for _, t := range m.tokens {
		list = append(list, t)
	}
	return list, nil
}

func (m *memTokens) Delete(_ context.Context, mailbox string) error {
	if _, ok := m.tokens[mailbox]; !ok {
		return out.ErrNotFound
	}
	delete(m.tokens, mailbox)
	return nil
}

func newTestService() (*Service, *fakeAuthorizer, *memTokens) {
	authz := &fakeAuthorizer{}
	tokens := &memTokens{tokens: map[string]*domain.MailboxToken{}}
	svc := NewService(authz, tokens, persistence.NewMemoryOAuthStateStore(10*time.Minute), logger.Discard())
	return svc, authz, tokens
}

func TestConnectAndCallback(t *testing.T) {
	svc, authz, tokens := newTestService()
	ctx := context.Background()

	url, state, err := svc.ConnectURL(ctx)
	if err != nil {
		t.Fatalf("ConnectURL() error = %v", err)
	}
	if state == "" || authz.lastState != state || url == "" {
		t.Fatalf("url = %q, state = %q", url, state)
	}

	profile, err := svc.Callback(ctx, "code-1", state)
	if err != nil {
		t.Fatalf("Callback() error = %v", err)
	}
	if profile.EmailAddress != "team@example.com" {
		t.Errorf("profile = %+v", profile)
	}
	if tokens.tokens["team@example.com"].AccessToken != "a-code-1" {
		t.Errorf("token not stored: %+v", tokens.tokens)
	}

	// state is single use
	if _, err := svc.Callback(ctx, "code-2", state); !apperr.HasCode(err, apperr.CodeOAuthStateInvalid) {
		t.Errorf("replayed state err = %v", err)
	}
}

func TestCallback_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		state string
		want  string
	}{
		{"missing code", "", "s", apperr.CodeMissingField},
		{"unknown state", "c", "forged", apperr.CodeOAuthStateInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			if _, err := svc.Callback(context.Background(), tt.code, tt.state); !apperr.HasCode(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestCallback_ExchangeFailure(t *testing.T) {
	svc, authz, tokens := newTestService()
	authz.err = apperr.OAuthFailed("gmail", errors.New("bad code"))
	_, state, _ := svc.ConnectURL(context.Background())

	if _, err := svc.Callback(context.Background(), "c", state); !apperr.HasCode(err, apperr.CodeOAuthFailed) {
		t.Errorf("err = %v", err)
	}
	if len(tokens.tokens) != 0 {
		t.Errorf("token stored after failed exchange")
	}
}

func TestStatusAndDisconnect(t *testing.T) {
	svc, _, tokens := newTestService()
	ctx := context.Background()
	tokens.tokens["team@example.com"] = &domain.MailboxToken{Mailbox: "team@example.com", Expiry: time.Now().Add(time.Hour)}

	st, err := svc.Status(ctx, "team@example.com")
	if err != nil || !st.Authenticated || st.Expiry == nil {
		t.Errorf("Status() = %+v, %v", st, err)
	}

	boxes, _ := svc.ConnectedMailboxes(ctx)
	if len(boxes) != 1 || boxes[0] != "team@example.com" {
		t.Errorf("ConnectedMailboxes() = %v", boxes)
	}

	if err := svc.Disconnect(ctx, "team@example.com"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	st, _ = svc.Status(ctx, "team@example.com")
	if st.Authenticated {
		t.Errorf("still authenticated after disconnect")
	}
	if err := svc.Disconnect(ctx, "team@example.com"); !apperr.HasCode(err, apperr.CodeNotFound) {
		t.Errorf("second Disconnect() err = %v", err)
	}
}
