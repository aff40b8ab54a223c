// Package gmail connects mailboxes through the Gmail API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
	"triage_server/pkg/resilience"
)

const providerName = "gmail"

var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
	gmail.GmailSendScope,
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint overrides google.Endpoint; tests point it at a local server.
	Endpoint *oauth2.Endpoint
	// APIBaseURL overrides the Gmail API root; empty means production.
	APIBaseURL string
}

// Gateway implements out.MailboxGateway and out.MailboxAuthorizer.
type Gateway struct {
	oauth   *oauth2.Config
	apiBase string
	tokens  out.TokenRepository
	breaker *resilience.Breaker
	log     *logger.Logger
}

func NewGateway(cfg Config, tokens out.TokenRepository, breaker *resilience.Breaker, log *logger.Logger) *Gateway {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	if breaker == nil {
		breaker = NewBreaker(log)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Gateway{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
		apiBase: cfg.APIBaseURL,
		tokens:  tokens,
		breaker: breaker,
		log:     log,
	}
}

// AuthCodeURL asks for offline access and forces consent so Google always returns a refresh token.
func (g *Gateway) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Gateway) Exchange(ctx context.Context, code string) (*domain.MailboxToken, *domain.MailboxProfile, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, nil, apperr.OAuthFailed(providerName, err)
	}

	svc, err := g.service(ctx, g.oauth.TokenSource(ctx, tok))
	if err != nil {
		return nil, nil, err
	}
	mb := &mailbox{svc: svc, breaker: g.breaker}
	profile, err := mb.Profile(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	return &domain.MailboxToken{
		Mailbox:      profile.EmailAddress,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Scopes:       grantedScopes(tok, g.oauth.Scopes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, profile, nil
}

// Open loads the stored token for mailbox and returns a client bound to it.
// Refreshed tokens are written back to the repository.
func (g *Gateway) Open(ctx context.Context, address string) (out.Mailbox, error) {
	stored, err := g.tokens.Get(ctx, address)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.MailboxNotConnected(address)
		}
		return nil, fmt.Errorf("failed to load token for %s: %w", address, err)
	}

	base := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}
	// refreshes outlive the request that opened the mailbox
	bg := context.WithoutCancel(ctx)
	src := &persistingTokenSource{
		base:    g.oauth.TokenSource(bg, base),
		last:    base.AccessToken,
		stored:  stored,
		tokens:  g.tokens,
		log:     g.log,
		saveCtx: bg,
	}

	svc, err := g.service(ctx, src)
	if err != nil {
		return nil, err
	}
	return &mailbox{svc: svc, address: address, breaker: g.breaker}, nil
}

func (g *Gateway) service(ctx context.Context, src oauth2.TokenSource) (*gmail.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(&http.Client{
		Transport: &oauth2.Transport{Source: src},
		Timeout:   30 * time.Second,
	})}
	if g.apiBase != "" {
		opts = append(opts, option.WithEndpoint(g.apiBase))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

func grantedScopes(tok *oauth2.Token, requested []string) []string {
	if raw, ok := tok.Extra("scope").(string); ok && raw != "" {
		return strings.Fields(raw)
	}
	return append([]string(nil), requested...)
}

// persistingTokenSource saves the token whenever the access token changes.
type persistingTokenSource struct {
	mu      sync.Mutex
	base    oauth2.TokenSource
	last    string
	stored  *domain.MailboxToken
	tokens  out.TokenRepository
	log     *logger.Logger
	saveCtx context.Context
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			// revoked or expired refresh token
			return nil, apperr.MailboxNotConnected(s.stored.Mailbox)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken

	updated := *s.stored
	updated.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	updated.TokenType = tok.TokenType
	updated.Expiry = tok.Expiry
	updated.UpdatedAt = time.Now()
	if err := s.tokens.Save(s.saveCtx, &updated); err != nil {
		s.log.Event("gmail.token_persist_failed").
			WithField("mailbox", s.stored.Mailbox).
			WithError(err).
			Warn("refreshed token not saved")
	} else {
		s.log.Event("gmail.token_refreshed").WithField("mailbox", s.stored.Mailbox).Debug("token refreshed")
	}
	return tok, nil
}

// mapError converts Gmail API failures into AppErrors the HTTP layer understands.
func mapError(err error, mailbox, op string) error {
	if err == nil {
		return nil
	}
	if apperr.IsAppError(err) {
		return err
	}
	if resilience.IsOpen(err) {
		return apperr.ExternalError(providerName, err).WithDetail("operation", op)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return apperr.MailboxNotConnected(mailbox)
		case http.StatusNotFound:
			return apperr.NotFound("gmail message")
		case http.StatusTooManyRequests:
			return apperr.RateLimited(providerName, err)
		case http.StatusForbidden:
			if strings.Contains(strings.ToLower(apiErr.Message), "rate limit") {
				return apperr.RateLimited(providerName, err)
			}
			return apperr.Unauthorized("gmail access denied")
		}
	}
	return apperr.ExternalError(providerName, fmt.Errorf("failed to %s: %w", op, err))
}

// NewBreaker trips on server errors and quota only. Client errors belong to the caller.
func NewBreaker(log *logger.Logger) *resilience.Breaker {
	cfg := resilience.DefaultConfig("gmail-api")
	cfg.Benign = func(err error) bool { return !tripsBreaker(err) }
	return resilience.New(cfg, log)
}

func tripsBreaker(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400, 401, 403, 404:
			return false
		}
	}
	return !apperr.IsAppError(err)
}

var (
	_ out.MailboxGateway    = (*Gateway)(nil)
	_ out.MailboxAuthorizer = (*Gateway)(nil)
)
