package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"triage_server/core/domain"
	"triage_server/pkg/crypto"
)

// TokenAdapter implements out.TokenRepository. Access and refresh tokens are
// sealed with the cipher when one is configured.
type TokenAdapter struct {
	db     *sqlx.DB
	cipher *crypto.TokenCipher
}

func NewTokenAdapter(db *sqlx.DB, cipher *crypto.TokenCipher) *TokenAdapter {
	return &TokenAdapter{db: db, cipher: cipher}
}

type tokenRow struct {
	Mailbox      string         `db:"mailbox"`
	AccessToken  string         `db:"access_token"`
	RefreshToken string         `db:"refresh_token"`
	TokenType    string         `db:"token_type"`
	Expiry       sql.NullTime   `db:"expiry"`
	Scopes       pq.StringArray `db:"scopes"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (a *TokenAdapter) toEntity(r *tokenRow) (*domain.MailboxToken, error) {
	access, err := a.cipher.Open(r.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}
	refresh, err := a.cipher.Open(r.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open refresh token: %w", err)
	}
	t := &domain.MailboxToken{
		Mailbox:      r.Mailbox,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    r.TokenType,
		Scopes:       []string(r.Scopes),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Expiry.Valid {
		t.Expiry = r.Expiry.Time
	}
	return t, nil
}

// Save upserts by mailbox. An empty refresh token keeps the stored one, since
// Google only returns it on the first consent.
func (a *TokenAdapter) Save(ctx context.Context, t *domain.MailboxToken) error {
	access, err := a.cipher.Seal(t.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := a.cipher.Seal(t.RefreshToken)
	if err != nil {
		return err
	}
	var expiry sql.NullTime
	if !t.Expiry.IsZero() {
		expiry = sql.NullTime{Time: t.Expiry, Valid: true}
	}
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	query := `
		INSERT INTO oauth_tokens (mailbox, access_token, refresh_token, token_type, expiry, scopes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (mailbox) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), oauth_tokens.refresh_token),
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			scopes = EXCLUDED.scopes,
			updated_at = NOW()`
	if _, err := a.db.ExecContext(ctx, query, t.Mailbox, access, refresh, tokenType, expiry, pq.StringArray(t.Scopes)); err != nil {
		return fmt.Errorf("failed to save oauth token: %w", err)
	}
	return nil
}

func (a *TokenAdapter) Get(ctx context.Context, mailbox string) (*domain.MailboxToken, error) {
	var row tokenRow
	err := a.db.GetContext(ctx, &row, `SELECT * FROM oauth_tokens WHERE mailbox = $1`, mailbox)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}
	return a.toEntity(&row)
}

func (a *TokenAdapter) List(ctx context.Context) ([]*domain.MailboxToken, error) {
	var rows []tokenRow
	if err := a.db.SelectContext(ctx, &rows, `SELECT * FROM oauth_tokens ORDER BY mailbox`); err != nil {
		return nil, fmt.Errorf("failed to list oauth tokens: %w", err)
	}
	tokens := make([]*domain.MailboxToken, 0, len(rows))
	for i := range rows {
		t, err := a.toEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func (a *TokenAdapter) Delete(ctx context.Context, mailbox string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE mailbox = $1`, mailbox)
	if err != nil {
		return fmt.Errorf("failed to delete oauth token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
