package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
)

// ReviewQueueAdapter implements out.ReviewQueueRepository.
type ReviewQueueAdapter struct {
	db *sqlx.DB
}

func NewReviewQueueAdapter(db *sqlx.DB) *ReviewQueueAdapter {
	return &ReviewQueueAdapter{db: db}
}

type reviewRow struct {
	ID        int64     `db:"id"`
	EmailID   string    `db:"email_id"`
	Sender    string    `db:"sender"`
	Subject   string    `db:"subject"`
	Content   string    `db:"content"`
	Reason    string    `db:"reason"`
	Reviewed  bool      `db:"reviewed"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *reviewRow) toEntity() *domain.ReviewQueueEntry {
	return &domain.ReviewQueueEntry{
		ID:        r.ID,
		EmailID:   r.EmailID,
		Sender:    r.Sender,
		Subject:   r.Subject,
		Content:   r.Content,
		Reason:    r.Reason,
		Reviewed:  r.Reviewed,
		CreatedAt: r.CreatedAt,
	}
}

// Add queues an email; re-adding an already queued email reopens it.
func (a *ReviewQueueAdapter) Add(ctx context.Context, e *domain.ReviewQueueEntry) error {
	query := `
		INSERT INTO review_queue (email_id, sender, subject, content, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			reviewed = FALSE
		RETURNING id, reviewed, created_at`
	err := a.db.QueryRowxContext(ctx, query, e.EmailID, e.Sender, e.Subject, e.Content, e.Reason).
		Scan(&e.ID, &e.Reviewed, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add review entry: %w", err)
	}
	return nil
}

func (a *ReviewQueueAdapter) ListPending(ctx context.Context) ([]*domain.ReviewQueueEntry, error) {
	var rows []reviewRow
	query := `SELECT id, email_id, sender, subject, content, reason, reviewed, created_at
		FROM review_queue WHERE NOT reviewed ORDER BY created_at DESC, id DESC`
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	entries := make([]*domain.ReviewQueueEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toEntity()
	}
	return entries, nil
}

func (a *ReviewQueueAdapter) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := a.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM review_queue WHERE NOT reviewed`); err != nil {
		return 0, fmt.Errorf("failed to count pending reviews: %w", err)
	}
	return n, nil
}

func (a *ReviewQueueAdapter) MarkReviewed(ctx context.Context, id int64) error {
	res, err := a.db.ExecContext(ctx, `UPDATE review_queue SET reviewed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark review completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
