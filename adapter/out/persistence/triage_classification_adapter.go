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
)

// ClassificationAdapter implements out.ClassificationRepository.
type ClassificationAdapter struct {
	db *sqlx.DB
}

func NewClassificationAdapter(db *sqlx.DB) *ClassificationAdapter {
	return &ClassificationAdapter{db: db}
}

type classificationRow struct {
	ID         int64          `db:"id"`
	EmailID    string         `db:"email_id"`
	Mailbox    string         `db:"mailbox"`
	Sender     string         `db:"sender"`
	Subject    string         `db:"subject"`
	Content    string         `db:"content"`
	Categories pq.StringArray `db:"categories"`
	Confidence float64        `db:"confidence"`
	Recipients pq.StringArray `db:"recipients"`
	Reasoning  sql.NullString `db:"reasoning"`
	Fallback   bool           `db:"fallback"`
	Status     string         `db:"status"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r *classificationRow) toEntity() *domain.ClassificationRecord {
	rec := &domain.ClassificationRecord{
		ID:         r.ID,
		EmailID:    r.EmailID,
		Mailbox:    r.Mailbox,
		Sender:     r.Sender,
		Subject:    r.Subject,
		Content:    r.Content,
		Categories: []string(r.Categories),
		Confidence: r.Confidence,
		Recipients: []string(r.Recipients),
		Fallback:   r.Fallback,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
	if r.Reasoning.Valid {
		s := r.Reasoning.String
		rec.Reasoning = &s
	}
	return rec
}

const classificationColumns = `id, email_id, mailbox, sender, subject, content, categories, confidence,
	recipients, reasoning, fallback, status, created_at`

// Save upserts on email_id so reprocessing a message replaces its decision.
func (a *ClassificationAdapter) Save(ctx context.Context, rec *domain.ClassificationRecord) error {
	if rec.Status == "" {
		rec.Status = domain.StatusForwarded
	}
	var reasoning sql.NullString
	if rec.Reasoning != nil {
		reasoning = sql.NullString{String: *rec.Reasoning, Valid: true}
	}

	query := `
		INSERT INTO classifications
			(email_id, mailbox, sender, subject, content, categories, confidence, recipients, reasoning, fallback, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (email_id) DO UPDATE SET
			mailbox = EXCLUDED.mailbox,
			sender = EXCLUDED.sender,
			subject = EXCLUDED.subject,
			content = EXCLUDED.content,
			categories = EXCLUDED.categories,
			confidence = EXCLUDED.confidence,
			recipients = EXCLUDED.recipients,
			reasoning = EXCLUDED.reasoning,
			fallback = EXCLUDED.fallback,
			status = EXCLUDED.status
		RETURNING id, created_at`

	row := a.db.QueryRowxContext(ctx, query,
		rec.EmailID, rec.Mailbox, rec.Sender, rec.Subject, rec.Content,
		pq.StringArray(rec.Categories), rec.Confidence, pq.StringArray(rec.Recipients),
		reasoning, rec.Fallback, rec.Status,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	return nil
}

func (a *ClassificationAdapter) GetByID(ctx context.Context, id int64) (*domain.ClassificationRecord, error) {
	return a.getOne(ctx, `SELECT `+classificationColumns+` FROM classifications WHERE id = $1`, id)
}

func (a *ClassificationAdapter) GetByEmailID(ctx context.Context, emailID string) (*domain.ClassificationRecord, error) {
	return a.getOne(ctx, `SELECT `+classificationColumns+` FROM classifications WHERE email_id = $1`, emailID)
}

func (a *ClassificationAdapter) getOne(ctx context.Context, query string, arg any) (*domain.ClassificationRecord, error) {
	var row classificationRow
	if err := a.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}
	return row.toEntity(), nil
}

func (a *ClassificationAdapter) ListRecent(ctx context.Context, limit int) ([]*domain.ClassificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []classificationRow
	query := `SELECT ` + classificationColumns + ` FROM classifications ORDER BY created_at DESC, id DESC LIMIT $1`
	if err := a.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}

	recs := make([]*domain.ClassificationRecord, len(rows))
	for i := range rows {
		recs[i] = rows[i].toEntity()
	}
	return recs, nil
}

func (a *ClassificationAdapter) UpdateStatus(ctx context.Context, id int64, status string) error {
	res, err := a.db.ExecContext(ctx, `UPDATE classifications SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update classification status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type statsRow struct {
	Total         int             `db:"total"`
	Today         int             `db:"today"`
	AvgConfidence sql.NullFloat64 `db:"avg_confidence"`
	Fallbacks     int             `db:"fallbacks"`
}

type departmentCountRow struct {
	Department string `db:"department"`
	Count      int    `db:"count"`
}

// Stats aggregates in SQL. PendingReviews is left for the review queue to fill.
func (a *ClassificationAdapter) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	var s statsRow
	err := a.db.GetContext(ctx, &s, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE created_at >= date_trunc('day', NOW())) AS today,
			AVG(confidence) AS avg_confidence,
			COUNT(*) FILTER (WHERE fallback) AS fallbacks
		FROM classifications`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate classifications: %w", err)
	}

	var depts []departmentCountRow
	err = a.db.SelectContext(ctx, &depts, `
		SELECT c AS department, COUNT(*) AS count
		FROM classifications, unnest(categories) AS c
		GROUP BY c
		ORDER BY count DESC, c`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate departments: %w", err)
	}

	stats := &domain.DashboardStats{
		TotalProcessed:         s.Total,
		TodayProcessed:         s.Today,
		FallbackCount:          s.Fallbacks,
		DepartmentDistribution: make(map[string]int, len(depts)),
	}
	if s.AvgConfidence.Valid {
		stats.AverageConfidence = s.AvgConfidence.Float64
	}
	for _, d := range depts {
		stats.DepartmentDistribution[d.Department] = d.Count
	}
	return stats, nil
}
