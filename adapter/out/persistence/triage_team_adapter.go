package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"triage_server/core/domain"
)

// TeamMemberAdapter implements out.TeamMemberRepository.
type TeamMemberAdapter struct {
	db *sqlx.DB
}

func NewTeamMemberAdapter(db *sqlx.DB) *TeamMemberAdapter {
	return &TeamMemberAdapter{db: db}
}

type teamMemberRow struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Department string    `db:"department"`
	CreatedAt  time.Time `db:"created_at"`
}

// List orders by department then name; that order becomes the roster order.
func (a *TeamMemberAdapter) List(ctx context.Context) ([]*domain.StoredTeamMember, error) {
	var rows []teamMemberRow
	if err := a.db.SelectContext(ctx, &rows,
		`SELECT id, name, email, department, created_at FROM team_members ORDER BY department, name`); err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	members := make([]*domain.StoredTeamMember, len(rows))
	for i, r := range rows {
		members[i] = &domain.StoredTeamMember{
			ID:         r.ID,
			Name:       r.Name,
			Email:      r.Email,
			Department: r.Department,
			CreatedAt:  r.CreatedAt,
		}
	}
	return members, nil
}

func (a *TeamMemberAdapter) Create(ctx context.Context, m *domain.StoredTeamMember) error {
	err := a.db.QueryRowxContext(ctx,
		`INSERT INTO team_members (name, email, department) VALUES ($1, $2, $3) RETURNING id, created_at`,
		m.Name, m.Email, m.Department,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create team member: %w", err)
	}
	return nil
}

func (a *TeamMemberAdapter) Update(ctx context.Context, m *domain.StoredTeamMember) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE team_members SET name = $2, email = $3, department = $4 WHERE id = $1`,
		m.ID, m.Name, m.Email, m.Department,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update team member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (a *TeamMemberAdapter) Delete(ctx context.Context, id int64) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM team_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
