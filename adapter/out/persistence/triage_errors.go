// Package persistence implements the repository ports on PostgreSQL (sqlx over
// the pgx stdlib driver) and the OAuth state store on Redis.
package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"triage_server/core/port/out"
)

var (
	ErrNotFound  = out.ErrNotFound
	ErrDuplicate = out.ErrDuplicate
)

const uniqueViolation = "23505"

// isUniqueViolation understands both pgx and lib/pq error types.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
