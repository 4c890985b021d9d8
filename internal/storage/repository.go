// Package storage is the pgx-backed persistence layer. One Repository
// implements the narrow store interfaces the availability, booking, edits,
// attendance and scheduler packages declare.
package storage

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tareq-mahmood/schedulr/internal/apperr"
	"github.com/tareq-mahmood/schedulr/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Postgres error codes the engine reacts to.
const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// staffLessLockKey is the advisory-lock key that serializes interval writes
// for appointments without a staff member. The exclusion constraint skips
// NULL staff, so every write path that can produce a staff-less overlap must
// take pg_advisory_xact_lock(hashtext(key)) with this exact key before any
// row locks.
func staffLessLockKey(businessID string, start time.Time) string {
	return businessID + ":" + start.Format("2006-01-02")
}

// notFound converts pgx's no-rows sentinel into the engine's taxonomy.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFoundf(format, args...)
	}
	return err
}
