package repository

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by ApplyTransition when the ticket was
	// changed since it was read.
	ErrVersionConflict = errors.New("ticket version conflict")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("record already exists")
)

const pgUniqueViolation = "23505"

// wrap translates pgx.ErrNoRows to ErrNotFound, unique violations to
// ErrDuplicate and annotates everything else.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return errors.Wrap(err, msg)
}
