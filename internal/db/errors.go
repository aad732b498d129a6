package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a write targets a row that no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrUniqueViolation is returned when a username or email is already taken.
	ErrUniqueViolation = errors.New("username or email already exists")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == pgUniqueViolation
	}
	return false
}
