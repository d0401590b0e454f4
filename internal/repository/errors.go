package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrVersionConflict is returned when a conditional write sees a newer stored version.
	ErrVersionConflict = errors.New("repository: version conflict")
	// ErrDuplicate is returned when a uniqueness constraint rejects a create.
	ErrDuplicate = errors.New("repository: duplicate")
)

const uniqueViolation = "23505"

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
