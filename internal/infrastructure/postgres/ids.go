package postgres

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mundotango/mundo-tango-api/internal/domain/repository"
)

// SQLSTATE invalid_text_representation, raised when a UUID column is
// compared with text that is not a UUID.
const pgInvalidTextRepresentation = "22P02"

// validID reports whether every id can match a UUID primary key.
func validID(ids ...string) bool {
	for _, id := range ids {
		if uuid.Validate(id) != nil {
			return false
		}
	}
	return true
}

// notFound maps lookups that cannot match a row to repository.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation {
		return repository.ErrNotFound
	}
	return err
}
