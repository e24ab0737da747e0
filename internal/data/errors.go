package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = model.ErrJobNotFound
	// ErrJobDuplicate is returned when a pending job already exists for the same stage and entity.
	ErrJobDuplicate = model.ErrJobDuplicate
	// ErrEmptyVector is returned when an embedding has no dimensions.
	ErrEmptyVector = errors.New("embedding vector is empty")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
