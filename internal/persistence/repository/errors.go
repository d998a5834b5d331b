package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mapError converts pgx errors to domain errors. Context errors pass through.
func mapError(err error, entity, id string, notFound error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return fmt.Errorf("%s %s: %w", entity, id, notFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514", "23502": // check_violation, not_null_violation
			return fmt.Errorf("%s %s: %w: %s", entity, id, domain.ErrInvalidInput, pgErr.Message)
		}
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}
