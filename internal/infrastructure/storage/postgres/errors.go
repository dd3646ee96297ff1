package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"produceledger/internal/core/apperror"
)

// Postgres SQLSTATE codes the repositories translate.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
)

// MapError translates constraint violations into AppErrors. Other errors are wrapped with op.
func MapError(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			return apperror.NewDuplicate(entity, pgErr.ConstraintName, pgErr.Detail).WithCause(err)
		case sqlStateForeignKeyViolation:
			return apperror.NewValidation(fmt.Sprintf("%s references a missing or still-used record", entity)).
				WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
		case sqlStateCheckViolation:
			return apperror.NewValidation(fmt.Sprintf("%s violates %s", entity, pgErr.ConstraintName)).WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
