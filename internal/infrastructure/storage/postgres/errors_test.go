package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"produceledger/internal/core/apperror"
)

func TestMapError_UniqueViolation(t *testing.T) {
	err := MapError("insert vendor", "vendor", &pgconn.PgError{Code: "23505", ConstraintName: "vendors_name_key"})

	assert.True(t, apperror.IsDuplicate(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "vendors_name_key", appErr.Details["field"])
}

func TestMapError_ForeignKey(t *testing.T) {
	err := MapError("delete product", "product", &pgconn.PgError{Code: "23503", ConstraintName: "purchase_lines_product_id_fkey"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, MapError("x", "y", nil))

	nf := apperror.NewNotFound("vendor", "1")
	assert.Same(t, nf, MapError("x", "vendor", nf))

	plain := errors.New("connection reset")
	wrapped := MapError("select vendor", "vendor", plain)
	assert.ErrorIs(t, wrapped, plain)
	assert.Contains(t, wrapped.Error(), "select vendor")
}
