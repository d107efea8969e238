package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := duplicateError(ErrDuplicateSerial.Code, "serial %s exists", "123456")

	assert.ErrorIs(t, err, ErrDuplicate)
	assert.ErrorIs(t, err, ErrDuplicateSerial)
	assert.NotErrorIs(t, err, ErrDuplicateInvoice)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("outer: %w", err)
	assert.ErrorIs(t, wrapped, ErrDuplicateSerial)
	assert.Equal(t, KindDuplicate, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestDomainError_ErrorCode(t *testing.T) {
	assert.Equal(t, "DUPLICATE_INVOICE", duplicateError("DUPLICATE_INVOICE", "x").(*DomainError).ErrorCode())
	assert.Equal(t, "NOT_FOUND", notFoundError("x").(*DomainError).ErrorCode())
}

func TestTranslatePgError(t *testing.T) {
	tests := []struct {
		name   string
		pgErr  *pgconn.PgError
		target error
	}{
		{"duplicate serial", &pgconn.PgError{Code: "23505", ConstraintName: "products_identity_key"}, ErrDuplicateSerial},
		{"duplicate invoice", &pgconn.PgError{Code: "23505", ConstraintName: "factures_vente_id_key"}, ErrDuplicateInvoice},
		{"duplicate supplier name", &pgconn.PgError{Code: "23505", ConstraintName: "fournisseurs_nom_key"}, ErrDuplicateName},
		{"other unique", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, ErrDuplicate},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrConstraintViolation},
		{"quantity check", &pgconn.PgError{Code: "23514", ConstraintName: "products_quantity_check"}, ErrNegativeStock},
		{"other check", &pgconn.PgError{Code: "23514", ConstraintName: "achats_quantity_check"}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translatePgError(fmt.Errorf("exec: %w", tt.pgErr), "do thing")
			assert.ErrorIs(t, err, tt.target)
		})
	}

	plain := translatePgError(errors.New("connection reset"), "do thing")
	assert.Equal(t, ErrorKind(""), KindOf(plain))
	assert.Contains(t, plain.Error(), "failed to do thing")
}

func TestBatchResult(t *testing.T) {
	b := newBatchResult()
	assert.True(t, b.AllSucceeded())
	assert.True(t, b.NoneSucceeded())

	b.ok(0, "111111", 7)
	b.fail(1, "12AB", validationError("serial %q must be 6 digits", "12AB"))
	b.fail(2, "222222", errors.New("boom"))

	assert.False(t, b.AllSucceeded())
	assert.False(t, b.NoneSucceeded())
	assert.Equal(t, "VALIDATION_ERROR", b.Failed[0].Code)
	assert.Equal(t, "INTERNAL", b.Failed[1].Code)
	assert.Equal(t, 7, b.Succeeded[0].ID)
}
