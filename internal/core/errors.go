package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind classifies a domain failure. Adapters map kinds to transport status codes.
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION_ERROR"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindDuplicate           ErrorKind = "DUPLICATE"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindNegativeStock       ErrorKind = "NEGATIVE_STOCK"
	KindInsufficientStock   ErrorKind = "INSUFFICIENT_STOCK"
	KindConstraintViolation ErrorKind = "CONSTRAINT_VIOLATION"
)

// DomainError is the structured failure returned by every core operation.
// Code refines Kind (e.g. DUPLICATE_SERIAL under DUPLICATE) and may be empty.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches sentinels by kind, and by code when the target carries one.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// ErrorCode returns the most specific code of the error: Code when set, Kind otherwise.
func (e *DomainError) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

// Sentinels for errors.Is checks.
var (
	ErrValidation          = &DomainError{Kind: KindValidation}
	ErrNotFound            = &DomainError{Kind: KindNotFound}
	ErrDuplicate           = &DomainError{Kind: KindDuplicate}
	ErrDuplicateSerial     = &DomainError{Kind: KindDuplicate, Code: "DUPLICATE_SERIAL"}
	ErrDuplicateInvoice    = &DomainError{Kind: KindDuplicate, Code: "DUPLICATE_INVOICE"}
	ErrDuplicateName       = &DomainError{Kind: KindDuplicate, Code: "DUPLICATE_NAME"}
	ErrInvalidState        = &DomainError{Kind: KindInvalidState}
	ErrNegativeStock       = &DomainError{Kind: KindNegativeStock}
	ErrInsufficientStock   = &DomainError{Kind: KindInsufficientStock}
	ErrConstraintViolation = &DomainError{Kind: KindConstraintViolation}
)

// KindOf returns the kind of err, or "" when err is not a DomainError.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// NewValidationError builds a validation failure for callers outside core.
func NewValidationError(format string, args ...any) error {
	return validationError(format, args...)
}

func validationError(format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...any) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidStateError(format string, args ...any) error {
	return &DomainError{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func duplicateError(code, format string, args ...any) error {
	return &DomainError{Kind: KindDuplicate, Code: code, Message: fmt.Sprintf(format, args...)}
}

// PostgreSQL SQLSTATE codes the core translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translatePgError converts constraint violations into domain errors.
// Other errors are wrapped as "failed to <action>".
func translatePgError(err error, action string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		code := ""
		switch pgErr.ConstraintName {
		case "products_identity_key":
			code = ErrDuplicateSerial.Code
		case "factures_vente_id_key":
			code = ErrDuplicateInvoice.Code
		case "clients_nom_key", "fournisseurs_nom_key":
			code = ErrDuplicateName.Code
		}
		return &DomainError{Kind: KindDuplicate, Code: code, Message: "cannot " + action + ": already exists", Err: err}
	case pgForeignKeyViolation:
		return &DomainError{Kind: KindConstraintViolation, Message: "cannot " + action + ": referenced row missing or still in use", Err: err}
	case pgCheckViolation:
		if pgErr.ConstraintName == "products_quantity_check" {
			return &DomainError{Kind: KindNegativeStock, Message: "cannot " + action + ": stock quantity would become negative", Err: err}
		}
		return &DomainError{Kind: KindValidation, Message: "cannot " + action + ": " + pgErr.Message, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
