package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure:
			return ErrorClassSerialization
		case codeDeadlockDetected:
			return ErrorClassDeadlock
		case codeLockNotAvailable:
			return ErrorClassTransient
		case codeUniqueViolation, codeForeignKeyViolation, codeNotNullViolation, codeCheckViolation:
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally restricted to the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	return hasCode(err, codeUniqueViolation, constraint)
}

// IsForeignKeyViolation reports whether err is a foreign key violation,
// optionally restricted to the named constraint.
func IsForeignKeyViolation(err error, constraint string) bool {
	return hasCode(err, codeForeignKeyViolation, constraint)
}

// IsCheckViolation reports whether err is a check constraint violation,
// optionally restricted to the named constraint.
func IsCheckViolation(err error, constraint string) bool {
	return hasCode(err, codeCheckViolation, constraint)
}

func hasCode(err error, code, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailTaken           = errors.New("a user with this email already exists in the system")
	ErrBookNotFound         = errors.New("book not found")
	ErrBookInUse            = errors.New("book is referenced by existing orders")
	ErrISBNTaken            = errors.New("a book with this isbn already exists")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidInput         = errors.New("invalid input")
	ErrAddressNotFound      = errors.New("shipping address not found")
	ErrAddressExists        = errors.New("user already has a shipping address")
	ErrWishlistItemNotFound = errors.New("book not found in wishlist")
	ErrReferenceMissing     = errors.New("referenced row does not exist")
)
