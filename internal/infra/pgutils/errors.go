package pgutils

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the ledger reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeCheckViolation       = "23514"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

func hasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	for _, c := range codes {
		if pgErr.Code == c {
			return true
		}
	}

	return false
}

// IsSerializationFailure reports whether err means the transaction lost an
// optimistic race and may succeed if retried from the start.
func IsSerializationFailure(err error) bool {
	return hasCode(err, CodeSerializationFailure, CodeDeadlockDetected)
}

func IsUniqueViolation(err error) bool {
	return hasCode(err, CodeUniqueViolation)
}

func IsCheckViolation(err error) bool {
	return hasCode(err, CodeCheckViolation)
}
