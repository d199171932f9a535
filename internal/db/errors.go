package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
)

// SQLSTATE codes the store treats specially.
const (
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
	CodeUniqueViolation      = "23505"
)

// ErrCommitUnknown means COMMIT failed without a server response, so the
// transaction may or may not have been committed.
var ErrCommitUnknown = errors.New("commit outcome unknown")

// IsTransient reports whether err is a conflict that left nothing committed
// and can be retried unchanged.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable:
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err violates the named constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// Classify turns transient Postgres failures into apperr transient errors and
// leaves everything else untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return apperr.Transient(op, err)
	}
	return err
}

// ClassifyCommit classifies a failed COMMIT. An error reported by the server
// means the transaction rolled back and is classified like any other
// statement. A client side deadline or a dropped connection leaves the
// outcome unknown; that is never transient, since a retry could run against
// work that did commit.
func ClassifyCommit(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || errors.Is(err, pgx.ErrTxCommitRollback) {
		return Classify(op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCommitUnknown, err)
}
