package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/rehab-care-coordination/internal/apperr"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&pgconn.PgError{Code: CodeSerializationFailure}))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: CodeDeadlockDetected})))
	assert.True(t, IsTransient(&pgconn.PgError{Code: CodeLockNotAvailable}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(&pgconn.PgError{Code: CodeUniqueViolation}))
	assert.False(t, IsTransient(errors.New("syntax error")))
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "appointments_slot_id_key"}
	assert.True(t, IsUniqueViolation(err, "appointments_slot_id_key"))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "other"))
	assert.False(t, IsUniqueViolation(errors.New("x"), ""))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify("op", nil))

	err := Classify("book slot", &pgconn.PgError{Code: CodeSerializationFailure})
	assert.True(t, apperr.IsKind(err, apperr.KindTransient))

	plain := errors.New("boom")
	assert.Equal(t, plain, Classify("op", plain))
}

func TestClassifyCommit(t *testing.T) {
	assert.NoError(t, ClassifyCommit("commit", nil))

	err := ClassifyCommit("commit", &pgconn.PgError{Code: CodeSerializationFailure})
	assert.True(t, apperr.IsKind(err, apperr.KindTransient))
	assert.NotErrorIs(t, err, ErrCommitUnknown)

	err = ClassifyCommit("commit", pgx.ErrTxCommitRollback)
	assert.NotErrorIs(t, err, ErrCommitUnknown)
	assert.False(t, apperr.Retryable(err))

	err = ClassifyCommit("commit", fmt.Errorf("write: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrCommitUnknown)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, apperr.Retryable(err))
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
}
