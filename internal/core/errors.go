package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error categories surfaced by the engine. Adapters map each one to a stable status code.
var (
	// ErrNotFound is returned for a missing sequence, document, payment, contact or account.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique constraint (e.g. document number) rejects a write.
	ErrConflict = errors.New("conflict")

	// ErrBusinessRule is matched by every *RuleError.
	ErrBusinessRule = errors.New("business rule violation")

	// ErrConcurrency is returned when the store gives up waiting for a lock or aborts
	// a transaction because of a serialization failure or deadlock. Callers may retry.
	ErrConcurrency = errors.New("concurrency failure")
)

// RuleError is a business rule violation carrying a human-readable reason.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string {
	return e.Reason
}

// Is makes errors.Is(err, ErrBusinessRule) true for any RuleError.
func (e *RuleError) Is(target error) bool {
	return target == ErrBusinessRule
}

func ruleViolation(format string, args ...any) error {
	return &RuleError{Reason: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Postgres SQLSTATE codes the engine classifies.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// storeError wraps a store failure with op context, tagging unique violations as
// ErrConflict and lock/serialization failures as ErrConcurrency.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("failed to %s: %s: %w", op, pgErr.ConstraintName, ErrConflict)
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("failed to %s: %s: %w", op, pgErr.Message, ErrConcurrency)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// ErrorKind returns the stable code for err: NOT_FOUND, CONFLICT,
// BUSINESS_RULE_VIOLATION, CONCURRENCY_FAILURE or INTERNAL.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrBusinessRule):
		return "BUSINESS_RULE_VIOLATION"
	case errors.Is(err, ErrConcurrency):
		return "CONCURRENCY_FAILURE"
	default:
		return "INTERNAL"
	}
}

// Reason returns the human-readable reason of a business rule violation, or the error text.
func Reason(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Reason
	}
	return err.Error()
}
