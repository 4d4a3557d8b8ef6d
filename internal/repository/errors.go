// Package repository defines the Postgres-backed registration store and the
// sentinel errors it reports. Handlers translate these into HTTP statuses:
// ErrNotFound to 404, ErrConflict (and its subclasses) to 409, and
// ErrNoFieldsToUpdate / ErrInvalidValue to 400.
package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no registration matches the identifier.
var ErrNotFound = errors.New("registration not found")

// ErrNoFieldsToUpdate is returned by Update when none of the supplied keys
// is in the mutable column allow-list.
var ErrNoFieldsToUpdate = errors.New("no valid fields to update")

// ErrInvalidValue is returned when a write is rejected by a CHECK
// constraint (unknown payment status, team size out of range, ...).
var ErrInvalidValue = errors.New("invalid field value")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// Conflict subclasses, distinguished by the violated constraint's name.
// Each wraps ErrConflict so callers may match either level.
var (
	ErrDuplicateUTR            = fmt.Errorf("%w: UTR already used", ErrConflict)
	ErrDuplicateEmailEvent     = fmt.Errorf("%w: already registered for this event with this email", ErrConflict)
	ErrDuplicateRegistrationID = fmt.Errorf("%w: registration id already issued", ErrConflict)
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// classify maps Postgres constraint violations onto the sentinels above.
// Errors that are not constraint violations are returned unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "ux_utr":
			return ErrDuplicateUTR
		case "ux_email_event":
			return ErrDuplicateEmailEvent
		case "ux_registration_id":
			return ErrDuplicateRegistrationID
		}
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", ErrInvalidValue, pgErr.ConstraintName)
	}
	return err
}
