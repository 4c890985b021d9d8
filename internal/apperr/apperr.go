// Package apperr defines the error taxonomy shared by the scheduling core.
// Callers classify with errors.Is; the HTTP layer maps sentinels to statuses.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed input. Not retriable.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound marks an absent business, service, appointment or token.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a slot taken at commit time. The caller must re-pick.
	ErrConflict = errors.New("conflict")
	// ErrExpired marks a token past its TTL. Permanently dead.
	ErrExpired = errors.New("expired")
	// ErrAlreadyProcessed marks a token or edit that was already resolved.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrDependency marks a notification delivery failure. Logged and counted,
	// never propagated to the triggering operation's caller.
	ErrDependency = errors.New("dependency failure")
)

func Validationf(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Conflictf(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func Dependencyf(format string, args ...any) error {
	return wrap(ErrDependency, format, args...)
}

func wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
