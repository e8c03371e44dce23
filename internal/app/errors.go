package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no row matched the lookup.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the row exists but belongs to another user.
	// Kept distinct from ErrNotFound so handlers can answer 403 without
	// leaking existence the other way around.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is the base for input validation failures.
	ErrValidation = errors.New("validation")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
