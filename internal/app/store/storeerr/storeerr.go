// Package storeerr holds the errors every account store backend returns, so
// callers can branch on them without knowing which database is underneath.
package storeerr

import "errors"

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when an account with the email exists.
	ErrDuplicateEmail = errors.New("an account with this email already exists")
	// ErrDuplicatePin is returned when the PIN index is already held by
	// another account.
	ErrDuplicatePin = errors.New("pin index already in use")
	// ErrStatusChanged is returned by conditional updates when the row was
	// not in the expected status at write time.
	ErrStatusChanged = errors.New("account status changed concurrently")
)
