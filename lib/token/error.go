package token

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned by every codec when a token can't be decoded,
	// its integrity check fails or it was issued for another binding. The
	// cause is wrapped for logs but never shown to users.
	ErrMalformed = errors.New("token: security token invalid or tampered")

	ErrNoSecret      = errors.New("token: secret is missing")
	ErrUnknownFormat = errors.New("token: unknown format")
)

// Malformed wraps cause with ErrMalformed.
func Malformed(cause error) error {
	if cause == nil {
		return ErrMalformed
	}
	return fmt.Errorf("%w: %w", ErrMalformed, cause)
}
