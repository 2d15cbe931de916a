package signing

import "errors"

var (
	// ErrUnknownScheme indicates that a scheme name is not supported.
	ErrUnknownScheme = errors.New("unknown signature scheme")
	// ErrInvalidSecret indicates that key material is the wrong size or out of range.
	ErrInvalidSecret = errors.New("invalid secret")
)
