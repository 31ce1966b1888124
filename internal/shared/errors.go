package shared

import "errors"

// Errors shared across packages. Domain packages define their own sentinels
// and only reach for these when the concern is platform-wide.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCSRFTokenMissing   = errors.New("csrf token missing")
	ErrCSRFTokenMismatch  = errors.New("csrf token mismatch")
)
