package xerrors

import "errors"

// Sentinel errors shared across the service layer. Handlers map these onto
// HTTP status codes.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDuplicateEntry  = errors.New("duplicate entry")
	ErrVersionMismatch = errors.New("resource was modified concurrently")
)

// Is reports whether err matches a sentinel, unwrapping as needed.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
