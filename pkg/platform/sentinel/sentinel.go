package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//   - ErrNotFound: the row does not exist
//   - ErrConflict: a uniqueness constraint or compare-and-swap guard rejected the write
//   - ErrInvalidState: the row is in the wrong state for the requested change
//   - ErrUnavailable: the backing system could not be reached or timed out
//
// Validation failures (missing fields, malformed input) use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
