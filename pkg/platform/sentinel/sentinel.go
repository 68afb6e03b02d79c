package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors.
//
//   - ErrNotFound: row or record does not exist
//   - ErrConflict: a unique key is already taken (duplicate asset, duplicate claim)
//   - ErrInvalidState: record is in the wrong state for the write (claimed allocation)
//   - ErrUnavailable: backing service is down or the breaker is open
//
// Validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
