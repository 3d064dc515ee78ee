package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can decide between retrying and failing.
//
//   - ErrNotFound: document does not exist in the store
//   - ErrConflict: a concurrent transaction touched the same document; safe to retry
//   - ErrUnavailable: the store could not be reached before any write was sent; safe to retry
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
