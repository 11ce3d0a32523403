package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and remote clients return
// these (optionally wrapped) so reconcilers can translate them into domain errors.
//
//   - ErrNotFound: record does not exist in the store or on the remote server
//   - ErrConflict: a uniqueness constraint would be violated
//   - ErrInvalidState: record is in the wrong state for the requested change
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
