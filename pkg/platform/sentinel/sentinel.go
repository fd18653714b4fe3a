package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store
// - ErrAlreadyReserved: a live artifact record already holds the slot
// - ErrInvalidToken: reservation token does not match a Pending record
// - ErrInvalidState: record in wrong status for the requested transition
// - ErrConflict: a concurrent writer won a compare-and-set race
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/errors directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyReserved = errors.New("already reserved")
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
)
