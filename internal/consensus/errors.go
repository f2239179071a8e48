package consensus

import "errors"

// Error taxonomy for the reactor. Callers should compare with errors.Is.
var (
	ErrBlockValidation      = errors.New("consensus: block validation failed")
	ErrInvalidSignature     = errors.New("consensus: invalid signature")
	ErrNotRoundValidator    = errors.New("consensus: not a validator for this round")
	ErrResourceNotAvailable = errors.New("consensus: required resource not available")
	ErrValidatorNotFound    = errors.New("consensus: validator not found")
	ErrVoteInconsistent     = errors.New("consensus: vote inconsistent with known state")
	ErrElapsedTimeFailure   = errors.New("consensus: elapsed time computation failed")
)
