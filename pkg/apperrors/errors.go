package apperrors

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrIDCollision              = errors.New("evaluation id already exists")
	ErrReferenceDataUnavailable = errors.New("reference data unavailable")
	ErrWriteRejected            = errors.New("write rejected")
	ErrRepairInProgress         = errors.New("integrity repair already in progress")
)
