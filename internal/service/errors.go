package service

import "errors"

var (
	// ErrValidation wraps input problems the caller can fix.
	ErrValidation = errors.New("validation failed")
	// ErrAccessDenied is returned when an actor may not see or edit a request.
	ErrAccessDenied = errors.New("access denied")
)
