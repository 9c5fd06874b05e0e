package services

import "errors"

// Sentinel errors for lifecycle and reservation outcomes. Services return
// these (wrapped with context) so handlers and tests can match on the value
// with errors.Is instead of on message text.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
)
