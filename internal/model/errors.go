package model

import "errors"

var (
	// Authentication related errors
	ErrAuthRequired         = errors.New("authentication required")
	ErrPrincipalNotFound    = errors.New("principal not found")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrForbidden            = errors.New("forbidden")
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	// Entry related errors
	ErrEntryNotFound       = errors.New("entry not found")
	ErrEntryAlreadyExists  = errors.New("entry already exists")
	ErrConstraintViolation = errors.New("directory constraint violation")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
