package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDenied indicates a failed permission check. It is a returned value
	// on service boundaries, never a panic.
	ErrDenied = errors.New("not authorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidTransition indicates a status change outside the allowed table.
	ErrInvalidTransition = errors.New("invalid status transition")
)
