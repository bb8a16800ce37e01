package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrUnknownProfile is returned when a requested profile does not resolve.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrOutOfBoundsPath is returned when a path resolves outside the sandbox root.
	ErrOutOfBoundsPath = errors.New("path outside sandbox root")
	// ErrIO is returned when a filesystem operation fails for reasons other than absence.
	ErrIO = errors.New("io error")
)
