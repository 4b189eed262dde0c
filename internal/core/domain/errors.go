package domain

import "errors"

var (
	// ErrInvalidImage is returned when an upload cannot be decoded as a supported image.
	ErrInvalidImage = errors.New("domain: invalid image")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("domain: not found")

	// ErrInvalidArgument is returned when required input is missing.
	ErrInvalidArgument = errors.New("domain: invalid argument")
)
