package domain

import "errors"

var (
	// ErrNotFound is returned for lookups and removals of targets that do
	// not exist in the caller's partition.
	ErrNotFound = errors.New("target not found")

	// ErrDuplicateTarget is returned when a principal already tracks the
	// same URL. Distinct principals may track identical URLs.
	ErrDuplicateTarget = errors.New("duplicate target")

	ErrInvalidURL      = errors.New("invalid url")
	ErrInvalidInterval = errors.New("invalid interval")
)
