package models

import "errors"

var (
	// ErrValidation marks a malformed or incomplete request.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a title or id that is not in the catalog.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamUnavailable marks a metadata API failure. It never leaves the poster package
	// as a request failure; callers see a placeholder instead.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
