package domain

import "errors"

var (
	// ErrModelUnavailable means no classifier artifact is loaded. Every
	// scoring call fails with it until an operator reloads the artifacts.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrPersistence means a computed decision could not be stored. The
	// caller may retry; the decision is not returned.
	ErrPersistence = errors.New("decision could not be persisted")

	// ErrInvalidInput marks malformed applicant attributes or arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for lookups of unknown records.
	ErrNotFound = errors.New("record not found")
)
