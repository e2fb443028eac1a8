// Package fault defines the error classes shared across the registry,
// directory, and routing engine. Handlers match on these with errors.Is
// to pick the user-facing refusal message.
package fault

import "errors"

var (
	// ErrNotFound reports a request, unit, or responder reference that
	// does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput reports malformed user input: a non-numeric
	// identifier, an empty name, an unknown unit, a duplicate chat id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition reports an action incompatible with the
	// request's current status.
	ErrInvalidTransition = errors.New("invalid transition")
)
