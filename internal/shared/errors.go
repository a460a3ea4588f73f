package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrActorRequired occurs when an operation needs an authenticated actor.
	ErrActorRequired = errors.New("acting user required")
	// ErrForbidden occurs when the actor is not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")
)
