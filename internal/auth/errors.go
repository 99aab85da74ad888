package auth

import "errors"

var (
	// ErrUnauthenticated is returned when an operation needs the current
	// identity and nobody is signed in.
	ErrUnauthenticated = errors.New("auth: not signed in")

	// ErrNotImplemented indicates a missing or misconfigured auth manager
	// backend. Detected at composition time; the process must not serve.
	ErrNotImplemented = errors.New("auth: not implemented")

	// ErrDependency wraps failures of external collaborators such as the
	// workflow-id store. Callers receive it unchanged, without partial
	// results.
	ErrDependency = errors.New("auth: dependency failure")

	// ErrInvalidToken indicates the token failed verification. The cause
	// (signature, audience, expiry) is deliberately not distinguished.
	ErrInvalidToken = errors.New("auth: invalid token")
)
