package auth

// User is the minimal identity every auth manager operates on. Identities
// are immutable values: backends construct them at login or when
// deserializing a token, and never mutate them afterwards.
type User interface {
	// GetID returns the opaque identifier, stable for the session lifetime.
	GetID() string

	// GetName returns the display name. Implementations fall back to the
	// identifier when no display name is set.
	GetName() string
}
