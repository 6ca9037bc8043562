// Package identity wraps the external authentication service behind a small
// provider interface so the session engine can be driven by fakes in tests.
package identity

import "context"

// Identity is the authenticated principal for the current session. It is
// created on successful sign-in, destroyed on sign-out, and immutable while
// a session is active.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// Provider is the identity-provider adapter. Change notifications are
// delivered at-most-once per transition, in issuance order; a nil identity
// means "signed out".
type Provider interface {
	// Current returns the currently established identity, or nil. It never
	// blocks, so callers can seed state synchronously at process start.
	Current() *Identity

	// OnChange registers fn for identity transitions and returns an
	// unsubscribe function.
	OnChange(fn func(*Identity)) (unsubscribe func())

	// Token returns a token for the current identity. Results are cached for
	// a short period; forceRefresh bypasses the cache.
	Token(ctx context.Context, forceRefresh bool) (string, error)

	// SignIn establishes an identity from a provider-issued ID token and
	// notifies subscribers.
	SignIn(ctx context.Context, idToken string) (*Identity, error)

	// SignOut clears the current identity and notifies subscribers.
	SignOut(ctx context.Context) error
}
