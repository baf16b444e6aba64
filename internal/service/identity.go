package service

import (
	"context"
	"errors"
)

// ErrNoIdentityProvider is returned by the federated login endpoints when
// no provider is configured.
var ErrNoIdentityProvider = errors.New("no identity provider configured")

// ExternalIdentity is what a provider hands back after a successful code
// exchange.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// IdentityProvider is the boundary for federated login.  The default build
// ships without an implementation; the HTTP layer answers 503 until one is
// wired in.
type IdentityProvider interface {
	// AuthorizationURL returns the provider URL the browser is redirected
	// to, carrying the opaque state value.
	AuthorizationURL(state string) string
	// Exchange trades the callback code for a verified identity.
	Exchange(ctx context.Context, code string) (ExternalIdentity, error)
}
