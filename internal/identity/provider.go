// Package identity abstracts the external authentication provider that
// vouches for who a visitor is. The platform never stores credentials; it
// only records the provider's stable subject identifier.
package identity

import (
	"context"
	"net/url"

	dErrors "canvass/pkg/domain-errors"
)

// Identity is the provider's verdict about an authenticated visitor.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// Provider exchanges the auth callback parameters for a verified identity.
// Transport-specific concerns (cookies, redirects) stay in the handler.
type Provider interface {
	// Authenticate validates the callback parameters and returns the
	// visitor's identity. A failed exchange returns CodeUnauthorized.
	Authenticate(ctx context.Context, params url.Values) (Identity, error)

	// LoginURL returns where to send an unauthenticated visitor. The
	// returnTo path is preserved through the round trip.
	LoginURL(returnTo string) string
}

// DevProvider trusts the callback parameters outright. It backs local
// development and tests where no real identity provider is reachable; it
// must never be wired in production.
type DevProvider struct{}

func NewDevProvider() *DevProvider {
	return &DevProvider{}
}

func (p *DevProvider) Authenticate(_ context.Context, params url.Values) (Identity, error) {
	externalID := params.Get("external_id")
	if externalID == "" {
		return Identity{}, dErrors.New(dErrors.CodeUnauthorized, "authentication callback missing subject")
	}
	return Identity{
		ExternalID:  externalID,
		Email:       params.Get("email"),
		DisplayName: params.Get("name"),
	}, nil
}

func (p *DevProvider) LoginURL(returnTo string) string {
	u := url.URL{Path: "/auth/callback"}
	q := u.Query()
	if returnTo != "" {
		q.Set("return_to", returnTo)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
