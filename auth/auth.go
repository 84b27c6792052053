// Package auth adapts the hosted identity provider. The interactive
// sign-in flow itself belongs to the embedding UI; this package turns its
// outcome (an OIDC-style ID token) into a stable user profile.
package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Profile is what the identity provider hands back on sign-in.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
	PhotoURL    string
}

// Provider is the identity collaborator: interactive sign-in yielding a
// stable identifier plus profile fields, and a sign-out that invalidates
// the session.
type Provider interface {
	SignIn(ctx context.Context) (*Profile, error)
	SignOut(ctx context.Context) error
}

// TokenSource supplies the current ID token, e.g. from the host UI's
// completed sign-in popup.
type TokenSource func(ctx context.Context) (string, error)

type claims struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// TokenProvider validates HS256 ID tokens and extracts the profile from the
// standard claims (sub, name, email, picture).
type TokenProvider struct {
	secret []byte
	source TokenSource
}

func NewTokenProvider(secret string, source TokenSource) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), source: source}
}

func (p *TokenProvider) SignIn(ctx context.Context) (*Profile, error) {
	raw, err := p.source(ctx)
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Profile{
		ID:          c.Subject,
		DisplayName: c.Name,
		Email:       c.Email,
		PhotoURL:    c.Picture,
	}, nil
}

func (p *TokenProvider) SignOut(ctx context.Context) error {
	// Session invalidation happens provider-side; nothing to revoke here.
	return nil
}

// StaticProvider returns a fixed profile. Useful for tests and embedded
// setups where the host already resolved identity.
type StaticProvider struct {
	Profile Profile
}

func (p *StaticProvider) SignIn(ctx context.Context) (*Profile, error) {
	if p.Profile.ID == "" {
		return nil, ErrInvalidToken
	}
	prof := p.Profile
	return &prof, nil
}

func (p *StaticProvider) SignOut(ctx context.Context) error { return nil }
