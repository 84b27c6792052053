package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, cl jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, cl)
	raw, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func staticSource(token string) TokenSource {
	return func(ctx context.Context) (string, error) { return token, nil }
}

func TestTokenProviderSignIn(t *testing.T) {
	raw := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     "uid-123",
		"name":    "Dat Nguyen",
		"email":   "dat@example.com",
		"picture": "https://cdn.example.com/a.png",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	p := NewTokenProvider(testSecret, staticSource(raw))

	prof, err := p.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "uid-123", prof.ID)
	assert.Equal(t, "Dat Nguyen", prof.DisplayName)
	assert.Equal(t, "dat@example.com", prof.Email)
	assert.Equal(t, "https://cdn.example.com/a.png", prof.PhotoURL)
}

func TestTokenProviderRejectsMissingSubject(t *testing.T) {
	raw := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"name": "no subject",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	p := NewTokenProvider(testSecret, staticSource(raw))

	_, err := p.SignIn(context.Background())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenProviderRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "uid-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	p := NewTokenProvider(testSecret, staticSource(raw))
	_, err = p.SignIn(context.Background())
	assert.Error(t, err)
}

func TestTokenProviderRejectsExpiredToken(t *testing.T) {
	raw := signToken(t, jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "uid-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	p := NewTokenProvider(testSecret, staticSource(raw))

	_, err := p.SignIn(context.Background())
	assert.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	p := &StaticProvider{Profile: Profile{ID: "uid-1", DisplayName: "A"}}
	prof, err := p.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "uid-1", prof.ID)
	require.NoError(t, p.SignOut(context.Background()))

	empty := &StaticProvider{}
	_, err = empty.SignIn(context.Background())
	assert.ErrorIs(t, err, ErrInvalidToken)
}
