// Package auth es el puerto de identidad: el middleware solo conoce AuthVerifier.
package auth

import (
	"context"
	"strings"
)

// Claims es la identidad del usuario que opera (coordinador, enfermería, farmacia).
// UserID es lo que queda como actor en la auditoría.
type Claims struct {
	UserID   string
	Email    string
	TenantID string
}

// Valid: sin UserID no hay identidad utilizable.
func (c Claims) Valid() bool {
	return strings.TrimSpace(c.UserID) != ""
}

// AuthVerifier verifica un bearer token y devuelve claims o error.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// VerifierFunc adapta una función a AuthVerifier.
type VerifierFunc func(ctx context.Context, token string) (Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}
