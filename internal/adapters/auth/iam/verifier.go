// Package iam verifica bearer tokens contra el servicio de identidad de la clínica.
package iam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clinic-care/internal/platform/httpclient"
	"clinic-care/internal/ports/auth"
)

const verifyPath = "/v1/tokens/verify"

var (
	ErrNotConfigured = errors.New("iam client not configured")
	ErrTokenEmpty    = errors.New("token is empty")
	ErrUnauthorized  = errors.New("iam unauthorized")
	ErrUpstream      = errors.New("iam upstream error")
)

// Verifier implementa auth.AuthVerifier. Si apiKeyHeader viene vacío se usa "X-Api-Key".
type Verifier struct {
	client       *httpclient.Client
	apiKey       string
	apiKeyHeader string
}

func NewVerifier(client *httpclient.Client, apiKey, apiKeyHeader string) *Verifier {
	h := strings.TrimSpace(apiKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	return &Verifier{
		client:       client,
		apiKey:       strings.TrimSpace(apiKey),
		apiKeyHeader: h,
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil || v.apiKey == "" {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	var out struct {
		UserID   string `json:"user_id"`
		Email    string `json:"email"`
		TenantID string `json:"tenant_id"`
	}
	err := v.client.DoJSON(ctx, http.MethodPost, verifyPath, map[string]string{"token": token}, &out, map[string]string{
		v.apiKeyHeader:  v.apiKey,
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		var he *httpclient.HTTPError
		if errors.As(err, &he) && (he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden) {
			return auth.Claims{}, ErrUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	claims := auth.Claims{
		UserID:   strings.TrimSpace(out.UserID),
		Email:    strings.TrimSpace(out.Email),
		TenantID: strings.TrimSpace(out.TenantID),
	}
	if claims.UserID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", ErrUpstream)
	}
	return claims, nil
}
