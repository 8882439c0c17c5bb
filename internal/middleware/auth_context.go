package middleware

import (
	"context"
	"net/http"
	"strings"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/ports/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// AuthContext resuelve la identidad del request y la deja en el contexto (claims + actor
// de auditoría). No corta nunca: sin identidad el request sigue y los handlers de
// escritura responden 401.
//   - verifier == nil: modo dev, se confía en X-Debug-User-ID.
//   - verifier != nil: Authorization: Bearer <token>, verificado contra IAM.
func AuthContext(verifier auth.AuthVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := identify(r, verifier); ok {
				r = r.WithContext(withClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identify(r *http.Request, verifier auth.AuthVerifier) (auth.Claims, bool) {
	if verifier == nil {
		claims := auth.Claims{UserID: strings.TrimSpace(r.Header.Get("X-Debug-User-ID"))}
		return claims, claims.Valid()
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return auth.Claims{}, false
	}
	claims, err := verifier.Verify(r.Context(), token)
	if err != nil {
		return auth.Claims{}, false
	}
	return claims, claims.Valid()
}

func withClaims(ctx context.Context, claims auth.Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return audit.WithActor(ctx, claims.UserID)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	v := ctx.Value(claimsKey)
	if v == nil {
		return auth.Claims{}, false
	}
	c, ok := v.(auth.Claims)
	return c, ok
}

func bearerToken(authHeader string) string {
	if strings.TrimSpace(authHeader) == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
