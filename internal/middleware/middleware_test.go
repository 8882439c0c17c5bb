package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic-care/internal/domain/audit"
	"clinic-care/internal/platform/logger"
	"clinic-care/internal/ports/auth"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acepta solo "good"; "empty" devuelve claims sin usuario
var stubVerifier = auth.VerifierFunc(func(ctx context.Context, token string) (auth.Claims, error) {
	switch token {
	case "good":
		return auth.Claims{UserID: "coordinator-1"}, nil
	case "empty":
		return auth.Claims{Email: "x@clinic.test"}, nil
	default:
		return auth.Claims{}, errors.New("bad token")
	}
})

// captura claims y actor que ve el handler
func probe(gotClaims *auth.Claims, gotOK *bool, gotActor *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotClaims, *gotOK = GetClaims(r.Context())
		*gotActor = audit.ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthContext_DevHeaderSetsClaimsAndActor(t *testing.T) {
	var (
		claims auth.Claims
		ok     bool
		actor  string
	)
	h := AuthContext(nil)(probe(&claims, &ok, &actor))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", " nurse-1 ")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.Equal(t, "nurse-1", claims.UserID)
	assert.Equal(t, "nurse-1", actor)
}

func TestAuthContext_NoIdentity(t *testing.T) {
	var (
		claims auth.Claims
		ok     bool
		actor  string
	)
	h := AuthContext(nil)(probe(&claims, &ok, &actor))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, ok)
	assert.Equal(t, "system", actor)
}

func TestAuthContext_Verifier(t *testing.T) {
	cases := []struct {
		name   string
		header map[string]string
		wantOK bool
	}{
		{"valid bearer", map[string]string{"Authorization": "Bearer good"}, true},
		{"invalid bearer", map[string]string{"Authorization": "Bearer nope"}, false},
		{"claims without user", map[string]string{"Authorization": "Bearer empty"}, false},
		{"not bearer", map[string]string{"Authorization": "Basic good"}, false},
		{"debug header ignored", map[string]string{"X-Debug-User-ID": "intruder"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var (
				claims auth.Claims
				ok     bool
				actor  string
			)
			h := AuthContext(stubVerifier)(probe(&claims, &ok, &actor))

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, val := range tc.header {
				req.Header.Set(k, val)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, "coordinator-1", actor)
			}
		})
	}
}

func TestRecover_Returns500AndLogs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: logger.Debug, Format: logger.FormatJSON, Out: &buf})

	h := chimw.RequestID(Recover(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/s-1", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), `"request_id"`)
}

func TestRecover_AbortHandlerRepanics(t *testing.T) {
	h := Recover(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestLog_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: logger.Debug, Format: logger.FormatJSON, Out: &buf})

	status := http.StatusCreated
	h := RequestLog(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sessions/s-1/bookings", nil))
	require.Contains(t, buf.String(), `"level":"info"`)
	require.Contains(t, buf.String(), `"status":201`)

	buf.Reset()
	status = http.StatusServiceUnavailable
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sessions/s-1/bookings", nil))
	assert.True(t, strings.Contains(buf.String(), `"level":"error"`), buf.String())
}
