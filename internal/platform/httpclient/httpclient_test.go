package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/audit", time.Second)
	require.Error(t, err)
	_, err = New("", time.Second)
	require.Error(t, err)
}

func TestPostJSON_SendsBodyAndHeaders(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]any
		gotHdr  http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHdr = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", time.Second)
	require.NoError(t, err)
	c.Headers["Authorization"] = "Bearer collector"

	ctx := context.WithValue(context.Background(), chimw.RequestIDKey, "req-42")
	err = c.PostJSON(ctx, "entries", map[string]any{"id": "e-1"}, map[string]string{"X-Audit-Type": "booking.created"})
	require.NoError(t, err)

	require.Equal(t, "/entries", gotPath)
	require.Equal(t, "e-1", gotBody["id"])
	require.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	require.Equal(t, "Bearer collector", gotHdr.Get("Authorization"))
	require.Equal(t, "booking.created", gotHdr.Get("X-Audit-Type"))
	require.Equal(t, "req-42", gotHdr.Get("X-Request-ID"))
}

func TestPostJSON_Non2xxIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collector down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)

	err = c.PostJSON(context.Background(), "", map[string]string{"a": "b"}, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	require.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	require.Equal(t, "collector down", httpErr.Body)
	require.True(t, httpErr.Temporary())
}
