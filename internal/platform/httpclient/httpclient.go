// Package httpclient es el cliente JSON saliente (webhook de auditoría y verificación de tokens).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	DefaultTimeout = 5 * time.Second

	maxErrorBody = 1 << 16
)

// Client envuelve *http.Client con una URL base y headers fijos (ej: token del colector).
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Headers map[string]string
}

// New valida baseURL (absoluta) y arma el cliente con timeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	u, err := url.ParseRequestURI(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("httpclient: invalid base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
		Headers: map[string]string{},
	}, nil
}

// HTTPError representa una respuesta no-2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// Temporary: 5xx y 429 valen la pena reintentarse en otro momento.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// PostJSON envía in como JSON a BaseURL+path. Ignora el body de respuesta 2xx.
// Si el ctx trae un request id de chi, se propaga como X-Request-ID.
func (c *Client) PostJSON(ctx context.Context, path string, in any, headers map[string]string) error {
	return c.DoJSON(ctx, http.MethodPost, path, in, nil, headers)
}

// DoJSON envía in (si no es nil) y decodifica la respuesta 2xx en out (si no es nil).
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any, headers map[string]string) error {
	if c == nil || c.HTTP == nil {
		return errors.New("httpclient: nil client")
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: marshal json: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return fmt.Errorf("httpclient: new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if rid := chimw.GetReqID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpclient: decode json: %w", err)
	}
	return nil
}

func (c *Client) resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return c.BaseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}
