package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/academy/backend/internal/interfaces/http/handler"
	"github.com/academy/backend/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope mirrors the API response wrapper.
type Envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    *EnvelopeError  `json:"error"`
	Meta     *EnvelopeMeta   `json:"meta"`
	Warnings []Issue         `json:"warnings"`
}

type EnvelopeError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details []Issue `json:"details"`
}

type EnvelopeMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is one recorded round trip.
type APIResponse struct {
	Status int
	Body   Envelope
}

// Into decodes the data payload.
func (r APIResponse) Into(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body.Data, v), "Failed to decode data")
}

// APIClient drives an http.Handler as one tenant and actor.
type APIClient struct {
	Handler  http.Handler
	TenantID uuid.UUID
	Actor    string
}

// NewAPIClient returns a client for a fresh tenant.
func NewAPIClient(h http.Handler) *APIClient {
	return &APIClient{Handler: h, TenantID: uuid.New(), Actor: "cashier-1"}
}

// ForTenant returns a copy of the client acting for another tenant.
func (c *APIClient) ForTenant(id uuid.UUID) *APIClient {
	cp := *c
	cp.TenantID = id
	return &cp
}

// Do sends a JSON request and decodes the envelope.
func (c *APIClient) Do(t *testing.T, method, path string, body any) APIResponse {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body), "Failed to encode body")
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.TenantID != uuid.Nil {
		req.Header.Set(middleware.TenantHeaderKey, c.TenantID.String())
	}
	if c.Actor != "" {
		req.Header.Set(handler.UserHeaderKey, c.Actor)
	}

	w := httptest.NewRecorder()
	c.Handler.ServeHTTP(w, req)

	resp := APIResponse{Status: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp.Body), "Failed to decode %s", w.Body.String())
	}
	return resp
}

// AssertSuccess checks status and the success flag.
func AssertSuccess(t *testing.T, resp APIResponse, status int) {
	t.Helper()
	assert.Equal(t, status, resp.Status)
	assert.True(t, resp.Body.Success, "expected success, got %+v", resp.Body.Error)
	assert.Nil(t, resp.Body.Error)
}

// AssertError checks status and error code.
func AssertError(t *testing.T, resp APIResponse, status int, code string) {
	t.Helper()
	assert.Equal(t, status, resp.Status)
	assert.False(t, resp.Body.Success)
	require.NotNil(t, resp.Body.Error, "expected an error object")
	assert.Equal(t, code, resp.Body.Error.Code)
}
