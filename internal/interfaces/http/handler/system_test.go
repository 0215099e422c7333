package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler_Info(t *testing.T) {
	h := NewSystemHandler("academy-payments", "1.2.0", nil)
	c, w := newTestContext()
	h.Info(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "academy-payments", data["name"])
	assert.Equal(t, "1.2.0", data["version"])
	assert.NotEmpty(t, data["go_version"])
}

func TestSystemHandler_Live(t *testing.T) {
	h := NewSystemHandler("academy-payments", "dev", map[string]HealthCheck{
		"database": func(context.Context) error { return errors.New("down") },
	})
	c, w := newTestContext()
	h.Live(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSystemHandler_Ready(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   HealthResponse
	}{
		{
			name:       "all healthy",
			checks:     map[string]HealthCheck{"database": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "healthy", Checks: map[string]string{"database": "ok", "redis": "ok"}},
		},
		{
			name:       "one dependency down",
			checks:     map[string]HealthCheck{"database": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   HealthResponse{Status: "unhealthy", Checks: map[string]string{"database": "ok", "redis": "error"}},
		},
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "healthy", Checks: map[string]string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("academy-payments", "dev", tt.checks)
			c, w := newTestContext()
			h.Ready(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			var got HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Time)
			got.Time = ""
			assert.Equal(t, tt.wantBody, got)
		})
	}
}
