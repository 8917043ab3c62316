package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/console"
	"github.com/ecmcloud/ecm/internal/ledger"
	"github.com/ecmcloud/ecm/internal/tenant"
)

func errorOf(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error.Code, env.Error.Message
}

// --- writeServiceError ---

func TestWriteServiceError_Mappings(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong password", auth.ErrWrongPassword, http.StatusBadRequest, "WRONG_PASSWORD"},
		{"default category", ledger.ErrDefaultCategory, http.StatusForbidden, "FORBIDDEN"},
		{"wrapped not found", fmt.Errorf("loading: %w", ledger.ErrProjectNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"registration disabled", console.ErrRegistrationDisabled, http.StatusNotFound, "NOT_FOUND"},
		{"duplicate project code", ledger.ErrDuplicateProjectCode, http.StatusConflict, "CONFLICT"},
		{"user quota", auth.ErrUserQuotaExceeded, http.StatusConflict, "QUOTA_EXCEEDED"},
		{"tenant unavailable", tenant.ErrTenantUnavailable, http.StatusServiceUnavailable, "TENANT_UNAVAILABLE"},
		{"bad backup name", tenant.ErrInvalidBackupName, http.StatusBadRequest, "INVALID_PARAM"},
		{"unmapped", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			writeServiceError(w, r, tt.err, "Operation failed")

			assert.Equal(t, tt.status, w.Code)
			code, _ := errorOf(t, w)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteServiceError_UnmappedHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	writeServiceError(w, r, errors.New("sqlite: database is locked"), "Failed to list projects")

	_, msg := errorOf(t, w)
	assert.Equal(t, "Failed to list projects", msg)
}

func TestWriteServiceError_InvalidSettingCarriesReason(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	writeServiceError(w, r, fmt.Errorf("%w: unbilled_definition must be completed or all", ledger.ErrInvalidSetting), "x")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, msg := errorOf(t, w)
	assert.Contains(t, msg, "unbilled_definition")
}

// --- Request helpers ---

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	assert.True(t, decodeJSON(w, r, &dst))
	assert.Equal(t, "ok", dst.Name)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.False(t, decodeJSON(w, r, &dst))
	code, _ := errorOf(t, w)
	assert.Equal(t, "INVALID_JSON", code)
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
		id  int64
	}{
		{"42", true, 42},
		{"0", false, 0},
		{"-3", false, 0},
		{"abc", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.raw)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(contextWithRoute(r, rctx))
			w := httptest.NewRecorder()

			id, ok := pathID(w, r, "id")

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/?page=3", nil)
	v, ok := queryInt(w, r, "page", 1)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = queryInt(w, r, "limit", 50)
	assert.True(t, ok)
	assert.Equal(t, 50, v)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/?page=x", nil)
	_, ok = queryInt(w, r, "page", 1)
	assert.False(t, ok)
	code, _ := errorOf(t, w)
	assert.Equal(t, "INVALID_PARAM", code)
}

func contextWithRoute(r *http.Request, rctx *chi.Context) context.Context {
	return context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
}
