package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/auth"
)

func requestAs(identity *auth.Identity) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if identity != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), identity))
	}
	return req
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		identity *auth.Identity
		want     int
	}{
		{"no identity", nil, http.StatusUnauthorized},
		{"user", &auth.Identity{UserID: 2, Role: auth.RoleUser}, http.StatusForbidden},
		{"admin", &auth.Identity{UserID: 1, Role: auth.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.RequireAdmin()(okHandler())
			w := httptest.NewRecorder()

			h.ServeHTTP(w, requestAs(tt.identity))

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	granted := auth.DefaultPermissions()
	granted[auth.PermCreateCosts] = true

	tests := []struct {
		name     string
		identity *auth.Identity
		want     int
	}{
		{"no identity", nil, http.StatusUnauthorized},
		{"default user", &auth.Identity{Role: auth.RoleUser, Permissions: auth.DefaultPermissions()}, http.StatusForbidden},
		{"granted user", &auth.Identity{Role: auth.RoleUser, Permissions: granted}, http.StatusOK},
		{"admin without map", &auth.Identity{Role: auth.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.RequirePermission(auth.PermCreateCosts)(okHandler())
			w := httptest.NewRecorder()

			h.ServeHTTP(w, requestAs(tt.identity))

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "FORBIDDEN", errorCode(t, w))
			}
		})
	}
}
