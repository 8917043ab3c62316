package middleware

import (
	"net/http"

	"github.com/ecmcloud/ecm/internal/api/response"
)

// RequireAdmin returns middleware that rejects users who are not company
// admins with 403.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication is required", requestID)
				return
			}

			if !identity.IsAdmin() {
				response.Err(w, http.StatusForbidden, response.CodeForbidden, "Admin access required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission returns middleware that rejects users who do not hold
// permission. Admins hold every permission.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication is required", requestID)
				return
			}

			if !identity.Can(permission) {
				response.Err(w, http.StatusForbidden, response.CodeForbidden, "Insufficient permissions", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
