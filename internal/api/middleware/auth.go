package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/logger"
)

const (
	identityKey contextKey = "identity"
	operatorKey contextKey = "operator"
)

// UserResolver turns a bearer token into a tenant user identity.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (*auth.Identity, error)
}

// OperatorResolver turns a bearer token into an operator.
type OperatorResolver interface {
	ResolveOperator(ctx context.Context, token string) (*auth.Operator, error)
}

// RequireUser is middleware that resolves the bearer token to a tenant user.
// Missing, invalid or operator tokens and inactive accounts return 401.
func RequireUser(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			token := bearerToken(r)
			if token == "" {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication is required", requestID)
				return
			}

			identity, err := resolver.ResolveUser(r.Context(), token)
			if err != nil {
				writeAuthError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// OptionalUser is middleware that attaches the tenant user when a valid
// bearer token is present and otherwise passes the request through unchanged.
func OptionalUser(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolver.ResolveUser(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// RequireOperator is middleware that resolves the bearer token to a
// super-admin. Tenant user tokens return 401.
func RequireOperator(resolver OperatorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			token := bearerToken(r)
			if token == "" {
				response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication is required", requestID)
				return
			}

			op, err := resolver.ResolveOperator(r.Context(), token)
			if err != nil {
				writeAuthError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, op)
			l := logger.FromContext(ctx).With(zap.Int64("operatorId", op.ID))
			ctx = logger.WithContext(ctx, l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, identity)
	l := logger.FromContext(ctx).With(
		zap.Int64("companyId", identity.CompanyID),
		zap.Int64("userId", identity.UserID),
	)
	return logger.WithContext(ctx, l)
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid or expired token", requestID)
	case errors.Is(err, auth.ErrInactive):
		response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Account or company is inactive", requestID)
	default:
		logger.FromContext(r.Context()).Error("failed to resolve session", zap.Error(err))
		response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Authentication failed", requestID)
	}
}

// bearerToken returns the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetIdentity retrieves the authenticated tenant user from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}

// GetOperator retrieves the authenticated super-admin from the request context.
func GetOperator(ctx context.Context) *auth.Operator {
	if op, ok := ctx.Value(operatorKey).(*auth.Operator); ok {
		return op
	}
	return nil
}

// WithIdentity returns ctx carrying identity. It is used by tests and by
// callers that authenticate outside the HTTP stack.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// WithOperator returns ctx carrying op.
func WithOperator(ctx context.Context, op *auth.Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}
