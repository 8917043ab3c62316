// Package response writes the JSON envelope shared by every endpoint:
// {"data": ..., "error": ..., "meta": {...}}.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Error codes returned in the error object.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidJSON       = "INVALID_JSON"
	CodeInvalidID         = "INVALID_ID"
	CodeInvalidParam      = "INVALID_PARAM"
	CodeWrongPassword     = "WRONG_PASSWORD"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"
	CodeRateLimited       = "RATE_LIMITED"
	CodeTenantUnavailable = "TENANT_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Pagination describes the window a list response covers.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Meta is attached to every response. Pagination is only set on lists.
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	*Pagination
}

// Error is the error object of a failed request.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope wraps every JSON response. Exactly one of Data and Error is set.
type Envelope struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
	Meta  Meta   `json:"meta"`
}

// Message is the payload of endpoints that only confirm an action.
type Message struct {
	Message string `json:"message"`
}

// NewMeta stamps the current time. An empty requestID is replaced with a
// fresh UUID.
func NewMeta(requestID string) Meta {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return Meta{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Write encodes env with the given status.
func Write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		zap.L().Error("failed to encode response", zap.Int("status", status), zap.Error(err))
	}
}

// Success writes data.
func Success(w http.ResponseWriter, status int, data any, requestID string) {
	Write(w, status, Envelope{Data: data, Meta: NewMeta(requestID)})
}

// SuccessList writes one page of a list.
func SuccessList(w http.ResponseWriter, status int, data any, total, page, limit int, requestID string) {
	meta := NewMeta(requestID)
	meta.Pagination = &Pagination{Total: total, Page: page, Limit: limit}
	Write(w, status, Envelope{Data: data, Meta: meta})
}

// NoContent writes 204 with an empty body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Err writes an error without details.
func Err(w http.ResponseWriter, status int, code, message, requestID string) {
	ErrWithDetails(w, status, code, message, nil, requestID)
}

// ErrWithDetails writes an error carrying details, usually field errors.
func ErrWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	Write(w, status, Envelope{
		Error: &Error{Code: code, Message: message, Details: details},
		Meta:  NewMeta(requestID),
	})
}
