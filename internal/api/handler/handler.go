// Package handler implements the HTTP endpoints. Handlers decode and validate
// requests, call the services and translate their sentinel errors into
// envelope error codes.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/console"
	"github.com/ecmcloud/ecm/internal/fiscal"
	"github.com/ecmcloud/ecm/internal/ledger"
	"github.com/ecmcloud/ecm/internal/logger"
	"github.com/ecmcloud/ecm/internal/plan"
	"github.com/ecmcloud/ecm/internal/tenant"
)

const maxBodyBytes = 1 << 20

const timeLayout = "2006-01-02T15:04:05Z"

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings translates service errors into responses. The first match wins.
var errorMappings = []errorMapping{
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid company code, username or password"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid or expired token"},
	{auth.ErrInactive, http.StatusUnauthorized, response.CodeUnauthorized, "Account or company is inactive"},
	{auth.ErrWrongPassword, http.StatusBadRequest, response.CodeWrongPassword, "Current password is incorrect"},

	{ledger.ErrDefaultCategory, http.StatusForbidden, response.CodeForbidden, "Default categories cannot be modified"},
	{auth.ErrCannotDeleteSelf, http.StatusForbidden, response.CodeForbidden, "You cannot delete your own account"},

	{company.ErrNotFound, http.StatusNotFound, response.CodeNotFound, "Company not found"},
	{auth.ErrUserNotFound, http.StatusNotFound, response.CodeNotFound, "User not found"},
	{ledger.ErrProjectNotFound, http.StatusNotFound, response.CodeNotFound, "Project not found"},
	{ledger.ErrNotFound, http.StatusNotFound, response.CodeNotFound, "Record not found"},
	{tenant.ErrBackupNotFound, http.StatusNotFound, response.CodeNotFound, "Backup not found"},
	{tenant.ErrStoreNotFound, http.StatusNotFound, response.CodeNotFound, "Company database not found"},
	{console.ErrRegistrationDisabled, http.StatusNotFound, response.CodeNotFound, "Self-service registration is disabled"},
	{console.ErrInvalidVerificationToken, http.StatusNotFound, response.CodeNotFound, "Invalid verification token"},

	{company.ErrDuplicateCode, http.StatusConflict, response.CodeConflict, "Company code is already in use"},
	{company.ErrDuplicateName, http.StatusConflict, response.CodeConflict, "Company name is already in use"},
	{auth.ErrDuplicateUsername, http.StatusConflict, response.CodeConflict, "Username already exists in this company"},
	{auth.ErrDuplicateStaffCode, http.StatusConflict, response.CodeConflict, "Staff code is already in use"},
	{ledger.ErrDuplicateProjectCode, http.StatusConflict, response.CodeConflict, "Project code already exists"},
	{ledger.ErrDuplicateCategory, http.StatusConflict, response.CodeConflict, "Category name already exists"},
	{auth.ErrUserQuotaExceeded, http.StatusConflict, response.CodeQuotaExceeded, "User limit of the current plan reached"},
	{ledger.ErrQuotaExceeded, http.StatusConflict, response.CodeQuotaExceeded, "Project limit of the current plan reached"},

	{tenant.ErrProvisioning, http.StatusServiceUnavailable, response.CodeTenantUnavailable, "Company database is unavailable"},
	{tenant.ErrTenantUnavailable, http.StatusServiceUnavailable, response.CodeTenantUnavailable, "Company database is unavailable"},

	{tenant.ErrInvalidBackupName, http.StatusBadRequest, response.CodeInvalidParam, "Invalid backup file name"},
	{plan.ErrUnknownPlan, http.StatusBadRequest, response.CodeValidation, "Unknown plan type"},
	{ledger.ErrInvalidRange, http.StatusBadRequest, response.CodeValidation, "Invalid date range"},
}

// writeServiceError maps err to an envelope response. Unmapped errors are
// logged and returned as 500 with message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	requestID := middleware.GetRequestID(r.Context())

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status == http.StatusServiceUnavailable {
				logger.FromContext(r.Context()).Error("tenant store unavailable", zap.Error(err))
			}
			response.Err(w, m.status, m.code, m.message, requestID)
			return
		}
	}

	// Setting errors carry a field-specific reason that is safe to return.
	if errors.Is(err, ledger.ErrInvalidSetting) || errors.Is(err, fiscal.ErrInvalidSettings) {
		response.Err(w, http.StatusBadRequest, response.CodeValidation, err.Error(), requestID)
		return
	}

	l := logger.FromContext(r.Context())
	if errors.Is(err, tenant.ErrHandleClosed) {
		l.Error("stale tenant handle used", zap.Error(err), zap.Stack("stack"))
	} else {
		l.Error(message, zap.Error(err))
	}
	response.Err(w, http.StatusInternalServerError, response.CodeInternal, message, requestID)
}

// decodeJSON reads a JSON body into dst, writing INVALID_JSON on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidJSON, "Request body must be valid JSON", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// invalid writes VALIDATION_ERROR when errs is non-empty.
func invalid(w http.ResponseWriter, r *http.Request, errs []validation.FieldError) bool {
	if len(errs) == 0 {
		return false
	}
	response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", errs, middleware.GetRequestID(r.Context()))
	return true
}

// pathID parses a positive integer URL parameter, writing INVALID_ID on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidID, name+" must be a positive integer", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter, writing INVALID_PARAM
// on failure. A missing parameter yields def.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidParam, name+" must be a non-negative integer", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return n, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
