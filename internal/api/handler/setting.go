package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/fiscal"
)

type settingRequest struct {
	Value *string `json:"value"`
}

type fiscalRequest struct {
	StartYear       *int `json:"fiscalStartYear"`
	StartMonth      *int `json:"fiscalStartMonth"`
	StaffCodeDigits *int `json:"staffCodeDigits"`
}

// ListSettings handles GET /api/settings.
func (h *LedgerHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	settings, err := h.ledger.ListSettings(r.Context(), identity.CompanyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list settings")
		return
	}
	response.SuccessList(w, http.StatusOK, settings, len(settings), 1, len(settings), requestID)
}

// GetSetting handles GET /api/settings/{key}.
func (h *LedgerHandler) GetSetting(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	s, err := h.ledger.GetSetting(r.Context(), identity.CompanyID, chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get setting")
		return
	}
	response.Success(w, http.StatusOK, s, requestID)
}

// PutSetting handles PUT /api/settings/{key}.
func (h *LedgerHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())
	key := chi.URLParam(r, "key")

	var req settingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateSettingRequest(validation.SettingRequest{Key: key, Value: req.Value})) {
		return
	}

	s, err := h.ledger.PutSetting(r.Context(), identity.CompanyID, key, *req.Value)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update setting")
		return
	}
	response.Success(w, http.StatusOK, s, requestID)
}

// GetFiscal handles GET /api/settings/fiscal.
func (h *LedgerHandler) GetFiscal(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	info, err := h.ledger.FiscalSettings(r.Context(), identity.CompanyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get fiscal settings")
		return
	}
	response.Success(w, http.StatusOK, info, requestID)
}

// PutFiscal handles PUT /api/settings/fiscal. An omitted staffCodeDigits
// keeps the default.
func (h *LedgerHandler) PutFiscal(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req fiscalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateFiscalRequest(validation.FiscalRequest{
		StartYear:       req.StartYear,
		StartMonth:      req.StartMonth,
		StaffCodeDigits: req.StaffCodeDigits,
	})) {
		return
	}

	info, err := h.ledger.UpdateFiscalSettings(r.Context(), identity.CompanyID, fiscal.Settings{
		StartYear:       *req.StartYear,
		StartMonth:      *req.StartMonth,
		StaffCodeDigits: derefOr(req.StaffCodeDigits, fiscal.DefaultStaffCodeDigits),
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to update fiscal settings")
		return
	}
	response.Success(w, http.StatusOK, info, requestID)
}
