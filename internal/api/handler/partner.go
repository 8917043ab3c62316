package handler

import (
	"net/http"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/ledger"
)

type vendorRequest struct {
	Name           *string `json:"name"`
	Category       *string `json:"category"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email"`
	DefaultTaxType *string `json:"defaultTaxType"`
	PaymentTerms   *string `json:"paymentTerms"`
	Notes          *string `json:"notes"`
	IsActive       *bool   `json:"isActive"`
	IsFavorite     *bool   `json:"isFavorite"`
}

func (v vendorRequest) validate(partial bool) []validation.FieldError {
	return validation.ValidatePartnerRequest(validation.PartnerRequest{
		Partial:        partial,
		Name:           v.Name,
		Email:          v.Email,
		Phone:          v.Phone,
		DefaultTaxType: v.DefaultTaxType,
	})
}

type customerRequest struct {
	Name          *string `json:"name"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	Address       *string `json:"address"`
	ContactPerson *string `json:"contactPerson"`
	Notes         *string `json:"notes"`
	IsActive      *bool   `json:"isActive"`
}

func (c customerRequest) validate(partial bool) []validation.FieldError {
	return validation.ValidatePartnerRequest(validation.PartnerRequest{
		Partial: partial,
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
	})
}

// --- Vendors ---

// ListVendors handles GET /api/vendors.
func (h *LedgerHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	vendors, err := h.ledger.ListVendors(r.Context(), identity.CompanyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list vendors")
		return
	}
	response.SuccessList(w, http.StatusOK, vendors, len(vendors), 1, len(vendors), requestID)
}

// CreateVendor handles POST /api/vendors.
func (h *LedgerHandler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req vendorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(false)) {
		return
	}

	v := &ledger.Vendor{
		Name:           deref(trimmed(req.Name)),
		Category:       deref(req.Category),
		Phone:          deref(req.Phone),
		Email:          deref(req.Email),
		DefaultTaxType: deref(req.DefaultTaxType),
		PaymentTerms:   deref(req.PaymentTerms),
		Notes:          deref(req.Notes),
		IsActive:       derefOr(req.IsActive, true),
		IsFavorite:     derefOr(req.IsFavorite, false),
	}
	if err := h.ledger.CreateVendor(r.Context(), identity.CompanyID, v); err != nil {
		writeServiceError(w, r, err, "Failed to create vendor")
		return
	}
	response.Success(w, http.StatusCreated, v, requestID)
}

// UpdateVendor handles PUT /api/vendors/{id}.
func (h *LedgerHandler) UpdateVendor(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req vendorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(true)) {
		return
	}

	v, err := h.ledger.UpdateVendor(r.Context(), identity.CompanyID, id, ledger.VendorUpdate{
		Name:           trimmed(req.Name),
		Category:       req.Category,
		Phone:          req.Phone,
		Email:          req.Email,
		DefaultTaxType: req.DefaultTaxType,
		PaymentTerms:   req.PaymentTerms,
		Notes:          req.Notes,
		IsActive:       req.IsActive,
		IsFavorite:     req.IsFavorite,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to update vendor")
		return
	}
	response.Success(w, http.StatusOK, v, requestID)
}

// DeleteVendor handles DELETE /api/vendors/{id}.
func (h *LedgerHandler) DeleteVendor(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.ledger.DeleteVendor(r.Context(), identity.CompanyID, id); err != nil {
		writeServiceError(w, r, err, "Failed to delete vendor")
		return
	}
	response.NoContent(w)
}

// --- Customers ---

// ListCustomers handles GET /api/customers.
func (h *LedgerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	customers, err := h.ledger.ListCustomers(r.Context(), identity.CompanyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list customers")
		return
	}
	response.SuccessList(w, http.StatusOK, customers, len(customers), 1, len(customers), requestID)
}

// CreateCustomer handles POST /api/customers.
func (h *LedgerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(false)) {
		return
	}

	c := &ledger.Customer{
		Name:          deref(trimmed(req.Name)),
		Phone:         deref(req.Phone),
		Email:         deref(req.Email),
		Address:       deref(req.Address),
		ContactPerson: deref(req.ContactPerson),
		Notes:         deref(req.Notes),
		IsActive:      derefOr(req.IsActive, true),
	}
	if err := h.ledger.CreateCustomer(r.Context(), identity.CompanyID, c); err != nil {
		writeServiceError(w, r, err, "Failed to create customer")
		return
	}
	response.Success(w, http.StatusCreated, c, requestID)
}

// UpdateCustomer handles PUT /api/customers/{id}.
func (h *LedgerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(true)) {
		return
	}

	c, err := h.ledger.UpdateCustomer(r.Context(), identity.CompanyID, id, ledger.CustomerUpdate{
		Name:          trimmed(req.Name),
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		ContactPerson: req.ContactPerson,
		Notes:         req.Notes,
		IsActive:      req.IsActive,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to update customer")
		return
	}
	response.Success(w, http.StatusOK, c, requestID)
}

// DeleteCustomer handles DELETE /api/customers/{id}.
func (h *LedgerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.ledger.DeleteCustomer(r.Context(), identity.CompanyID, id); err != nil {
		writeServiceError(w, r, err, "Failed to delete customer")
		return
	}
	response.NoContent(w)
}
