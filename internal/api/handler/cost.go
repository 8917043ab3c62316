package handler

import (
	"net/http"
	"strconv"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/ledger"
)

type costRequest struct {
	ProjectID     *int64  `json:"projectId"`
	Date          *string `json:"date"`
	Vendor        *string `json:"vendor"`
	Description   *string `json:"description"`
	Amount        *int64  `json:"amount"`
	TaxType       *string `json:"taxType"`
	TaxAmount     *int64  `json:"taxAmount"`
	TotalAmount   *int64  `json:"totalAmount"`
	Category      *string `json:"category"`
	PaymentStatus *string `json:"paymentStatus"`
	PaymentDate   *string `json:"paymentDate"`
}

func (c costRequest) validate(partial bool) []validation.FieldError {
	return validation.ValidateCostRequest(validation.CostRequest{
		Partial:       partial,
		ProjectID:     c.ProjectID,
		Date:          c.Date,
		Vendor:        c.Vendor,
		Description:   c.Description,
		Amount:        c.Amount,
		TaxType:       c.TaxType,
		TaxAmount:     c.TaxAmount,
		TotalAmount:   c.TotalAmount,
		Category:      c.Category,
		PaymentStatus: c.PaymentStatus,
		PaymentDate:   c.PaymentDate,
	})
}

// ListCosts handles GET /api/costs with an optional projectId filter.
func (h *LedgerHandler) ListCosts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	filter, ok := listFilter(w, r)
	if !ok {
		return
	}
	costFilter := ledger.CostFilter{ListFilter: filter}
	if raw := r.URL.Query().Get("projectId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.Err(w, http.StatusBadRequest, response.CodeInvalidParam, "projectId must be a positive integer", requestID)
			return
		}
		costFilter.ProjectID = &id
	}

	list, err := h.ledger.ListCosts(r.Context(), identity.CompanyID, costFilter)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list costs")
		return
	}
	response.SuccessList(w, http.StatusOK, list.Costs, list.Total, list.Page, list.Limit, requestID)
}

// CreateCost handles POST /api/costs.
func (h *LedgerHandler) CreateCost(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req costRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(false)) {
		return
	}

	c := &ledger.Cost{
		ProjectID:     *req.ProjectID,
		Date:          *req.Date,
		Vendor:        deref(trimmed(req.Vendor)),
		Description:   deref(req.Description),
		Amount:        *req.Amount,
		TaxType:       deref(req.TaxType),
		TaxAmount:     derefOr(req.TaxAmount, 0),
		TotalAmount:   *req.TotalAmount,
		Category:      deref(req.Category),
		PaymentStatus: deref(req.PaymentStatus),
		PaymentDate:   req.PaymentDate,
	}
	if err := h.ledger.CreateCost(r.Context(), identity.CompanyID, c); err != nil {
		writeServiceError(w, r, err, "Failed to create cost")
		return
	}
	response.Success(w, http.StatusCreated, c, requestID)
}

// UpdateCost handles PUT /api/costs/{id}.
func (h *LedgerHandler) UpdateCost(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req costRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(true)) {
		return
	}

	c, err := h.ledger.UpdateCost(r.Context(), identity.CompanyID, id, ledger.CostUpdate{
		ProjectID:     req.ProjectID,
		Date:          req.Date,
		Vendor:        trimmed(req.Vendor),
		Description:   req.Description,
		Amount:        req.Amount,
		TaxType:       req.TaxType,
		TaxAmount:     req.TaxAmount,
		TotalAmount:   req.TotalAmount,
		Category:      req.Category,
		PaymentStatus: req.PaymentStatus,
		PaymentDate:   req.PaymentDate,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to update cost")
		return
	}
	response.Success(w, http.StatusOK, c, requestID)
}

// DeleteCost handles DELETE /api/costs/{id}.
func (h *LedgerHandler) DeleteCost(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.ledger.DeleteCost(r.Context(), identity.CompanyID, id); err != nil {
		writeServiceError(w, r, err, "Failed to delete cost")
		return
	}
	response.NoContent(w)
}
