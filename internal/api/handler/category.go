package handler

import (
	"net/http"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/ledger"
)

type categoryRequest struct {
	Name         *string `json:"name"`
	Color        *string `json:"color"`
	DisplayOrder *int    `json:"displayOrder"`
	IsActive     *bool   `json:"isActive"`
}

func (c categoryRequest) validate(partial bool) []validation.FieldError {
	return validation.ValidateCategoryRequest(validation.CategoryRequest{
		Partial:      partial,
		Name:         c.Name,
		Color:        c.Color,
		DisplayOrder: c.DisplayOrder,
	})
}

// ListCategories handles GET /api/categories.
func (h *LedgerHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	categories, err := h.ledger.ListCategories(r.Context(), identity.CompanyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list categories")
		return
	}
	response.SuccessList(w, http.StatusOK, categories, len(categories), 1, len(categories), requestID)
}

// CreateCategory handles POST /api/categories. New categories are never
// defaults, whatever the body says.
func (h *LedgerHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(false)) {
		return
	}

	c := &ledger.Category{
		Name:         deref(trimmed(req.Name)),
		Color:        deref(req.Color),
		DisplayOrder: derefOr(req.DisplayOrder, 0),
		IsActive:     derefOr(req.IsActive, true),
	}
	if err := h.ledger.CreateCategory(r.Context(), identity.CompanyID, c); err != nil {
		writeServiceError(w, r, err, "Failed to create category")
		return
	}
	response.Success(w, http.StatusCreated, c, requestID)
}

// UpdateCategory handles PUT /api/categories/{id}.
func (h *LedgerHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(true)) {
		return
	}

	c, err := h.ledger.UpdateCategory(r.Context(), identity.CompanyID, id, ledger.CategoryUpdate{
		Name:         trimmed(req.Name),
		Color:        req.Color,
		DisplayOrder: req.DisplayOrder,
		IsActive:     req.IsActive,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to update category")
		return
	}
	response.Success(w, http.StatusOK, c, requestID)
}

// DeleteCategory handles DELETE /api/categories/{id}.
func (h *LedgerHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.ledger.DeleteCategory(r.Context(), identity.CompanyID, id); err != nil {
		writeServiceError(w, r, err, "Failed to delete category")
		return
	}
	response.NoContent(w)
}
