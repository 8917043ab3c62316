package handler

import (
	"net/http"
	"strings"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/ledger"
)

type projectRequest struct {
	ProjectCode      *string `json:"projectCode"`
	Name             *string `json:"name"`
	IsGeneralExpense *bool   `json:"isGeneralExpense"`
	ClientName       *string `json:"clientName"`
	EstimateNumber   *string `json:"estimateNumber"`
	ContractAmount   *int64  `json:"contractAmount"`
	TaxType          *string `json:"taxType"`
	TaxRate          *int    `json:"taxRate"`
	Status           *string `json:"status"`
	StartDate        *string `json:"startDate"`
	EndDate          *string `json:"endDate"`
	InvoiceDate      *string `json:"invoiceDate"`
	PaymentDate      *string `json:"paymentDate"`
	Notes            *string `json:"notes"`
}

func (p projectRequest) validate(partial bool) []validation.FieldError {
	return validation.ValidateProjectRequest(validation.ProjectRequest{
		Partial:        partial,
		ProjectCode:    p.ProjectCode,
		Name:           p.Name,
		ClientName:     p.ClientName,
		EstimateNumber: p.EstimateNumber,
		ContractAmount: p.ContractAmount,
		TaxType:        p.TaxType,
		TaxRate:        p.TaxRate,
		Status:         p.Status,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		InvoiceDate:    p.InvoiceDate,
		PaymentDate:    p.PaymentDate,
		Notes:          p.Notes,
	})
}

func (p projectRequest) toProject() *ledger.Project {
	return &ledger.Project{
		ProjectCode:      strings.TrimSpace(deref(p.ProjectCode)),
		Name:             strings.TrimSpace(deref(p.Name)),
		IsGeneralExpense: derefOr(p.IsGeneralExpense, false),
		ClientName:       deref(p.ClientName),
		EstimateNumber:   deref(p.EstimateNumber),
		ContractAmount:   derefOr(p.ContractAmount, 0),
		TaxType:          deref(p.TaxType),
		TaxRate:          derefOr(p.TaxRate, 0),
		Status:           deref(p.Status),
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		InvoiceDate:      p.InvoiceDate,
		PaymentDate:      p.PaymentDate,
		Notes:            deref(p.Notes),
	}
}

func (p projectRequest) toUpdate() ledger.ProjectUpdate {
	return ledger.ProjectUpdate{
		ProjectCode:      trimmed(p.ProjectCode),
		Name:             trimmed(p.Name),
		IsGeneralExpense: p.IsGeneralExpense,
		ClientName:       p.ClientName,
		EstimateNumber:   p.EstimateNumber,
		ContractAmount:   p.ContractAmount,
		TaxType:          p.TaxType,
		TaxRate:          p.TaxRate,
		Status:           p.Status,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		InvoiceDate:      p.InvoiceDate,
		PaymentDate:      p.PaymentDate,
		Notes:            p.Notes,
	}
}

// LedgerHandler handles the tenant-scoped ledger endpoints. Every request is
// served from the caller's company store.
type LedgerHandler struct {
	ledger *ledger.Service
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *ledger.Service) *LedgerHandler {
	return &LedgerHandler{ledger: svc}
}

// ListProjects handles GET /api/projects. Users only list their own projects.
func (h *LedgerHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	h.listProjects(w, r, identity.UserID)
}

// ListProjectsByUser handles GET /api/projects/by-user/{userId}.
func (h *LedgerHandler) ListProjectsByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	h.listProjects(w, r, userID)
}

func (h *LedgerHandler) listProjects(w http.ResponseWriter, r *http.Request, userID int64) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	filter, ok := listFilter(w, r)
	if !ok {
		return
	}

	list, err := h.ledger.ListProjects(r.Context(), identity.CompanyID, ledger.ProjectFilter{
		ListFilter: filter,
		UserID:     &userID,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to list projects")
		return
	}
	response.SuccessList(w, http.StatusOK, list.Projects, list.Total, list.Page, list.Limit, requestID)
}

// GetProject handles GET /api/projects/{id}.
func (h *LedgerHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.ledger.GetProject(r.Context(), identity.CompanyID, id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get project")
		return
	}
	response.Success(w, http.StatusOK, p, requestID)
}

// CreateProject handles POST /api/projects.
func (h *LedgerHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(false)) {
		return
	}

	p := req.toProject()
	if err := h.ledger.CreateProject(r.Context(), identity, p); err != nil {
		writeServiceError(w, r, err, "Failed to create project")
		return
	}
	response.Success(w, http.StatusCreated, p, requestID)
}

// UpdateProject handles PUT /api/projects/{id}.
func (h *LedgerHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req projectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, req.validate(true)) {
		return
	}

	p, err := h.ledger.UpdateProject(r.Context(), identity.CompanyID, id, req.toUpdate())
	if err != nil {
		writeServiceError(w, r, err, "Failed to update project")
		return
	}
	response.Success(w, http.StatusOK, p, requestID)
}

// DeleteProject handles DELETE /api/projects/{id}.
func (h *LedgerHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.ledger.DeleteProject(r.Context(), identity.CompanyID, id); err != nil {
		writeServiceError(w, r, err, "Failed to delete project")
		return
	}
	response.NoContent(w)
}

func listFilter(w http.ResponseWriter, r *http.Request) (ledger.ListFilter, bool) {
	page, ok := queryInt(w, r, "page", 1)
	if !ok {
		return ledger.ListFilter{}, false
	}
	limit, ok := queryInt(w, r, "limit", 100)
	if !ok {
		return ledger.ListFilter{}, false
	}
	return ledger.ListFilter{Page: page, Limit: limit}, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
