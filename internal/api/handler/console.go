package handler

import (
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/console"
	"github.com/ecmcloud/ecm/internal/logger"
	"github.com/ecmcloud/ecm/internal/plan"
)

type companyResponse struct {
	ID                int64   `json:"id"`
	CompanyCode       string  `json:"companyCode"`
	Name              string  `json:"name"`
	Email             string  `json:"email"`
	PlanType          string  `json:"planType"`
	MaxUsers          int     `json:"maxUsers"`
	MaxProjects       int     `json:"maxProjects"`
	StorageLimitMB    int     `json:"storageLimitMb"`
	DataRetentionDays int     `json:"dataRetentionDays"`
	StorageUsedMB     float64 `json:"storageUsedMb"`
	IsActive          bool    `json:"isActive"`
	VerifiedAt        *string `json:"verifiedAt"`
	CreatedAt         string  `json:"createdAt"`
	LastLoginAt       *string `json:"lastLoginAt"`
	ExpiresAt         *string `json:"expiresAt"`
}

func toCompanyResponse(c *company.Company) companyResponse {
	return companyResponse{
		ID:                c.ID,
		CompanyCode:       c.CompanyCode,
		Name:              c.Name,
		Email:             c.Email,
		PlanType:          c.PlanType,
		MaxUsers:          c.MaxUsers,
		MaxProjects:       c.MaxProjects,
		StorageLimitMB:    c.StorageLimitMB,
		DataRetentionDays: c.DataRetentionDays,
		StorageUsedMB:     c.StorageUsedMB,
		IsActive:          c.IsActive,
		VerifiedAt:        formatTimePtr(c.VerifiedAt),
		CreatedAt:         formatTime(c.CreatedAt),
		LastLoginAt:       formatTimePtr(c.LastLoginAt),
		ExpiresAt:         formatTimePtr(c.ExpiresAt),
	}
}

type tenantResponse struct {
	companyResponse
	StoreBytes int64  `json:"storeBytes"`
	StoreSize  string `json:"storeSize"`
	UserCount  int    `json:"userCount"`
}

type createCompanyRequest struct {
	Name          string `json:"name"`
	CompanyCode   string `json:"companyCode"`
	Email         string `json:"email"`
	PlanType      string `json:"planType"`
	AdminUsername string `json:"adminUsername"`
	AdminPassword string `json:"adminPassword"`
}

type createCompanyResponse struct {
	Company       companyResponse `json:"company"`
	Admin         userResponse    `json:"admin"`
	AdminPassword string          `json:"adminPassword"`
}

type changePlanRequest struct {
	PlanType string `json:"planType"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

type resetPasswordResponse struct {
	Message  string `json:"message"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

type backupResponse struct {
	CompanyID   int64  `json:"companyId"`
	CompanyName string `json:"companyName"`
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"sizeBytes"`
	Size        string `json:"size"`
	CreatedAt   string `json:"createdAt"`
}

type statsResponse struct {
	TotalCompanies  int    `json:"totalCompanies"`
	ActiveCompanies int    `json:"activeCompanies"`
	PaidCompanies   int    `json:"paidCompanies"`
	FreeCompanies   int    `json:"freeCompanies"`
	TotalUsers      int    `json:"totalUsers"`
	StoreBytes      int64  `json:"storeBytes"`
	StoreSize       string `json:"storeSize"`
	MasterBytes     int64  `json:"masterBytes"`
	LargestCompany  string `json:"largestCompany"`
	LargestBytes    int64  `json:"largestBytes"`
	TenantBackups   int    `json:"tenantBackups"`
}

func bytesOf(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// ConsoleHandler handles the operator endpoints under /api/super.
type ConsoleHandler struct {
	console *console.Service
	plans   *plan.Catalog
}

// NewConsoleHandler creates a new ConsoleHandler.
func NewConsoleHandler(consoleSvc *console.Service, plans *plan.Catalog) *ConsoleHandler {
	return &ConsoleHandler{console: consoleSvc, plans: plans}
}

// ListCompanies handles GET /api/super/companies.
func (h *ConsoleHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	tenants, err := h.console.ListTenants(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to list companies")
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for i := range tenants {
		t := &tenants[i]
		items = append(items, tenantResponse{
			companyResponse: toCompanyResponse(&t.Company),
			StoreBytes:      t.StoreBytes,
			StoreSize:       bytesOf(t.StoreBytes),
			UserCount:       t.UserCount,
		})
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// CreateCompany handles POST /api/super/companies.
func (h *ConsoleHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.CompanyCode = strings.ToLower(strings.TrimSpace(req.CompanyCode))
	req.Email = strings.TrimSpace(req.Email)
	req.AdminUsername = strings.TrimSpace(req.AdminUsername)
	if invalid(w, r, validation.ValidateCreateCompanyRequest(validation.CreateCompanyRequest{
		Name:          req.Name,
		CompanyCode:   req.CompanyCode,
		Email:         req.Email,
		PlanType:      req.PlanType,
		AdminUsername: req.AdminUsername,
		AdminPassword: req.AdminPassword,
		KnownPlans:    h.plans.Names(),
	})) {
		return
	}

	created, err := h.console.CreateTenant(r.Context(), console.NewTenant{
		Name:          req.Name,
		CompanyCode:   req.CompanyCode,
		Email:         req.Email,
		PlanType:      req.PlanType,
		AdminUsername: req.AdminUsername,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to create company")
		return
	}

	logger.FromContext(r.Context()).Info("company created by operator",
		zap.Int64("companyId", created.Company.ID),
		zap.String("companyCode", created.Company.CompanyCode),
	)
	response.Success(w, http.StatusCreated, createCompanyResponse{
		Company:       toCompanyResponse(created.Company),
		Admin:         toUserResponse(created.Admin),
		AdminPassword: created.AdminPassword,
	}, requestID)
}

// ListCompanyUsers handles GET /api/super/companies/{id}/users.
func (h *ConsoleHandler) ListCompanyUsers(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	users, err := h.console.ListTenantUsers(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list users")
		return
	}

	items := toUserResponses(users)
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// ToggleActive handles PUT /api/super/companies/{id}/toggle-active.
func (h *ConsoleHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.console.ToggleActive(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update company")
		return
	}
	response.Success(w, http.StatusOK, toCompanyResponse(c), requestID)
}

// ChangePlan handles PUT /api/super/companies/{id}/plan.
func (h *ConsoleHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req changePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateChangePlanRequest(validation.ChangePlanRequest{
		PlanType:   req.PlanType,
		KnownPlans: h.plans.Names(),
	})) {
		return
	}

	c, err := h.console.ChangePlan(r.Context(), id, req.PlanType)
	if err != nil {
		writeServiceError(w, r, err, "Failed to change plan")
		return
	}
	response.Success(w, http.StatusOK, toCompanyResponse(c), requestID)
}

// DeleteCompany handles DELETE /api/super/companies/{id}.
func (h *ConsoleHandler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.console.DeleteTenant(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "Failed to delete company")
		return
	}
	response.NoContent(w)
}

// BackupCompany handles POST /api/super/companies/{id}/backup.
func (h *ConsoleHandler) BackupCompany(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	b, err := h.console.BackupTenant(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Failed to back up company")
		return
	}
	response.Success(w, http.StatusCreated, backupResponse{
		CompanyID: b.CompanyID,
		Filename:  b.Filename,
		SizeBytes: b.SizeBytes,
		Size:      bytesOf(b.SizeBytes),
		CreatedAt: formatTime(b.CreatedAt),
	}, requestID)
}

// ListBackups handles GET /api/super/backups.
func (h *ConsoleHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	backups, err := h.console.ListBackups(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to list backups")
		return
	}

	items := make([]backupResponse, 0, len(backups))
	for _, b := range backups {
		items = append(items, backupResponse{
			CompanyID:   b.CompanyID,
			CompanyName: b.CompanyName,
			Filename:    b.Filename,
			SizeBytes:   b.SizeBytes,
			Size:        bytesOf(b.SizeBytes),
			CreatedAt:   formatTime(b.CreatedAt),
		})
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// DeleteBackup handles DELETE /api/super/backups/{companyId}/{filename}.
func (h *ConsoleHandler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyId")
	if !ok {
		return
	}

	if err := h.console.DeleteBackup(r.Context(), companyID, chi.URLParam(r, "filename")); err != nil {
		writeServiceError(w, r, err, "Failed to delete backup")
		return
	}
	response.NoContent(w)
}

// Stats handles GET /api/super/stats.
func (h *ConsoleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	s, err := h.console.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to compute stats")
		return
	}

	response.Success(w, http.StatusOK, statsResponse{
		TotalCompanies:  s.Companies.Total,
		ActiveCompanies: s.Companies.Active,
		PaidCompanies:   s.Companies.Paid,
		FreeCompanies:   s.Companies.Free,
		TotalUsers:      s.TotalUsers,
		StoreBytes:      s.StoreBytes,
		StoreSize:       bytesOf(s.StoreBytes),
		MasterBytes:     s.MasterBytes,
		LargestCompany:  s.LargestStore.CompanyName,
		LargestBytes:    s.LargestStore.Bytes,
		TenantBackups:   s.TenantBackups,
	}, requestID)
}

// ResetPassword handles POST /api/super/users/{id}/reset-password.
func (h *ConsoleHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateResetPasswordRequest(validation.ResetPasswordRequest{NewPassword: req.NewPassword})) {
		return
	}

	u, err := h.console.ResetPassword(r.Context(), id, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, err, "Failed to reset password")
		return
	}
	response.Success(w, http.StatusOK, resetPasswordResponse{
		Message:  "Password reset",
		UserID:   u.ID,
		Username: u.Username,
	}, requestID)
}
