package handler

import (
	"net/http"
	"strings"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/console"
)

const tokenType = "bearer"

type loginRequest struct {
	CompanyCode string `json:"companyCode"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type loginResponse struct {
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	ExpiresAt   string          `json:"expiresAt"`
	User        userResponse    `json:"user"`
	Company     companyResponse `json:"company"`
}

type operatorLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type operatorResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type operatorLoginResponse struct {
	AccessToken string           `json:"accessToken"`
	TokenType   string           `json:"tokenType"`
	ExpiresAt   string           `json:"expiresAt"`
	SuperAdmin  operatorResponse `json:"superAdmin"`
}

type meResponse struct {
	ID          int64            `json:"id"`
	CompanyID   int64            `json:"companyId"`
	CompanyCode string           `json:"companyCode"`
	CompanyName string           `json:"companyName"`
	Username    string           `json:"username"`
	Name        string           `json:"name"`
	Role        string           `json:"role"`
	Permissions auth.Permissions `json:"permissions"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type registerRequest struct {
	CompanyName   string `json:"companyName"`
	Email         string `json:"email"`
	AdminUsername string `json:"adminUsername"`
	AdminPassword string `json:"adminPassword"`
}

type registerResponse struct {
	Message     string `json:"message"`
	CompanyCode string `json:"companyCode"`
}

// AuthHandler handles login, session and registration endpoints.
type AuthHandler struct {
	auth    *auth.Service
	console *console.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *auth.Service, consoleSvc *console.Service) *AuthHandler {
	return &AuthHandler{auth: authSvc, console: consoleSvc}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = strings.ToLower(strings.TrimSpace(req.CompanyCode))
	req.Username = strings.TrimSpace(req.Username)
	if invalid(w, r, validation.ValidateLoginRequest(validation.LoginRequest{
		CompanyCode: req.CompanyCode,
		Username:    req.Username,
		Password:    req.Password,
	})) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.CompanyCode, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "Login failed")
		return
	}

	response.Success(w, http.StatusOK, loginResponse{
		AccessToken: res.Token,
		TokenType:   tokenType,
		ExpiresAt:   formatTime(res.ExpiresAt),
		User:        toUserResponse(res.User),
		Company:     toCompanyResponse(res.Company),
	}, requestID)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	response.Success(w, http.StatusOK, meResponse{
		ID:          identity.UserID,
		CompanyID:   identity.CompanyID,
		CompanyCode: identity.CompanyCode,
		CompanyName: identity.CompanyName,
		Username:    identity.Username,
		Name:        identity.Name,
		Role:        identity.Role,
		Permissions: identity.Permissions.Merge(),
	}, requestID)
}

// ChangePassword handles PUT /api/users/me/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateChangePasswordRequest(validation.ChangePasswordRequest{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})) {
		return
	}

	if err := h.auth.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err, "Failed to change password")
		return
	}
	response.Success(w, http.StatusOK, response.Message{Message: "Password changed"}, requestID)
}

// Register handles POST /api/auth/company-register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Email = strings.TrimSpace(req.Email)
	req.AdminUsername = strings.TrimSpace(req.AdminUsername)
	if invalid(w, r, validation.ValidateRegisterRequest(validation.RegisterRequest{
		CompanyName:   req.CompanyName,
		Email:         req.Email,
		AdminUsername: req.AdminUsername,
		AdminPassword: req.AdminPassword,
	})) {
		return
	}

	c, err := h.console.Register(r.Context(), console.Registration{
		CompanyName:   req.CompanyName,
		Email:         req.Email,
		AdminUsername: req.AdminUsername,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to register company")
		return
	}

	response.Success(w, http.StatusCreated, registerResponse{
		Message:     "Registration received. Check your email to verify the account.",
		CompanyCode: c.CompanyCode,
	}, requestID)
}

// Verify handles GET /api/auth/verify?token=.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidParam, "token is required", requestID)
		return
	}

	c, err := h.console.Verify(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err, "Failed to verify company")
		return
	}

	response.Success(w, http.StatusOK, registerResponse{
		Message:     "Account verified. You can now log in.",
		CompanyCode: c.CompanyCode,
	}, requestID)
}

// OperatorLogin handles POST /api/super/login.
func (h *AuthHandler) OperatorLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req operatorLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if invalid(w, r, validation.ValidateOperatorLoginRequest(validation.OperatorLoginRequest{
		Username: req.Username,
		Password: req.Password,
	})) {
		return
	}

	res, err := h.auth.LoginOperator(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "Login failed")
		return
	}

	response.Success(w, http.StatusOK, operatorLoginResponse{
		AccessToken: res.Token,
		TokenType:   tokenType,
		ExpiresAt:   formatTime(res.ExpiresAt),
		SuperAdmin:  operatorResponse{ID: res.SuperAdmin.ID, Username: res.SuperAdmin.Username},
	}, requestID)
}
