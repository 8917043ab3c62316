package handler

import (
	"net/http"
	"strings"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/auth"
)

type createUserRequest struct {
	Username    string           `json:"username"`
	Name        string           `json:"name"`
	Password    string           `json:"password"`
	Role        string           `json:"role"`
	StaffCode   *string          `json:"staffCode"`
	Permissions auth.Permissions `json:"permissions"`
}

type updateUserRequest struct {
	Name        *string          `json:"name"`
	Role        *string          `json:"role"`
	StaffCode   *string          `json:"staffCode"`
	Password    *string          `json:"password"`
	Permissions auth.Permissions `json:"permissions"`
	IsActive    *bool            `json:"isActive"`
}

type userResponse struct {
	ID          int64            `json:"id"`
	CompanyID   int64            `json:"companyId"`
	Username    string           `json:"username"`
	Name        string           `json:"name"`
	Role        string           `json:"role"`
	StaffCode   *string          `json:"staffCode"`
	Permissions auth.Permissions `json:"permissions"`
	IsActive    bool             `json:"isActive"`
	CreatedAt   string           `json:"createdAt"`
	LastLoginAt *string          `json:"lastLoginAt"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:          u.ID,
		CompanyID:   u.CompanyID,
		Username:    u.Username,
		Name:        u.Name,
		Role:        u.Role,
		StaffCode:   u.StaffCode,
		Permissions: u.Permissions.Merge(),
		IsActive:    u.IsActive,
		CreatedAt:   formatTime(u.CreatedAt),
		LastLoginAt: formatTimePtr(u.LastLoginAt),
	}
}

func toUserResponses(users []auth.User) []userResponse {
	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}
	return items
}

// UserHandler handles tenant user management by company admins.
type UserHandler struct {
	auth *auth.Service
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authSvc *auth.Service) *UserHandler {
	return &UserHandler{auth: authSvc}
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	users, err := h.auth.ListMembers(r.Context(), identity.CompanyID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list users")
		return
	}

	items := toUserResponses(users)
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if invalid(w, r, validation.ValidateCreateUserRequest(validation.CreateUserRequest{
		Username:    req.Username,
		Name:        req.Name,
		Password:    req.Password,
		Role:        req.Role,
		StaffCode:   req.StaffCode,
		Permissions: req.Permissions,
	})) {
		return
	}

	u, err := h.auth.CreateMember(r.Context(), identity.CompanyID, auth.NewMember{
		Username:    req.Username,
		Name:        strings.TrimSpace(req.Name),
		Password:    req.Password,
		Role:        req.Role,
		StaffCode:   req.StaffCode,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to create user")
		return
	}

	response.Success(w, http.StatusCreated, toUserResponse(u), requestID)
}

// Update handles PUT /api/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if invalid(w, r, validation.ValidateUpdateUserRequest(validation.UpdateUserRequest{
		Name:        req.Name,
		Role:        req.Role,
		StaffCode:   req.StaffCode,
		Password:    req.Password,
		Permissions: req.Permissions,
	})) {
		return
	}

	update := auth.MemberUpdate{
		UpdateFields: auth.UpdateFields{
			Name:      req.Name,
			Role:      req.Role,
			StaffCode: req.StaffCode,
			IsActive:  req.IsActive,
		},
		Password: req.Password,
	}
	if req.Permissions != nil {
		update.Permissions = &req.Permissions
	}

	u, err := h.auth.UpdateMember(r.Context(), identity.CompanyID, id, update)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update user")
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// Delete handles DELETE /api/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.auth.DeleteMember(r.Context(), identity, id); err != nil {
		writeServiceError(w, r, err, "Failed to delete user")
		return
	}

	response.NoContent(w)
}
