package validation

import (
	"github.com/ecmcloud/ecm/internal/auth"
)

// CreateUserRequest mirrors the fields needed for create user validation.
type CreateUserRequest struct {
	Username    string
	Name        string
	Password    string
	Role        string
	StaffCode   *string
	Permissions map[string]bool
}

// ValidateCreateUserRequest validates the fields of a create user request.
func ValidateCreateUserRequest(req CreateUserRequest) []FieldError {
	var errs []FieldError
	errs = checkUsername(errs, "username", req.Username)
	errs = requireText(errs, "name", req.Name, 255)
	errs = checkPassword(errs, "password", req.Password)
	errs = oneOf(errs, "role", &req.Role, auth.RoleAdmin, auth.RoleUser)
	errs = optionalText(errs, "staffCode", req.StaffCode, 20)
	errs = checkPermissions(errs, req.Permissions)
	return errs
}

// UpdateUserRequest mirrors the fields of a partial user update.
type UpdateUserRequest struct {
	Name        *string
	Role        *string
	StaffCode   *string
	Password    *string
	Permissions map[string]bool
}

// ValidateUpdateUserRequest validates the fields of a partial user update.
func ValidateUpdateUserRequest(req UpdateUserRequest) []FieldError {
	var errs []FieldError
	if req.Name != nil {
		errs = requireText(errs, "name", *req.Name, 255)
	}
	errs = oneOf(errs, "role", req.Role, auth.RoleAdmin, auth.RoleUser)
	errs = optionalText(errs, "staffCode", req.StaffCode, 20)
	if req.Password != nil {
		errs = checkPassword(errs, "password", *req.Password)
	}
	errs = checkPermissions(errs, req.Permissions)
	return errs
}

func checkPermissions(errs []FieldError, perms map[string]bool) []FieldError {
	for name := range perms {
		if !auth.Known(name) {
			errs = append(errs, FieldError{Field: "permissions." + name, Message: "unknown permission"})
		}
	}
	return errs
}
