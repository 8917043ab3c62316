package validation

import "github.com/ecmcloud/ecm/internal/company"

// LoginRequest mirrors the fields needed for tenant login validation.
type LoginRequest struct {
	CompanyCode string
	Username    string
	Password    string
}

// ValidateLoginRequest checks presence only. Shape errors on the company
// code would leak which codes are plausible, so they fall through to the
// credential check.
func ValidateLoginRequest(req LoginRequest) []FieldError {
	var errs []FieldError
	if req.CompanyCode == "" {
		errs = append(errs, FieldError{Field: "companyCode", Message: "companyCode is required"})
	}
	if req.Username == "" {
		errs = append(errs, FieldError{Field: "username", Message: "username is required"})
	}
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

// OperatorLoginRequest mirrors the fields needed for super-admin login validation.
type OperatorLoginRequest struct {
	Username string
	Password string
}

// ValidateOperatorLoginRequest validates the fields of a super-admin login.
func ValidateOperatorLoginRequest(req OperatorLoginRequest) []FieldError {
	var errs []FieldError
	if req.Username == "" {
		errs = append(errs, FieldError{Field: "username", Message: "username is required"})
	}
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

// ChangePasswordRequest mirrors the fields of a password change.
type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     string
}

// ValidateChangePasswordRequest validates the fields of a password change.
func ValidateChangePasswordRequest(req ChangePasswordRequest) []FieldError {
	var errs []FieldError
	if req.CurrentPassword == "" {
		errs = append(errs, FieldError{Field: "currentPassword", Message: "currentPassword is required"})
	}
	return checkPassword(errs, "newPassword", req.NewPassword)
}

// ResetPasswordRequest mirrors the fields of an operator password reset.
type ResetPasswordRequest struct {
	NewPassword string
}

// ValidateResetPasswordRequest validates the fields of a password reset.
func ValidateResetPasswordRequest(req ResetPasswordRequest) []FieldError {
	return checkPassword(nil, "newPassword", req.NewPassword)
}

// RegisterRequest mirrors the fields of a self-service company registration.
type RegisterRequest struct {
	CompanyName   string
	Email         string
	AdminUsername string
	AdminPassword string
}

// ValidateRegisterRequest validates the fields of a company registration.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	var errs []FieldError
	errs = requireText(errs, "companyName", req.CompanyName, 255)
	errs = checkEmail(errs, "email", req.Email, true)
	errs = checkUsername(errs, "adminUsername", req.AdminUsername)
	errs = checkPassword(errs, "adminPassword", req.AdminPassword)
	return errs
}

// CreateCompanyRequest mirrors the fields an operator supplies for a new tenant.
type CreateCompanyRequest struct {
	Name          string
	CompanyCode   string
	Email         string
	PlanType      string
	AdminUsername string
	AdminPassword string
	KnownPlans    []string
}

// ValidateCreateCompanyRequest validates the fields of an operator tenant
// creation. Empty optional fields take server defaults.
func ValidateCreateCompanyRequest(req CreateCompanyRequest) []FieldError {
	var errs []FieldError
	errs = requireText(errs, "name", req.Name, 255)
	if req.CompanyCode != "" && !company.ValidCode(req.CompanyCode) {
		errs = append(errs, FieldError{Field: "companyCode", Message: "companyCode must be 6 lowercase letters or digits"})
	}
	errs = checkEmail(errs, "email", req.Email, false)
	if req.PlanType != "" {
		errs = oneOf(errs, "planType", &req.PlanType, req.KnownPlans...)
	}
	if req.AdminUsername != "" {
		errs = checkUsername(errs, "adminUsername", req.AdminUsername)
	}
	if req.AdminPassword != "" {
		errs = checkPassword(errs, "adminPassword", req.AdminPassword)
	}
	return errs
}

// ChangePlanRequest mirrors the fields of a plan change.
type ChangePlanRequest struct {
	PlanType   string
	KnownPlans []string
}

// ValidateChangePlanRequest validates the fields of a plan change.
func ValidateChangePlanRequest(req ChangePlanRequest) []FieldError {
	if req.PlanType == "" {
		return []FieldError{{Field: "planType", Message: "planType is required"}}
	}
	return oneOf(nil, "planType", &req.PlanType, req.KnownPlans...)
}
