package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecmcloud/ecm/internal/api/validation"
	"github.com/ecmcloud/ecm/internal/plan"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int         { return &n }
func i64Ptr(n int64) *int64     { return &n }

func assertFieldError(t *testing.T, errs []validation.FieldError, field, contains string) {
	t.Helper()
	for _, e := range errs {
		if e.Field == field {
			assert.Contains(t, e.Message, contains)
			return
		}
	}
	t.Errorf("expected field error on %q containing %q, got %v", field, contains, errs)
}

// --- Auth ---

func TestLogin_RequiresAllFields(t *testing.T) {
	t.Parallel()
	errs := validation.ValidateLoginRequest(validation.LoginRequest{})
	assert.Len(t, errs, 3)

	errs = validation.ValidateLoginRequest(validation.LoginRequest{CompanyCode: "NOT-A-CODE", Username: "u", Password: "p"})
	assert.Empty(t, errs, "code shape is left to the credential check")
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		req   validation.ChangePasswordRequest
		field string
	}{
		{"ok", validation.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "secret-1"}, ""},
		{"missing current", validation.ChangePasswordRequest{NewPassword: "secret-1"}, "currentPassword"},
		{"too short", validation.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "abc"}, "newPassword"},
		{"too long", validation.ChangePasswordRequest{CurrentPassword: "old", NewPassword: strings.Repeat("x", 73)}, "newPassword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			errs := validation.ValidateChangePasswordRequest(tt.req)
			if tt.field == "" {
				assert.Empty(t, errs)
				return
			}
			assertFieldError(t, errs, tt.field, tt.field)
		})
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ok := validation.RegisterRequest{
		CompanyName:   "山田建設",
		Email:         "info@yamada.example",
		AdminUsername: "admin",
		AdminPassword: "admin123",
	}
	assert.Empty(t, validation.ValidateRegisterRequest(ok))

	bad := ok
	bad.Email = "not-an-email"
	bad.AdminUsername = "has space"
	errs := validation.ValidateRegisterRequest(bad)
	assertFieldError(t, errs, "email", "valid email")
	assertFieldError(t, errs, "adminUsername", "letters")
}

func TestCreateCompany(t *testing.T) {
	t.Parallel()
	known := plan.Default().Names()

	assert.Empty(t, validation.ValidateCreateCompanyRequest(validation.CreateCompanyRequest{
		Name: "Tanaka Koumuten", KnownPlans: known,
	}))

	errs := validation.ValidateCreateCompanyRequest(validation.CreateCompanyRequest{
		Name:        " ",
		CompanyCode: "ABC123",
		PlanType:    "platinum",
		KnownPlans:  known,
	})
	assertFieldError(t, errs, "name", "required")
	assertFieldError(t, errs, "companyCode", "6 lowercase")
	assertFieldError(t, errs, "planType", "one of")
}

func TestChangePlan(t *testing.T) {
	t.Parallel()
	known := plan.Default().Names()
	assert.Empty(t, validation.ValidateChangePlanRequest(validation.ChangePlanRequest{PlanType: plan.Premium, KnownPlans: known}))
	assertFieldError(t, validation.ValidateChangePlanRequest(validation.ChangePlanRequest{KnownPlans: known}), "planType", "required")
}

// --- Users ---

func TestCreateUser(t *testing.T) {
	t.Parallel()
	req := validation.CreateUserRequest{Username: "tanaka", Name: "田中", Password: "secret-1"}
	assert.Empty(t, validation.ValidateCreateUserRequest(req))

	req.Role = "owner"
	req.Permissions = map[string]bool{"launch_rockets": true}
	errs := validation.ValidateCreateUserRequest(req)
	assertFieldError(t, errs, "role", "one of")
	assertFieldError(t, errs, "permissions.launch_rockets", "unknown")
}

func TestUpdateUser_OnlyChecksPresentFields(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validation.ValidateUpdateUserRequest(validation.UpdateUserRequest{}))
	errs := validation.ValidateUpdateUserRequest(validation.UpdateUserRequest{Name: strPtr(""), Password: strPtr("x")})
	assertFieldError(t, errs, "name", "required")
	assertFieldError(t, errs, "password", "at least")
}

// --- Ledger ---

func TestProject_Create(t *testing.T) {
	t.Parallel()
	errs := validation.ValidateProjectRequest(validation.ProjectRequest{})
	assertFieldError(t, errs, "projectCode", "required")
	assertFieldError(t, errs, "name", "required")

	errs = validation.ValidateProjectRequest(validation.ProjectRequest{
		ProjectCode:    strPtr("001"),
		Name:           strPtr("新築工事"),
		ContractAmount: i64Ptr(-1),
		TaxRate:        intPtr(120),
		Status:         strPtr("paused"),
		StartDate:      strPtr("2025-04-10"),
		EndDate:        strPtr("2025-04-01"),
		InvoiceDate:    strPtr("2025/05/01"),
	})
	assertFieldError(t, errs, "contractAmount", "negative")
	assertFieldError(t, errs, "taxRate", "between")
	assertFieldError(t, errs, "status", "one of")
	assertFieldError(t, errs, "endDate", "before")
	assertFieldError(t, errs, "invoiceDate", "YYYY-MM-DD")
}

func TestProject_PartialAllowsClearingDates(t *testing.T) {
	t.Parallel()
	errs := validation.ValidateProjectRequest(validation.ProjectRequest{
		Partial:     true,
		EndDate:     strPtr(""),
		PaymentDate: strPtr(""),
	})
	assert.Empty(t, errs)
}

func TestCost(t *testing.T) {
	t.Parallel()
	errs := validation.ValidateCostRequest(validation.CostRequest{})
	assertFieldError(t, errs, "projectId", "required")
	assertFieldError(t, errs, "date", "required")
	assertFieldError(t, errs, "vendor", "required")
	assertFieldError(t, errs, "amount", "required")
	assertFieldError(t, errs, "totalAmount", "required")

	errs = validation.ValidateCostRequest(validation.CostRequest{
		Partial:       true,
		PaymentStatus: strPtr("overdue"),
	})
	assertFieldError(t, errs, "paymentStatus", "one of")
}

func TestCategory_Color(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validation.ValidateCategoryRequest(validation.CategoryRequest{Name: strPtr("運搬費"), Color: strPtr("#A1B2C3")}))
	assertFieldError(t, validation.ValidateCategoryRequest(validation.CategoryRequest{Name: strPtr("運搬費"), Color: strPtr("red")}), "color", "hex")
}

func TestSetting(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validation.ValidateSettingRequest(validation.SettingRequest{Key: "unbilled_definition", Value: strPtr("overdue")}))
	errs := validation.ValidateSettingRequest(validation.SettingRequest{Key: "../etc"})
	assertFieldError(t, errs, "key", "snake_case")
	assertFieldError(t, errs, "value", "required")
}

func TestFiscal(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validation.ValidateFiscalRequest(validation.FiscalRequest{StartYear: intPtr(2000), StartMonth: intPtr(8)}))
	errs := validation.ValidateFiscalRequest(validation.FiscalRequest{StartYear: intPtr(2000), StartMonth: intPtr(13), StaffCodeDigits: intPtr(0)})
	assertFieldError(t, errs, "fiscalStartMonth", "between 1 and 12")
	assertFieldError(t, errs, "staffCodeDigits", "between 1 and 10")
}

func TestSummary(t *testing.T) {
	t.Parallel()
	assert.Empty(t, validation.ValidateSummaryRequest(validation.SummaryRequest{}))
	assert.Empty(t, validation.ValidateSummaryRequest(validation.SummaryRequest{PeriodType: "all", ViewScope: "my"}))

	errs := validation.ValidateSummaryRequest(validation.SummaryRequest{PeriodType: "custom", EndDate: "2025-13-01"})
	assertFieldError(t, errs, "startDate", "required")
	assertFieldError(t, errs, "endDate", "YYYY-MM-DD")
}
