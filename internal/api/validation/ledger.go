package validation

import (
	"github.com/ecmcloud/ecm/internal/ledger"
)

var (
	projectStatuses = []string{ledger.StatusActive, ledger.StatusCompleted, ledger.StatusCancelled, ledger.StatusGeneralExpense}
	taxTypes        = []string{ledger.TaxIncluded, ledger.TaxExcluded}
	paymentStatuses = []string{ledger.PaymentUnpaid, ledger.PaymentPaid}
)

// ProjectRequest mirrors the fields of a project create or update. Create
// sets Partial to false so that code and name become required.
type ProjectRequest struct {
	Partial        bool
	ProjectCode    *string
	Name           *string
	ClientName     *string
	EstimateNumber *string
	ContractAmount *int64
	TaxType        *string
	TaxRate        *int
	Status         *string
	StartDate      *string
	EndDate        *string
	InvoiceDate    *string
	PaymentDate    *string
	Notes          *string
}

// ValidateProjectRequest validates the fields of a project request.
func ValidateProjectRequest(req ProjectRequest) []FieldError {
	var errs []FieldError
	errs = requiredOrOptional(errs, req.Partial, "projectCode", req.ProjectCode, 50)
	errs = requiredOrOptional(errs, req.Partial, "name", req.Name, 255)
	errs = optionalText(errs, "clientName", req.ClientName, 255)
	errs = optionalText(errs, "estimateNumber", req.EstimateNumber, 50)
	errs = nonNegative(errs, "contractAmount", req.ContractAmount)
	errs = oneOf(errs, "taxType", req.TaxType, taxTypes...)
	if req.TaxRate != nil && (*req.TaxRate < 0 || *req.TaxRate > 100) {
		errs = append(errs, FieldError{Field: "taxRate", Message: "taxRate must be between 0 and 100"})
	}
	errs = oneOf(errs, "status", req.Status, projectStatuses...)
	errs = checkDate(errs, "startDate", req.StartDate)
	errs = checkDate(errs, "endDate", req.EndDate)
	errs = checkDate(errs, "invoiceDate", req.InvoiceDate)
	errs = checkDate(errs, "paymentDate", req.PaymentDate)
	if req.StartDate != nil && req.EndDate != nil && *req.StartDate != "" && *req.EndDate != "" &&
		*req.EndDate < *req.StartDate {
		errs = append(errs, FieldError{Field: "endDate", Message: "endDate must not be before startDate"})
	}
	errs = optionalText(errs, "notes", req.Notes, 2000)
	return errs
}

// CostRequest mirrors the fields of a cost create or update.
type CostRequest struct {
	Partial       bool
	ProjectID     *int64
	Date          *string
	Vendor        *string
	Description   *string
	Amount        *int64
	TaxType       *string
	TaxAmount     *int64
	TotalAmount   *int64
	Category      *string
	PaymentStatus *string
	PaymentDate   *string
}

// ValidateCostRequest validates the fields of a cost request.
func ValidateCostRequest(req CostRequest) []FieldError {
	var errs []FieldError
	if !req.Partial {
		if req.ProjectID == nil {
			errs = append(errs, FieldError{Field: "projectId", Message: "projectId is required"})
		}
		if req.Date == nil || *req.Date == "" {
			errs = append(errs, FieldError{Field: "date", Message: "date is required"})
		}
		if req.Amount == nil {
			errs = append(errs, FieldError{Field: "amount", Message: "amount is required"})
		}
		if req.TotalAmount == nil {
			errs = append(errs, FieldError{Field: "totalAmount", Message: "totalAmount is required"})
		}
	}
	if req.ProjectID != nil && *req.ProjectID <= 0 {
		errs = append(errs, FieldError{Field: "projectId", Message: "projectId must be a positive integer"})
	}
	errs = checkDate(errs, "date", req.Date)
	errs = requiredOrOptional(errs, req.Partial, "vendor", req.Vendor, 255)
	errs = optionalText(errs, "description", req.Description, 1000)
	errs = oneOf(errs, "taxType", req.TaxType, taxTypes...)
	errs = nonNegative(errs, "taxAmount", req.TaxAmount)
	errs = optionalText(errs, "category", req.Category, 50)
	errs = oneOf(errs, "paymentStatus", req.PaymentStatus, paymentStatuses...)
	errs = checkDate(errs, "paymentDate", req.PaymentDate)
	return errs
}

// PartnerRequest mirrors the fields shared by vendor and customer requests.
type PartnerRequest struct {
	Partial        bool
	Name           *string
	Email          *string
	Phone          *string
	DefaultTaxType *string
}

// ValidatePartnerRequest validates a vendor or customer request.
func ValidatePartnerRequest(req PartnerRequest) []FieldError {
	var errs []FieldError
	errs = requiredOrOptional(errs, req.Partial, "name", req.Name, 255)
	if req.Email != nil {
		errs = checkEmail(errs, "email", *req.Email, false)
	}
	errs = optionalText(errs, "phone", req.Phone, 50)
	errs = oneOf(errs, "defaultTaxType", req.DefaultTaxType, taxTypes...)
	return errs
}

// CategoryRequest mirrors the fields of a category create or update.
type CategoryRequest struct {
	Partial      bool
	Name         *string
	Color        *string
	DisplayOrder *int
}

// ValidateCategoryRequest validates the fields of a category request.
func ValidateCategoryRequest(req CategoryRequest) []FieldError {
	var errs []FieldError
	errs = requiredOrOptional(errs, req.Partial, "name", req.Name, 50)
	if req.Color != nil && *req.Color != "" && !colorRegex.MatchString(*req.Color) {
		errs = append(errs, FieldError{Field: "color", Message: "color must be a hex color like #1a2b3c"})
	}
	errs = nonNegative(errs, "displayOrder", req.DisplayOrder)
	return errs
}

// SettingRequest mirrors the fields of a setting upsert.
type SettingRequest struct {
	Key   string
	Value *string
}

// ValidateSettingRequest validates the fields of a setting upsert.
func ValidateSettingRequest(req SettingRequest) []FieldError {
	var errs []FieldError
	if !settingRegex.MatchString(req.Key) {
		errs = append(errs, FieldError{Field: "key", Message: "key must be lowercase snake_case, up to 64 characters"})
	}
	if req.Value == nil {
		errs = append(errs, FieldError{Field: "value", Message: "value is required"})
	} else {
		errs = maxText(errs, "value", *req.Value, 1000)
	}
	return errs
}

// FiscalRequest mirrors the fields of a fiscal settings update.
type FiscalRequest struct {
	StartYear       *int
	StartMonth      *int
	StaffCodeDigits *int
}

// ValidateFiscalRequest validates the fields of a fiscal settings update.
func ValidateFiscalRequest(req FiscalRequest) []FieldError {
	var errs []FieldError
	if req.StartYear == nil {
		errs = append(errs, FieldError{Field: "fiscalStartYear", Message: "fiscalStartYear is required"})
	} else if *req.StartYear < 1900 || *req.StartYear > 9999 {
		errs = append(errs, FieldError{Field: "fiscalStartYear", Message: "fiscalStartYear must be between 1900 and 9999"})
	}
	if req.StartMonth == nil {
		errs = append(errs, FieldError{Field: "fiscalStartMonth", Message: "fiscalStartMonth is required"})
	} else if *req.StartMonth < 1 || *req.StartMonth > 12 {
		errs = append(errs, FieldError{Field: "fiscalStartMonth", Message: "fiscalStartMonth must be between 1 and 12"})
	}
	if req.StaffCodeDigits != nil && (*req.StaffCodeDigits < 1 || *req.StaffCodeDigits > 10) {
		errs = append(errs, FieldError{Field: "staffCodeDigits", Message: "staffCodeDigits must be between 1 and 10"})
	}
	return errs
}

// SummaryRequest mirrors the dashboard query parameters.
type SummaryRequest struct {
	PeriodType string
	StartDate  string
	EndDate    string
	ViewScope  string
}

// ValidateSummaryRequest validates the dashboard query parameters.
func ValidateSummaryRequest(req SummaryRequest) []FieldError {
	var errs []FieldError
	errs = oneOf(errs, "periodType", &req.PeriodType,
		ledger.PeriodCurrent, ledger.PeriodPrevious, ledger.PeriodCustom, ledger.PeriodAll)
	if req.PeriodType == ledger.PeriodCustom {
		if req.StartDate == "" {
			errs = append(errs, FieldError{Field: "startDate", Message: "startDate is required for a custom period"})
		}
		if req.EndDate == "" {
			errs = append(errs, FieldError{Field: "endDate", Message: "endDate is required for a custom period"})
		}
	}
	errs = checkDate(errs, "startDate", &req.StartDate)
	errs = checkDate(errs, "endDate", &req.EndDate)
	errs = oneOf(errs, "viewScope", &req.ViewScope, ledger.ScopeMine, "all")
	return errs
}

func requiredOrOptional(errs []FieldError, partial bool, field string, value *string, max int) []FieldError {
	if partial {
		if value == nil {
			return errs
		}
		return requireText(errs, field, *value, max)
	}
	if value == nil {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	return requireText(errs, field, *value, max)
}
