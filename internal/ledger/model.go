package ledger

import "time"

// Project statuses.
const (
	StatusActive         = "active"
	StatusCompleted      = "completed"
	StatusCancelled      = "cancelled"
	StatusGeneralExpense = "general_expense"
)

// Tax treatments for amounts.
const (
	TaxIncluded = "included"
	TaxExcluded = "excluded"
)

// Cost payment statuses.
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// DefaultCostCategory is applied to costs created without a category.
const DefaultCostCategory = "材料費"

// Project is a construction job. Project codes are unique per creating user.
// Dates are ISO calendar dates (YYYY-MM-DD).
type Project struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"userId"`
	ProjectCode      string    `db:"project_code" json:"projectCode"`
	Period           *int      `db:"period" json:"period"`
	IsGeneralExpense bool      `db:"is_general_expense" json:"isGeneralExpense"`
	Name             string    `db:"name" json:"name"`
	ClientName       string    `db:"client_name" json:"clientName"`
	EstimateNumber   string    `db:"estimate_number" json:"estimateNumber"`
	ContractAmount   int64     `db:"contract_amount" json:"contractAmount"`
	TaxType          string    `db:"tax_type" json:"taxType"`
	TaxRate          int       `db:"tax_rate" json:"taxRate"`
	Status           string    `db:"status" json:"status"`
	StartDate        *string   `db:"start_date" json:"startDate"`
	EndDate          *string   `db:"end_date" json:"endDate"`
	InvoiceDate      *string   `db:"invoice_date" json:"invoiceDate"`
	PaymentDate      *string   `db:"payment_date" json:"paymentDate"`
	Notes            string    `db:"notes" json:"notes"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// ProjectUpdate holds optional fields for a partial project update.
// Nil fields are not updated. An empty date string clears the date.
type ProjectUpdate struct {
	ProjectCode      *string
	Name             *string
	IsGeneralExpense *bool
	ClientName       *string
	EstimateNumber   *string
	ContractAmount   *int64
	TaxType          *string
	TaxRate          *int
	Status           *string
	StartDate        *string
	EndDate          *string
	InvoiceDate      *string
	PaymentDate      *string
	Notes            *string
}

// Cost is a single cost line item booked against a project.
type Cost struct {
	ID            int64     `db:"id" json:"id"`
	ProjectID     int64     `db:"project_id" json:"projectId"`
	Date          string    `db:"date" json:"date"`
	Vendor        string    `db:"vendor" json:"vendor"`
	Description   string    `db:"description" json:"description"`
	Amount        int64     `db:"amount" json:"amount"`
	TaxType       string    `db:"tax_type" json:"taxType"`
	TaxAmount     int64     `db:"tax_amount" json:"taxAmount"`
	TotalAmount   int64     `db:"total_amount" json:"totalAmount"`
	Category      string    `db:"category" json:"category"`
	PaymentStatus string    `db:"payment_status" json:"paymentStatus"`
	PaymentDate   *string   `db:"payment_date" json:"paymentDate"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// CostUpdate holds optional fields for a partial cost update.
type CostUpdate struct {
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

// Vendor is a supplier or subcontractor.
type Vendor struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Category       string    `db:"category" json:"category"`
	Phone          string    `db:"phone" json:"phone"`
	Email          string    `db:"email" json:"email"`
	DefaultTaxType string    `db:"default_tax_type" json:"defaultTaxType"`
	PaymentTerms   string    `db:"payment_terms" json:"paymentTerms"`
	Notes          string    `db:"notes" json:"notes"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	IsFavorite     bool      `db:"is_favorite" json:"isFavorite"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// VendorUpdate holds optional fields for a partial vendor update.
type VendorUpdate struct {
	Name           *string
	Category       *string
	Phone          *string
	Email          *string
	DefaultTaxType *string
	PaymentTerms   *string
	Notes          *string
	IsActive       *bool
	IsFavorite     *bool
}

// Customer is a client the company builds for.
type Customer struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Phone         string    `db:"phone" json:"phone"`
	Email         string    `db:"email" json:"email"`
	Address       string    `db:"address" json:"address"`
	ContactPerson string    `db:"contact_person" json:"contactPerson"`
	Notes         string    `db:"notes" json:"notes"`
	IsActive      bool      `db:"is_active" json:"isActive"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// CustomerUpdate holds optional fields for a partial customer update.
type CustomerUpdate struct {
	Name          *string
	Phone         *string
	Email         *string
	Address       *string
	ContactPerson *string
	Notes         *string
	IsActive      *bool
}

// Category classifies costs. Default categories are seeded with every store
// and cannot be edited or deleted.
type Category struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Color        string    `db:"color" json:"color"`
	DisplayOrder int       `db:"display_order" json:"displayOrder"`
	IsDefault    bool      `db:"is_default" json:"isDefault"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// CategoryUpdate holds optional fields for a partial category update.
type CategoryUpdate struct {
	Name         *string
	Color        *string
	DisplayOrder *int
	IsActive     *bool
}

// Setting is a key/value row in system_settings.
type Setting struct {
	ID          int64     `db:"id" json:"id"`
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// ListFilter selects one page of a list.
type ListFilter struct {
	Page  int
	Limit int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 100
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
}

func (f ListFilter) offset() uint64 {
	return uint64((f.Page - 1) * f.Limit)
}

// ProjectFilter narrows a project listing. A nil UserID lists every user's
// projects.
type ProjectFilter struct {
	ListFilter
	UserID *int64
}

// ProjectList is one page of projects.
type ProjectList struct {
	Projects []Project
	Total    int
	Page     int
	Limit    int
}

// CostFilter narrows a cost listing.
type CostFilter struct {
	ListFilter
	ProjectID *int64
}

// CostList is one page of costs.
type CostList struct {
	Costs []Cost
	Total int
	Page  int
	Limit int
}
