package company

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ecmcloud/ecm/internal/plan"
)

// ErrNotFound is returned when a company record is not found.
var ErrNotFound = errors.New("company not found")

// ErrDuplicateCode is returned when a caller-chosen company code is taken.
var ErrDuplicateCode = errors.New("company code already exists")

// ErrDuplicateName is returned when a company with the same name already exists.
var ErrDuplicateName = errors.New("company name already exists")

// ErrCodeCollision is returned when a generated company code lost a race with
// a concurrent insert. Callers retry with a fresh code.
var ErrCodeCollision = errors.New("generated company code collided")

// Repository provides operations on the companies table.
type Repository interface {
	// WithTx returns a Repository bound to tx.
	WithTx(tx *sqlx.Tx) Repository

	// Create inserts c. An empty CompanyCode is replaced by a generated one.
	Create(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, id int64) (*Company, error)
	GetByCode(ctx context.Context, code string) (*Company, error)
	GetByVerificationToken(ctx context.Context, token string) (*Company, error)
	List(ctx context.Context) ([]Company, error)
	ToggleActive(ctx context.Context, id int64) (*Company, error)
	UpdatePlan(ctx context.Context, id int64, planType string, q plan.Quota) (*Company, error)
	Activate(ctx context.Context, id int64, verifiedAt time.Time, expiresAt *time.Time) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdateStorageUsed(ctx context.Context, id int64, mb float64) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*Stats, error)
}
