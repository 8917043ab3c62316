package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateUsername is returned when the username is taken within the company.
var ErrDuplicateUsername = errors.New("username already exists in company")

// ErrDuplicateStaffCode is returned when the staff code is taken within the company.
var ErrDuplicateStaffCode = errors.New("staff code already exists in company")

// ErrSuperAdminNotFound is returned when a super-admin record is not found.
var ErrSuperAdminNotFound = errors.New("super admin not found")

// ErrDuplicateSuperAdmin is returned when the super-admin username is taken.
var ErrDuplicateSuperAdmin = errors.New("super admin username already exists")

// UserRepository provides operations on the users table. Every lookup that
// accepts a companyID is scoped to that company.
type UserRepository interface {
	WithTx(tx *sqlx.Tx) UserRepository

	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetInCompany(ctx context.Context, companyID, id int64) (*User, error)
	GetByUsername(ctx context.Context, companyID int64, username string) (*User, error)
	ListByCompany(ctx context.Context, companyID int64) ([]User, error)
	CountByCompany(ctx context.Context, companyID int64) (int, error)
	CountAll(ctx context.Context) (int, error)
	Update(ctx context.Context, companyID, id int64, fields UpdateFields) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	ActivateCompanyUsers(ctx context.Context, companyID int64) error
	Delete(ctx context.Context, companyID, id int64) error
}

// SuperAdminRepository provides operations on the super_admins table.
type SuperAdminRepository interface {
	Create(ctx context.Context, a *SuperAdmin) error
	GetByID(ctx context.Context, id int64) (*SuperAdmin, error)
	GetByUsername(ctx context.Context, username string) (*SuperAdmin, error)
	CountAll(ctx context.Context) (int, error)
}
