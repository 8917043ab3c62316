package company

import "time"

// Company represents a row in the companies table. Each company owns one
// tenant store.
type Company struct {
	ID                int64      `db:"id"`
	CompanyCode       string     `db:"company_code"`
	Name              string     `db:"name"`
	Email             string     `db:"email"`
	PlanType          string     `db:"plan_type"`
	MaxUsers          int        `db:"max_users"`
	MaxProjects       int        `db:"max_projects"`
	StorageLimitMB    int        `db:"storage_limit_mb"`
	DataRetentionDays int        `db:"data_retention_days"`
	StorageUsedMB     float64    `db:"storage_used_mb"`
	IsActive          bool       `db:"is_active"`
	VerificationToken *string    `db:"verification_token"`
	VerifiedAt        *time.Time `db:"verified_at"`
	CreatedAt         time.Time  `db:"created_at"`
	LastLoginAt       *time.Time `db:"last_login_at"`
	ExpiresAt         *time.Time `db:"expires_at"`
}

// Stats summarizes the registry for the operator console.
type Stats struct {
	Total  int `db:"total"`
	Active int `db:"active"`
	Paid   int `db:"paid"`
	Free   int `db:"free"`
}
