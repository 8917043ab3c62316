package auth

import "time"

// Roles a tenant user can hold.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a row in the users table. Users belong to exactly one company.
type User struct {
	ID           int64       `db:"id"`
	CompanyID    int64       `db:"company_id"`
	Username     string      `db:"username"`
	Name         string      `db:"name"`
	PasswordHash string      `db:"password_hash"`
	Role         string      `db:"role"`
	StaffCode    *string     `db:"staff_code"`
	Permissions  Permissions `db:"permissions"`
	IsActive     bool        `db:"is_active"`
	CreatedAt    time.Time   `db:"created_at"`
	LastLoginAt  *time.Time  `db:"last_login_at"`
}

// UpdateFields holds optional fields for a partial user update.
// Nil fields are not updated. An empty StaffCode clears it.
type UpdateFields struct {
	Name        *string
	Role        *string
	StaffCode   *string
	Permissions *Permissions
	IsActive    *bool
}

// SuperAdmin represents a row in the super_admins table. Operators belong to
// no company.
type SuperAdmin struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Identity is stored in the request context after a tenant user authenticates.
type Identity struct {
	UserID      int64
	CompanyID   int64
	CompanyCode string
	CompanyName string
	Username    string
	Name        string
	Role        string
	Permissions Permissions
}

// IsAdmin reports whether the user administers their company.
func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Can reports whether the user holds the named permission. Admins hold all.
func (i *Identity) Can(permission string) bool {
	return i.IsAdmin() || i.Permissions[permission]
}

// Operator is stored in the request context after a super-admin authenticates.
type Operator struct {
	ID       int64
	Username string
}
