package auth

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
)

// Permission names understood by the API.
const (
	PermViewDashboard  = "view_dashboard"
	PermViewAllStats   = "view_all_stats"
	PermViewProjects   = "view_projects"
	PermCreateProjects = "create_projects"
	PermEditProjects   = "edit_projects"
	PermDeleteProjects = "delete_projects"
	PermViewCosts      = "view_costs"
	PermCreateCosts    = "create_costs"
	PermEditCosts      = "edit_costs"
	PermDeleteCosts    = "delete_costs"
	PermViewPartners   = "view_partners"
	PermManagePartners = "manage_partners"
	PermManageUsers    = "manage_users"
	PermManageSettings = "manage_settings"
	PermExportData     = "export_data"
	PermSuperAdmin     = "super_admin"
)

// Permissions maps permission names to grants. It is stored as a JSON object.
type Permissions map[string]bool

var defaultPermissions = Permissions{
	PermViewDashboard:  true,
	PermViewAllStats:   false,
	PermViewProjects:   true,
	PermCreateProjects: false,
	PermEditProjects:   false,
	PermDeleteProjects: false,
	PermViewCosts:      true,
	PermCreateCosts:    false,
	PermEditCosts:      false,
	PermDeleteCosts:    false,
	PermViewPartners:   true,
	PermManagePartners: false,
	PermManageUsers:    false,
	PermManageSettings: false,
	PermExportData:     false,
	PermSuperAdmin:     false,
}

// DefaultPermissions returns a fresh copy of the permissions granted to new users.
func DefaultPermissions() Permissions {
	return maps.Clone(defaultPermissions)
}

// Known reports whether name is a recognized permission.
func Known(name string) bool {
	_, ok := defaultPermissions[name]
	return ok
}

// Merge returns the defaults overlaid with p, dropping unknown names.
func (p Permissions) Merge() Permissions {
	out := DefaultPermissions()
	for k, v := range p {
		if Known(k) {
			out[k] = v
		}
	}
	return out
}

// Value implements driver.Valuer.
func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding permissions: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Permissions) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = Permissions{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scanning permissions: unsupported type %T", src)
	}

	out := Permissions{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decoding permissions: %w", err)
	}
	*p = out
	return nil
}
