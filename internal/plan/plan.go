// Package plan defines the subscription plans and the quotas each grants.
package plan

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Unlimited marks a quota with no upper bound.
const Unlimited = -1

// Plan names.
const (
	Free    = "free"
	Paid    = "paid"
	Premium = "premium"
)

// ErrUnknownPlan is returned when a plan name is not in the catalog.
var ErrUnknownPlan = errors.New("unknown plan")

// Quota holds the limits a plan grants a company.
type Quota struct {
	MaxUsers          int `yaml:"max_users" json:"maxUsers"`
	MaxProjects       int `yaml:"max_projects" json:"maxProjects"`
	StorageLimitMB    int `yaml:"storage_limit_mb" json:"storageLimitMb"`
	DataRetentionDays int `yaml:"data_retention_days" json:"dataRetentionDays"`
}

// Allows reports whether current usage leaves room for one more item under limit.
func Allows(limit, current int) bool {
	return limit == Unlimited || current < limit
}

// Catalog maps plan names to quotas.
type Catalog struct {
	plans map[string]Quota
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{plans: map[string]Quota{
		Free:    {MaxUsers: 3, MaxProjects: 30, StorageLimitMB: 50, DataRetentionDays: 365},
		Paid:    {MaxUsers: 10, MaxProjects: 100, StorageLimitMB: 500, DataRetentionDays: Unlimited},
		Premium: {MaxUsers: Unlimited, MaxProjects: Unlimited, StorageLimitMB: 5000, DataRetentionDays: Unlimited},
	}}
}

// LoadFile reads a YAML document of plan name to quota and overlays it on the
// built-in catalog. An empty path returns the default catalog.
func LoadFile(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plans file: %w", err)
	}

	var overrides map[string]Quota
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parsing plans file: %w", err)
	}

	for name, q := range overrides {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("plan %q: %w", name, err)
		}
		c.plans[name] = q
	}
	return c, nil
}

// Lookup returns the quota for name.
func (c *Catalog) Lookup(name string) (Quota, error) {
	q, ok := c.plans[name]
	if !ok {
		return Quota{}, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
	}
	return q, nil
}

// Names returns the plan names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.plans))
	for n := range c.plans {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (q Quota) validate() error {
	for field, v := range map[string]int{
		"max_users":           q.MaxUsers,
		"max_projects":        q.MaxProjects,
		"storage_limit_mb":    q.StorageLimitMB,
		"data_retention_days": q.DataRetentionDays,
	} {
		if v == 0 || v < Unlimited {
			return fmt.Errorf("%s must be positive or -1 for unlimited", field)
		}
	}
	return nil
}
