package plan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecmcloud/ecm/internal/plan"
)

func TestDefault_Quotas(t *testing.T) {
	c := plan.Default()

	free, err := c.Lookup(plan.Free)
	require.NoError(t, err)
	assert.Equal(t, plan.Quota{MaxUsers: 3, MaxProjects: 30, StorageLimitMB: 50, DataRetentionDays: 365}, free)

	premium, err := c.Lookup(plan.Premium)
	require.NoError(t, err)
	assert.Equal(t, plan.Unlimited, premium.MaxUsers)
	assert.Equal(t, 5000, premium.StorageLimitMB)

	assert.Equal(t, []string{"free", "paid", "premium"}, c.Names())
}

func TestLookup_Unknown(t *testing.T) {
	_, err := plan.Default().Lookup("enterprise")
	assert.ErrorIs(t, err, plan.ErrUnknownPlan)
}

func TestAllows(t *testing.T) {
	assert.True(t, plan.Allows(3, 2))
	assert.False(t, plan.Allows(3, 3))
	assert.True(t, plan.Allows(plan.Unlimited, 1000))
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
free:
  max_users: 5
  max_projects: 40
  storage_limit_mb: 100
  data_retention_days: 365
enterprise:
  max_users: -1
  max_projects: -1
  storage_limit_mb: 20000
  data_retention_days: -1
`), 0o600))

	c, err := plan.LoadFile(path)
	require.NoError(t, err)

	free, err := c.Lookup(plan.Free)
	require.NoError(t, err)
	assert.Equal(t, 5, free.MaxUsers)

	ent, err := c.Lookup("enterprise")
	require.NoError(t, err)
	assert.Equal(t, 20000, ent.StorageLimitMB)

	_, err = c.Lookup(plan.Paid)
	assert.NoError(t, err)
}

func TestLoadFile_RejectsZeroQuota(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("free:\n  max_users: 0\n  max_projects: 1\n  storage_limit_mb: 1\n  data_retention_days: 1\n"), 0o600))

	_, err := plan.LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_EmptyPath(t *testing.T) {
	c, err := plan.LoadFile("")
	require.NoError(t, err)
	assert.Len(t, c.Names(), 3)
}
