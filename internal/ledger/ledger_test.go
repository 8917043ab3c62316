package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/fiscal"
	"github.com/ecmcloud/ecm/internal/ledger"
	"github.com/ecmcloud/ecm/internal/tenant"
)

// fixedNow is inside fiscal period 26 under the default settings
// (2025-08-01 to 2026-07-31).
var fixedNow = time.Date(2025, time.October, 16, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *ledger.Service
	companies company.Repository
	tenants   *tenant.Manager
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := database.OpenTestMaster(t)
	root := t.TempDir()
	f := &fixture{
		companies: company.NewRepository(db),
		tenants:   tenant.NewManager(filepath.Join(root, "data"), filepath.Join(root, "backups"), zap.NewNop()),
	}
	t.Cleanup(func() { _ = f.tenants.Close() })

	f.svc = ledger.NewService(f.tenants, f.companies, zap.NewNop())
	f.svc.SetClock(func() time.Time { return fixedNow })
	return f
}

func (f *fixture) company(t *testing.T, name string, maxProjects int) *company.Company {
	t.Helper()
	c := &company.Company{
		Name: name, PlanType: "free", MaxUsers: 3, MaxProjects: maxProjects,
		StorageLimitMB: 50, DataRetentionDays: 365, IsActive: true,
	}
	require.NoError(t, f.companies.Create(context.Background(), c))
	return c
}

func identity(c *company.Company, userID int64, role string) *auth.Identity {
	return &auth.Identity{UserID: userID, CompanyID: c.ID, CompanyCode: c.CompanyCode, Role: role}
}

func strPtr(s string) *string { return &s }

func fiscalSettings(year, month, digits int) fiscal.Settings {
	return fiscal.Settings{StartYear: year, StartMonth: month, StaffCodeDigits: digits}
}

// --- Category Tests ---

func TestCategories_DefaultsSeeded(t *testing.T) {
	f := setup(t)
	c := f.company(t, "Acme", 30)

	cats, err := f.svc.ListCategories(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, cats, 4)

	names := make([]string, 0, len(cats))
	for _, cat := range cats {
		assert.True(t, cat.IsDefault)
		names = append(names, cat.Name)
	}
	assert.Equal(t, []string{"材料費", "外注費", "経費", "その他"}, names)
}

func TestCategories_DefaultsAreImmutable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	cats, err := f.svc.ListCategories(ctx, c.ID)
	require.NoError(t, err)
	def := cats[0]

	err = f.svc.DeleteCategory(ctx, c.ID, def.ID)
	assert.ErrorIs(t, err, ledger.ErrDefaultCategory)

	_, err = f.svc.UpdateCategory(ctx, c.ID, def.ID, ledger.CategoryUpdate{Name: strPtr("renamed")})
	assert.ErrorIs(t, err, ledger.ErrDefaultCategory)

	cats, err = f.svc.ListCategories(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, cats, 4)
}

func TestCategories_CustomLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	custom := &ledger.Category{Name: "重機リース", IsActive: true, IsDefault: true}
	require.NoError(t, f.svc.CreateCategory(ctx, c.ID, custom))
	assert.False(t, custom.IsDefault, "custom categories are never defaults")
	assert.Equal(t, 999, custom.DisplayOrder)

	err := f.svc.CreateCategory(ctx, c.ID, &ledger.Category{Name: "重機リース", IsActive: true})
	assert.ErrorIs(t, err, ledger.ErrDuplicateCategory)

	updated, err := f.svc.UpdateCategory(ctx, c.ID, custom.ID, ledger.CategoryUpdate{Color: strPtr("#000000")})
	require.NoError(t, err)
	assert.Equal(t, "#000000", updated.Color)

	require.NoError(t, f.svc.DeleteCategory(ctx, c.ID, custom.ID))
	assert.ErrorIs(t, f.svc.DeleteCategory(ctx, c.ID, custom.ID), ledger.ErrNotFound)
}

// --- Project Tests ---

func TestCreateProject_StampsPeriodAndOwner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	p := &ledger.Project{ProjectCode: "001", Name: "Bridge", ContractAmount: 1_000_000}
	require.NoError(t, f.svc.CreateProject(ctx, identity(c, 11, auth.RoleUser), p))

	assert.NotZero(t, p.ID)
	assert.Equal(t, int64(11), p.UserID)
	require.NotNil(t, p.Period)
	assert.Equal(t, 26, *p.Period)
	assert.Equal(t, ledger.StatusActive, p.Status)
	assert.Equal(t, ledger.TaxIncluded, p.TaxType)
	assert.Equal(t, 10, p.TaxRate)

	got, err := f.svc.GetProject(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bridge", got.Name)
}

func TestCreateProject_CodeUniquePerUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	require.NoError(t, f.svc.CreateProject(ctx, identity(c, 1, auth.RoleUser), &ledger.Project{ProjectCode: "A-1", Name: "x"}))

	err := f.svc.CreateProject(ctx, identity(c, 1, auth.RoleUser), &ledger.Project{ProjectCode: "A-1", Name: "y"})
	assert.ErrorIs(t, err, ledger.ErrDuplicateProjectCode)

	err = f.svc.CreateProject(ctx, identity(c, 2, auth.RoleUser), &ledger.Project{ProjectCode: "A-1", Name: "z"})
	assert.NoError(t, err, "another user may reuse the code")
}

func TestCreateProject_QuotaExceeded(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Tiny", 1)

	require.NoError(t, f.svc.CreateProject(ctx, identity(c, 1, auth.RoleUser), &ledger.Project{ProjectCode: "1", Name: "one"}))

	err := f.svc.CreateProject(ctx, identity(c, 1, auth.RoleUser), &ledger.Project{ProjectCode: "2", Name: "two"})
	assert.ErrorIs(t, err, ledger.ErrQuotaExceeded)
}

func TestUpdateProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)
	id := identity(c, 1, auth.RoleUser)

	a := &ledger.Project{ProjectCode: "A", Name: "a", StartDate: strPtr("2025-09-01")}
	b := &ledger.Project{ProjectCode: "B", Name: "b"}
	require.NoError(t, f.svc.CreateProject(ctx, id, a))
	require.NoError(t, f.svc.CreateProject(ctx, id, b))

	_, err := f.svc.UpdateProject(ctx, c.ID, b.ID, ledger.ProjectUpdate{ProjectCode: strPtr("A")})
	assert.ErrorIs(t, err, ledger.ErrDuplicateProjectCode)

	updated, err := f.svc.UpdateProject(ctx, c.ID, a.ID, ledger.ProjectUpdate{
		Status:    strPtr(ledger.StatusCompleted),
		StartDate: strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, updated.Status)
	assert.Nil(t, updated.StartDate, "empty date clears it")
	assert.Equal(t, "a", updated.Name)

	_, err = f.svc.UpdateProject(ctx, c.ID, 9999, ledger.ProjectUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestListProjects_ByUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	for i, user := range []int64{1, 1, 2} {
		p := &ledger.Project{ProjectCode: string(rune('A' + i)), Name: "p"}
		require.NoError(t, f.svc.CreateProject(ctx, identity(c, user, auth.RoleUser), p))
	}

	user1 := int64(1)
	mine, err := f.svc.ListProjects(ctx, c.ID, ledger.ProjectFilter{UserID: &user1})
	require.NoError(t, err)
	assert.Equal(t, 2, mine.Total)
	assert.Len(t, mine.Projects, 2)

	all, err := f.svc.ListProjects(ctx, c.ID, ledger.ProjectFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)

	page, err := f.svc.ListProjects(ctx, c.ID, ledger.ProjectFilter{ListFilter: ledger.ListFilter{Page: 2, Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, page.Projects, 1)
	assert.Equal(t, 3, page.Total)
}

// --- Cost Tests ---

func TestCreateCost_RequiresProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	err := f.svc.CreateCost(ctx, c.ID, &ledger.Cost{ProjectID: 42, Date: "2025-10-01", Vendor: "v", Amount: 1, TotalAmount: 1})
	assert.ErrorIs(t, err, ledger.ErrProjectNotFound)
}

func TestCosts_LifecycleAndCascade(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	p := &ledger.Project{ProjectCode: "P", Name: "p"}
	require.NoError(t, f.svc.CreateProject(ctx, identity(c, 1, auth.RoleUser), p))

	cost := &ledger.Cost{ProjectID: p.ID, Date: "2025-10-01", Vendor: "Steel Co", Amount: 1000, TotalAmount: 1100}
	require.NoError(t, f.svc.CreateCost(ctx, c.ID, cost))
	assert.Equal(t, ledger.DefaultCostCategory, cost.Category)
	assert.Equal(t, ledger.PaymentUnpaid, cost.PaymentStatus)

	updated, err := f.svc.UpdateCost(ctx, c.ID, cost.ID, ledger.CostUpdate{
		PaymentStatus: strPtr(ledger.PaymentPaid),
		PaymentDate:   strPtr("2025-10-10"),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentPaid, updated.PaymentStatus)
	require.NotNil(t, updated.PaymentDate)

	missing := int64(777)
	_, err = f.svc.UpdateCost(ctx, c.ID, cost.ID, ledger.CostUpdate{ProjectID: &missing})
	assert.ErrorIs(t, err, ledger.ErrProjectNotFound)

	list, err := f.svc.ListCosts(ctx, c.ID, ledger.CostFilter{ProjectID: &p.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	require.NoError(t, f.svc.DeleteProject(ctx, c.ID, p.ID))
	_, err = f.svc.GetCost(ctx, c.ID, cost.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound, "costs are removed with their project")
}

// --- Vendor / Customer Tests ---

func TestVendors_IsolatedPerCompany(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.company(t, "Alpha", 30)
	b := f.company(t, "Beta", 30)

	require.NoError(t, f.svc.CreateVendor(ctx, a.ID, &ledger.Vendor{Name: "Only Alpha", IsActive: true}))

	va, err := f.svc.ListVendors(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, va, 1)

	vb, err := f.svc.ListVendors(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, vb)
}

func TestVendors_UpdateAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	v := &ledger.Vendor{Name: "Steel Co", IsActive: true}
	require.NoError(t, f.svc.CreateVendor(ctx, c.ID, v))
	assert.Equal(t, ledger.TaxIncluded, v.DefaultTaxType)

	fav := true
	updated, err := f.svc.UpdateVendor(ctx, c.ID, v.ID, ledger.VendorUpdate{IsFavorite: &fav})
	require.NoError(t, err)
	assert.True(t, updated.IsFavorite)

	require.NoError(t, f.svc.DeleteVendor(ctx, c.ID, v.ID))
	assert.ErrorIs(t, f.svc.DeleteVendor(ctx, c.ID, v.ID), ledger.ErrNotFound)
}

func TestCustomers_InactiveHidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	cust := &ledger.Customer{Name: "City Hall", IsActive: true}
	require.NoError(t, f.svc.CreateCustomer(ctx, c.ID, cust))

	inactive := false
	_, err := f.svc.UpdateCustomer(ctx, c.ID, cust.ID, ledger.CustomerUpdate{IsActive: &inactive})
	require.NoError(t, err)

	list, err := f.svc.ListCustomers(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// --- Settings Tests ---

func TestFiscalSettings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	info, err := f.svc.FiscalSettings(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2000, info.StartYear)
	assert.Equal(t, 8, info.StartMonth)
	assert.Equal(t, 3, info.StaffCodeDigits)
	assert.Equal(t, 26, info.CurrentPeriod)

	info, err = f.svc.UpdateFiscalSettings(ctx, c.ID, fiscalSettings(2010, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, 16, info.CurrentPeriod)

	s, err := f.svc.GetSetting(ctx, c.ID, ledger.KeyFiscalStartMonth)
	require.NoError(t, err)
	assert.Equal(t, "4", s.Value)

	_, err = f.svc.UpdateFiscalSettings(ctx, c.ID, fiscalSettings(2010, 13, 4))
	assert.ErrorIs(t, err, ledger.ErrInvalidSetting)
}

func TestPutSetting(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)

	s, err := f.svc.PutSetting(ctx, c.ID, "invoice_footer", "Thank you")
	require.NoError(t, err)
	assert.Equal(t, "Thank you", s.Value)

	s, err = f.svc.PutSetting(ctx, c.ID, "invoice_footer", "Thanks")
	require.NoError(t, err)
	assert.Equal(t, "Thanks", s.Value)

	_, err = f.svc.PutSetting(ctx, c.ID, ledger.KeyUnbilledDefinition, "never")
	assert.ErrorIs(t, err, ledger.ErrInvalidSetting)

	_, err = f.svc.PutSetting(ctx, c.ID, ledger.KeyFiscalStartMonth, "zero")
	assert.ErrorIs(t, err, ledger.ErrInvalidSetting)

	_, err = f.svc.GetSetting(ctx, c.ID, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	all, err := f.svc.ListSettings(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

// --- Dashboard Tests ---

func TestSummary_AdminCurrentPeriod(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)
	admin := identity(c, 1, auth.RoleAdmin)

	done := &ledger.Project{ProjectCode: "D", Name: "done", ContractAmount: 1_000_000, Status: ledger.StatusCompleted}
	require.NoError(t, f.svc.CreateProject(ctx, admin, done))
	require.NoError(t, f.svc.CreateCost(ctx, c.ID, &ledger.Cost{ProjectID: done.ID, Date: "2025-09-01", Vendor: "v", Amount: 300_000, TotalAmount: 330_000}))
	require.NoError(t, f.svc.CreateCost(ctx, c.ID, &ledger.Cost{ProjectID: done.ID, Date: "2024-09-01", Vendor: "v", Amount: 50_000, TotalAmount: 55_000}))

	invoiced := &ledger.Project{ProjectCode: "I", Name: "invoiced", ContractAmount: 500_000, InvoiceDate: strPtr("2025-10-01")}
	require.NoError(t, f.svc.CreateProject(ctx, admin, invoiced))
	require.NoError(t, f.svc.CreateCost(ctx, c.ID, &ledger.Cost{ProjectID: invoiced.ID, Date: "2025-10-02", Vendor: "v", Amount: 100_000, TotalAmount: 110_000, Category: "外注費"}))

	sum, err := f.svc.Summary(ctx, admin, ledger.SummaryQuery{})
	require.NoError(t, err)

	assert.Equal(t, "2025-08-01", sum.PeriodInfo.StartDate)
	assert.Equal(t, "2026-07-31", sum.PeriodInfo.EndDate)
	assert.Equal(t, 26, sum.PeriodInfo.CurrentPeriod)
	assert.Equal(t, "第26期", sum.PeriodDisplay)

	assert.Equal(t, int64(1_500_000), sum.Summary.TotalContract)
	assert.Equal(t, int64(400_000), sum.Summary.TotalCost, "costs outside the period are excluded")
	assert.Equal(t, int64(1_100_000), sum.Summary.GrossProfit)
	assert.InDelta(t, 73.3, sum.Summary.GrossProfitRate, 0.001)
	assert.Equal(t, map[string]int64{"材料費": 300_000, "外注費": 100_000}, sum.CostBreakdown)

	assert.Equal(t, 1, sum.Projects.Active)
	assert.Equal(t, 1, sum.Projects.Completed)
	assert.Equal(t, 2, sum.Projects.Total)

	assert.Equal(t, 1, sum.Unbilled.Count)
	assert.Equal(t, done.ID, sum.Unbilled.Projects[0].ID)
	assert.Equal(t, 1, sum.Unpaid.Count)
	assert.Equal(t, int64(500_000), sum.Unpaid.Total)
}

func TestSummary_UserSeesOwnOverlappingProjects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)
	user := identity(c, 5, auth.RoleUser)

	require.NoError(t, f.svc.CreateProject(ctx, user, &ledger.Project{ProjectCode: "IN", Name: "in", ContractAmount: 100, StartDate: strPtr("2025-09-01")}))
	require.NoError(t, f.svc.CreateProject(ctx, user, &ledger.Project{ProjectCode: "OLD", Name: "old", ContractAmount: 200, StartDate: strPtr("2020-01-01"), EndDate: strPtr("2020-12-31")}))
	require.NoError(t, f.svc.CreateProject(ctx, user, &ledger.Project{ProjectCode: "GEN", Name: "gen", ContractAmount: 0, IsGeneralExpense: true}))
	require.NoError(t, f.svc.CreateProject(ctx, identity(c, 6, auth.RoleUser), &ledger.Project{ProjectCode: "X", Name: "other", ContractAmount: 999, StartDate: strPtr("2025-09-01")}))

	sum, err := f.svc.Summary(ctx, user, ledger.SummaryQuery{PeriodType: ledger.PeriodCurrent})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Projects.Total)
	assert.Equal(t, int64(100), sum.Summary.TotalContract)
}

func TestSummary_Ranges(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.company(t, "Acme", 30)
	admin := identity(c, 1, auth.RoleAdmin)

	prev, err := f.svc.Summary(ctx, admin, ledger.SummaryQuery{PeriodType: ledger.PeriodPrevious})
	require.NoError(t, err)
	assert.Equal(t, "2024-08-01", prev.PeriodInfo.StartDate)
	assert.Equal(t, "2025-07-31", prev.PeriodInfo.EndDate)
	assert.Equal(t, "第25期", prev.PeriodDisplay)

	all, err := f.svc.Summary(ctx, admin, ledger.SummaryQuery{PeriodType: ledger.PeriodAll})
	require.NoError(t, err)
	assert.Equal(t, "2000-01-01", all.PeriodInfo.StartDate)
	assert.Equal(t, "全期間", all.PeriodDisplay)

	custom, err := f.svc.Summary(ctx, admin, ledger.SummaryQuery{PeriodType: ledger.PeriodCustom, StartDate: "2025-01-01", EndDate: "2025-03-31"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", custom.PeriodInfo.EndDate)

	_, err = f.svc.Summary(ctx, admin, ledger.SummaryQuery{PeriodType: ledger.PeriodCustom, StartDate: "2025-04-01", EndDate: "2025-03-31"})
	assert.ErrorIs(t, err, ledger.ErrInvalidRange)
}
