package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/api"
	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/console"
	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/ledger"
	"github.com/ecmcloud/ecm/internal/notify"
	"github.com/ecmcloud/ecm/internal/plan"
	"github.com/ecmcloud/ecm/internal/tenant"
)

const (
	operatorUser     = "root"
	operatorPassword = "operator-pass"
	adminPassword    = "admin123"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) last() notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type options struct {
	registration bool
	loginLimit   middleware.RateLimitConfig
	trustProxy   bool
}

type fixture struct {
	router   http.Handler
	notifier *recordingNotifier
}

func setup(t *testing.T, opts options) *fixture {
	t.Helper()

	db := database.OpenTestMaster(t)
	root := t.TempDir()
	tenants := tenant.NewManager(filepath.Join(root, "data"), filepath.Join(root, "backups"), zap.NewNop())
	t.Cleanup(func() { _ = tenants.Close() })

	companies := company.NewRepository(db)
	users := auth.NewRepository(db)
	authSvc := auth.NewService(users, auth.NewSuperAdminRepository(db), companies,
		auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour), 4, zap.NewNop())
	_, err := authSvc.BootstrapSuperAdmin(context.Background(), operatorUser, operatorPassword)
	require.NoError(t, err)

	n := &recordingNotifier{}
	consoleSvc := console.NewService(db, companies, users, authSvc, tenants, plan.Default(), zap.NewNop(), console.Options{
		RegistrationEnabled: opts.registration,
		AppURL:              "https://ecm.example.com",
		Notifier:            n,
	})

	router := api.NewRouter(api.RouterDeps{
		Logger:      zap.NewNop(),
		DBPinger:    db,
		Version:     "test",
		Auth:        authSvc,
		Console:     consoleSvc,
		Ledger:      ledger.NewService(tenants, companies, zap.NewNop()),
		Tenants:     tenants,
		Plans:       plan.Default(),
		CORSOrigins: []string{"http://localhost:3000"},
		LoginLimit:  opts.loginLimit,
		TrustProxy:  opts.trustProxy,
	})
	return &fixture{router: router, notifier: n}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	d, ok := envelope(t, w)["data"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return d
}

func list(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	d, ok := envelope(t, w)["data"].([]any)
	require.True(t, ok, w.Body.String())
	return d
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	e, ok := envelope(t, w)["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

func (f *fixture) operatorToken(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/super/login", "", map[string]string{
		"username": operatorUser,
		"password": operatorPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return data(t, w)["accessToken"].(string)
}

// createCompany creates a company through the console and returns its code.
func (f *fixture) createCompany(t *testing.T, op, name, planType string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/super/companies", op, map[string]string{
		"name":          name,
		"planType":      planType,
		"adminPassword": adminPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return data(t, w)["company"].(map[string]any)["companyCode"].(string)
}

func (f *fixture) login(t *testing.T, code, username, password string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"companyCode": code,
		"username":    username,
		"password":    password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return data(t, w)["accessToken"].(string)
}

// tenantAdmin returns an admin token for a fresh company.
func (f *fixture) tenantAdmin(t *testing.T, planType string) string {
	t.Helper()
	op := f.operatorToken(t)
	code := f.createCompany(t, op, "Yamada Construction", planType)
	return f.login(t, code, console.DefaultAdminUsername, adminPassword)
}

// --- Health ---

func TestHealth(t *testing.T) {
	f := setup(t, options{})

	w := f.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.Equal(t, "healthy", d["status"])
	assert.Equal(t, "test", d["version"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	f := setup(t, options{})
	f.do(t, http.MethodGet, "/health", "", nil)

	w := f.do(t, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ecm_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	f := setup(t, options{})
	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

// --- Auth ---

func TestLogin_AndMe(t *testing.T) {
	f := setup(t, options{})
	op := f.operatorToken(t)
	code := f.createCompany(t, op, "Sato Kensetsu", plan.Free)

	w := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"companyCode": strings.ToUpper(code),
		"username":    console.DefaultAdminUsername,
		"password":    adminPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := data(t, w)
	assert.Equal(t, "bearer", d["tokenType"])
	assert.Equal(t, code, d["company"].(map[string]any)["companyCode"])
	token := d["accessToken"].(string)

	w = f.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := data(t, w)
	assert.Equal(t, "admin", me["role"])
	assert.Equal(t, "Sato Kensetsu", me["companyName"])
	perms := me["permissions"].(map[string]any)
	assert.Equal(t, true, perms[auth.PermViewDashboard])
}

func TestLogin_Failures(t *testing.T) {
	f := setup(t, options{})
	op := f.operatorToken(t)
	code := f.createCompany(t, op, "Fail Co", plan.Free)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"wrong password", map[string]string{"companyCode": code, "username": "admin", "password": "nope"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown company", map[string]string{"companyCode": "zzzzzz", "username": "admin", "password": adminPassword}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"missing fields", map[string]string{"companyCode": code}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed json", "{not json", http.StatusBadRequest, "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestTokenAudiencesAreSeparate(t *testing.T) {
	f := setup(t, options{})
	op := f.operatorToken(t)
	code := f.createCompany(t, op, "Audience Co", plan.Free)
	user := f.login(t, code, "admin", adminPassword)

	w := f.do(t, http.MethodGet, "/api/projects", op, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/super/companies", user, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeactivatedCompanyLosesAccess(t *testing.T) {
	f := setup(t, options{})
	op := f.operatorToken(t)
	code := f.createCompany(t, op, "Toggle Co", plan.Free)
	user := f.login(t, code, "admin", adminPassword)

	w := f.do(t, http.MethodGet, "/api/super/companies", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	id := list(t, w)[0].(map[string]any)["id"].(float64)

	w = f.do(t, http.MethodPut, fmt.Sprintf("/api/super/companies/%d/toggle-active", int64(id)), op, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, data(t, w)["isActive"])

	w = f.do(t, http.MethodGet, "/api/auth/me", user, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePassword(t *testing.T) {
	f := setup(t, options{})
	op := f.operatorToken(t)
	code := f.createCompany(t, op, "Password Co", plan.Free)
	token := f.login(t, code, "admin", adminPassword)

	w := f.do(t, http.MethodPut, "/api/users/me/password", token, map[string]string{
		"currentPassword": "wrong-one",
		"newPassword":     "brand-new",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "WRONG_PASSWORD", errorCode(t, w))

	w = f.do(t, http.MethodPut, "/api/users/me/password", token, map[string]string{
		"currentPassword": adminPassword,
		"newPassword":     "brand-new",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f.login(t, code, "admin", "brand-new")
}

func TestLoginRateLimit(t *testing.T) {
	f := setup(t, options{loginLimit: middleware.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}})
	body := map[string]string{"companyCode": "abcdef", "username": "x", "password": "y"}

	for range 2 {
		w := f.do(t, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := f.do(t, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))
}

func TestLoginRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	f := setup(t, options{loginLimit: middleware.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}})
	body := `{"companyCode":"abcdef","username":"x","password":"y"}`

	codes := make([]int, 0, 3)
	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.10:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestLoginRateLimit_TrustedProxy(t *testing.T) {
	f := setup(t, options{
		loginLimit: middleware.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1},
		trustProxy: true,
	})
	body := `{"companyCode":"abcdef","username":"x","password":"y"}`

	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.2:4000"
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i+1))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "client %d", i+1)
	}
}

// --- Registration ---

func TestRegistration_Disabled(t *testing.T) {
	f := setup(t, options{})

	w := f.do(t, http.MethodPost, "/api/auth/company-register", "", map[string]string{
		"companyName":   "Self Co",
		"email":         "owner@example.com",
		"adminUsername": "owner",
		"adminPassword": "owner-pass",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegistration_VerifyThenLogin(t *testing.T) {
	f := setup(t, options{registration: true})

	w := f.do(t, http.MethodPost, "/api/auth/company-register", "", map[string]string{
		"companyName":   "Self Co",
		"email":         "owner@example.com",
		"adminUsername": "owner",
		"adminPassword": "owner-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	code := data(t, w)["companyCode"].(string)

	// Unverified companies cannot log in.
	w = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"companyCode": code, "username": "owner", "password": "owner-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body := f.notifier.last().Body
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	token := strings.Fields(body[idx+len("token="):])[0]

	w = f.do(t, http.MethodGet, "/api/auth/verify?token=bogus", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/auth/verify?token="+token, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	f.login(t, code, "owner", "owner-pass")
}

// --- Users ---

func TestUsers_AdminOnly(t *testing.T) {
	f := setup(t, options{})
	op := f.operatorToken(t)
	code := f.createCompany(t, op, "Members Co", plan.Free)
	admin := f.login(t, code, "admin", adminPassword)

	w := f.do(t, http.MethodPost, "/api/users", admin, map[string]any{
		"username": "tanaka",
		"name":     "Tanaka",
		"password": "tanaka-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "user", data(t, w)["role"])

	member := f.login(t, code, "tanaka", "tanaka-pass")
	w = f.do(t, http.MethodGet, "/api/users", member, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, list(t, w), 2)
}

func TestUsers_QuotaAndSelfDelete(t *testing.T) {
	f := setup(t, options{})
	op := f.operatorToken(t)
	code := f.createCompany(t, op, "Small Co", plan.Free)
	admin := f.login(t, code, "admin", adminPassword)

	for _, name := range []string{"user1", "user2"} {
		w := f.do(t, http.MethodPost, "/api/users", admin, map[string]any{"username": name, "name": name, "password": "password"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := f.do(t, http.MethodPost, "/api/users", admin, map[string]any{"username": "user3", "name": "user3", "password": "password"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "QUOTA_EXCEEDED", errorCode(t, w))

	w = f.do(t, http.MethodGet, "/api/auth/me", admin, nil)
	selfID := int64(data(t, w)["id"].(float64))
	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", selfID), admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- Projects and Costs ---

func TestProjects_CRUD(t *testing.T) {
	f := setup(t, options{})
	token := f.tenantAdmin(t, plan.Paid)

	w := f.do(t, http.MethodPost, "/api/projects", token, map[string]any{
		"projectCode":    "P-001",
		"name":           "Office renovation",
		"contractAmount": 1200000,
		"startDate":      "2024-09-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := int64(data(t, w)["id"].(float64))

	w = f.do(t, http.MethodPost, "/api/projects", token, map[string]any{"projectCode": "P-001", "name": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/projects", token, map[string]any{"projectCode": "P-002"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = f.do(t, http.MethodGet, "/api/projects", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, list(t, w), 1)
	assert.Equal(t, float64(1), envelope(t, w)["meta"].(map[string]any)["total"])

	w = f.do(t, http.MethodPut, fmt.Sprintf("/api/projects/%d", id), token, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", data(t, w)["status"])

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Office renovation", data(t, w)["name"])

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/projects/%d", id), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d", id), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/projects/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

func TestCosts_ForProject(t *testing.T) {
	f := setup(t, options{})
	token := f.tenantAdmin(t, plan.Paid)

	w := f.do(t, http.MethodPost, "/api/projects", token, map[string]any{"projectCode": "C-1", "name": "Warehouse"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	projectID := int64(data(t, w)["id"].(float64))

	w = f.do(t, http.MethodPost, "/api/costs", token, map[string]any{
		"projectId":   projectID,
		"date":        "2024-10-01",
		"vendor":      "Steel Supply",
		"amount":      10000,
		"taxAmount":   1000,
		"totalAmount": 11000,
		"category":    "材料費",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	costID := int64(data(t, w)["id"].(float64))

	w = f.do(t, http.MethodGet, fmt.Sprintf("/api/costs?projectId=%d", projectID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	costs := list(t, w)
	require.Len(t, costs, 1)
	assert.Equal(t, float64(11000), costs[0].(map[string]any)["totalAmount"])

	w = f.do(t, http.MethodPost, "/api/costs", token, map[string]any{"projectId": projectID, "vendor": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/costs/%d", costID), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

// --- Categories and Settings ---

func TestCategories_DefaultsAreProtected(t *testing.T) {
	f := setup(t, options{})
	token := f.tenantAdmin(t, plan.Free)

	w := f.do(t, http.MethodGet, "/api/categories", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	categories := list(t, w)
	require.Len(t, categories, 4)
	defaultID := int64(categories[0].(map[string]any)["id"].(float64))

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", defaultID), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/categories", token, map[string]any{"name": "重機", "color": "#123456"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, data(t, w)["isActive"])
}

func TestFiscalSettings(t *testing.T) {
	f := setup(t, options{})
	token := f.tenantAdmin(t, plan.Free)

	w := f.do(t, http.MethodGet, "/api/settings/fiscal", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := data(t, w)
	assert.Equal(t, float64(2000), d["fiscalStartYear"])
	assert.Equal(t, float64(8), d["fiscalStartMonth"])

	w = f.do(t, http.MethodPut, "/api/settings/fiscal", token, map[string]any{
		"fiscalStartYear":  2010,
		"fiscalStartMonth": 4,
		"staffCodeDigits":  4,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(4), data(t, w)["fiscalStartMonth"])

	w = f.do(t, http.MethodPut, "/api/settings/fiscal", token, map[string]any{"fiscalStartMonth": 13})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Dashboard ---

func TestDashboardSummary(t *testing.T) {
	f := setup(t, options{})
	token := f.tenantAdmin(t, plan.Free)

	w := f.do(t, http.MethodGet, "/api/dashboard/summary?periodType=all", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := data(t, w)
	assert.Contains(t, d, "summary")
	assert.Contains(t, d, "periodInfo")

	w = f.do(t, http.MethodGet, "/api/dashboard/summary?periodType=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Console ---

func TestConsole_PlanAndStats(t *testing.T) {
	f := setup(t, options{})
	op := f.operatorToken(t)
	f.createCompany(t, op, "Stats Co", plan.Free)

	w := f.do(t, http.MethodGet, "/api/super/companies", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	id := int64(list(t, w)[0].(map[string]any)["id"].(float64))

	w = f.do(t, http.MethodPut, fmt.Sprintf("/api/super/companies/%d/plan", id), op, map[string]string{"planType": "gold"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, fmt.Sprintf("/api/super/companies/%d/plan", id), op, map[string]string{"planType": plan.Premium})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, plan.Premium, data(t, w)["planType"])

	w = f.do(t, http.MethodGet, "/api/super/stats", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := data(t, w)
	assert.Equal(t, float64(1), stats["totalCompanies"])
	assert.Equal(t, float64(1), stats["paidCompanies"])

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/super/companies/%d/backup", id), op, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/super/backups", op, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, list(t, w), 1)

	w = f.do(t, http.MethodDelete, fmt.Sprintf("/api/super/companies/%d", id), op, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/super/companies", op, nil)
	assert.Empty(t, list(t, w))
}
