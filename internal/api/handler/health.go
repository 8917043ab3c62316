package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/api/middleware"
	"github.com/ecmcloud/ecm/internal/api/response"
	"github.com/ecmcloud/ecm/internal/logger"
)

const pingTimeout = 2 * time.Second

// DBPinger checks connectivity to the master database.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// TenantCounter reports how many tenant stores are open.
type TenantCounter interface {
	Len() int
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	tenants TenantCounter
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DBPinger, tenants TenantCounter, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		tenants: tenants,
		version: version,
	}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status      string         `json:"status"`
	Version     string         `json:"version"`
	Database    databaseStatus `json:"database"`
	OpenTenants int            `json:"openTenants"`
}

// ServeHTTP handles the health check request. A failed master ping reports
// "degraded" with 503 so that load balancers stop routing.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	connected := true
	if err := h.db.Ping(ctx); err != nil {
		logger.FromContext(r.Context()).Warn("health check: master database ping failed", zap.Error(err))
		status = "degraded"
		code = http.StatusServiceUnavailable
		connected = false
	}

	data := healthData{
		Status:   status,
		Version:  h.version,
		Database: databaseStatus{Connected: connected},
	}
	if h.tenants != nil {
		data.OpenTenants = h.tenants.Len()
	}

	response.Success(w, code, data, requestID)
}

type infoData struct {
	Service       string  `json:"service"`
	Version       string  `json:"version"`
	Authenticated bool    `json:"authenticated"`
	CompanyCode   *string `json:"companyCode,omitempty"`
	Username      *string `json:"username,omitempty"`
}

// Info handles GET /. It names the service and, when the caller sent a valid
// token, who they are.
func (h *HealthHandler) Info(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := infoData{Service: "ecm", Version: h.version}
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		data.Authenticated = true
		data.CompanyCode = &identity.CompanyCode
		data.Username = &identity.Username
	}
	response.Success(w, http.StatusOK, data, requestID)
}
