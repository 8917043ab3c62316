// Package reconciler keeps each company's recorded storage usage in line with
// the size of its tenant store on disk.
package reconciler

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/company"
	"github.com/ecmcloud/ecm/internal/plan"
	"github.com/ecmcloud/ecm/internal/tenant"
)

var (
	storeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecm",
		Subsystem: "storage",
		Name:      "tenant_bytes",
		Help:      "Total size of all tenant stores at the last reconcile.",
	})
	overLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecm",
		Subsystem: "storage",
		Name:      "companies_over_limit",
		Help:      "Companies whose store exceeds their plan's storage limit.",
	})
)

// DefaultInterval is used when New is given a non-positive interval.
const DefaultInterval = 10 * time.Minute

// Reconciler periodically measures tenant stores and records the result in
// the registry.
type Reconciler struct {
	companies company.Repository
	tenants   *tenant.Manager
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new Reconciler. A non-positive interval falls back to
// DefaultInterval.
func New(companies company.Repository, tenants *tenant.Manager, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		companies: companies,
		tenants:   tenants,
		interval:  interval,
		logger:    logger,
	}
}

// Start runs a reconcile immediately and then on every tick. It blocks until
// ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("storage reconciler started", zap.Duration("interval", r.interval))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("storage reconciler stopped")
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile measures every company's store once.
func (r *Reconciler) Reconcile(ctx context.Context) {
	companies, err := r.companies.List(ctx)
	if err != nil {
		r.logger.Error("reconciler: failed to list companies", zap.Error(err))
		return
	}

	var total int64
	over := 0
	for i := range companies {
		if ctx.Err() != nil {
			return
		}
		size, ok := r.reconcileOne(ctx, &companies[i])
		total += size
		if ok && exceeds(&companies[i], size) {
			over++
		}
	}
	storeBytes.Set(float64(total))
	overLimit.Set(float64(over))
}

func (r *Reconciler) reconcileOne(ctx context.Context, c *company.Company) (int64, bool) {
	size, err := r.tenants.StoreSize(c.ID)
	if err != nil {
		r.logger.Warn("reconciler: failed to measure store", zap.Int64("companyId", c.ID), zap.Error(err))
		return 0, false
	}

	mb := toMB(size)
	if mb != c.StorageUsedMB {
		if err := r.companies.UpdateStorageUsed(ctx, c.ID, mb); err != nil {
			r.logger.Error("reconciler: failed to record storage usage",
				zap.Int64("companyId", c.ID),
				zap.Error(err),
			)
			return size, false
		}
	}

	if exceeds(c, size) {
		r.logger.Warn("reconciler: company over storage limit",
			zap.Int64("companyId", c.ID),
			zap.Float64("usedMb", mb),
			zap.Int("limitMb", c.StorageLimitMB),
		)
	}
	return size, true
}

func exceeds(c *company.Company, size int64) bool {
	return c.StorageLimitMB != plan.Unlimited && toMB(size) > float64(c.StorageLimitMB)
}

// toMB converts bytes to megabytes rounded to two decimals.
func toMB(size int64) float64 {
	return math.Round(float64(size)/1024/1024*100) / 100
}
