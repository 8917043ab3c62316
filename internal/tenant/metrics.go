package tenant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ecm",
		Subsystem: "tenant",
		Name:      "cache_hits_total",
		Help:      "Tenant handle lookups served from the cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ecm",
		Subsystem: "tenant",
		Name:      "cache_misses_total",
		Help:      "Tenant handle lookups that opened a store.",
	})
	openHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecm",
		Subsystem: "tenant",
		Name:      "open_handles",
		Help:      "Tenant stores currently open.",
	})
	provisionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ecm",
		Subsystem: "tenant",
		Name:      "provision_failures_total",
		Help:      "Tenant stores that could not be opened or migrated.",
	})
	backupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecm",
		Subsystem: "tenant",
		Name:      "backups_total",
		Help:      "Tenant backups by result.",
	}, []string{"result"})
)
