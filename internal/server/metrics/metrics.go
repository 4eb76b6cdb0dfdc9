// Package metrics provides Prometheus instrumentation for the engines and
// the API surfaces.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vaultkeeper"

var (
	// DecisionsTotal counts engine decisions by engine and outcome.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total engine decisions by engine and outcome.",
		},
		[]string{"engine", "outcome"},
	)

	// DecisionScore observes the score each decision was taken on.
	DecisionScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_score",
			Help:      "Risk score observed at decision time.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"engine"},
	)

	ThreatEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threat_events_total",
			Help:      "Threat events raised by type and severity.",
		},
		[]string{"type", "severity"},
	)

	// AccessEventsTotal counts recorded access events by event type.
	AccessEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_events_total",
			Help:      "Recorded vault access events by type.",
		},
		[]string{"event_type"},
	)

	// AccountDeletionsTotal counts account deletion cascades by result.
	AccountDeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_deletions_total",
			Help:      "Account deletion cascades by result.",
		},
		[]string{"result"},
	)

	// CascadeRowsDeleted counts rows removed by the deletion cascade per table.
	CascadeRowsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_rows_deleted_total",
			Help:      "Rows removed by deletion cascades by table.",
		},
		[]string{"table"},
	)

	OrphanVaultsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphan_vaults_purged_total",
		Help:      "Orphaned vaults removed during sign-in reconciliation.",
	})

	// BlobPurgesTotal counts object-storage deletions by result.
	BlobPurgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_purges_total",
			Help:      "Document blob deletions by result.",
		},
		[]string{"result"},
	)

	GRPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_open_connections",
		Help:      "Open database connections.",
	})

	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_in_use_connections",
		Help:      "Database connections currently in use.",
	})
)

func init() {
	prometheus.MustRegister(
		DecisionsTotal,
		DecisionScore,
		ThreatEventsTotal,
		AccessEventsTotal,
		AccountDeletionsTotal,
		CascadeRowsDeleted,
		OrphanVaultsPurged,
		BlobPurgesTotal,
		GRPCRequestsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DBOpenConnections,
		DBInUseConnections,
	)
}

// ObserveDecision records one engine decision.
func ObserveDecision(engine, outcome string, score float64) {
	DecisionsTotal.WithLabelValues(engine, outcome).Inc()
	DecisionScore.WithLabelValues(engine).Observe(score)
}

// StartDBStatsCollector samples sql.DBStats into gauges until ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBInUseConnections.Set(float64(stats.InUse))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(c.Request.Method, c.FullPath()))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus scrape handler for /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
