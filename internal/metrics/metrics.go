package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	namespace = "board_engine"
)

// Metrics holds all application metrics
type Metrics struct {
	// Sync engine metrics
	SyncOpsTotal   *prometheus.CounterVec
	SyncOpDuration *prometheus.HistogramVec

	// Entity store metrics
	EntitiesCreatedTotal *prometheus.CounterVec
	EntitiesDeletedTotal prometheus.Counter

	// Consistency metrics
	CascadeFailuresTotal  prometheus.Counter
	PlacementDrift        prometheus.Gauge
	DriftRepairedTotal    prometheus.Counter
	AuditRunsTotal        prometheus.Counter

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBQueryDuration    *prometheus.HistogramVec
	DBQueryErrors      *prometheus.CounterVec

	// Logger for error reporting
	logger *zap.Logger
}

// New creates and registers all metrics with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, nil)
}

// NewWithRegistry creates and registers all metrics with a custom registry
func NewWithRegistry(registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	factory := promauto.With(registerer)

	// Use a no-op logger if none provided
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Metrics{
		SyncOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_operations_total",
				Help:      "Total number of synchronization engine operations",
			},
			[]string{"operation", "status"},
		),
		SyncOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_operation_duration_seconds",
				Help:      "Synchronization engine operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		EntitiesCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_created_total",
				Help:      "Total number of entities created, by type",
			},
			[]string{"type"},
		),
		EntitiesDeletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_deleted_total",
				Help:      "Total number of entities deleted",
			},
		),
		CascadeFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cascade_failures_total",
				Help:      "Total number of cascading deletions that could not clean every placement",
			},
		),
		PlacementDrift: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "placement_drift",
				Help:      "Entity placements where the board cache and the position index disagree, as of the last audit",
			},
		),
		DriftRepairedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_repaired_total",
				Help:      "Total number of drifted placements repaired by the audit job",
			},
		),
		AuditRunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_runs_total",
				Help:      "Total number of consistency audit runs",
			},
		),
		DBConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_open",
				Help:      "Number of open database connections",
			},
		),
		DBConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Number of database connections in use",
			},
		),
		DBConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "table"},
		),
		DBQueryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_query_errors_total",
				Help:      "Total number of database query errors",
			},
			[]string{"operation", "table"},
		),
		logger: logger,
	}
}

// RecordSyncOp records one sync engine operation outcome.
func (m *Metrics) RecordSyncOp(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SyncOpsTotal.WithLabelValues(operation, status).Inc()
	m.SyncOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncrementEntityCreated records an entity creation.
func (m *Metrics) IncrementEntityCreated(entityType string) {
	if m == nil {
		return
	}
	m.EntitiesCreatedTotal.WithLabelValues(entityType).Inc()
}

// IncrementEntityDeleted records an entity deletion.
func (m *Metrics) IncrementEntityDeleted() {
	if m == nil {
		return
	}
	m.EntitiesDeletedTotal.Inc()
}

// IncrementCascadeFailure records a cascading delete that had to abort.
func (m *Metrics) IncrementCascadeFailure() {
	if m == nil {
		return
	}
	m.CascadeFailuresTotal.Inc()
}

// RecordAudit records an audit run with the drift it found and repaired.
func (m *Metrics) RecordAudit(driftFound, repaired int) {
	if m == nil {
		return
	}
	m.AuditRunsTotal.Inc()
	m.PlacementDrift.Set(float64(driftFound))
	if repaired > 0 {
		m.DriftRepairedTotal.Add(float64(repaired))
	}
}

// RecordDBQuery records a database query duration and outcome.
// Implements database.MetricsRecorder.
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// UpdateDBStats updates connection pool gauges from sql.DBStats.
// Implements database.MetricsRecorder.
func (m *Metrics) UpdateDBStats(stats interface{}) {
	if m == nil {
		return
	}
	dbStats, ok := stats.(sql.DBStats)
	if !ok {
		m.logger.Warn("UpdateDBStats received unexpected stats type")
		return
	}
	m.DBConnectionsOpen.Set(float64(dbStats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(dbStats.InUse))
	m.DBConnectionsIdle.Set(float64(dbStats.Idle))
}
