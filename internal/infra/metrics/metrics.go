// Package metrics provides Prometheus metrics for plano.
// Counters and histograms for meal logging, scoring, badges, external
// services, storage, and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Meal Logs ──────────────────────────────────────────────────────────────

// MealLogsRecorded tracks accepted meal logs by mode (checklist, photo).
var MealLogsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "meal_logs_recorded_total",
	Help:      "Total meal logs accepted, by scoring mode.",
}, []string{"mode"})

// MealLogsRejected tracks log requests that failed before persisting.
var MealLogsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "meal_logs_rejected_total",
	Help:      "Total meal log requests rejected, by reason.",
}, []string{"reason"})

// MealScore tracks the distribution of meal scores.
var MealScore = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "plano",
	Name:      "meal_score",
	Help:      "Distribution of meal adherence scores (0-100).",
	Buckets:   []float64{10, 25, 50, 70, 85, 90, 100},
})

// ─── Progress ───────────────────────────────────────────────────────────────

// TotalPoints tracks the current accumulated points.
var TotalPoints = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "plano",
	Name:      "total_points",
	Help:      "Current accumulated points.",
})

// CurrentStreak tracks the current consecutive-day streak.
var CurrentStreak = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "plano",
	Name:      "current_streak_days",
	Help:      "Current consecutive-day logging streak.",
})

// BadgesUnlocked tracks badge unlocks by badge id.
var BadgesUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "badges_unlocked_total",
	Help:      "Total badge unlocks.",
}, []string{"badge"})

// ─── Plans ──────────────────────────────────────────────────────────────────

// PlanImports tracks plan document imports by result (ok, failed).
var PlanImports = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "plan_imports_total",
	Help:      "Total plan document imports, by result.",
}, []string{"result"})

// ─── External Services ──────────────────────────────────────────────────────

// ServiceLatency tracks external service call duration in seconds.
var ServiceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "plano",
	Name:      "service_latency_seconds",
	Help:      "External interpretation/analysis call duration in seconds.",
	Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
}, []string{"backend", "operation"})

// ServiceErrors tracks failed external service calls.
var ServiceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "service_errors_total",
	Help:      "Total failed external service calls.",
}, []string{"backend", "operation"})

// ServiceRetries tracks retried external service calls.
var ServiceRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "service_retries_total",
	Help:      "Total retries of transient external service failures.",
}, []string{"operation"})

// ─── Storage ────────────────────────────────────────────────────────────────

// StoreWrites tracks state store writes by driver and result.
var StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "store_writes_total",
	Help:      "Total state store write operations.",
}, []string{"driver", "result"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "plano",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests tracks API requests by route pattern and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "plano",
	Name:      "http_requests_total",
	Help:      "Total API requests by route and status code.",
}, []string{"route", "code"})
