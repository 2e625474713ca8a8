// Package metrics defines the custom Prometheus metrics of the accounts API.
// HTTP request metrics come from echoprometheus; the metrics here count
// account outcomes and object storage calls.
//
// Every metric is registered with the default registry on package load.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

const namespace = "accounts"

// ── Account metrics ───────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "success", "invalid", "conflict", "storage_error" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid", "unauthorized" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── Storage metrics ───────────────────────────────────────────────────────────

// StorageOperationsTotal counts object storage calls.
// Labels:
//   - op: "put", "delete", "list" or "ping"
//   - result: "success" or "error"
var StorageOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_operations_total",
		Help:      "Total number of object storage calls, by operation and result.",
	},
	[]string{"op", "result"},
)

// StorageOperationDuration measures object storage round trips.
var StorageOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "storage_operation_duration_seconds",
		Help:      "Duration of object storage calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"op"},
)

// StoredBytesTotal sums the size of uploaded avatars.
var StoredBytesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_uploaded_bytes_total",
		Help:      "Total bytes uploaded to object storage.",
	},
)

// Outcome maps an account error to a result label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrUserExists):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "unauthorized"
	case errors.Is(err, domain.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}
