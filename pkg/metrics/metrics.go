// Package metrics provides the centralized Prometheus metrics registry for
// the portal client. All metrics are defined in their respective packages
// (transport, client, fetch) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the portal client.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Transport Metrics (pkg/transport):
//   - portal_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - portal_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - portal_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - portal_retries_total{error_class} (Counter): Retry attempts by error class
//   - portal_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - portal_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Session Metrics (pkg/client):
//   - portal_logins_total{result} (Counter): Login attempts by result (success, rejected, failed, transport_error)
//   - portal_session_loss_total (Counter): Session-loss signals detected on authenticated calls
//   - portal_relogins_total (Counter): Transparent re-logins triggered by session loss
//
// Bulk Fetch Metrics (pkg/fetch):
//   - portal_fetch_windows_total{outcome} (Counter): Fetch windows by outcome (ok, failed)
//   - portal_fetch_records_total (Counter): Records retrieved before dedup
//   - portal_fetch_duration_seconds (Histogram): Bulk fetch duration
//
// Example Prometheus Queries:
//
//   # Re-login rate (a rising rate means the portal is expiring sessions early)
//   rate(portal_relogins_total[15m])
//
//   # Degraded bulk fetches
//   rate(portal_fetch_windows_total{outcome="failed"}[1h])
//
//   # Retry pressure by error class
//   sum by (error_class) (rate(portal_retries_total[5m]))
