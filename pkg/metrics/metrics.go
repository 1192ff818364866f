// Package metrics provides the Prometheus registry used by the kopkar
// client and a flat snapshot of its metrics.
// All metrics are defined in their respective packages (client, session,
// pagination) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Prefix is the name prefix shared by every kopkar metric.
const Prefix = "kopkar_"

// Registry is the default Prometheus registry used by the kopkar client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry holds.
var Gatherer = prometheus.DefaultGatherer

// Snapshot sums every kopkar metric family of the default registry
// across its label sets. Histograms contribute their sample count under
// "<name>_count".
func Snapshot() (map[string]float64, error) {
	return SnapshotFrom(Gatherer, Prefix)
}

// SnapshotFrom is Snapshot for an arbitrary gatherer and name prefix.
func SnapshotFrom(g prometheus.Gatherer, prefix string) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		for _, m := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[name] += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[name] += m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[name+"_count"] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

// Names returns the snapshot's metric names in sorted order.
func Names(snapshot map[string]float64) []string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - kopkar_requests_total{endpoint, status} (Counter): Attempts by endpoint and HTTP status or error class
//   - kopkar_request_duration_seconds{endpoint} (Histogram): Duration of a request across all attempts
//   - kopkar_errors_total{class} (Counter): Failed attempts by class (timeout, transport, status, decode)
//
// Retry Metrics (pkg/client):
//   - kopkar_retries_total{error_class} (Counter): Retry attempts by error class
//   - kopkar_retry_exhausted_total{error_class} (Counter): Requests that used every attempt
//
// Session Metrics (pkg/session):
//   - kopkar_session_store_errors_total{operation} (Counter): Redis store errors by operation
//
// Pagination Metrics (pkg/pagination):
//   - kopkar_pagination_fetches_total{kind, outcome} (Counter): Page fetches by kind and outcome
//   - kopkar_pagination_skipped_total{reason} (Counter): Operations skipped by the in-flight guard
//
// Example Prometheus Queries:
//
//   # Retry Rate
//   rate(kopkar_retries_total[5m]) / rate(kopkar_requests_total[5m])
//
//   # Exhausted Requests by Class
//   sum by (error_class) (rate(kopkar_retry_exhausted_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(kopkar_request_duration_seconds_bucket[5m]))
