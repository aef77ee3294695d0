// Package observability registers the service's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	catalogWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "koans_api",
		Subsystem: "catalog",
		Name:      "writes_total",
		Help:      "Catalog mutations by operation.",
	}, []string{"operation"})
	completionCascades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "koans_api",
		Subsystem: "completion",
		Name:      "records_reconciled_total",
		Help:      "Completion records updated or removed by catalog cascades, by trigger.",
	}, []string{"trigger"})
	lastCatalogWriteGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "koans_api",
		Subsystem: "catalog",
		Name:      "last_write_timestamp_seconds",
		Help:      "Unix timestamp of the most recent catalog write.",
	})
)

func init() {
	prometheus.MustRegister(catalogWrites, completionCascades, lastCatalogWriteGauge)
}

// RecordCatalogWrite counts a catalog mutation and moves the write
// watermark.
func RecordCatalogWrite(operation string, ts time.Time) {
	catalogWrites.WithLabelValues(operation).Inc()
	if !ts.IsZero() {
		lastCatalogWriteGauge.Set(float64(ts.Unix()))
	}
}

// RecordCascade counts completion records touched by a catalog cascade.
func RecordCascade(trigger string, records int64) {
	if records <= 0 {
		return
	}
	completionCascades.WithLabelValues(trigger).Add(float64(records))
}
