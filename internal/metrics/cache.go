// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_report_lookups_total",
		Help: "Report lookups by the tier that answered",
	}, []string{"tier"}) // tier=cache|store|remote|miss

	cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_cache_operations_total",
		Help: "Report cache operations by backend and result",
	}, []string{"backend", "result"}) // result=hit|miss|error

	configReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitalscan_config_reloads_total",
		Help: "Configuration reloads by outcome",
	}, []string{"outcome"})
)

// RecordReportLookup counts which tier served a report lookup.
func RecordReportLookup(tier string) {
	reportLookups.WithLabelValues(tier).Inc()
}

// RecordCacheHit counts a cache hit.
func RecordCacheHit(backend string) { cacheOps.WithLabelValues(backend, "hit").Inc() }

// RecordCacheMiss counts a cache miss.
func RecordCacheMiss(backend string) { cacheOps.WithLabelValues(backend, "miss").Inc() }

// RecordCacheError counts a failed cache operation.
func RecordCacheError(backend string) { cacheOps.WithLabelValues(backend, "error").Inc() }

// RecordConfigReload counts a configuration reload.
func RecordConfigReload(outcome string) {
	configReloads.WithLabelValues(outcome).Inc()
}
