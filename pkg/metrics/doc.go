// Package metrics exposes Prometheus instrumentation for the hosting
// service: registry and catalog gauges plus lifecycle, ingest and log-pump
// counters, served over promhttp.
package metrics
