// Package metric provides Prometheus metrics for the channel manager.
//
//   - prometheus.go: Registry, its collectors and HTTP handler
//   - observer.go: channel.Observer that turns hierarchy events into metrics
//
// Metrics include:
//
//   - Hierarchy event counters by event and category
//   - Daily-channel cache hit and miss counters
//   - Backend import latency histograms
//   - Ledger size gauges (registered by the Badger ledger)
package metric
