package rasta

import "github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/internal/diag"

// PrometheusCollector returns a prometheus.Collector exposing the
// stack's diagnostic counters and histograms, suitable for
// prometheus.MustRegister in an embedder's exporter.
func (s *Stack) PrometheusCollector() *diag.Collector {
	return diag.NewCollector(s.DiagnosticsSnapshot)
}
