// Package metrics exposes the service counters in the Prometheus text format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keyhub"

// Registry owns the service collectors. A nil *Registry is valid and records nothing.
type Registry struct {
	registry       *prometheus.Registry
	presetEvents   *prometheus.CounterVec
	imports        *prometheus.CounterVec
	importSections *prometheus.CounterVec
	importedRows   *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
}

// New builds a registry with the process and Go runtime collectors attached.
func New() *Registry {
	registry := prometheus.NewRegistry()
	r := &Registry{
		registry: registry,
		presetEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preset_events_total",
			Help:      "Preset creations and activations by event and source.",
		}, []string{"event", "source"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Legacy imports by outcome.",
		}, []string{"outcome"}),
		importSections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_sections_total",
			Help:      "Legacy import sections by section and outcome.",
		}, []string{"section", "outcome"}),
		importedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_rows_total",
			Help:      "Rows written by the legacy importer per section.",
		}, []string{"section"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.presetEvents,
		r.imports,
		r.importSections,
		r.importedRows,
		r.httpRequests,
	)
	return r
}

// RecordPresetEvent counts a preset creation or activation.
func (r *Registry) RecordPresetEvent(event, source string) {
	if r == nil {
		return
	}
	r.presetEvents.WithLabelValues(event, source).Inc()
}

// RecordImport counts a finished import run.
func (r *Registry) RecordImport(outcome string) {
	if r == nil {
		return
	}
	r.imports.WithLabelValues(outcome).Inc()
}

// RecordImportSection counts one processed import section and the rows it wrote.
func (r *Registry) RecordImportSection(section, outcome string, rows int) {
	if r == nil {
		return
	}
	r.importSections.WithLabelValues(section, outcome).Inc()
	if rows > 0 {
		r.importedRows.WithLabelValues(section).Add(float64(rows))
	}
}

// RecordHTTPRequest counts one served request.
func (r *Registry) RecordHTTPRequest(method, route string, status int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Gatherer(), promhttp.HandlerOpts{})
}
