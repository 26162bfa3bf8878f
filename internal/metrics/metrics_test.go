package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	registry := New()

	registry.RecordPresetEvent("created", "onboarding")
	registry.RecordPresetEvent("created", "onboarding")
	registry.RecordImportSection("remappings", "failed", 0)
	registry.RecordImportSection("settings", "ok", 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(registry.presetEvents.WithLabelValues("created", "onboarding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.importSections.WithLabelValues("remappings", "failed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(registry.importedRows.WithLabelValues("settings")))
}

func TestNilRegistryIsInert(t *testing.T) {
	var registry *Registry

	assert.NotPanics(t, func() {
		registry.RecordPresetEvent("created", "manual")
		registry.RecordImport("ok")
		registry.RecordHTTPRequest(http.MethodGet, "/healthz", http.StatusOK)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	registry := New()
	registry.RecordHTTPRequest(http.MethodGet, "/api/loadout", http.StatusOK)

	recorder := httptest.NewRecorder()
	registry.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.True(t, strings.Contains(body, `keyhub_http_requests_total{method="GET",route="/api/loadout",status="200"} 1`), body)
}
