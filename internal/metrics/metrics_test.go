package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestGetRegistryAvailableBeforeInitialize(t *testing.T) {
	registry := GetRegistry()
	if registry == nil {
		t.Fatal("Expected a registry before InitializeMetrics")
	}

	// A scrape against the uninitialized registry must not panic.
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestRecordExtractionExposesCounters(t *testing.T) {
	t.Setenv("ENABLE_BUSINESS_METRICS", "true")

	RecordExtraction("11450-4", 3, 5*time.Millisecond)

	families, err := GetRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "endpoint_extraction_entries_total" {
			found = true
		}
	}
	if !found {
		t.Error("Expected endpoint_extraction_entries_total to be registered after RecordExtraction")
	}
}
