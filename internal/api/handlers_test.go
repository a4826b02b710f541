package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"crossmed.eu/ncpcore/internal/config"
	"crossmed.eu/ncpcore/internal/index"
	"crossmed.eu/ncpcore/internal/match"
	"crossmed.eu/ncpcore/internal/summary"
	"crossmed.eu/ncpcore/internal/table"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()

	dir := filepath.Join(root, "pt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	content := fmt.Sprintf(`<ClinicalDocument xmlns="urn:hl7-org:v3">
	<title>Resumo Clinico</title>
	<recordTarget><patientRole>
		<id root="1.3.6.1.4.1.12559" extension="PT-1001"/>
		<patient><name><given>Maria</given><family>Silva</family></name><birthTime value="19751224"/></patient>
	</patientRole></recordTarget>
	<component><structuredBody><component><section>
		<code code="11450-4" codeSystem="2.16.840.1.113883.6.1"/><title>Problems</title>
		<entry><act>
			<statusCode code="active"/>
			<effectiveTime><low value="20200114"/></effectiveTime>
			<entryRelationship typeCode="SUBJ"><observation>
				<value code="38341003" codeSystem="2.16.840.1.113883.6.96" displayName="Hypertension"/>
			</observation></entryRelationship>
		</act></entry>
	</section></component></structuredBody></component>
</ClinicalDocument>`)
	if err := os.WriteFile(filepath.Join(dir, "summary_L3.xml"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write document: %v", err)
	}

	cfg := &config.Config{
		StoreRoot:     root,
		IndexPath:     filepath.Join(t.TempDir(), "index.json"),
		ScanWorkers:   2,
		UseLocalStore: true,
	}
	idx := index.NewService(cfg.StoreRoot, cfg.IndexPath, cfg.ScanWorkers)
	return NewServer(cfg, idx, match.NewResolver(idx, nil))
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	HealthHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestMetricsEndpointServesWithoutInitialization(t *testing.T) {
	// The scrape endpoint must answer even when no collector has been
	// registered yet.
	router := testServer(t).SetupRoutes()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestDocumentsHandler(t *testing.T) {
	router := testServer(t).SetupRoutes()

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{
			name:           "Known patient",
			path:           "/patients/pt/PT-1001/documents",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Unknown patient",
			path:           "/patients/pt/XX-404/documents",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Wrong country",
			path:           "/patients/de/PT-1001/documents",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
		})
	}
}

func TestDocumentsHandlerPayload(t *testing.T) {
	router := testServer(t).SetupRoutes()

	req := httptest.NewRequest("GET", "/patients/pt/PT-1001/documents", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var resp DocumentListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(resp.Matches))
	}
	m := resp.Matches[0]
	if m.FamilyName != "Silva" {
		t.Errorf("Expected family name Silva, got %s", m.FamilyName)
	}
	if len(m.Documents["L3"]) != 1 {
		t.Errorf("Expected 1 L3 document, got %d", len(m.Documents["L3"]))
	}
}

func TestSummaryHandler(t *testing.T) {
	router := testServer(t).SetupRoutes()

	req := httptest.NewRequest("GET", "/patients/pt/PT-1001/summary", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var ps summary.PatientSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &ps); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if ps.Demographics.FamilyName != "Silva" {
		t.Errorf("Expected family name Silva, got %s", ps.Demographics.FamilyName)
	}
	if len(ps.Conditions) != 1 || ps.Conditions[0].Code.Text != "Hypertension" {
		t.Errorf("Expected Hypertension condition, got %+v", ps.Conditions)
	}
}

func TestSectionTableHandler(t *testing.T) {
	router := testServer(t).SetupRoutes()

	req := httptest.NewRequest("GET", "/patients/pt/PT-1001/sections/11450-4/table", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var tbl table.ClinicalTable
	if err := json.Unmarshal(rr.Body.Bytes(), &tbl); err != nil {
		t.Fatalf("Failed to decode table: %v", err)
	}
	if tbl.SectionCode != "11450-4" {
		t.Errorf("Expected section code 11450-4, got %s", tbl.SectionCode)
	}
	if tbl.Title != "Problems" {
		t.Errorf("Expected section title Problems, got %s", tbl.Title)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(tbl.Rows))
	}
}

func TestSectionTableHandlerMissingSection(t *testing.T) {
	router := testServer(t).SetupRoutes()

	req := httptest.NewRequest("GET", "/patients/pt/PT-1001/sections/48765-2/table", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for absent section, got %d", rr.Code)
	}
}

func TestRefreshHandler(t *testing.T) {
	router := testServer(t).SetupRoutes()

	req := httptest.NewRequest("POST", "/index/refresh", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["patients"] != float64(1) || resp["documents"] != float64(1) {
		t.Errorf("Unexpected refresh counts: %v", resp)
	}

	// Refresh is a POST-only route.
	req = httptest.NewRequest("GET", "/index/refresh", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code == http.StatusOK {
		t.Error("Expected GET on refresh to be rejected")
	}
}
