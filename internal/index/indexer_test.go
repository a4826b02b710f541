package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"crossmed.eu/ncpcore/internal/cda"
)

func writeDocument(t *testing.T, root, country, name, patientID string) string {
	t.Helper()
	dir := filepath.Join(root, country)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create country directory: %v", err)
	}
	content := fmt.Sprintf(`<ClinicalDocument xmlns="urn:hl7-org:v3">
	<recordTarget><patientRole>
		<id root="1.3.6.1.4.1.12559" extension="%s" assigningAuthorityName="Ministry of Health"/>
		<patient>
			<name><given>Ana</given><family>Ferreira</family></name>
			<administrativeGenderCode code="F" displayName="Female"/>
			<birthTime value="19640522"/>
		</patient>
	</patientRole></recordTarget>
	<component><structuredBody><component><section>
		<code code="11450-4"/><entry><observation/></entry>
	</section></component></structuredBody></component>
</ClinicalDocument>`, patientID)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write document: %v", err)
	}
	return path
}

func TestScanSkipsBrokenDocuments(t *testing.T) {
	root := t.TempDir()
	writeDocument(t, root, "pt", "summary_L3.xml", "PT-1001")
	writeDocument(t, root, "es", "resumen_L3.xml", "ES-2002")

	// Malformed XML and a document without a patient identifier must be
	// skipped without failing the scan.
	broken := filepath.Join(root, "pt", "broken.xml")
	if err := os.WriteFile(broken, []byte("<ClinicalDocument><unclosed"), 0o644); err != nil {
		t.Fatalf("Failed to write broken document: %v", err)
	}
	anonymous := filepath.Join(root, "pt", "anonymous.xml")
	if err := os.WriteFile(anonymous, []byte("<ClinicalDocument/>"), 0o644); err != nil {
		t.Fatalf("Failed to write anonymous document: %v", err)
	}
	// Non-XML files are not scanned at all.
	if err := os.WriteFile(filepath.Join(root, "pt", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write stray file: %v", err)
	}

	svc := NewService(root, filepath.Join(t.TempDir(), "index.json"), 4)
	descriptors, err := svc.Scan(context.Background())
	if err != nil {
		t.Fatalf("Unexpected scan error: %v", err)
	}

	if len(descriptors) != 2 {
		t.Fatalf("Expected 2 descriptors, got %d", len(descriptors))
	}
	// Results are sorted by country then path.
	if descriptors[0].Country != "es" || descriptors[1].Country != "pt" {
		t.Errorf("Expected country order es, pt; got %s, %s", descriptors[0].Country, descriptors[1].Country)
	}
	if descriptors[1].PatientID != "PT-1001" {
		t.Errorf("Expected patient PT-1001, got %s", descriptors[1].PatientID)
	}
	if descriptors[1].Level != cda.L3 {
		t.Errorf("Expected level L3 from filename, got %s", descriptors[1].Level)
	}
	if descriptors[1].Authority != "Ministry of Health" {
		t.Errorf("Expected assigning authority, got %q", descriptors[1].Authority)
	}
	if descriptors[1].GivenName != "Ana" || descriptors[1].FamilyName != "Ferreira" {
		t.Errorf("Expected demographics Ana Ferreira, got %s %s", descriptors[1].GivenName, descriptors[1].FamilyName)
	}
	if descriptors[1].BirthDate != "1964-05-22" {
		t.Errorf("Expected birth date 1964-05-22, got %s", descriptors[1].BirthDate)
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeDocument(t, root, "pt", "summary_L3.xml", "PT-1001")
	writeDocument(t, root, "pt", "summary_L1.xml", "PT-1001")

	indexPath := filepath.Join(t.TempDir(), "index.json")
	svc := NewService(root, indexPath, 2)

	built, err := svc.Build(context.Background(), true)
	if err != nil {
		t.Fatalf("Unexpected build error: %v", err)
	}
	if len(built["PT-1001"]) != 2 {
		t.Fatalf("Expected 2 documents for PT-1001, got %d", len(built["PT-1001"]))
	}

	loaded, err := svc.Load()
	if err != nil {
		t.Fatalf("Unexpected load error: %v", err)
	}
	if len(loaded) != len(built) {
		t.Fatalf("Loaded index has %d patients, built had %d", len(loaded), len(built))
	}
	for id, docs := range built {
		got := loaded[id]
		if len(got) != len(docs) {
			t.Fatalf("Patient %s: loaded %d documents, built %d", id, len(got), len(docs))
		}
		for i := range docs {
			if got[i].Path != docs[i].Path || got[i].Level != docs[i].Level {
				t.Errorf("Patient %s document %d changed across persist/load", id, i)
			}
		}
	}

	// The atomic swap must leave no temp file behind.
	if _, err := os.Stat(indexPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected no temp file after persist")
	}
}

func TestLoadMissingIndex(t *testing.T) {
	svc := NewService(t.TempDir(), filepath.Join(t.TempDir(), "index.json"), 1)
	if _, err := svc.Load(); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFindFiltersByCountry(t *testing.T) {
	root := t.TempDir()
	writeDocument(t, root, "pt", "summary_L3.xml", "PT-1001")
	writeDocument(t, root, "es", "summary_L3.xml", "PT-1001")

	svc := NewService(root, filepath.Join(t.TempDir(), "index.json"), 2)

	all, err := svc.Find(context.Background(), "PT-1001", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 documents without country filter, got %d", len(all))
	}

	pt, err := svc.Find(context.Background(), "PT-1001", "PT")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(pt) != 1 || pt[0].Country != "pt" {
		t.Fatalf("Expected 1 pt document, got %d", len(pt))
	}

	missing, err := svc.Find(context.Background(), "XX-404", "")
	if err != nil {
		t.Fatalf("A missing patient must not be an error, got %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("Expected no documents for unknown patient, got %d", len(missing))
	}
}

func TestRefreshPicksUpNewDocuments(t *testing.T) {
	root := t.TempDir()
	writeDocument(t, root, "pt", "summary_L3.xml", "PT-1001")

	svc := NewService(root, filepath.Join(t.TempDir(), "index.json"), 2)
	if _, err := svc.Build(context.Background(), false); err != nil {
		t.Fatalf("Unexpected build error: %v", err)
	}

	writeDocument(t, root, "pt", "late_arrival_L1.xml", "PT-9999")

	// The cached snapshot must not see the new document.
	cached, err := svc.Find(context.Background(), "PT-9999", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(cached) != 0 {
		t.Fatal("Cached snapshot unexpectedly contains a post-build document")
	}

	idx, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Unexpected refresh error: %v", err)
	}
	if len(idx["PT-9999"]) != 1 {
		t.Fatalf("Expected refreshed index to contain PT-9999, got %d documents", len(idx["PT-9999"]))
	}
}
