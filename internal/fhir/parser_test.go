package fhir

import (
	"encoding/json"
	"errors"
	"testing"

	"crossmed.eu/ncpcore/internal/summary"
)

func bundleWith(resources ...string) []byte {
	out := `{"resourceType":"Bundle","type":"document","entry":[`
	for i, r := range resources {
		if i > 0 {
			out += ","
		}
		out += `{"resource":` + r + `}`
	}
	out += `]}`
	return []byte(out)
}

func TestParseBundleRejectsNonBundle(t *testing.T) {
	_, err := ParseBundle([]byte(`{"resourceType":"Patient","id":"p1"}`))
	if !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("Expected ErrInvalidBundle, got %v", err)
	}

	// Parse must not degrade to the lenient walk for a non-bundle either.
	_, err = Parse([]byte(`{"resourceType":"Patient","id":"p1"}`))
	if !errors.Is(err, ErrInvalidBundle) {
		t.Fatalf("Expected ErrInvalidBundle from Parse, got %v", err)
	}
}

func TestParseBundleDemographics(t *testing.T) {
	data := bundleWith(`{
		"resourceType": "Patient",
		"identifier": [{"system": "urn:oid:1.3.6.1.4.1.12559", "value": "PT-1001"}],
		"name": [{"family": "Silva", "given": ["Maria", "Joana"]}],
		"birthDate": "1975-12-24",
		"gender": "female",
		"address": [{"city": "Lisboa", "country": "PT", "line": ["Rua A 1"]}]
	}`)

	ps, err := ParseBundle(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	d := ps.Demographics
	if d.FamilyName != "Silva" || d.GivenName != "Maria" {
		t.Errorf("Expected Maria Silva, got %s %s", d.GivenName, d.FamilyName)
	}
	if d.BirthDate != "1975-12-24" || d.Gender != "female" {
		t.Errorf("Unexpected demographics: %s %s", d.BirthDate, d.Gender)
	}
	if len(d.Identifiers) != 1 || d.Identifiers[0].Value != "PT-1001" {
		t.Error("Expected patient identifier PT-1001")
	}
	if len(d.Addresses) != 1 || d.Addresses[0].City != "Lisboa" {
		t.Error("Expected address city Lisboa")
	}
}

func TestCodedConceptResolutionChain(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		expected string
	}{
		{
			name:     "Text wins over display",
			resource: `{"resourceType":"Condition","code":{"text":"High blood pressure","coding":[{"code":"38341003","display":"Hypertension"}]}}`,
			expected: "High blood pressure",
		},
		{
			name:     "Display when no text",
			resource: `{"resourceType":"Condition","code":{"coding":[{"code":"38341003","display":"Hypertension"}]}}`,
			expected: "Hypertension",
		},
		{
			name:     "Code when no display",
			resource: `{"resourceType":"Condition","code":{"coding":[{"code":"38341003"}]}}`,
			expected: "38341003",
		},
		{
			name:     "Unknown when nothing resolves",
			resource: `{"resourceType":"Condition","code":{"coding":[{}]}}`,
			expected: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, err := ParseBundle(bundleWith(tt.resource))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(ps.Conditions) != 1 {
				t.Fatalf("Expected 1 condition, got %d", len(ps.Conditions))
			}
			if got := ps.Conditions[0].Code.Text; got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPolymorphicValuePriority(t *testing.T) {
	tests := []struct {
		name         string
		resource     string
		expectedKind summary.ValueKind
		expectedText string
	}{
		{
			name:         "Quantity wins when several variants present",
			resource:     `{"resourceType":"Observation","code":{"text":"BP"},"valueQuantity":{"value":140,"unit":"mmHg"},"valueString":"high"}`,
			expectedKind: summary.ValueQuantity,
			expectedText: "140",
		},
		{
			name:         "Codeable concept",
			resource:     `{"resourceType":"Observation","code":{"text":"Smoking"},"valueCodeableConcept":{"text":"Never smoker"}}`,
			expectedKind: summary.ValueConcept,
			expectedText: "Never smoker",
		},
		{
			name:         "String",
			resource:     `{"resourceType":"Observation","code":{"text":"Note"},"valueString":"stable"}`,
			expectedKind: summary.ValueString,
			expectedText: "stable",
		},
		{
			name:         "Boolean",
			resource:     `{"resourceType":"Observation","code":{"text":"Pregnant"},"valueBoolean":false}`,
			expectedKind: summary.ValueBoolean,
			expectedText: "false",
		},
		{
			name:         "Range",
			resource:     `{"resourceType":"Observation","code":{"text":"Ref"},"valueRange":{"low":{"value":4},"high":{"value":11}}}`,
			expectedKind: summary.ValueRange,
			expectedText: "4 - 11",
		},
		{
			name:         "Ratio",
			resource:     `{"resourceType":"Observation","code":{"text":"Titer"},"valueRatio":{"numerator":{"value":1},"denominator":{"value":128}}}`,
			expectedKind: summary.ValueRatio,
			expectedText: "1/128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps, err := ParseBundle(bundleWith(tt.resource))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(ps.Observations) != 1 {
				t.Fatalf("Expected 1 observation, got %d", len(ps.Observations))
			}
			v := ps.Observations[0].Value
			if v.Kind != tt.expectedKind {
				t.Errorf("Expected kind %s, got %s", tt.expectedKind, v.Kind)
			}
			if v.Text != tt.expectedText {
				t.Errorf("Expected text %q, got %q", tt.expectedText, v.Text)
			}
		})
	}
}

func TestParseBundleDropsUnsupportedResources(t *testing.T) {
	data := bundleWith(
		`{"resourceType":"Patient","name":[{"family":"Silva"}]}`,
		`{"resourceType":"Device","id":"dev-1"}`,
		`{"resourceType":"Condition","code":{"text":"Asthma"}}`,
	)

	ps, err := ParseBundle(data)
	if err != nil {
		t.Fatalf("Unsupported resource types must be dropped silently, got: %v", err)
	}
	if len(ps.Conditions) != 1 {
		t.Errorf("Expected 1 condition, got %d", len(ps.Conditions))
	}
	if ps.Demographics.FamilyName != "Silva" {
		t.Error("Expected patient extracted alongside unsupported resources")
	}
}

func TestParseBundleBothMedicationForms(t *testing.T) {
	data := bundleWith(
		`{"resourceType":"MedicationStatement","medicationCodeableConcept":{"text":"Lisinopril"},"status":"active","effectivePeriod":{"start":"2020-01-01"}}`,
		`{"resourceType":"MedicationRequest","medicationCodeableConcept":{"text":"Metformin"},"status":"active","authoredOn":"2021-06-15","dosageInstruction":[{"text":"500mg twice daily"}]}`,
	)

	ps, err := ParseBundle(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ps.Medications) != 2 {
		t.Fatalf("Expected 2 medications, got %d", len(ps.Medications))
	}
	// Statements are extracted before requests regardless of entry order.
	if ps.Medications[0].Code.Text != "Lisinopril" || ps.Medications[0].StartDate != "2020-01-01" {
		t.Errorf("Unexpected first medication: %+v", ps.Medications[0])
	}
	if ps.Medications[1].Dosage != "500mg twice daily" {
		t.Errorf("Expected dosage text, got %q", ps.Medications[1].Dosage)
	}
}

func TestParseBundleComposition(t *testing.T) {
	data := bundleWith(`{
		"resourceType": "Composition",
		"title": "Patient Summary",
		"date": "2024-03-01",
		"type": {"coding": [{"code": "60591-5", "display": "Patient summary Document"}]},
		"author": [{"reference": "Practitioner/pr-1", "display": "Dr. Costa"}],
		"custodian": {"reference": "Organization/org-1", "display": "Hospital de Lisboa"},
		"section": [{"title": "Problems"}, {"title": "Medications"}]
	}`)

	ps, err := ParseBundle(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ps.Composition == nil {
		t.Fatal("Expected composition extracted")
	}
	if ps.Composition.Author != "Dr. Costa" || ps.Composition.Custodian != "Hospital de Lisboa" {
		t.Errorf("Unexpected provenance: %s / %s", ps.Composition.Author, ps.Composition.Custodian)
	}
	if len(ps.Composition.Sections) != 2 {
		t.Errorf("Expected 2 section titles, got %d", len(ps.Composition.Sections))
	}
}

func TestLenientWalkReducedResourceSet(t *testing.T) {
	data := []byte(`{"resourceType":"Bundle","entry":[
		{"resource":{"resourceType":"Patient","name":[{"family":"Silva"}]}},
		{"resource":{"resourceType":"Condition","code":{"text":"Asthma"}}},
		{"resource":{"resourceType":"MedicationStatement","medicationCodeableConcept":{"text":"Dropped"}}}
	]}`)

	ps, err := ParseBundleLenient(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ps.Demographics.FamilyName != "Silva" {
		t.Error("Expected demographics from lenient walk")
	}
	if len(ps.Conditions) != 1 {
		t.Errorf("Expected 1 condition, got %d", len(ps.Conditions))
	}
	// The lenient walk covers a reduced resource set.
	if len(ps.Medications) != 0 {
		t.Errorf("Expected medications outside the lenient set, got %d", len(ps.Medications))
	}
}

func TestMissingProviderRefs(t *testing.T) {
	var data = bundleWith(
		`{"resourceType":"Composition","title":"PS","author":[{"reference":"Practitioner/pr-1"}],"custodian":{"reference":"Organization/org-1"}}`,
		`{"resourceType":"Organization","id":"org-1","name":"Hospital de Lisboa"}`,
	)

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatalf("Failed to decode bundle: %v", err)
	}

	refs := bundle.MissingProviderRefs()
	if len(refs) != 1 || refs[0] != "Practitioner/pr-1" {
		t.Fatalf("Expected only the non-inlined practitioner reference, got %v", refs)
	}
}
