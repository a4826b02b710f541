package summary_test

import (
	"testing"

	"crossmed.eu/ncpcore/internal/cda"
	"crossmed.eu/ncpcore/internal/fhir"
	"crossmed.eu/ncpcore/internal/summary"
)

var summaryDoc = []byte(`<ClinicalDocument xmlns="urn:hl7-org:v3">
	<code code="60591-5" codeSystem="2.16.840.1.113883.6.1" displayName="Patient summary Document"/>
	<title>Resumo Clinico</title>
	<effectiveTime value="20240301120000"/>
	<recordTarget><patientRole>
		<id root="1.3.6.1.4.1.12559" extension="PT-1001"/>
		<telecom use="HP" value="tel:+351210000000"/>
		<addr use="HP"><streetAddressLine>Rua A 1</streetAddressLine><city>Lisboa</city><country>PT</country></addr>
		<patient>
			<name><given>Maria</given><family>Silva</family></name>
			<administrativeGenderCode code="F" displayName="Female"/>
			<birthTime value="19751224"/>
		</patient>
	</patientRole></recordTarget>
	<author><assignedAuthor><assignedPerson><name><given>Joana</given><family>Costa</family></name></assignedPerson></assignedAuthor></author>
	<custodian><assignedCustodian><representedCustodianOrganization><name>Hospital de Lisboa</name></representedCustodianOrganization></assignedCustodian></custodian>
	<component><structuredBody>
		<component><section>
			<code code="11450-4" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Problems</title>
			<entry><act>
				<statusCode code="active"/>
				<effectiveTime><low value="20200114"/></effectiveTime>
				<entryRelationship typeCode="SUBJ"><observation>
					<value code="38341003" codeSystem="2.16.840.1.113883.6.96" codeSystemName="SNOMED CT" displayName="Hypertension"/>
				</observation></entryRelationship>
			</act></entry>
		</section></component>
		<component><section>
			<code code="10160-0" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Medications</title>
			<entry><substanceAdministration>
				<statusCode code="active"/>
				<effectiveTime><low value="20220601"/></effectiveTime>
				<routeCode code="20053000" codeSystem="0.4.0.127.0.16.1.1.2.1" displayName="Oral use"/>
				<doseQuantity value="10" unit="mg"/>
				<consumable><manufacturedProduct><manufacturedMaterial>
					<code code="386873009" codeSystem="2.16.840.1.113883.6.96" displayName="Lisinopril"/>
				</manufacturedMaterial></manufacturedProduct></consumable>
			</substanceAdministration></entry>
		</section></component>
	</structuredBody></component>
</ClinicalDocument>`)

func parseSummaryDoc(t *testing.T) *summary.PatientSummary {
	t.Helper()
	doc, err := cda.Parse(summaryDoc, "summary_L3.xml")
	if err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	return summary.FromCDA(doc)
}

func TestFromCDADemographics(t *testing.T) {
	ps := parseSummaryDoc(t)

	d := ps.Demographics
	if d.GivenName != "Maria" || d.FamilyName != "Silva" {
		t.Errorf("Expected Maria Silva, got %s %s", d.GivenName, d.FamilyName)
	}
	if d.BirthDate != "1975-12-24" {
		t.Errorf("Expected birth date 1975-12-24, got %s", d.BirthDate)
	}
	if d.Gender != "Female" {
		t.Errorf("Expected gender Female, got %s", d.Gender)
	}
	if len(d.Identifiers) != 1 || d.Identifiers[0].Value != "PT-1001" {
		t.Error("Expected identifier PT-1001")
	}
	if len(d.ContactPoints) != 1 || d.ContactPoints[0].Value != "tel:+351210000000" {
		t.Error("Expected telecom contact point")
	}
	if len(d.Addresses) != 1 || d.Addresses[0].City != "Lisboa" {
		t.Error("Expected Lisboa address")
	}
}

func TestFromCDASections(t *testing.T) {
	ps := parseSummaryDoc(t)

	if len(ps.Conditions) != 1 {
		t.Fatalf("Expected 1 condition, got %d", len(ps.Conditions))
	}
	cond := ps.Conditions[0]
	if cond.Code.Text != "Hypertension" {
		t.Errorf("Expected Hypertension, got %s", cond.Code.Text)
	}
	if len(cond.Code.Codings) != 1 || cond.Code.Codings[0].Code != "38341003" {
		t.Error("Expected SNOMED coding on the condition")
	}
	if cond.ClinicalStatus.Text != "active" || cond.OnsetDate != "2020-01-14" {
		t.Errorf("Unexpected status/onset: %s / %s", cond.ClinicalStatus.Text, cond.OnsetDate)
	}

	if len(ps.Medications) != 1 {
		t.Fatalf("Expected 1 medication, got %d", len(ps.Medications))
	}
	med := ps.Medications[0]
	if med.Code.Text != "Lisinopril" {
		t.Errorf("Expected Lisinopril, got %s", med.Code.Text)
	}
	if med.Dosage != "10 mg" {
		t.Errorf("Expected dosage 10 mg, got %q", med.Dosage)
	}
	if med.Route.Text != "Oral use" {
		t.Errorf("Expected route Oral use, got %s", med.Route.Text)
	}
	if med.StartDate != "2022-06-01" {
		t.Errorf("Expected start 2022-06-01, got %s", med.StartDate)
	}
}

func TestFromCDAProvenance(t *testing.T) {
	ps := parseSummaryDoc(t)

	if ps.Composition == nil {
		t.Fatal("Expected composition")
	}
	if ps.Composition.Title != "Resumo Clinico" {
		t.Errorf("Expected document title, got %s", ps.Composition.Title)
	}
	if ps.Composition.Date != "2024-03-01" {
		t.Errorf("Expected composition date 2024-03-01, got %s", ps.Composition.Date)
	}
	if ps.Composition.Author != "Joana Costa" {
		t.Errorf("Expected author Joana Costa, got %s", ps.Composition.Author)
	}
	if ps.Composition.Custodian != "Hospital de Lisboa" {
		t.Errorf("Expected custodian, got %s", ps.Composition.Custodian)
	}
	if len(ps.Composition.Sections) != 2 {
		t.Errorf("Expected 2 section titles, got %d", len(ps.Composition.Sections))
	}

	if len(ps.CareProviders) != 2 {
		t.Fatalf("Expected author and custodian as care providers, got %d", len(ps.CareProviders))
	}
}

// Both ingestion paths must produce the same output shape for equivalent
// clinical content.
func TestSourceParity(t *testing.T) {
	fromCDA := parseSummaryDoc(t)

	bundle := []byte(`{"resourceType":"Bundle","type":"document","entry":[
		{"resource":{"resourceType":"Patient","name":[{"family":"Silva","given":["Maria"]}],"birthDate":"1975-12-24"}},
		{"resource":{"resourceType":"Condition",
			"code":{"coding":[{"system":"http://snomed.info/sct","code":"38341003","display":"Hypertension"}]},
			"clinicalStatus":{"coding":[{"code":"active"}]},
			"onsetDateTime":"2020-01-14"}}
	]}`)
	fromFHIR, err := fhir.Parse(bundle)
	if err != nil {
		t.Fatalf("Failed to parse bundle: %v", err)
	}

	if fromCDA.Demographics.FamilyName != fromFHIR.Demographics.FamilyName {
		t.Error("Family name differs between sources")
	}
	if fromCDA.Demographics.BirthDate != fromFHIR.Demographics.BirthDate {
		t.Error("Birth date differs between sources")
	}

	c1, c2 := fromCDA.Conditions[0], fromFHIR.Conditions[0]
	if c1.Code.Text != c2.Code.Text {
		t.Errorf("Condition text differs: %q vs %q", c1.Code.Text, c2.Code.Text)
	}
	if c1.Code.Codings[0].Code != c2.Code.Codings[0].Code {
		t.Error("Condition code differs between sources")
	}
	if c1.ClinicalStatus.Text != c2.ClinicalStatus.Text {
		t.Errorf("Clinical status differs: %q vs %q", c1.ClinicalStatus.Text, c2.ClinicalStatus.Text)
	}
	if c1.OnsetDate != c2.OnsetDate {
		t.Errorf("Onset differs: %q vs %q", c1.OnsetDate, c2.OnsetDate)
	}
}

func TestMergeFillsGapsAndAppends(t *testing.T) {
	dst := &summary.PatientSummary{
		Demographics: summary.Demographics{GivenName: "Maria"},
		Conditions:   []summary.Condition{{Code: summary.CodedConcept{Text: "Hypertension"}}},
	}
	src := &summary.PatientSummary{
		Demographics: summary.Demographics{GivenName: "M.", FamilyName: "Silva"},
		Conditions:   []summary.Condition{{Code: summary.CodedConcept{Text: "Asthma"}}},
	}

	summary.Merge(dst, src)

	if dst.Demographics.GivenName != "Maria" {
		t.Error("Merge must not overwrite populated demographics")
	}
	if dst.Demographics.FamilyName != "Silva" {
		t.Error("Merge must fill missing demographics")
	}
	if len(dst.Conditions) != 2 {
		t.Errorf("Merge must append domain records, got %d conditions", len(dst.Conditions))
	}
}
