package fhir

import (
	"encoding/json"
	"errors"
	"fmt"

	"crossmed.eu/ncpcore/internal/summary"
)

// ErrInvalidBundle marks input that is not a FHIR Bundle at all. It is the
// only reportable top-level failure; everything below it resolves to absent
// values or the lenient fallback.
var ErrInvalidBundle = errors.New("fhir: resource is not a Bundle")

// unknownConcept is the sentinel text for a coded concept that is present
// but carries neither text, display nor code.
const unknownConcept = "Unknown"

type extractorFunc func(resource map[string]interface{}, ps *summary.PatientSummary)

// extractors is the closed set of supported resource kinds. Resource types
// outside this table are silently dropped, never an error.
var extractors = map[string]extractorFunc{
	"Patient":             extractPatient,
	"Condition":           extractCondition,
	"MedicationStatement": extractMedicationStatement,
	"MedicationRequest":   extractMedicationRequest,
	"Observation":         extractObservation,
	"Procedure":           extractProcedure,
	"AllergyIntolerance":  extractAllergy,
	"Immunization":        extractImmunization,
	"Encounter":           extractEncounter,
	"DiagnosticReport":    extractDiagnosticReport,
	"Practitioner":        extractPractitioner,
	"Organization":        extractOrganization,
	"Composition":         extractComposition,
}

// extractionOrder fixes the order resource groups are processed in, so two
// parses of the same bundle produce identical summaries.
var extractionOrder = []string{
	"Patient",
	"Composition",
	"Condition",
	"MedicationStatement",
	"MedicationRequest",
	"Observation",
	"Procedure",
	"AllergyIntolerance",
	"Immunization",
	"Encounter",
	"DiagnosticReport",
	"Practitioner",
	"Organization",
}

// ParseBundle converts a FHIR bundle into the canonical patient summary.
// Input without a Bundle resourceType marker is rejected; malformed JSON is
// a parse failure the caller may route to ParseBundleLenient.
func ParseBundle(data []byte) (*summary.PatientSummary, error) {
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}
	if bundle.ResourceType != "Bundle" {
		return nil, ErrInvalidBundle
	}

	grouped := make(map[string][]map[string]interface{})
	for _, entry := range bundle.Entry {
		if entry.Resource == nil {
			continue
		}
		rt := resourceType(entry.Resource)
		if _, supported := extractors[rt]; !supported {
			continue
		}
		grouped[rt] = append(grouped[rt], entry.Resource)
	}

	ps := &summary.PatientSummary{}
	for _, rt := range extractionOrder {
		extract := extractors[rt]
		for _, resource := range grouped[rt] {
			extract(resource, ps)
		}
	}
	return ps, nil
}

// ExtractResource applies the registered extractor for a single raw
// resource, reporting whether its type is supported. Used for by-reference
// resources fetched outside a bundle.
func ExtractResource(resource map[string]interface{}, ps *summary.PatientSummary) bool {
	extract, ok := extractors[resourceType(resource)]
	if !ok {
		return false
	}
	extract(resource, ps)
	return true
}

// ---- shared field resolution ----

// codedConcept resolves a FHIR CodeableConcept into the canonical shape:
// text, else first coding display, else first coding code, else "Unknown".
// A nil input is an absent concept, not an unknown one.
func codedConcept(m map[string]interface{}) summary.CodedConcept {
	if m == nil {
		return summary.CodedConcept{}
	}

	c := summary.CodedConcept{Text: getString(m, "text")}
	for _, coding := range getMaps(m, "coding") {
		c.Codings = append(c.Codings, summary.Coding{
			System:  getString(coding, "system"),
			Code:    getString(coding, "code"),
			Display: getString(coding, "display"),
		})
	}

	if c.Text == "" {
		for _, coding := range c.Codings {
			if coding.Display != "" {
				c.Text = coding.Display
				break
			}
		}
	}
	if c.Text == "" {
		for _, coding := range c.Codings {
			if coding.Code != "" {
				c.Text = coding.Code
				break
			}
		}
	}
	if c.Text == "" {
		c.Text = unknownConcept
	}
	return c
}

// codingConcept resolves a bare FHIR Coding (Encounter.class and friends).
func codingConcept(m map[string]interface{}) summary.CodedConcept {
	if m == nil {
		return summary.CodedConcept{}
	}
	return codedConcept(map[string]interface{}{
		"coding": []interface{}{m},
	})
}

// firstConcept resolves the first element of a CodeableConcept array field.
func firstConcept(m map[string]interface{}, key string) summary.CodedConcept {
	concepts := getMaps(m, key)
	if len(concepts) == 0 {
		return summary.CodedConcept{}
	}
	return codedConcept(concepts[0])
}

// polymorphicValue resolves a FHIR value[x] field by checking each variant
// in fixed priority order and tagging the first present one. The tag must
// survive to the output: downstream formatting branches on it.
func polymorphicValue(m map[string]interface{}) summary.Value {
	if quantity := getMap(m, "valueQuantity"); quantity != nil {
		v := summary.Value{Kind: summary.ValueQuantity, Unit: getString(quantity, "unit")}
		if f, ok := getFloat(quantity, "value"); ok {
			v.Number = f
			v.Text = trimFloat(f)
		}
		return v
	}
	if concept := getMap(m, "valueCodeableConcept"); concept != nil {
		c := codedConcept(concept)
		return summary.Value{Kind: summary.ValueConcept, Text: c.Text, Concept: &c}
	}
	if s, ok := m["valueString"].(string); ok {
		return summary.Value{Kind: summary.ValueString, Text: s}
	}
	if b, ok := m["valueBoolean"].(bool); ok {
		return summary.Value{Kind: summary.ValueBoolean, Text: fmt.Sprintf("%t", b)}
	}
	if f, ok := getFloat(m, "valueInteger"); ok {
		return summary.Value{Kind: summary.ValueInteger, Number: f, Text: trimFloat(f)}
	}
	if rng := getMap(m, "valueRange"); rng != nil {
		return summary.Value{Kind: summary.ValueRange, Text: rangeText(rng)}
	}
	if ratio := getMap(m, "valueRatio"); ratio != nil {
		return summary.Value{Kind: summary.ValueRatio, Text: ratioText(ratio)}
	}
	if s, ok := m["valueTime"].(string); ok {
		return summary.Value{Kind: summary.ValueTime, Text: s}
	}
	if period := getMap(m, "valuePeriod"); period != nil {
		text := getString(period, "start")
		if end := getString(period, "end"); end != "" {
			text += " - " + end
		}
		return summary.Value{Kind: summary.ValuePeriod, Text: text}
	}
	return summary.Value{}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

func rangeText(rng map[string]interface{}) string {
	low, high := getMap(rng, "low"), getMap(rng, "high")
	var lowText, highText string
	if low != nil {
		if f, ok := getFloat(low, "value"); ok {
			lowText = trimFloat(f)
		}
	}
	if high != nil {
		if f, ok := getFloat(high, "value"); ok {
			highText = trimFloat(f)
		}
	}
	return lowText + " - " + highText
}

func ratioText(ratio map[string]interface{}) string {
	num, den := getMap(ratio, "numerator"), getMap(ratio, "denominator")
	var numText, denText string
	if num != nil {
		if f, ok := getFloat(num, "value"); ok {
			numText = trimFloat(f)
		}
	}
	if den != nil {
		if f, ok := getFloat(den, "value"); ok {
			denText = trimFloat(f)
		}
	}
	return numText + "/" + denText
}

// ---- per-resource extractors ----

func extractPatient(resource map[string]interface{}, ps *summary.PatientSummary) {
	d := &ps.Demographics

	for _, identifier := range getMaps(resource, "identifier") {
		d.Identifiers = append(d.Identifiers, summary.Identifier{
			System: getString(identifier, "system"),
			Value:  getString(identifier, "value"),
			Use:    getString(identifier, "use"),
		})
	}

	if names := getMaps(resource, "name"); len(names) > 0 {
		name := names[0]
		d.FamilyName = getString(name, "family")
		if given := getSlice(name, "given"); len(given) > 0 {
			if s, ok := given[0].(string); ok {
				d.GivenName = s
			}
		}
	}

	d.BirthDate = getString(resource, "birthDate")
	d.Gender = getString(resource, "gender")

	for _, telecom := range getMaps(resource, "telecom") {
		d.ContactPoints = append(d.ContactPoints, summary.ContactPoint{
			System: getString(telecom, "system"),
			Value:  getString(telecom, "value"),
			Use:    getString(telecom, "use"),
		})
	}

	for _, address := range getMaps(resource, "address") {
		addr := summary.Address{
			Use:        getString(address, "use"),
			City:       getString(address, "city"),
			State:      getString(address, "state"),
			PostalCode: getString(address, "postalCode"),
			Country:    getString(address, "country"),
		}
		for _, line := range getSlice(address, "line") {
			if s, ok := line.(string); ok {
				addr.Line = append(addr.Line, s)
			}
		}
		d.Addresses = append(d.Addresses, addr)
	}
}

func extractCondition(resource map[string]interface{}, ps *summary.PatientSummary) {
	ps.Conditions = append(ps.Conditions, summary.Condition{
		Code:           codedConcept(getMap(resource, "code")),
		ClinicalStatus: codedConcept(getMap(resource, "clinicalStatus")),
		Severity:       codedConcept(getMap(resource, "severity")),
		OnsetDate:      getString(resource, "onsetDateTime"),
		AbatementDate:  getString(resource, "abatementDateTime"),
		RecordedDate:   getString(resource, "recordedDate"),
	})
}

func extractMedicationStatement(resource map[string]interface{}, ps *summary.PatientSummary) {
	med := summary.Medication{
		Code:   codedConcept(getMap(resource, "medicationCodeableConcept")),
		Status: getString(resource, "status"),
	}
	if dosages := getMaps(resource, "dosage"); len(dosages) > 0 {
		med.Dosage = getString(dosages[0], "text")
		med.Route = codedConcept(getMap(dosages[0], "route"))
	}
	if period := getMap(resource, "effectivePeriod"); period != nil {
		med.StartDate = getString(period, "start")
		med.EndDate = getString(period, "end")
	} else {
		med.StartDate = getString(resource, "effectiveDateTime")
	}
	ps.Medications = append(ps.Medications, med)
}

func extractMedicationRequest(resource map[string]interface{}, ps *summary.PatientSummary) {
	med := summary.Medication{
		Code:      codedConcept(getMap(resource, "medicationCodeableConcept")),
		Status:    getString(resource, "status"),
		StartDate: getString(resource, "authoredOn"),
	}
	if dosages := getMaps(resource, "dosageInstruction"); len(dosages) > 0 {
		med.Dosage = getString(dosages[0], "text")
		med.Route = codedConcept(getMap(dosages[0], "route"))
	}
	ps.Medications = append(ps.Medications, med)
}

func extractObservation(resource map[string]interface{}, ps *summary.PatientSummary) {
	ps.Observations = append(ps.Observations, summary.Observation{
		Code:          codedConcept(getMap(resource, "code")),
		Value:         polymorphicValue(resource),
		Status:        getString(resource, "status"),
		EffectiveDate: getString(resource, "effectiveDateTime"),
		Category:      firstConcept(resource, "category"),
	})
}

func extractProcedure(resource map[string]interface{}, ps *summary.PatientSummary) {
	proc := summary.Procedure{
		Code:          codedConcept(getMap(resource, "code")),
		Status:        getString(resource, "status"),
		PerformedDate: getString(resource, "performedDateTime"),
		BodySite:      firstConcept(resource, "bodySite"),
	}
	if proc.PerformedDate == "" {
		if period := getMap(resource, "performedPeriod"); period != nil {
			proc.PerformedDate = getString(period, "start")
		}
	}
	ps.Procedures = append(ps.Procedures, proc)
}

func extractAllergy(resource map[string]interface{}, ps *summary.PatientSummary) {
	allergy := summary.Allergy{
		Code:           codedConcept(getMap(resource, "code")),
		ClinicalStatus: codedConcept(getMap(resource, "clinicalStatus")),
		Criticality:    getString(resource, "criticality"),
		OnsetDate:      getString(resource, "onsetDateTime"),
	}
	if reactions := getMaps(resource, "reaction"); len(reactions) > 0 {
		allergy.Reaction = firstConcept(reactions[0], "manifestation")
	}
	ps.Allergies = append(ps.Allergies, allergy)
}

func extractImmunization(resource map[string]interface{}, ps *summary.PatientSummary) {
	imm := summary.Immunization{
		Vaccine: codedConcept(getMap(resource, "vaccineCode")),
		Status:  getString(resource, "status"),
		Date:    getString(resource, "occurrenceDateTime"),
	}
	if protocols := getMaps(resource, "protocolApplied"); len(protocols) > 0 {
		if f, ok := getFloat(protocols[0], "doseNumberPositiveInt"); ok {
			imm.DoseNumber = trimFloat(f)
		}
	}
	ps.Immunizations = append(ps.Immunizations, imm)
}

func extractEncounter(resource map[string]interface{}, ps *summary.PatientSummary) {
	enc := summary.Encounter{
		Type:   firstConcept(resource, "type"),
		Class:  codingConcept(getMap(resource, "class")),
		Status: getString(resource, "status"),
	}
	if period := getMap(resource, "period"); period != nil {
		enc.Start = getString(period, "start")
		enc.End = getString(period, "end")
	}
	ps.Encounters = append(ps.Encounters, enc)
}

func extractDiagnosticReport(resource map[string]interface{}, ps *summary.PatientSummary) {
	ps.DiagnosticReports = append(ps.DiagnosticReports, summary.DiagnosticReport{
		Code:          codedConcept(getMap(resource, "code")),
		Status:        getString(resource, "status"),
		EffectiveDate: getString(resource, "effectiveDateTime"),
		Conclusion:    getString(resource, "conclusion"),
	})
}

func extractPractitioner(resource map[string]interface{}, ps *summary.PatientSummary) {
	provider := summary.CareProvider{}
	if names := getMaps(resource, "name"); len(names) > 0 {
		provider.Name = humanName(names[0])
	}
	for _, identifier := range getMaps(resource, "identifier") {
		provider.Identifiers = append(provider.Identifiers, summary.Identifier{
			System: getString(identifier, "system"),
			Value:  getString(identifier, "value"),
		})
	}
	if provider.Name == "" && len(provider.Identifiers) == 0 {
		return
	}
	ps.CareProviders = append(ps.CareProviders, provider)
}

func extractOrganization(resource map[string]interface{}, ps *summary.PatientSummary) {
	name := getString(resource, "name")
	if name == "" {
		return
	}
	ps.CareProviders = append(ps.CareProviders, summary.CareProvider{
		Name:         name,
		Organization: name,
	})
}

func extractComposition(resource map[string]interface{}, ps *summary.PatientSummary) {
	comp := &summary.Composition{
		Title: getString(resource, "title"),
		Type:  codedConcept(getMap(resource, "type")),
		Date:  getString(resource, "date"),
	}
	if authors := getMaps(resource, "author"); len(authors) > 0 {
		comp.Author = getString(authors[0], "display")
	}
	if custodian := getMap(resource, "custodian"); custodian != nil {
		comp.Custodian = getString(custodian, "display")
	}
	for _, section := range getMaps(resource, "section") {
		if title := getString(section, "title"); title != "" {
			comp.Sections = append(comp.Sections, title)
		}
	}
	ps.Composition = comp
}

// humanName joins a FHIR HumanName into one display string.
func humanName(name map[string]interface{}) string {
	if text := getString(name, "text"); text != "" {
		return text
	}
	var parts []string
	for _, given := range getSlice(name, "given") {
		if s, ok := given.(string); ok {
			parts = append(parts, s)
		}
	}
	if family := getString(name, "family"); family != "" {
		parts = append(parts, family)
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}
