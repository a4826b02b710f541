// Package summary defines the canonical patient-summary model shared by the
// CDA and FHIR source pipelines. Every downstream consumer (rendering,
// reporting, transformation) sees this shape and only this shape, regardless
// of which wire format a document arrived in.
package summary

// Coding is a single code within a named code system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodedConcept is the uniform coded-value sub-shape: a human-readable text
// plus an ordered list of codings. Absence of codings is expected and legal.
type CodedConcept struct {
	Text    string   `json:"text,omitempty"`
	Codings []Coding `json:"codings,omitempty"`
}

// Identifier is a patient or organization identifier with its issuing system.
type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

// ContactPoint is a phone number, email address or similar.
type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

// Address is a postal address.
type Address struct {
	Use        string   `json:"use,omitempty"`
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
}

// Demographics carries patient identity data.
type Demographics struct {
	Identifiers   []Identifier   `json:"identifiers,omitempty"`
	FamilyName    string         `json:"familyName,omitempty"`
	GivenName     string         `json:"givenName,omitempty"`
	BirthDate     string         `json:"birthDate,omitempty"`
	Gender        string         `json:"gender,omitempty"`
	ContactPoints []ContactPoint `json:"contactPoints,omitempty"`
	Addresses     []Address      `json:"addresses,omitempty"`
}

// ValueKind names which variant of a polymorphic value was present. Downstream
// formatting branches on this tag, so parsers must always set it.
type ValueKind string

const (
	ValueQuantity ValueKind = "quantity"
	ValueConcept  ValueKind = "concept"
	ValueString   ValueKind = "string"
	ValueBoolean  ValueKind = "boolean"
	ValueInteger  ValueKind = "integer"
	ValueRange    ValueKind = "range"
	ValueRatio    ValueKind = "ratio"
	ValueTime     ValueKind = "time"
	ValuePeriod   ValueKind = "period"
	ValueNone     ValueKind = ""
)

// Value is a resolved polymorphic value tagged with its variant.
type Value struct {
	Kind    ValueKind     `json:"kind,omitempty"`
	Text    string        `json:"text,omitempty"`
	Number  float64       `json:"number,omitempty"`
	Unit    string        `json:"unit,omitempty"`
	Concept *CodedConcept `json:"concept,omitempty"`
}

// Condition is a diagnosed problem or condition.
type Condition struct {
	Code           CodedConcept `json:"code"`
	ClinicalStatus CodedConcept `json:"clinicalStatus,omitempty"`
	Severity       CodedConcept `json:"severity,omitempty"`
	OnsetDate      string       `json:"onsetDate,omitempty"`
	AbatementDate  string       `json:"abatementDate,omitempty"`
	RecordedDate   string       `json:"recordedDate,omitempty"`
}

// Medication is an active or historical medication statement.
type Medication struct {
	Code      CodedConcept `json:"code"`
	Status    string       `json:"status,omitempty"`
	Dosage    string       `json:"dosage,omitempty"`
	Route     CodedConcept `json:"route,omitempty"`
	StartDate string       `json:"startDate,omitempty"`
	EndDate   string       `json:"endDate,omitempty"`
}

// Observation is a measurement or finding.
type Observation struct {
	Code          CodedConcept `json:"code"`
	Value         Value        `json:"value,omitempty"`
	Status        string       `json:"status,omitempty"`
	EffectiveDate string       `json:"effectiveDate,omitempty"`
	Category      CodedConcept `json:"category,omitempty"`
}

// Procedure is a performed procedure.
type Procedure struct {
	Code          CodedConcept `json:"code"`
	Status        string       `json:"status,omitempty"`
	PerformedDate string       `json:"performedDate,omitempty"`
	BodySite      CodedConcept `json:"bodySite,omitempty"`
}

// Allergy is an allergy or intolerance.
type Allergy struct {
	Code           CodedConcept `json:"code"`
	ClinicalStatus CodedConcept `json:"clinicalStatus,omitempty"`
	Criticality    string       `json:"criticality,omitempty"`
	Reaction       CodedConcept `json:"reaction,omitempty"`
	OnsetDate      string       `json:"onsetDate,omitempty"`
}

// Immunization is an administered vaccine.
type Immunization struct {
	Vaccine    CodedConcept `json:"vaccine"`
	Status     string       `json:"status,omitempty"`
	Date       string       `json:"date,omitempty"`
	DoseNumber string       `json:"doseNumber,omitempty"`
}

// Encounter is a healthcare visit or admission.
type Encounter struct {
	Type   CodedConcept `json:"type"`
	Class  CodedConcept `json:"class,omitempty"`
	Status string       `json:"status,omitempty"`
	Start  string       `json:"start,omitempty"`
	End    string       `json:"end,omitempty"`
}

// DiagnosticReport groups observation results under one report.
type DiagnosticReport struct {
	Code          CodedConcept `json:"code"`
	Status        string       `json:"status,omitempty"`
	EffectiveDate string       `json:"effectiveDate,omitempty"`
	Conclusion    string       `json:"conclusion,omitempty"`
}

// CareProvider is an authoring or custodian party.
type CareProvider struct {
	Name         string       `json:"name,omitempty"`
	Role         CodedConcept `json:"role,omitempty"`
	Organization string       `json:"organization,omitempty"`
	Identifiers  []Identifier `json:"identifiers,omitempty"`
}

// Composition is the document-level metadata record.
type Composition struct {
	Title     string       `json:"title,omitempty"`
	Type      CodedConcept `json:"type,omitempty"`
	Date      string       `json:"date,omitempty"`
	Author    string       `json:"author,omitempty"`
	Custodian string       `json:"custodian,omitempty"`
	Sections  []string     `json:"sections,omitempty"`
}

// PatientSummary is the single unified output of both source pipelines.
type PatientSummary struct {
	Demographics      Demographics       `json:"demographics"`
	Conditions        []Condition        `json:"conditions,omitempty"`
	Medications       []Medication       `json:"medications,omitempty"`
	Observations      []Observation      `json:"observations,omitempty"`
	Procedures        []Procedure        `json:"procedures,omitempty"`
	Allergies         []Allergy          `json:"allergies,omitempty"`
	Immunizations     []Immunization     `json:"immunizations,omitempty"`
	Encounters        []Encounter        `json:"encounters,omitempty"`
	DiagnosticReports []DiagnosticReport `json:"diagnosticReports,omitempty"`
	CareProviders     []CareProvider     `json:"careProviders,omitempty"`
	Composition       *Composition       `json:"composition,omitempty"`
}

// Merge appends every domain list of src onto dst and fills demographic
// fields dst is missing. Both sources of a query may contribute, so the
// merge is additive and never drops records.
func Merge(dst, src *PatientSummary) {
	if src == nil || dst == nil {
		return
	}
	if dst.Demographics.FamilyName == "" {
		dst.Demographics.FamilyName = src.Demographics.FamilyName
	}
	if dst.Demographics.GivenName == "" {
		dst.Demographics.GivenName = src.Demographics.GivenName
	}
	if dst.Demographics.BirthDate == "" {
		dst.Demographics.BirthDate = src.Demographics.BirthDate
	}
	if dst.Demographics.Gender == "" {
		dst.Demographics.Gender = src.Demographics.Gender
	}
	dst.Demographics.Identifiers = append(dst.Demographics.Identifiers, src.Demographics.Identifiers...)
	dst.Demographics.ContactPoints = append(dst.Demographics.ContactPoints, src.Demographics.ContactPoints...)
	dst.Demographics.Addresses = append(dst.Demographics.Addresses, src.Demographics.Addresses...)

	dst.Conditions = append(dst.Conditions, src.Conditions...)
	dst.Medications = append(dst.Medications, src.Medications...)
	dst.Observations = append(dst.Observations, src.Observations...)
	dst.Procedures = append(dst.Procedures, src.Procedures...)
	dst.Allergies = append(dst.Allergies, src.Allergies...)
	dst.Immunizations = append(dst.Immunizations, src.Immunizations...)
	dst.Encounters = append(dst.Encounters, src.Encounters...)
	dst.DiagnosticReports = append(dst.DiagnosticReports, src.DiagnosticReports...)
	dst.CareProviders = append(dst.CareProviders, src.CareProviders...)
	if dst.Composition == nil {
		dst.Composition = src.Composition
	}
}
