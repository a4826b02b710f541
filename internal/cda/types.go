package cda

import "encoding/xml"

// LOINC codes identifying the patient-summary sections this gateway consumes.
const (
	SectionAllergies     = "48765-2"
	SectionMedications   = "10160-0"
	SectionProblems      = "11450-4"
	SectionProcedures    = "47519-4"
	SectionResults       = "30954-2"
	SectionVitalSigns    = "8716-3"
	SectionImmunizations = "11369-6"
	SectionSocialHistory = "29762-2"
	SectionPlanOfCare    = "18776-5"
	SectionEncounters    = "46240-8"
)

// ClinicalDocument is the root of a CDA R2 document. Field names bind by
// local name only, so documents from any issuing country parse regardless of
// namespace prefixing.
type ClinicalDocument struct {
	XMLName       xml.Name      `xml:"ClinicalDocument"`
	ID            *InstanceID   `xml:"id"`
	Code          *Code         `xml:"code"`
	Title         string        `xml:"title"`
	EffectiveTime *TimeValue    `xml:"effectiveTime"`
	LanguageCode  *Code         `xml:"languageCode"`
	RecordTarget  *RecordTarget `xml:"recordTarget"`
	Authors       []Author      `xml:"author"`
	Custodian     *Custodian    `xml:"custodian"`
	Component     *Component    `xml:"component"`
}

// InstanceID is an identifier with an assigning-authority OID root.
type InstanceID struct {
	Root                   string `xml:"root,attr"`
	Extension              string `xml:"extension,attr"`
	AssigningAuthorityName string `xml:"assigningAuthorityName,attr"`
}

// Code is a coded value with optional code system and display name.
type Code struct {
	Code           string `xml:"code,attr"`
	CodeSystem     string `xml:"codeSystem,attr"`
	CodeSystemName string `xml:"codeSystemName,attr"`
	DisplayName    string `xml:"displayName,attr"`
	NullFlavor     string `xml:"nullFlavor,attr"`
}

// TimeValue is a point-in-time stamp in HL7 format (YYYYMMDD[HHmmss]).
type TimeValue struct {
	Value string `xml:"value,attr"`
}

// RecordTarget wraps the patient role in the document header.
type RecordTarget struct {
	PatientRole *PatientRole `xml:"patientRole"`
}

// PatientRole carries patient identifiers and demographics.
type PatientRole struct {
	IDs      []InstanceID `xml:"id"`
	Addrs    []Addr       `xml:"addr"`
	Telecoms []Telecom    `xml:"telecom"`
	Patient  *Patient     `xml:"patient"`
}

// Patient holds demographic data.
type Patient struct {
	Name                     *PersonName `xml:"name"`
	AdministrativeGenderCode *Code       `xml:"administrativeGenderCode"`
	BirthTime                *TimeValue  `xml:"birthTime"`
}

// PersonName is a structured person name. Given may repeat.
type PersonName struct {
	Given  []string `xml:"given"`
	Family string   `xml:"family"`
}

// Addr is a postal address.
type Addr struct {
	Use           string   `xml:"use,attr"`
	StreetAddress []string `xml:"streetAddressLine"`
	City          string   `xml:"city"`
	State         string   `xml:"state"`
	PostalCode    string   `xml:"postalCode"`
	Country       string   `xml:"country"`
}

// Telecom is a contact point.
type Telecom struct {
	Use   string `xml:"use,attr"`
	Value string `xml:"value,attr"`
}

// Author holds document authorship.
type Author struct {
	Time           *TimeValue      `xml:"time"`
	AssignedAuthor *AssignedAuthor `xml:"assignedAuthor"`
}

// AssignedAuthor identifies the authoring person or device.
type AssignedAuthor struct {
	IDs                     []InstanceID    `xml:"id"`
	AssignedPerson          *AssignedPerson `xml:"assignedPerson"`
	RepresentedOrganization *Organization   `xml:"representedOrganization"`
}

// AssignedPerson is a named author.
type AssignedPerson struct {
	Name *PersonName `xml:"name"`
}

// Organization is a healthcare organization.
type Organization struct {
	IDs   []InstanceID `xml:"id"`
	Names []string     `xml:"name"`
}

// Custodian wraps the custodian organization.
type Custodian struct {
	AssignedCustodian *AssignedCustodian `xml:"assignedCustodian"`
}

// AssignedCustodian contains the custodian organization.
type AssignedCustodian struct {
	RepresentedCustodianOrganization *Organization `xml:"representedCustodianOrganization"`
}

// Component is the document body wrapper.
type Component struct {
	StructuredBody *StructuredBody `xml:"structuredBody"`
	NonXMLBody     *Element        `xml:"nonXMLBody"`
}

// StructuredBody holds the section components of an L2/L3 document.
type StructuredBody struct {
	Components []SectionComponent `xml:"component"`
}

// SectionComponent wraps one section.
type SectionComponent struct {
	Section *Section `xml:"section"`
}

// Section is one clinical section. Entries stay generic: their structure
// varies per issuing country and is discovered heuristically by the deep
// extractor rather than bound to a fixed schema.
type Section struct {
	TemplateIDs []InstanceID `xml:"templateId"`
	Code        *Code        `xml:"code"`
	Title       string       `xml:"title"`
	Text        *Element     `xml:"text"`
	Entries     []Element    `xml:"entry"`
}
