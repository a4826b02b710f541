package cda

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Document is a parsed CDA document together with its classified level.
type Document struct {
	Level Level
	Root  *ClinicalDocument
	Raw   []byte
}

// Parse unmarshals a CDA document and classifies its structural level.
func Parse(content []byte, filename string) (*Document, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("cda: document is empty")
	}

	var root ClinicalDocument
	if err := xml.Unmarshal(content, &root); err != nil {
		return nil, fmt.Errorf("cda: failed to parse XML: %w", err)
	}

	return &Document{
		Level: Classify(content, filename),
		Root:  &root,
		Raw:   content,
	}, nil
}

// PatientID returns the first patient-role identifier extension and its
// assigning-authority name. Both are "" when the header carries none.
func (d *Document) PatientID() (id, authority string) {
	role := d.patientRole()
	if role == nil {
		return "", ""
	}
	for _, instance := range role.IDs {
		if instance.Extension != "" {
			return instance.Extension, instance.AssigningAuthorityName
		}
	}
	return "", ""
}

// GivenName returns the patient's first given name.
func (d *Document) GivenName() string {
	if p := d.patient(); p != nil && p.Name != nil && len(p.Name.Given) > 0 {
		return p.Name.Given[0]
	}
	return ""
}

// FamilyName returns the patient's family name.
func (d *Document) FamilyName() string {
	if p := d.patient(); p != nil && p.Name != nil {
		return p.Name.Family
	}
	return ""
}

// BirthDate returns the patient's birth date as YYYY-MM-DD.
func (d *Document) BirthDate() string {
	if p := d.patient(); p != nil && p.BirthTime != nil {
		return FormatHL7Date(p.BirthTime.Value)
	}
	return ""
}

// Gender returns the administrative gender display name, falling back to the
// raw code.
func (d *Document) Gender() string {
	p := d.patient()
	if p == nil || p.AdministrativeGenderCode == nil {
		return ""
	}
	if p.AdministrativeGenderCode.DisplayName != "" {
		return p.AdministrativeGenderCode.DisplayName
	}
	return p.AdministrativeGenderCode.Code
}

// Section returns the section with the given LOINC code, or nil.
func (d *Document) Section(code string) *Section {
	if d.Root.Component == nil || d.Root.Component.StructuredBody == nil {
		return nil
	}
	for i := range d.Root.Component.StructuredBody.Components {
		s := d.Root.Component.StructuredBody.Components[i].Section
		if s != nil && s.Code != nil && s.Code.Code == code {
			return s
		}
	}
	return nil
}

// Sections returns every section present in the document body.
func (d *Document) Sections() []*Section {
	if d.Root.Component == nil || d.Root.Component.StructuredBody == nil {
		return nil
	}
	var out []*Section
	for i := range d.Root.Component.StructuredBody.Components {
		if s := d.Root.Component.StructuredBody.Components[i].Section; s != nil {
			out = append(out, s)
		}
	}
	return out
}

// AuthorName returns the first author's name or organization.
func (d *Document) AuthorName() string {
	for _, a := range d.Root.Authors {
		if a.AssignedAuthor == nil {
			continue
		}
		if person := a.AssignedAuthor.AssignedPerson; person != nil && person.Name != nil {
			parts := append([]string{}, person.Name.Given...)
			if person.Name.Family != "" {
				parts = append(parts, person.Name.Family)
			}
			if len(parts) > 0 {
				return strings.Join(parts, " ")
			}
		}
		if org := a.AssignedAuthor.RepresentedOrganization; org != nil && len(org.Names) > 0 {
			return org.Names[0]
		}
	}
	return ""
}

// CustodianName returns the custodian organization name.
func (d *Document) CustodianName() string {
	c := d.Root.Custodian
	if c == nil || c.AssignedCustodian == nil || c.AssignedCustodian.RepresentedCustodianOrganization == nil {
		return ""
	}
	org := c.AssignedCustodian.RepresentedCustodianOrganization
	if len(org.Names) > 0 {
		return org.Names[0]
	}
	return ""
}

func (d *Document) patientRole() *PatientRole {
	if d.Root.RecordTarget == nil {
		return nil
	}
	return d.Root.RecordTarget.PatientRole
}

func (d *Document) patient() *Patient {
	role := d.patientRole()
	if role == nil {
		return nil
	}
	return role.Patient
}

// ParseHL7Time parses an HL7 timestamp (YYYYMMDD, YYYYMMDDHHmm or
// YYYYMMDDHHmmss, optionally with a timezone suffix).
func ParseHL7Time(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, "+-"); idx > 0 {
		s = s[:idx]
	}
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) >= 12:
		return time.Parse("200601021504", s[:12])
	case len(s) >= 8:
		return time.Parse("20060102", s[:8])
	default:
		return time.Time{}, fmt.Errorf("cda: unrecognized time format: %q", s)
	}
}

// FormatHL7Date converts an HL7 date to YYYY-MM-DD, returning shorter inputs
// unchanged.
func FormatHL7Date(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 8 {
		return s[:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	return s
}
