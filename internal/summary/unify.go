package summary

import (
	"crossmed.eu/ncpcore/internal/cda"
)

// FromCDA builds the canonical patient summary from a parsed CDA document.
// This is the CDA side of the unifier seam: whatever the issuing country
// nested, the output shape is identical to the FHIR parser's.
func FromCDA(doc *cda.Document) *PatientSummary {
	ps := &PatientSummary{}

	ps.Demographics = demographicsFromCDA(doc)

	for _, sec := range doc.Sections() {
		if sec.Code == nil {
			continue
		}
		entries := cda.ProcessSection(sec)
		switch sec.Code.Code {
		case cda.SectionProblems:
			for _, e := range entries {
				ps.Conditions = append(ps.Conditions, Condition{
					Code:           concept(e.Fields["problem"]),
					ClinicalStatus: concept(e.Fields["status"]),
					Severity:       concept(e.Fields["severity"]),
					OnsetDate:      text(e.Fields["onset_date"]),
					AbatementDate:  text(e.Fields["resolved_date"]),
				})
			}
		case cda.SectionMedications:
			for _, e := range entries {
				ps.Medications = append(ps.Medications, Medication{
					Code:      concept(e.Fields["medication"]),
					Status:    text(e.Fields["status"]),
					Dosage:    dosage(e.Fields),
					Route:     concept(e.Fields["route"]),
					StartDate: text(e.Fields["start_date"]),
					EndDate:   text(e.Fields["end_date"]),
				})
			}
		case cda.SectionAllergies:
			for _, e := range entries {
				ps.Allergies = append(ps.Allergies, Allergy{
					Code:           concept(e.Fields["agent"]),
					ClinicalStatus: concept(e.Fields["status"]),
					OnsetDate:      text(e.Fields["onset_date"]),
				})
			}
		case cda.SectionProcedures:
			for _, e := range entries {
				ps.Procedures = append(ps.Procedures, Procedure{
					Code:          concept(e.Fields["procedure"]),
					Status:        text(e.Fields["status"]),
					PerformedDate: text(e.Fields["date"]),
				})
			}
		case cda.SectionResults, cda.SectionVitalSigns:
			for _, e := range entries {
				ps.Observations = append(ps.Observations, Observation{
					Code:          concept(e.Fields["test"]),
					Value:         observationValue(e.Fields),
					Status:        text(e.Fields["status"]),
					EffectiveDate: text(e.Fields["date"]),
				})
			}
		case cda.SectionImmunizations:
			for _, e := range entries {
				ps.Immunizations = append(ps.Immunizations, Immunization{
					Vaccine: concept(e.Fields["vaccine"]),
					Status:  text(e.Fields["status"]),
					Date:    text(e.Fields["date"]),
				})
			}
		case cda.SectionEncounters:
			for _, e := range entries {
				ps.Encounters = append(ps.Encounters, Encounter{
					Type:   concept(e.Fields["type"]),
					Status: text(e.Fields["status"]),
					Start:  text(e.Fields["start_date"]),
					End:    text(e.Fields["end_date"]),
				})
			}
		}
	}

	ps.Composition = compositionFromCDA(doc)
	if author := doc.AuthorName(); author != "" {
		ps.CareProviders = append(ps.CareProviders, CareProvider{Name: author})
	}
	if custodian := doc.CustodianName(); custodian != "" {
		ps.CareProviders = append(ps.CareProviders, CareProvider{
			Name:         custodian,
			Organization: custodian,
		})
	}

	return ps
}

func demographicsFromCDA(doc *cda.Document) Demographics {
	d := Demographics{
		GivenName:  doc.GivenName(),
		FamilyName: doc.FamilyName(),
		BirthDate:  doc.BirthDate(),
		Gender:     doc.Gender(),
	}
	root := doc.Root
	if root.RecordTarget != nil && root.RecordTarget.PatientRole != nil {
		role := root.RecordTarget.PatientRole
		for _, id := range role.IDs {
			if id.Extension == "" {
				continue
			}
			d.Identifiers = append(d.Identifiers, Identifier{
				System: id.Root,
				Value:  id.Extension,
			})
		}
		for _, t := range role.Telecoms {
			if t.Value != "" {
				d.ContactPoints = append(d.ContactPoints, ContactPoint{
					Value: t.Value,
					Use:   t.Use,
				})
			}
		}
		for _, a := range role.Addrs {
			addr := Address{
				Use:        a.Use,
				Line:       a.StreetAddress,
				City:       a.City,
				State:      a.State,
				PostalCode: a.PostalCode,
				Country:    a.Country,
			}
			d.Addresses = append(d.Addresses, addr)
		}
	}
	return d
}

func compositionFromCDA(doc *cda.Document) *Composition {
	comp := &Composition{
		Title:     doc.Root.Title,
		Author:    doc.AuthorName(),
		Custodian: doc.CustodianName(),
	}
	if doc.Root.Code != nil {
		comp.Type = CodedConcept{
			Text: doc.Root.Code.DisplayName,
			Codings: []Coding{{
				System:  doc.Root.Code.CodeSystem,
				Code:    doc.Root.Code.Code,
				Display: doc.Root.Code.DisplayName,
			}},
		}
	}
	if doc.Root.EffectiveTime != nil {
		comp.Date = cda.FormatHL7Date(doc.Root.EffectiveTime.Value)
	}
	for _, sec := range doc.Sections() {
		if sec.Title != "" {
			comp.Sections = append(comp.Sections, sec.Title)
		}
	}
	if comp.Title == "" && comp.Date == "" && comp.Author == "" && len(comp.Sections) == 0 {
		return nil
	}
	return comp
}

// concept converts a processed-entry value (coded sub-map or plain string)
// into a CodedConcept. Absent values yield the zero concept, never an error.
func concept(v interface{}) CodedConcept {
	switch val := v.(type) {
	case map[string]interface{}:
		c := CodedConcept{Text: text(val["displayName"])}
		coding := Coding{
			System:  text(val["codeSystem"]),
			Code:    text(val["code"]),
			Display: text(val["displayName"]),
		}
		if coding.Code != "" || coding.System != "" {
			c.Codings = append(c.Codings, coding)
		}
		if c.Text == "" && coding.Code != "" {
			c.Text = coding.Code
		}
		return c
	case string:
		return CodedConcept{Text: val}
	default:
		return CodedConcept{}
	}
}

func text(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func dosage(e map[string]interface{}) string {
	dose := text(e["dose"])
	if dose == "" {
		return ""
	}
	if unit := text(e["dose_unit"]); unit != "" {
		return dose + " " + unit
	}
	return dose
}

func observationValue(e map[string]interface{}) Value {
	switch val := e["value"].(type) {
	case string:
		return Value{
			Kind: ValueString,
			Text: val,
			Unit: text(e["unit"]),
		}
	case map[string]interface{}:
		c := concept(val)
		return Value{
			Kind:    ValueConcept,
			Text:    c.Text,
			Concept: &c,
		}
	default:
		return Value{}
	}
}
