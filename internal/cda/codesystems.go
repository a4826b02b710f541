package cda

// Code-system OID dictionary. This is configuration data, not logic: the
// defaults match the systems seen in cross-border patient summaries and are
// relied on by output-parity tests.
var codeSystemNames = map[string]string{
	"2.16.840.1.113883.6.1":              "LOINC",
	"2.16.840.1.113883.6.96":             "SNOMED CT",
	"2.16.840.1.113883.6.88":             "RxNorm",
	"2.16.840.1.113883.6.90":             "ICD-10-CM",
	"1.3.6.1.4.1.12559.11.10.1.3.1.44.2": "ICD-10",
	"2.16.840.1.113883.6.73":             "ATC",
	"0.4.0.127.0.16.1.1.2.1":             "EDQM",
	"2.16.840.1.113883.6.8":              "UCUM",
	"2.16.840.1.113883.12.292":           "CVX",
	"2.16.840.1.113883.5.1":              "AdministrativeGender",
}

// Systems whose codes are rendered as terminology badges by consumers.
// Kept as data so deployments can extend it; defaults are preserved for
// output parity.
var badgeCodeSystems = map[string]bool{
	"SNOMED CT": true,
	"LOINC":     true,
	"ATC":       true,
	"ICD-10":    true,
	"ICD-10-CM": true,
	"EDQM":      true,
}

// CodeSystemName resolves an OID to its display name, falling back to the
// OID itself for systems outside the dictionary.
func CodeSystemName(oid string) string {
	if name, ok := codeSystemNames[oid]; ok {
		return name
	}
	return oid
}

// IsBadgeSystem reports whether a resolved code-system name is rendered as a
// terminology badge.
func IsBadgeSystem(name string) bool {
	return badgeCodeSystems[name]
}
