package fhir

import "strings"

// Bundle is a raw FHIR bundle. Resources stay generic maps: the extractors
// pull the fields of interest out field by field, which keeps country- and
// server-specific extensions from breaking the parse.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry is one entry of a bundle.
type BundleEntry struct {
	FullURL  string                 `json:"fullUrl,omitempty"`
	Resource map[string]interface{} `json:"resource,omitempty"`
}

// resourceType returns the resourceType tag of a raw resource.
func resourceType(resource map[string]interface{}) string {
	rt, _ := resource["resourceType"].(string)
	return rt
}

// getString reads a string field.
func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// getMap reads a nested object field.
func getMap(m map[string]interface{}, key string) map[string]interface{} {
	nested, _ := m[key].(map[string]interface{})
	return nested
}

// getSlice reads an array field.
func getSlice(m map[string]interface{}, key string) []interface{} {
	s, _ := m[key].([]interface{})
	return s
}

// getMaps reads an array field as a slice of objects, dropping non-objects.
func getMaps(m map[string]interface{}, key string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, v := range getSlice(m, key) {
		if nested, ok := v.(map[string]interface{}); ok {
			out = append(out, nested)
		}
	}
	return out
}

// getFloat reads a numeric field (JSON numbers decode as float64).
func getFloat(m map[string]interface{}, key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}

// MissingProviderRefs collects the Practitioner and Organization references
// a bundle's Composition resources point at without inlining them, so the
// caller can fetch them individually.
func (b *Bundle) MissingProviderRefs() []string {
	inlined := make(map[string]bool)
	var compositions []map[string]interface{}
	for _, entry := range b.Entry {
		if entry.Resource == nil {
			continue
		}
		rt := resourceType(entry.Resource)
		if id := getString(entry.Resource, "id"); id != "" {
			inlined[rt+"/"+id] = true
		}
		if rt == "Composition" {
			compositions = append(compositions, entry.Resource)
		}
	}

	var refs []string
	seen := make(map[string]bool)
	add := func(reference string) {
		for _, wantType := range []string{"Practitioner", "Organization"} {
			if referenceID(reference, wantType) == "" {
				continue
			}
			if inlined[reference] || seen[reference] {
				return
			}
			seen[reference] = true
			refs = append(refs, reference)
			return
		}
	}
	for _, composition := range compositions {
		for _, author := range getMaps(composition, "author") {
			add(getString(author, "reference"))
		}
		if custodian := getMap(composition, "custodian"); custodian != nil {
			add(getString(custodian, "reference"))
		}
	}
	return refs
}

// referenceID splits "Patient/123" into its id, returning "" for inline
// urn:uuid references that cannot be fetched individually.
func referenceID(reference, wantType string) string {
	if strings.HasPrefix(reference, "urn:uuid:") {
		return ""
	}
	parts := strings.Split(reference, "/")
	if len(parts) == 2 && parts[0] == wantType {
		return parts[1]
	}
	return ""
}
