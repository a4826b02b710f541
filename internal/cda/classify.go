package cda

import (
	"strings"
)

// Level is the structural level of a CDA document.
type Level string

const (
	L1           Level = "L1" // unstructured / narrative body
	L2           Level = "L2" // sectioned narrative, no coded entries
	L3           Level = "L3" // fully coded entries
	LevelUnknown Level = "Unknown"
)

// Filename tokens that identify a document variant without reading content.
// "Friendly" documents are the fully coded rendition, "pivot" documents the
// unstructured rendition exchanged between countries.
const (
	tokenFriendly = "FRIENDLY"
	tokenPivot    = "PIVOT"
)

// Classify determines the structural level of a CDA document. Filename hints
// win over content heuristics: they are cheaper and unambiguous. The
// precedence chain is fixed; reordering it would change classification of
// documents that carry several signals at once.
func Classify(content []byte, filename string) Level {
	if filename != "" {
		upper := strings.ToUpper(filename)

		// Explicit level token in the filename is authoritative.
		for _, lvl := range []Level{L3, L2, L1} {
			if strings.Contains(upper, string(lvl)) {
				return lvl
			}
		}

		if strings.Contains(upper, tokenFriendly) {
			return L3
		}
		if strings.Contains(upper, tokenPivot) {
			return L1
		}
	}

	doc := string(content)
	entries := strings.Count(doc, "<entry")
	sections := strings.Count(doc, "<section")
	nonXMLBody := strings.Count(doc, "<nonXMLBody")
	texts := strings.Count(doc, "<text")

	switch {
	case entries > 0:
		return L3
	case sections > 0:
		return L2
	case nonXMLBody > 0 || texts > 0:
		return L1
	case strings.Contains(doc, "<structuredBody"):
		return L3
	default:
		return LevelUnknown
	}
}
