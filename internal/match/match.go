// Package match resolves (country, patient identifier) queries against the
// local document index and the remote structured-resource source.
package match

import (
	"crossmed.eu/ncpcore/internal/cda"
	"crossmed.eu/ncpcore/internal/index"
	"crossmed.eu/ncpcore/internal/summary"
)

// Candidate is one selectable document of a structural level.
type Candidate struct {
	Descriptor index.Descriptor
	Content    []byte
}

// Match is one resolved patient match: identity, confidence, the candidate
// documents grouped per structural level with a selected index each, and
// optionally a parsed FHIR summary when the remote source contributed.
type Match struct {
	ID         string
	PatientID  string
	Country    string
	GivenName  string
	FamilyName string
	BirthDate  string
	Gender     string
	Confidence float64

	// Candidates per structural level, discovery-ordered. Selected holds
	// the caller-chosen index per level, defaulting to the first.
	Candidates map[cda.Level][]Candidate
	Selected   map[cda.Level]int

	// FHIRSummary is set when the remote source produced this match.
	FHIRSummary *summary.PatientSummary
}

// HasLevel reports whether the match has at least one candidate of the
// given level.
func (m *Match) HasLevel(level cda.Level) bool {
	return len(m.Candidates[level]) > 0
}

// selected returns the currently selected candidate of a level, or nil.
func (m *Match) selected(level cda.Level) *Candidate {
	candidates := m.Candidates[level]
	if len(candidates) == 0 {
		return nil
	}
	i := m.Selected[level]
	if i < 0 || i >= len(candidates) {
		i = 0
	}
	return &candidates[i]
}

// Select chooses a different candidate for a level. Out-of-range indexes
// are ignored.
func (m *Match) Select(level cda.Level, i int) {
	if i >= 0 && i < len(m.Candidates[level]) {
		if m.Selected == nil {
			m.Selected = make(map[cda.Level]int)
		}
		m.Selected[level] = i
	}
}

// renderingOrder is the default preference for displayable content: the
// richer coded variant first, the unstructured one last.
var renderingOrder = []cda.Level{cda.L3, cda.L2, cda.L1}

// RenderingContent returns the content and level used for rendering:
// explicit caller preference first, then the richest available variant.
// Both return values are zero when no candidate exists.
func (m *Match) RenderingContent(preferred cda.Level) ([]byte, cda.Level) {
	if preferred != "" && preferred != cda.LevelUnknown {
		if c := m.selected(preferred); c != nil {
			return c.Content, preferred
		}
	}
	for _, level := range renderingOrder {
		if c := m.selected(level); c != nil {
			return c.Content, level
		}
	}
	return nil, cda.LevelUnknown
}

// OriginalContent returns the archival record content, preferring the
// unstructured variant over coded ones.
func (m *Match) OriginalContent() ([]byte, cda.Level) {
	for _, level := range []cda.Level{cda.L1, cda.L2, cda.L3} {
		if c := m.selected(level); c != nil {
			return c.Content, level
		}
	}
	return nil, cda.LevelUnknown
}
