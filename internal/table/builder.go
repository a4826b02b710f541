package table

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/cda"
	"crossmed.eu/ncpcore/internal/metrics"
)

// Sentinel rendered when every resolution tier misses. A missing value is a
// rendering concern, never an error.
const notSpecified = "Not specified"

// Plausible medical codes for the specialized coded-list tier are numeric
// with at least this many digits.
const minMedicalCodeDigits = 6

// Cell is one resolved table cell.
type Cell struct {
	Value    string     `json:"value"`
	Codes    []CellCode `json:"codes,omitempty"`
	HasCodes bool       `json:"hasCodes,omitempty"`
}

// CellCode is one code attached to a cell.
type CellCode struct {
	Code   string `json:"code"`
	System string `json:"system,omitempty"`
	Badge  bool   `json:"badge,omitempty"`
}

// Row is one table row with its quality metrics.
type Row struct {
	EntryID      string  `json:"entryId"`
	Cells        []Cell  `json:"cells"`
	HasCodedData bool    `json:"hasCodedData"`
	Coverage     float64 `json:"endpointCoverage"`
}

// ClinicalTable is the render-ready output. It is built fresh per request
// and never persisted.
type ClinicalTable struct {
	Title                      string       `json:"title"`
	SectionCode                string       `json:"sectionCode"`
	Headers                    []ColumnSpec `json:"headers"`
	Rows                       []Row        `json:"rows"`
	MedicalTerminologyCoverage float64      `json:"medicalTerminologyCoverage"`
	AverageEndpointCoverage    float64      `json:"averageEndpointCoverage"`
}

// BuildOptions carries the optional inputs of a build.
type BuildOptions struct {
	// Columns overrides the built-in configuration when non-nil.
	Columns map[string][]ColumnSpec
	// RawDocument enables deep endpoint extraction when present.
	RawDocument []byte
	// PatientID is attached to build logs for correlation.
	PatientID string
	// Title overrides the default table title.
	Title string
}

// Builder resolves configured columns against processed entries. It holds
// no mutable state and is safe for concurrent use.
type Builder struct{}

// NewBuilder creates a table builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build produces a clinical table for one section. Entries come from the
// upstream section processor; when a raw document is supplied its deep
// endpoints are merged in, with entry fields taking precedence on key
// collisions (the sub-scans already namespace their keys, so collisions do
// not occur in practice). Endpoints are paired through each entry's raw
// <entry> index rather than its position in the processed slice: processors
// reject malformed entries and fan organizers out into several rows, so the
// two sequences need not line up.
func (b *Builder) Build(entries []cda.ProcessedEntry, sectionCode string, opts BuildOptions) *ClinicalTable {
	start := time.Now()
	columns := ColumnsFor(sectionCode, opts.Columns)

	var endpoints []cda.EntryEndpoints
	if opts.RawDocument != nil {
		extractStart := time.Now()
		eps, _, err := cda.ExtractSection(opts.RawDocument, sectionCode)
		if err != nil {
			log.Warn().
				Err(err).
				Str("section", sectionCode).
				Str("patient_id", opts.PatientID).
				Msg("Deep extraction failed, building from processed entries only")
		} else {
			endpoints = eps
			metrics.RecordExtraction(sectionCode, len(endpoints), time.Since(extractStart))
		}
	}

	t := &ClinicalTable{
		Title:       opts.Title,
		SectionCode: sectionCode,
		Headers:     columns,
	}
	if t.Title == "" {
		t.Title = defaultTitle(sectionCode)
	}

	codedRows := 0
	var coverageSum float64

	for i, entry := range entries {
		var eps cda.EntryEndpoints
		if entry.Entry >= 0 && entry.Entry < len(endpoints) {
			eps = endpoints[entry.Entry]
		}
		merged := mergeFields(entry.Fields, eps)

		row := Row{
			EntryID: fmt.Sprintf("entry_%d", i),
			Cells:   make([]Cell, 0, len(columns)),
		}

		for _, col := range columns {
			cell := resolveColumn(col, merged, eps)
			if cell.HasCodes {
				row.HasCodedData = true
			}
			row.Cells = append(row.Cells, cell)
		}

		row.Coverage = rowCoverage(merged, len(columns))
		coverageSum += row.Coverage
		if row.HasCodedData {
			codedRows++
		}
		t.Rows = append(t.Rows, row)
	}

	if len(t.Rows) > 0 {
		t.MedicalTerminologyCoverage = float64(codedRows) / float64(len(t.Rows)) * 100
		t.AverageEndpointCoverage = coverageSum / float64(len(t.Rows))
	}

	metrics.RecordTableBuild(sectionCode, len(t.Rows), t.AverageEndpointCoverage)

	log.Debug().
		Str("section", sectionCode).
		Str("patient_id", opts.PatientID).
		Int("rows", len(t.Rows)).
		Float64("avg_coverage", t.AverageEndpointCoverage).
		Dur("duration", time.Since(start)).
		Msg("Built clinical table")

	return t
}

// mergeFields flattens the processed entry and its discovered endpoints into
// one field map. Endpoint values keep their coded sub-structure when they
// carry codes.
func mergeFields(entry map[string]interface{}, eps cda.EntryEndpoints) map[string]interface{} {
	merged := make(map[string]interface{}, len(entry)+len(eps))
	for key, ep := range eps {
		if ep.Code != "" {
			merged[key] = map[string]interface{}{
				"displayName":    ep.Value,
				"code":           ep.Code,
				"codeSystem":     ep.CodeSystem,
				"codeSystemName": ep.CodeSystemName,
			}
		} else {
			merged[key] = ep.Value
		}
	}
	// Entry fields win on collision.
	for key, value := range entry {
		merged[key] = value
	}
	return merged
}

// resolveColumn runs the three-tier strategy chain in fixed priority order,
// first success wins.
func resolveColumn(col ColumnSpec, merged map[string]interface{}, eps cda.EntryEndpoints) Cell {
	if cell, ok := resolveExplicit(col, merged); ok {
		return cell
	}
	if cell, ok := resolveFuzzy(col, merged); ok {
		return cell
	}
	if cell, ok := resolveSpecialized(col, merged, eps); ok {
		return cell
	}
	return Cell{Value: notSpecified}
}

// resolveExplicit checks the configured field-name list; the first key
// present in the merged map wins.
func resolveExplicit(col ColumnSpec, merged map[string]interface{}) (Cell, bool) {
	for _, pattern := range col.FieldPatterns {
		if value, ok := merged[pattern]; ok {
			return cellFromValue(value), true
		}
	}
	return Cell{}, false
}

// resolveFuzzy scans the merged map for any key where the column key is a
// substring of the field name or vice versa. Keys are visited in sorted
// order so repeated builds resolve identically.
func resolveFuzzy(col ColumnSpec, merged map[string]interface{}) (Cell, bool) {
	keys := sortedKeys(merged)
	for _, key := range keys {
		if strings.Contains(key, col.Key) || strings.Contains(col.Key, key) {
			return cellFromValue(merged[key]), true
		}
	}
	return Cell{}, false
}

// resolveSpecialized applies type-specific fallback logic.
func resolveSpecialized(col ColumnSpec, merged map[string]interface{}, eps cda.EntryEndpoints) (Cell, bool) {
	switch col.Type {
	case ColCodes:
		return resolveCodes(eps)
	case ColDate:
		return probeFields(merged, dateFieldCandidates)
	case ColStatus, ColSeverity:
		return probeFields(merged, statusFieldCandidates)
	default:
		return Cell{}, false
	}
}

// dateFieldCandidates and statusFieldCandidates are fixed ordered probe
// lists for the specialized tier.
var (
	dateFieldCandidates = []string{
		"date", "onset_date", "start_date", "end_date",
		"effective_time_0", "time_low_0", "time_high_0",
	}
	statusFieldCandidates = []string{
		"status", "status_code_0", "clinical_status",
	}
)

func probeFields(merged map[string]interface{}, candidates []string) (Cell, bool) {
	for _, key := range candidates {
		if value, ok := merged[key]; ok {
			return cellFromValue(value), true
		}
	}
	return Cell{}, false
}

// resolveCodes collects plausible medical codes from the entry's coded
// endpoints: numeric, at least six digits.
func resolveCodes(eps cda.EntryEndpoints) (Cell, bool) {
	var codes []CellCode

	for _, key := range sortedEndpointKeys(eps) {
		ep := eps[key]
		if ep.Type != cda.TypeCoded || !plausibleMedicalCode(ep.Code) {
			continue
		}
		codes = append(codes, CellCode{
			Code:   ep.Code,
			System: ep.CodeSystemName,
			Badge:  cda.IsBadgeSystem(ep.CodeSystemName),
		})
	}

	if len(codes) == 0 {
		return Cell{}, false
	}

	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		if c.System != "" {
			parts = append(parts, c.Code+" ("+c.System+")")
		} else {
			parts = append(parts, c.Code)
		}
	}

	return Cell{
		Value:    strings.Join(parts, ", "),
		Codes:    codes,
		HasCodes: true,
	}, true
}

func plausibleMedicalCode(code string) bool {
	if len(code) < minMedicalCodeDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// cellFromValue renders a merged-map value into a cell. Coded sub-maps
// contribute display text plus their codes and flag the cell as coded.
func cellFromValue(value interface{}) Cell {
	switch v := value.(type) {
	case map[string]interface{}:
		cell := Cell{}
		if display, ok := v["displayName"].(string); ok {
			cell.Value = display
		}
		if code, ok := v["code"].(string); ok && code != "" {
			system, _ := v["codeSystemName"].(string)
			cell.Codes = append(cell.Codes, CellCode{
				Code:   code,
				System: system,
				Badge:  cda.IsBadgeSystem(system),
			})
			cell.HasCodes = true
			if cell.Value == "" {
				cell.Value = code
			}
		}
		if cell.Value == "" {
			cell.Value = notSpecified
		}
		return cell
	case string:
		if v == "" {
			return Cell{Value: notSpecified}
		}
		return Cell{Value: v}
	case fmt.Stringer:
		return Cell{Value: v.String()}
	default:
		if v == nil {
			return Cell{Value: notSpecified}
		}
		return Cell{Value: fmt.Sprintf("%v", v)}
	}
}

// rowCoverage is the discovered-non-empty-field count over the configured
// column count, as a percentage capped at 100.
func rowCoverage(merged map[string]interface{}, columnCount int) float64 {
	if columnCount == 0 {
		return 0
	}

	discovered := 0
	for _, value := range merged {
		switch v := value.(type) {
		case string:
			if v != "" {
				discovered++
			}
		case nil:
		default:
			discovered++
		}
	}

	coverage := float64(discovered) / float64(columnCount) * 100
	if coverage > 100 {
		coverage = 100
	}
	return coverage
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedEndpointKeys(eps cda.EntryEndpoints) []string {
	keys := make([]string, 0, len(eps))
	for key := range eps {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func defaultTitle(sectionCode string) string {
	titles := map[string]string{
		cda.SectionProblems:      "Problems",
		cda.SectionMedications:   "Medication Summary",
		cda.SectionAllergies:     "Allergies and Intolerances",
		cda.SectionProcedures:    "Procedures",
		cda.SectionResults:       "Results",
		cda.SectionVitalSigns:    "Vital Signs",
		cda.SectionImmunizations: "Immunizations",
		cda.SectionEncounters:    "Encounters",
		cda.SectionSocialHistory: "Social History",
		cda.SectionPlanOfCare:    "Plan of Care",
	}
	if title, ok := titles[sectionCode]; ok {
		return title
	}
	return "Clinical Section " + sectionCode
}
