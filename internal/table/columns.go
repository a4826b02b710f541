// Package table builds render-ready clinical tables from processed section
// entries, resolving each configured column through a cascading strategy
// chain over whatever fields a document actually exposed.
package table

import (
	"encoding/json"
	"fmt"
	"sort"

	"crossmed.eu/ncpcore/internal/cda"
)

// ColumnType is the semantic type of a column, driving the specialized
// resolution tier.
type ColumnType string

const (
	ColText     ColumnType = "text"
	ColDate     ColumnType = "date"
	ColStatus   ColumnType = "status"
	ColSeverity ColumnType = "severity"
	ColCodes    ColumnType = "coded-list"
)

// ColumnSpec describes one configured column. Specs are supplied externally
// (admin configuration) or fall back to built-in defaults per section.
type ColumnSpec struct {
	Key           string     `json:"key"`
	Label         string     `json:"label"`
	Type          ColumnType `json:"type"`
	Primary       bool       `json:"primary,omitempty"`
	FieldPatterns []string   `json:"fieldPatterns,omitempty"`
	XPathPatterns []string   `json:"xpathPatterns,omitempty"`
	Order         int        `json:"order"`
}

// ParseColumnConfig decodes an externally supplied column configuration:
// a JSON object of section code to ordered column list.
func ParseColumnConfig(data []byte) (map[string][]ColumnSpec, error) {
	var config map[string][]ColumnSpec
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to decode column configuration: %w", err)
	}
	for _, columns := range config {
		sort.SliceStable(columns, func(i, j int) bool {
			return columns[i].Order < columns[j].Order
		})
	}
	return config, nil
}

// genericColumns is the last-resort default set for sections with no
// dedicated configuration.
var genericColumns = []ColumnSpec{
	{Key: "item", Label: "Item", Type: ColText, Primary: true, FieldPatterns: []string{"item", "problem", "medication", "agent", "test", "vaccine", "procedure", "type"}, Order: 0},
	{Key: "date", Label: "Date", Type: ColDate, FieldPatterns: []string{"date", "onset_date", "start_date"}, Order: 1},
	{Key: "status", Label: "Status", Type: ColStatus, FieldPatterns: []string{"status"}, Order: 2},
	{Key: "codes", Label: "Codes", Type: ColCodes, Order: 3},
}

// builtinColumns holds per-section default configurations keyed by LOINC
// section code, matching the field names the section processors emit.
var builtinColumns = map[string][]ColumnSpec{
	cda.SectionProblems: {
		{Key: "problem", Label: "Condition", Type: ColText, Primary: true, FieldPatterns: []string{"problem"}, Order: 0},
		{Key: "onset_date", Label: "Onset", Type: ColDate, FieldPatterns: []string{"onset_date"}, Order: 1},
		{Key: "status", Label: "Status", Type: ColStatus, FieldPatterns: []string{"status"}, Order: 2},
		{Key: "severity", Label: "Severity", Type: ColSeverity, FieldPatterns: []string{"severity"}, Order: 3},
		{Key: "codes", Label: "Codes", Type: ColCodes, Order: 4},
	},
	cda.SectionMedications: {
		{Key: "medication", Label: "Medication", Type: ColText, Primary: true, FieldPatterns: []string{"medication"}, Order: 0},
		{Key: "dose", Label: "Dose", Type: ColText, FieldPatterns: []string{"dose"}, Order: 1},
		{Key: "route", Label: "Route", Type: ColText, FieldPatterns: []string{"route"}, Order: 2},
		{Key: "start_date", Label: "Start", Type: ColDate, FieldPatterns: []string{"start_date"}, Order: 3},
		{Key: "status", Label: "Status", Type: ColStatus, FieldPatterns: []string{"status"}, Order: 4},
		{Key: "codes", Label: "Codes", Type: ColCodes, Order: 5},
	},
	cda.SectionAllergies: {
		{Key: "agent", Label: "Agent", Type: ColText, Primary: true, FieldPatterns: []string{"agent"}, Order: 0},
		{Key: "onset_date", Label: "Onset", Type: ColDate, FieldPatterns: []string{"onset_date"}, Order: 1},
		{Key: "status", Label: "Status", Type: ColStatus, FieldPatterns: []string{"status"}, Order: 2},
		{Key: "codes", Label: "Codes", Type: ColCodes, Order: 3},
	},
	cda.SectionProcedures: {
		{Key: "procedure", Label: "Procedure", Type: ColText, Primary: true, FieldPatterns: []string{"procedure"}, Order: 0},
		{Key: "date", Label: "Date", Type: ColDate, FieldPatterns: []string{"date"}, Order: 1},
		{Key: "status", Label: "Status", Type: ColStatus, FieldPatterns: []string{"status"}, Order: 2},
		{Key: "codes", Label: "Codes", Type: ColCodes, Order: 3},
	},
	cda.SectionResults: {
		{Key: "test", Label: "Test", Type: ColText, Primary: true, FieldPatterns: []string{"test"}, Order: 0},
		{Key: "value", Label: "Result", Type: ColText, FieldPatterns: []string{"value"}, Order: 1},
		{Key: "date", Label: "Date", Type: ColDate, FieldPatterns: []string{"date"}, Order: 2},
		{Key: "codes", Label: "Codes", Type: ColCodes, Order: 3},
	},
	cda.SectionVitalSigns: {
		{Key: "test", Label: "Vital Sign", Type: ColText, Primary: true, FieldPatterns: []string{"test"}, Order: 0},
		{Key: "value", Label: "Value", Type: ColText, FieldPatterns: []string{"value"}, Order: 1},
		{Key: "date", Label: "Date", Type: ColDate, FieldPatterns: []string{"date"}, Order: 2},
	},
	cda.SectionImmunizations: {
		{Key: "vaccine", Label: "Vaccine", Type: ColText, Primary: true, FieldPatterns: []string{"vaccine"}, Order: 0},
		{Key: "date", Label: "Date", Type: ColDate, FieldPatterns: []string{"date"}, Order: 1},
		{Key: "status", Label: "Status", Type: ColStatus, FieldPatterns: []string{"status"}, Order: 2},
		{Key: "codes", Label: "Codes", Type: ColCodes, Order: 3},
	},
	cda.SectionEncounters: {
		{Key: "type", Label: "Type", Type: ColText, Primary: true, FieldPatterns: []string{"type"}, Order: 0},
		{Key: "start_date", Label: "Start", Type: ColDate, FieldPatterns: []string{"start_date"}, Order: 1},
		{Key: "end_date", Label: "End", Type: ColDate, FieldPatterns: []string{"end_date"}, Order: 2},
		{Key: "status", Label: "Status", Type: ColStatus, FieldPatterns: []string{"status"}, Order: 3},
	},
}

// ColumnsFor resolves the column configuration for a section: externally
// supplied config wins, then the built-in section default, then the generic
// set.
func ColumnsFor(sectionCode string, external map[string][]ColumnSpec) []ColumnSpec {
	if external != nil {
		if columns, ok := external[sectionCode]; ok && len(columns) > 0 {
			return columns
		}
	}
	if columns, ok := builtinColumns[sectionCode]; ok {
		return columns
	}
	return genericColumns
}
