package cda

import "sort"

// SemanticType tags what kind of data point an endpoint is.
type SemanticType string

const (
	TypeCoded        SemanticType = "coded"
	TypeText         SemanticType = "text"
	TypeTimestamp    SemanticType = "timestamp"
	TypeStatus       SemanticType = "status"
	TypeQuantity     SemanticType = "quantity"
	TypeRelationship SemanticType = "relationship"
)

// Endpoint is one discovered data point within an entry.
type Endpoint struct {
	Key            string       `json:"key"`
	Value          string       `json:"value,omitempty"`
	Code           string       `json:"code,omitempty"`
	CodeSystem     string       `json:"codeSystem,omitempty"`
	CodeSystemName string       `json:"codeSystemName,omitempty"`
	Display        string       `json:"display,omitempty"`
	Unit           string       `json:"unit,omitempty"`
	Path           string       `json:"path,omitempty"`
	Type           SemanticType `json:"type"`
}

// EntryEndpoints is the flat field-keyed endpoint map of one entry.
type EntryEndpoints map[string]Endpoint

// A field becomes a suggested default column when it occurs in at least half
// of the section's entries. The threshold is a fixed design constant; summary
// parity across re-runs depends on it.
const suggestedColumnNumerator = 2

// EndpointSummary aggregates discovery statistics over a set of entries.
type EndpointSummary struct {
	EntryCount       int            `json:"entryCount"`
	FieldFrequency   map[string]int `json:"fieldFrequency"`
	SemanticTypes    []string       `json:"semanticTypes,omitempty"`
	CodeSystems      []string       `json:"codeSystems,omitempty"`
	SuggestedColumns []string       `json:"suggestedColumns,omitempty"`
}

// Summarize computes frequency and coverage statistics for a set of entries.
func Summarize(entries []EntryEndpoints) *EndpointSummary {
	s := &EndpointSummary{
		EntryCount:     len(entries),
		FieldFrequency: make(map[string]int),
	}

	types := make(map[SemanticType]bool)
	systems := make(map[string]bool)

	for _, eps := range entries {
		for key, ep := range eps {
			s.FieldFrequency[key]++
			types[ep.Type] = true
			if ep.CodeSystemName != "" {
				systems[ep.CodeSystemName] = true
			}
		}
	}

	for t := range types {
		s.SemanticTypes = append(s.SemanticTypes, string(t))
	}
	sort.Strings(s.SemanticTypes)

	for sys := range systems {
		s.CodeSystems = append(s.CodeSystems, sys)
	}
	sort.Strings(s.CodeSystems)

	for key, count := range s.FieldFrequency {
		if suggestedColumnNumerator*count >= s.EntryCount {
			s.SuggestedColumns = append(s.SuggestedColumns, key)
		}
	}
	sort.Strings(s.SuggestedColumns)

	return s
}
