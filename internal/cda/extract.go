package cda

import (
	"fmt"
	"strconv"
	"strings"
)

// ExtractSection runs deep endpoint discovery over one clinical section of a
// document. A missing section is not an error: it yields zero entries and an
// empty summary, the same way a missing field yields an absent endpoint.
func ExtractSection(content []byte, sectionCode string) ([]EntryEndpoints, *EndpointSummary, error) {
	doc, err := Parse(content, "")
	if err != nil {
		return nil, nil, err
	}

	sec := doc.Section(sectionCode)
	if sec == nil {
		return nil, Summarize(nil), nil
	}

	entries := ExtractEntries(sec)
	return entries, Summarize(entries), nil
}

// ExtractEntries discovers every plausible data point in each entry of a
// section. Six independent sub-scans run over every entry; each keys its
// findings under its own field-name family, so no scan can overwrite
// another's result.
func ExtractEntries(sec *Section) []EntryEndpoints {
	entries := make([]EntryEndpoints, 0, len(sec.Entries))
	for i := range sec.Entries {
		entries = append(entries, extractEntry(&sec.Entries[i]))
	}
	return entries
}

type entryScanner struct {
	eps    EntryEndpoints
	counts map[string]int
}

// put stores an endpoint under the next free key of its field family.
func (s *entryScanner) put(family string, ep Endpoint) {
	n := s.counts[family]
	s.counts[family] = n + 1
	ep.Key = fmt.Sprintf("%s_%d", family, n)
	s.eps[ep.Key] = ep
}

func extractEntry(entry *Element) EntryEndpoints {
	s := &entryScanner{
		eps:    make(EntryEndpoints),
		counts: make(map[string]int),
	}

	s.scanCoded(entry)
	s.scanText(entry)
	s.scanTemporal(entry)
	s.scanStatus(entry)
	s.scanQuantity(entry)
	s.scanRelationship(entry)

	return s.eps
}

// scanCoded captures every element that carries a code attribute, resolving
// its code system through the OID dictionary.
func (s *entryScanner) scanCoded(entry *Element) {
	entry.Walk(func(el *Element, path string) {
		code := el.Attr("code")
		if code == "" {
			return
		}
		system := el.Attr("codeSystem")
		display := el.Attr("displayName")
		value := display
		if value == "" {
			value = code
		}
		s.put(el.Name()+"_code", Endpoint{
			Value:          value,
			Code:           code,
			CodeSystem:     system,
			CodeSystemName: resolvedSystemName(el, system),
			Display:        display,
			Path:           path,
			Type:           TypeCoded,
		})
	})
}

func resolvedSystemName(el *Element, oid string) string {
	if name := el.Attr("codeSystemName"); name != "" {
		return name
	}
	if oid == "" {
		return ""
	}
	return CodeSystemName(oid)
}

// scanText captures original-text content and translation display names.
func (s *entryScanner) scanText(entry *Element) {
	entry.Walk(func(el *Element, path string) {
		switch el.Name() {
		case "originalText":
			if text := strings.TrimSpace(el.Text); text != "" {
				s.put("original_text", Endpoint{
					Value: text,
					Path:  path,
					Type:  TypeText,
				})
			}
		case "translation":
			if display := el.Attr("displayName"); display != "" {
				s.put("translation_display", Endpoint{
					Value:   display,
					Code:    el.Attr("code"),
					Display: display,
					Path:    path,
					Type:    TypeText,
				})
			}
		}
	})
}

// scanTemporal captures point-in-time values and interval boundaries. Each
// of the three forms is independently optional.
func (s *entryScanner) scanTemporal(entry *Element) {
	entry.Walk(func(el *Element, path string) {
		value := el.Attr("value")
		switch el.Name() {
		case "effectiveTime", "time":
			if value != "" {
				s.put("effective_time", Endpoint{
					Value: FormatHL7Date(value),
					Path:  path,
					Type:  TypeTimestamp,
				})
			}
		case "low":
			if value != "" {
				s.put("time_low", Endpoint{
					Value: FormatHL7Date(value),
					Path:  path,
					Type:  TypeTimestamp,
				})
			}
		case "high":
			if value != "" {
				s.put("time_high", Endpoint{
					Value: FormatHL7Date(value),
					Path:  path,
					Type:  TypeTimestamp,
				})
			}
		}
	})
}

// scanStatus captures status codes plus the class/mood markers of every
// element that carries them.
func (s *entryScanner) scanStatus(entry *Element) {
	entry.Walk(func(el *Element, path string) {
		if el.Name() == "statusCode" {
			if code := el.Attr("code"); code != "" {
				s.put("status_code", Endpoint{
					Value: code,
					Code:  code,
					Path:  path,
					Type:  TypeStatus,
				})
			}
		}
		if class := el.Attr("classCode"); class != "" {
			s.put(el.Name()+"_class", Endpoint{
				Value: class,
				Path:  path,
				Type:  TypeStatus,
			})
		}
		if mood := el.Attr("moodCode"); mood != "" {
			s.put(el.Name()+"_mood", Endpoint{
				Value: mood,
				Path:  path,
				Type:  TypeStatus,
			})
		}
	})
}

// scanQuantity captures values with a numeric magnitude and optional unit.
func (s *entryScanner) scanQuantity(entry *Element) {
	entry.Walk(func(el *Element, path string) {
		value := el.Attr("value")
		if value == "" {
			return
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return
		}
		s.put("quantity_"+el.Name(), Endpoint{
			Value: value,
			Unit:  el.Attr("unit"),
			Path:  path,
			Type:  TypeQuantity,
		})
	})
}

// scanRelationship captures relationship-type and participant-type markers.
func (s *entryScanner) scanRelationship(entry *Element) {
	entry.Walk(func(el *Element, path string) {
		typeCode := el.Attr("typeCode")
		if typeCode == "" {
			return
		}
		switch el.Name() {
		case "entryRelationship":
			s.put("relationship_type", Endpoint{
				Value: typeCode,
				Path:  path,
				Type:  TypeRelationship,
			})
		case "participant":
			s.put("participant_type", Endpoint{
				Value: typeCode,
				Path:  path,
				Type:  TypeRelationship,
			})
		}
	})
}
