package cda

import "strings"

// ProcessedEntry is one flat field map together with the index of the raw
// <entry> it came from. Processors may reject entries or fan one raw entry
// out into several, so positions in the processed slice do not line up with
// raw entry positions; Entry is what downstream endpoint pairing keys on.
type ProcessedEntry struct {
	Fields map[string]interface{}
	Entry  int
}

// ProcessSection converts a section's entries into flat field maps. Known
// section types get dedicated processors that name fields the way downstream
// column configurations expect; anything else falls through to a generic
// processor. Coded values are kept as sub-maps so the table builder can pull
// display text and codes out of them.
func ProcessSection(sec *Section) []ProcessedEntry {
	if sec == nil || sec.Code == nil {
		return nil
	}

	switch sec.Code.Code {
	case SectionProblems:
		return processEach(sec, processProblemEntry)
	case SectionMedications:
		return processEach(sec, processMedicationEntry)
	case SectionAllergies:
		return processEach(sec, processAllergyEntry)
	case SectionProcedures:
		return processEach(sec, processProcedureEntry)
	case SectionResults, SectionVitalSigns:
		return processObservationEntries(sec)
	case SectionImmunizations:
		return processEach(sec, processImmunizationEntry)
	case SectionEncounters:
		return processEach(sec, processEncounterEntry)
	default:
		return processEach(sec, processGenericEntry)
	}
}

func processEach(sec *Section, fn func(*Element) map[string]interface{}) []ProcessedEntry {
	var out []ProcessedEntry
	for i := range sec.Entries {
		if entry := fn(&sec.Entries[i]); entry != nil {
			out = append(out, ProcessedEntry{Fields: entry, Entry: i})
		}
	}
	return out
}

// childPath descends a chain of direct children by local name.
func childPath(el *Element, names ...string) *Element {
	for _, name := range names {
		if el == nil {
			return nil
		}
		el = el.Child(name)
	}
	return el
}

// codedMap converts a coded element into the duck-typed sub-map shape used
// throughout the entry maps.
func codedMap(el *Element) map[string]interface{} {
	if el == nil {
		return nil
	}
	code := el.Attr("code")
	display := el.Attr("displayName")
	if code == "" && display == "" {
		return nil
	}
	m := map[string]interface{}{}
	if display != "" {
		m["displayName"] = display
	}
	if code != "" {
		m["code"] = code
	}
	if system := el.Attr("codeSystem"); system != "" {
		m["codeSystem"] = system
		m["codeSystemName"] = resolvedSystemName(el, system)
	}
	return m
}

func putTime(entry map[string]interface{}, key string, el *Element) {
	if el == nil {
		return
	}
	if v := el.Attr("value"); v != "" {
		entry[key] = FormatHL7Date(v)
	}
}

func putStatus(entry map[string]interface{}, el *Element) {
	if status := childPath(el, "statusCode"); status != nil {
		if code := status.Attr("code"); code != "" {
			entry["status"] = code
		}
	}
}

func processProblemEntry(e *Element) map[string]interface{} {
	act := e.Child("act")
	if act == nil {
		return nil
	}
	entry := map[string]interface{}{}
	putStatus(entry, act)
	putTime(entry, "onset_date", childPath(act, "effectiveTime", "low"))
	putTime(entry, "resolved_date", childPath(act, "effectiveTime", "high"))
	if obs := findRelated(act, "observation"); obs != nil {
		if value := codedMap(obs.Child("value")); value != nil {
			entry["problem"] = value
		}
		if severity := findSeverity(obs); severity != nil {
			entry["severity"] = severity
		}
	}
	return entry
}

// findRelated returns the first entryRelationship child of the given kind.
func findRelated(el *Element, kind string) *Element {
	for i := range el.Children {
		child := &el.Children[i]
		if child.Name() != "entryRelationship" {
			continue
		}
		if target := child.Child(kind); target != nil {
			return target
		}
	}
	return nil
}

// findSeverity locates a nested severity observation value.
func findSeverity(obs *Element) map[string]interface{} {
	for i := range obs.Children {
		child := &obs.Children[i]
		if child.Name() != "entryRelationship" {
			continue
		}
		nested := child.Child("observation")
		if nested == nil {
			continue
		}
		code := nested.Child("code")
		if code != nil && strings.EqualFold(code.Attr("code"), "SEV") {
			return codedMap(nested.Child("value"))
		}
	}
	return nil
}

func processMedicationEntry(e *Element) map[string]interface{} {
	sa := e.Child("substanceAdministration")
	if sa == nil {
		return nil
	}
	entry := map[string]interface{}{}
	putStatus(entry, sa)
	if material := codedMap(childPath(sa, "consumable", "manufacturedProduct", "manufacturedMaterial", "code")); material != nil {
		entry["medication"] = material
	}
	if route := codedMap(sa.Child("routeCode")); route != nil {
		entry["route"] = route
	}
	if dose := sa.Child("doseQuantity"); dose != nil {
		if v := dose.Attr("value"); v != "" {
			entry["dose"] = v
			if unit := dose.Attr("unit"); unit != "" {
				entry["dose_unit"] = unit
			}
		}
	}
	putTime(entry, "start_date", childPath(sa, "effectiveTime", "low"))
	putTime(entry, "end_date", childPath(sa, "effectiveTime", "high"))
	return entry
}

func processAllergyEntry(e *Element) map[string]interface{} {
	act := e.Child("act")
	if act == nil {
		return nil
	}
	entry := map[string]interface{}{}
	putStatus(entry, act)
	putTime(entry, "onset_date", childPath(act, "effectiveTime", "low"))
	if obs := findRelated(act, "observation"); obs != nil {
		if value := codedMap(obs.Child("value")); value != nil {
			entry["agent"] = value
		}
		if participant := childPath(obs, "participant", "participantRole", "playingEntity", "code"); participant != nil {
			if agent := codedMap(participant); agent != nil {
				entry["agent"] = agent
			}
		}
	}
	return entry
}

func processProcedureEntry(e *Element) map[string]interface{} {
	proc := e.Child("procedure")
	if proc == nil {
		return nil
	}
	entry := map[string]interface{}{}
	if code := codedMap(proc.Child("code")); code != nil {
		entry["procedure"] = code
	}
	putStatus(entry, proc)
	if et := proc.Child("effectiveTime"); et != nil {
		if v := et.Attr("value"); v != "" {
			entry["date"] = FormatHL7Date(v)
		} else {
			putTime(entry, "date", et.Child("low"))
		}
	}
	return entry
}

func processObservationEntries(sec *Section) []ProcessedEntry {
	var out []ProcessedEntry
	for i := range sec.Entries {
		organizer := sec.Entries[i].Child("organizer")
		if organizer == nil {
			if obs := sec.Entries[i].Child("observation"); obs != nil {
				if entry := observationMap(obs); entry != nil {
					out = append(out, ProcessedEntry{Fields: entry, Entry: i})
				}
			}
			continue
		}
		for j := range organizer.Children {
			comp := &organizer.Children[j]
			if comp.Name() != "component" {
				continue
			}
			if obs := comp.Child("observation"); obs != nil {
				if entry := observationMap(obs); entry != nil {
					out = append(out, ProcessedEntry{Fields: entry, Entry: i})
				}
			}
		}
	}
	return out
}

func observationMap(obs *Element) map[string]interface{} {
	entry := map[string]interface{}{}
	if code := codedMap(obs.Child("code")); code != nil {
		entry["test"] = code
	}
	putStatus(entry, obs)
	if value := obs.Child("value"); value != nil {
		if v := value.Attr("value"); v != "" {
			entry["value"] = v
			if unit := value.Attr("unit"); unit != "" {
				entry["unit"] = unit
			}
		} else if coded := codedMap(value); coded != nil {
			entry["value"] = coded
		}
	}
	if et := obs.Child("effectiveTime"); et != nil {
		if v := et.Attr("value"); v != "" {
			entry["date"] = FormatHL7Date(v)
		} else {
			putTime(entry, "date", et.Child("low"))
		}
	}
	if len(entry) == 0 {
		return nil
	}
	return entry
}

func processImmunizationEntry(e *Element) map[string]interface{} {
	sa := e.Child("substanceAdministration")
	if sa == nil {
		return nil
	}
	entry := map[string]interface{}{}
	putStatus(entry, sa)
	if vaccine := codedMap(childPath(sa, "consumable", "manufacturedProduct", "manufacturedMaterial", "code")); vaccine != nil {
		entry["vaccine"] = vaccine
	}
	if et := sa.Child("effectiveTime"); et != nil {
		if v := et.Attr("value"); v != "" {
			entry["date"] = FormatHL7Date(v)
		} else {
			putTime(entry, "date", et.Child("low"))
		}
	}
	return entry
}

func processEncounterEntry(e *Element) map[string]interface{} {
	enc := e.Child("encounter")
	if enc == nil {
		return nil
	}
	entry := map[string]interface{}{}
	if code := codedMap(enc.Child("code")); code != nil {
		entry["type"] = code
	}
	putStatus(entry, enc)
	putTime(entry, "start_date", childPath(enc, "effectiveTime", "low"))
	putTime(entry, "end_date", childPath(enc, "effectiveTime", "high"))
	return entry
}

// processGenericEntry handles sections without a dedicated processor: the
// first coded element becomes the item, the first timestamp the date.
func processGenericEntry(e *Element) map[string]interface{} {
	entry := map[string]interface{}{}
	e.Walk(func(el *Element, path string) {
		if _, ok := entry["item"]; !ok {
			if el.Attr("code") != "" && el.Name() != "statusCode" {
				if coded := codedMap(el); coded != nil {
					entry["item"] = coded
				}
			}
		}
		if _, ok := entry["date"]; !ok {
			if (el.Name() == "effectiveTime" || el.Name() == "low") && el.Attr("value") != "" {
				entry["date"] = FormatHL7Date(el.Attr("value"))
			}
		}
		if _, ok := entry["status"]; !ok {
			if el.Name() == "statusCode" && el.Attr("code") != "" {
				entry["status"] = el.Attr("code")
			}
		}
	})
	if len(entry) == 0 {
		return nil
	}
	return entry
}
