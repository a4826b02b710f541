package fhir

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/summary"
)

// ParseBundleLenient is the fallback for malformed or minimal bundles that
// fail strict validation. It walks entries by resource-type string and
// builds a reduced-fidelity summary — demographics, conditions, allergies
// and observations only — rather than failing outright.
func ParseBundleLenient(data []byte) (*summary.PatientSummary, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}

	ps := &summary.PatientSummary{}
	extracted := 0

	for _, entry := range getMaps(raw, "entry") {
		resource := getMap(entry, "resource")
		if resource == nil {
			continue
		}
		switch resourceType(resource) {
		case "Patient":
			extractPatient(resource, ps)
			extracted++
		case "Condition":
			extractCondition(resource, ps)
			extracted++
		case "AllergyIntolerance":
			extractAllergy(resource, ps)
			extracted++
		case "Observation":
			extractObservation(resource, ps)
			extracted++
		}
	}

	log.Debug().
		Int("extracted", extracted).
		Msg("Built reduced-fidelity summary from lenient bundle walk")

	return ps, nil
}

// Parse converts bundle bytes to the canonical summary, degrading from the
// strict parser to the lenient walk. Only input with no Bundle marker at all
// is reported as a failure.
func Parse(data []byte) (*summary.PatientSummary, error) {
	ps, err := ParseBundle(data)
	if err == nil {
		return ps, nil
	}
	if errors.Is(err, ErrInvalidBundle) {
		return nil, err
	}

	log.Warn().Err(err).Msg("Strict bundle parse failed, falling back to lenient walk")
	return ParseBundleLenient(data)
}
