package match

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/cda"
	"crossmed.eu/ncpcore/internal/fhir"
	"crossmed.eu/ncpcore/internal/index"
	"crossmed.eu/ncpcore/internal/summary"
)

// Options toggles the two independent match sources. Both may contribute
// separate matches for the same query.
type Options struct {
	UseLocalStore bool
	UseRemoteFHIR bool
}

// Resolver answers (country, patient identifier) queries.
type Resolver struct {
	index *index.Service
	fhir  *fhir.Client
}

// NewResolver creates a resolver over the given sources. Either source may
// be nil when the corresponding toggle is never enabled.
func NewResolver(idx *index.Service, client *fhir.Client) *Resolver {
	return &Resolver{index: idx, fhir: client}
}

// Resolve consults the enabled sources and returns zero or more matches.
// An empty result is a NotFound outcome, not an error; remote failures
// degrade to whatever the local store yielded.
func (r *Resolver) Resolve(ctx context.Context, country, patientID string, opts Options) ([]Match, error) {
	var matches []Match

	if opts.UseLocalStore && r.index != nil {
		local, err := r.resolveLocal(ctx, country, patientID)
		if err != nil {
			return nil, err
		}
		if local != nil {
			matches = append(matches, *local)
		}
	}

	if opts.UseRemoteFHIR && r.fhir != nil {
		remote, err := r.resolveRemote(ctx, country, patientID)
		if err != nil {
			log.Warn().
				Err(err).
				Str("patient_id", patientID).
				Msg("Remote FHIR source unavailable, degrading to local results")
		} else if remote != nil {
			matches = append(matches, *remote)
		}
	}

	return matches, nil
}

// resolveLocal groups indexed documents by structural level and loads the
// first candidate of each level as the default selection. The full candidate
// list per level stays available for caller-driven re-selection.
func (r *Resolver) resolveLocal(ctx context.Context, country, patientID string) (*Match, error) {
	descriptors, err := r.index.Find(ctx, patientID, country)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		return nil, nil
	}

	m := &Match{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		Country:    country,
		GivenName:  descriptors[0].GivenName,
		FamilyName: descriptors[0].FamilyName,
		BirthDate:  descriptors[0].BirthDate,
		Gender:     descriptors[0].Gender,
		Confidence: 1.0,
		Candidates: make(map[cda.Level][]Candidate),
		Selected:   make(map[cda.Level]int),
	}

	for _, d := range descriptors {
		m.Candidates[d.Level] = append(m.Candidates[d.Level], Candidate{Descriptor: d})
	}

	for level, candidates := range m.Candidates {
		content, err := os.ReadFile(candidates[0].Descriptor.Path)
		if err != nil {
			log.Warn().
				Err(err).
				Str("path", candidates[0].Descriptor.Path).
				Msg("Failed to load default candidate content")
			continue
		}
		m.Candidates[level][0].Content = content
	}

	return m, nil
}

// SelectCandidate switches the selected candidate of a level, loading its
// content on demand.
func (r *Resolver) SelectCandidate(m *Match, level cda.Level, i int) error {
	candidates := m.Candidates[level]
	if i < 0 || i >= len(candidates) {
		return nil
	}
	if candidates[i].Content == nil {
		content, err := os.ReadFile(candidates[i].Descriptor.Path)
		if err != nil {
			return err
		}
		candidates[i].Content = content
	}
	m.Select(level, i)
	return nil
}

// resolveRemote queries the FHIR source. Only the most recently dated
// document reference is processed; historical and duplicate resource sets
// are explicitly skipped.
func (r *Resolver) resolveRemote(ctx context.Context, country, patientID string) (*Match, error) {
	refs, err := r.fhir.SearchDocumentReferences(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}

	latest := MostRecent(refs)
	log.Info().
		Str("patient_id", patientID).
		Str("document_id", latest.ID).
		Time("date", latest.Date).
		Int("skipped", len(refs)-1).
		Msg("Selected most recent document reference")

	data, err := r.fhir.FetchPatientSummaryBundle(ctx, patientID)
	if err != nil {
		return nil, err
	}

	ps, err := fhir.Parse(data)
	if err != nil {
		return nil, err
	}

	r.enrichProviders(ctx, data, ps)

	m := &Match{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		Country:     country,
		GivenName:   ps.Demographics.GivenName,
		FamilyName:  ps.Demographics.FamilyName,
		BirthDate:   ps.Demographics.BirthDate,
		Gender:      ps.Demographics.Gender,
		Confidence:  1.0,
		Candidates:  make(map[cda.Level][]Candidate),
		Selected:    make(map[cda.Level]int),
		FHIRSummary: ps,
	}
	return m, nil
}

// enrichProviders fetches author and custodian resources the bundle
// references without inlining, one by one. Each failure is logged and
// skipped; enrichment is never fatal to the match.
func (r *Resolver) enrichProviders(ctx context.Context, data []byte, ps *summary.PatientSummary) {
	bundle, err := decodeBundle(data)
	if err != nil {
		return
	}
	for _, reference := range bundle.MissingProviderRefs() {
		resource, err := r.fhir.FetchResource(ctx, reference)
		if err != nil {
			log.Warn().
				Err(err).
				Str("reference", reference).
				Msg("Skipping unresolvable provider reference")
			continue
		}
		fhir.ExtractResource(resource, ps)
	}
}

// MostRecent returns the document reference with the latest date.
func MostRecent(refs []fhir.DocumentRef) fhir.DocumentRef {
	latest := refs[0]
	for _, ref := range refs[1:] {
		if ref.Date.After(latest.Date) {
			latest = ref
		}
	}
	return latest
}

func decodeBundle(data []byte) (*fhir.Bundle, error) {
	var bundle fhir.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}
