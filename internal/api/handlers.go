package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/cda"
	"crossmed.eu/ncpcore/internal/match"
	"crossmed.eu/ncpcore/internal/summary"
	"crossmed.eu/ncpcore/internal/table"
)

// HealthHandler reports service liveness
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// DocumentsHandler lists the matched documents for a patient, grouped by
// structural level.
func (s *Server) DocumentsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	country := vars["country"]
	patientID := vars["id"]

	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("country", country).
		Str("patient_id", patientID).
		Msg("Documents endpoint called")

	matches, err := s.resolve(r, country, patientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve patient")
		return
	}
	if len(matches) == 0 {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}

	response := DocumentListResponse{
		PatientID: patientID,
		Country:   country,
	}
	for _, m := range matches {
		mr := MatchResponse{
			ID:          m.ID,
			GivenName:   m.GivenName,
			FamilyName:  m.FamilyName,
			BirthDate:   m.BirthDate,
			Gender:      m.Gender,
			Confidence:  m.Confidence,
			FHIRSummary: m.FHIRSummary != nil,
			Documents:   make(map[string][]DocumentResponse),
		}
		for level, candidates := range m.Candidates {
			for _, c := range candidates {
				mr.Documents[string(level)] = append(mr.Documents[string(level)], DocumentResponse{
					Path:      c.Descriptor.Path,
					Level:     string(c.Descriptor.Level),
					Authority: c.Descriptor.Authority,
					ModTime:   c.Descriptor.ModTime,
					Size:      c.Descriptor.Size,
				})
			}
		}
		response.Matches = append(response.Matches, mr)
	}

	writeJSON(w, http.StatusOK, response)
}

// SummaryHandler returns the canonical patient summary. Local document
// content is the primary source; remote structured resources fill the gaps.
func (s *Server) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	country := vars["country"]
	patientID := vars["id"]

	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("country", country).
		Str("patient_id", patientID).
		Msg("Summary endpoint called")

	matches, err := s.resolve(r, country, patientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve patient")
		return
	}
	if len(matches) == 0 {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}

	preferred := levelParam(r)
	var ps *summary.PatientSummary
	for i := range matches {
		m := &matches[i]
		content, level := m.RenderingContent(preferred)
		if content != nil {
			doc, err := cda.Parse(content, candidateFilename(m, level))
			if err != nil {
				log.Warn().
					Err(err).
					Str("patient_id", patientID).
					Str("level", string(level)).
					Msg("Failed to parse matched document")
			} else {
				part := summary.FromCDA(doc)
				if ps == nil {
					ps = part
				} else {
					summary.Merge(ps, part)
				}
			}
		}
		if m.FHIRSummary != nil {
			if ps == nil {
				ps = m.FHIRSummary
			} else {
				summary.Merge(ps, m.FHIRSummary)
			}
		}
	}

	if ps == nil {
		writeError(w, http.StatusNotFound, "no renderable content for patient")
		return
	}

	writeJSON(w, http.StatusOK, ps)
}

// SectionTableHandler builds the render-ready table for one section of the
// matched document.
func (s *Server) SectionTableHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	country := vars["country"]
	patientID := vars["id"]
	sectionCode := vars["code"]

	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("country", country).
		Str("patient_id", patientID).
		Str("section", sectionCode).
		Msg("Section table endpoint called")

	matches, err := s.resolve(r, country, patientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve patient")
		return
	}
	if len(matches) == 0 {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}

	preferred := levelParam(r)
	for i := range matches {
		m := &matches[i]
		content, level := m.RenderingContent(preferred)
		if content == nil {
			continue
		}
		doc, err := cda.Parse(content, candidateFilename(m, level))
		if err != nil {
			log.Warn().
				Err(err).
				Str("patient_id", patientID).
				Str("level", string(level)).
				Msg("Failed to parse matched document")
			continue
		}
		sec := doc.Section(sectionCode)
		if sec == nil {
			writeError(w, http.StatusNotFound, "section not present in document")
			return
		}

		entries := cda.ProcessSection(sec)
		t := s.builder.Build(entries, sectionCode, table.BuildOptions{
			RawDocument: content,
			PatientID:   patientID,
			Title:       sec.Title,
		})
		writeJSON(w, http.StatusOK, t)
		return
	}

	writeError(w, http.StatusNotFound, "no renderable content for patient")
}

// RefreshHandler rebuilds the document index from the store.
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote_addr", r.RemoteAddr).
		Msg("Index refresh requested")

	idx, err := s.index.Refresh(r.Context())
	if err != nil {
		log.Error().
			Err(err).
			Msg("Index refresh failed")
		writeError(w, http.StatusInternalServerError, "index refresh failed")
		return
	}

	documents := 0
	for _, descriptors := range idx {
		documents += len(descriptors)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "refreshed",
		"patients":  len(idx),
		"documents": documents,
	})
}

// resolve runs the match resolver with the configured source toggles.
func (s *Server) resolve(r *http.Request, country, patientID string) ([]match.Match, error) {
	return s.resolver.Resolve(r.Context(), country, patientID, match.Options{
		UseLocalStore: s.cfg.UseLocalStore,
		UseRemoteFHIR: s.cfg.UseRemoteFHIR,
	})
}

// levelParam reads the optional ?level= rendering preference.
func levelParam(r *http.Request) cda.Level {
	switch strings.ToUpper(r.URL.Query().Get("level")) {
	case "L1":
		return cda.L1
	case "L2":
		return cda.L2
	case "L3":
		return cda.L3
	}
	return cda.LevelUnknown
}

// candidateFilename returns the filename of the selected candidate of the
// given level, used as a classification hint when re-parsing content.
func candidateFilename(m *match.Match, level cda.Level) string {
	candidates := m.Candidates[level]
	if len(candidates) == 0 {
		return ""
	}
	i := m.Selected[level]
	if i < 0 || i >= len(candidates) {
		i = 0
	}
	return filepath.Base(candidates[i].Descriptor.Path)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
