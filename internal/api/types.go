package api

import "time"

// DocumentResponse is one indexed document in an API listing.
type DocumentResponse struct {
	Path      string    `json:"path"`
	Level     string    `json:"level"`
	Authority string    `json:"authority,omitempty"`
	ModTime   time.Time `json:"modTime"`
	Size      int64     `json:"size"`
}

// MatchResponse is one resolved patient match with its documents grouped by
// structural level.
type MatchResponse struct {
	ID          string                        `json:"id"`
	GivenName   string                        `json:"givenName,omitempty"`
	FamilyName  string                        `json:"familyName,omitempty"`
	BirthDate   string                        `json:"birthDate,omitempty"`
	Gender      string                        `json:"gender,omitempty"`
	Confidence  float64                       `json:"confidence"`
	FHIRSummary bool                          `json:"fhirSummary"`
	Documents   map[string][]DocumentResponse `json:"documents"`
}

// DocumentListResponse is the documents endpoint payload.
type DocumentListResponse struct {
	PatientID string          `json:"patientId"`
	Country   string          `json:"country"`
	Matches   []MatchResponse `json:"matches"`
}
