package index

import (
	"time"

	"crossmed.eu/ncpcore/internal/cda"
)

// Descriptor is the minimal per-document metadata held by the patient index.
// It is created during a scan pass and immutable once indexed; a re-scan
// replaces it wholesale.
type Descriptor struct {
	Path       string    `json:"path"`
	PatientID  string    `json:"patientId"`
	GivenName  string    `json:"givenName,omitempty"`
	FamilyName string    `json:"familyName,omitempty"`
	BirthDate  string    `json:"birthDate,omitempty"`
	Gender     string    `json:"gender,omitempty"`
	Country    string    `json:"country"`
	Level      cda.Level `json:"level"`
	Authority  string    `json:"authority,omitempty"`
	ModTime    time.Time `json:"modTime"`
	Size       int64     `json:"size"`
}

// PatientIndex maps a patient identifier to its documents in discovery order.
type PatientIndex map[string][]Descriptor
