// Package index scans a country-partitioned document store, extracts minimal
// demographic metadata per document and maintains a flat persisted patient
// index. Partial failure is the steady state: a document that cannot be
// parsed, or that carries no patient identifier, is skipped, never fatal.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/cda"
	"crossmed.eu/ncpcore/internal/metrics"
)

// ErrNotFound is returned by Load when no persisted index exists.
var ErrNotFound = errors.New("index: no persisted index")

// Service owns one document store and its index file. Callers hold an
// instance; there is no ambient global index. Readers see an immutable
// snapshot while a rebuild produces the next one.
type Service struct {
	storeRoot string
	indexPath string
	workers   int

	mu  sync.RWMutex
	idx PatientIndex
}

// NewService creates an index service over the given store root. workers
// bounds the parallel per-file extraction during a scan.
func NewService(storeRoot, indexPath string, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		storeRoot: storeRoot,
		indexPath: indexPath,
		workers:   workers,
	}
}

type scanJob struct {
	country string
	path    string
}

// Scan walks the store ({root}/{country}/*.xml) and extracts a descriptor
// per parseable document. Extraction is parallel across workers; results are
// reduced into one deterministic, path-ordered slice at the end.
func (s *Service) Scan(ctx context.Context) ([]Descriptor, error) {
	start := time.Now()

	countries, err := os.ReadDir(s.storeRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read store root: %w", err)
	}

	jobs := make(chan scanJob)
	results := make(chan Descriptor)

	var wg sync.WaitGroup
	var skipped int64
	var skippedMu sync.Mutex

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				desc, ok := s.describe(job)
				if !ok {
					skippedMu.Lock()
					skipped++
					skippedMu.Unlock()
					continue
				}
				select {
				case results <- desc:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, country := range countries {
			if !country.IsDir() {
				continue
			}
			files, err := os.ReadDir(filepath.Join(s.storeRoot, country.Name()))
			if err != nil {
				log.Warn().Err(err).Str("country", country.Name()).Msg("Failed to read country directory")
				continue
			}
			for _, f := range files {
				if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".xml") {
					continue
				}
				select {
				case jobs <- scanJob{
					country: country.Name(),
					path:    filepath.Join(s.storeRoot, country.Name(), f.Name()),
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var descriptors []Descriptor
	for desc := range results {
		descriptors = append(descriptors, desc)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Parallel workers finish out of order; sort for a stable discovery order.
	sort.Slice(descriptors, func(i, j int) bool {
		if descriptors[i].Country != descriptors[j].Country {
			return descriptors[i].Country < descriptors[j].Country
		}
		return descriptors[i].Path < descriptors[j].Path
	})

	metrics.RecordIndexScan(time.Since(start), len(descriptors), int(skipped))

	log.Info().
		Int("indexed", len(descriptors)).
		Int64("skipped", skipped).
		Dur("duration", time.Since(start)).
		Msg("Completed document store scan")

	return descriptors, nil
}

// describe extracts a Descriptor from one document file. A false return
// means the file is excluded from the index.
func (s *Service) describe(job scanJob) (Descriptor, bool) {
	info, err := os.Stat(job.path)
	if err != nil {
		log.Debug().Err(err).Str("path", job.path).Msg("Failed to stat document")
		return Descriptor{}, false
	}

	content, err := os.ReadFile(job.path)
	if err != nil {
		log.Debug().Err(err).Str("path", job.path).Msg("Failed to read document")
		return Descriptor{}, false
	}

	doc, err := cda.Parse(content, filepath.Base(job.path))
	if err != nil {
		log.Debug().Err(err).Str("path", job.path).Msg("Skipping unparseable document")
		return Descriptor{}, false
	}

	patientID, authority := doc.PatientID()
	if patientID == "" {
		log.Debug().Str("path", job.path).Msg("Skipping document without patient identifier")
		return Descriptor{}, false
	}

	return Descriptor{
		Path:       job.path,
		PatientID:  patientID,
		GivenName:  doc.GivenName(),
		FamilyName: doc.FamilyName(),
		BirthDate:  doc.BirthDate(),
		Gender:     doc.Gender(),
		Country:    job.country,
		Level:      doc.Level,
		Authority:  authority,
		ModTime:    info.ModTime(),
		Size:       info.Size(),
	}, true
}

// Build returns the patient index, preferring in order: the cached snapshot,
// the persisted file, a fresh scan. Any deserialization failure of the
// persisted file degrades to a full rescan. force skips cache and file.
func (s *Service) Build(ctx context.Context, force bool) (PatientIndex, error) {
	if !force {
		s.mu.RLock()
		cached := s.idx
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		if idx, err := s.Load(); err == nil {
			s.mu.Lock()
			s.idx = idx
			s.mu.Unlock()
			return idx, nil
		} else if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("Persisted index unreadable, rebuilding")
		}
	}

	descriptors, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}

	idx := make(PatientIndex)
	for _, d := range descriptors {
		idx[d.PatientID] = append(idx[d.PatientID], d)
	}

	// Swap the snapshot first, then persist: readers never wait on disk I/O
	// and persistence never runs concurrently with the reduction above.
	s.mu.Lock()
	s.idx = idx
	err = s.Persist(idx)
	s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to persist patient index")
	}

	return idx, nil
}

// Persist writes the index to a temporary file and atomically swaps it into
// place, so a concurrent reader never observes a truncated index.
func (s *Service) Persist(idx PatientIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	tmp := s.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index temp file: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to swap index file: %w", err)
	}
	return nil
}

// Load reads the persisted index file. ErrNotFound means no file exists;
// any other error means the file is present but unreadable.
func (s *Service) Load() (PatientIndex, error) {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var idx PatientIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to decode index file: %w", err)
	}
	return idx, nil
}

// Find returns the indexed documents for a patient identifier, optionally
// filtered by issuing country. A nil result is a NotFound outcome, not an
// error.
func (s *Service) Find(ctx context.Context, patientID, country string) ([]Descriptor, error) {
	idx, err := s.Build(ctx, false)
	if err != nil {
		return nil, err
	}

	docs := idx[patientID]
	if country == "" {
		return append([]Descriptor(nil), docs...), nil
	}

	var out []Descriptor
	for _, d := range docs {
		if strings.EqualFold(d.Country, country) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Refresh discards the cached snapshot and the persisted file and forces a
// full rescan.
func (s *Service) Refresh(ctx context.Context) (PatientIndex, error) {
	s.mu.Lock()
	s.idx = nil
	s.mu.Unlock()

	if err := os.Remove(s.indexPath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to remove persisted index")
	}

	return s.Build(ctx, true)
}
