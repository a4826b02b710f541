// Package fhir talks to the remote structured-resource source and converts
// FHIR bundles into the canonical patient summary.
package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"crossmed.eu/ncpcore/internal/metrics"
)

// Client is the HTTP client for the remote FHIR source. Every call applies
// the configured timeout and a bounded retry budget; exhaustion degrades the
// caller to local-only results instead of failing a query.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retries    int
}

// NewClient creates a FHIR client with a bounded per-request timeout.
func NewClient(baseURL string, timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		retries:    retries,
	}
}

// DocumentRef is one entry of a document-type search: the resource id and
// its date, enough to select the most recent document.
type DocumentRef struct {
	ID   string
	Date time.Time
}

// SearchDocumentReferences lists DocumentReference summaries for a patient
// identifier.
func (c *Client) SearchDocumentReferences(ctx context.Context, patientID string) ([]DocumentRef, error) {
	u := fmt.Sprintf("%s/DocumentReference?patient=%s", c.baseURL, url.QueryEscape(patientID))

	body, err := c.get(ctx, "document_search", u)
	if err != nil {
		return nil, err
	}

	var bundle Bundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode DocumentReference bundle: %w", err)
	}

	var refs []DocumentRef
	for _, entry := range bundle.Entry {
		if entry.Resource == nil {
			continue
		}
		ref := DocumentRef{}
		if id, ok := entry.Resource["id"].(string); ok {
			ref.ID = id
		}
		if dateStr, ok := entry.Resource["date"].(string); ok {
			if t, err := parseFHIRTime(dateStr); err == nil {
				ref.Date = t
			}
		}
		if ref.ID != "" {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// FetchPatientSummaryBundle retrieves the canonical bundle for a patient
// identifier.
func (c *Client) FetchPatientSummaryBundle(ctx context.Context, patientID string) ([]byte, error) {
	u := fmt.Sprintf("%s/Patient/%s/$summary", c.baseURL, url.PathEscape(patientID))
	return c.get(ctx, "summary_fetch", u)
}

// FetchResource retrieves one resource by reference ("Practitioner/42").
// Used for enriching a bundle with author/custodian resources it references
// but does not inline; a failure here is the caller's to log and skip.
func (c *Client) FetchResource(ctx context.Context, reference string) (map[string]interface{}, error) {
	u := fmt.Sprintf("%s/%s", c.baseURL, reference)

	body, err := c.get(ctx, "resource_fetch", u)
	if err != nil {
		return nil, err
	}

	var resource map[string]interface{}
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, fmt.Errorf("failed to decode resource %s: %w", reference, err)
	}
	return resource, nil
}

// get performs a GET with the retry budget. The per-attempt timeout comes
// from the underlying http.Client.
func (c *Client) get(ctx context.Context, operation, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			log.Debug().
				Str("operation", operation).
				Int("attempt", attempt+1).
				Msg("Retrying FHIR request")
		}

		body, err := c.doGet(ctx, operation, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

func (c *Client) doGet(ctx context.Context, operation, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.RecordFHIRRequest(operation, "error", duration)
		return nil, fmt.Errorf("FHIR request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	metrics.RecordFHIRRequest(operation, strconv.Itoa(resp.StatusCode), duration)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FHIR source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// parseFHIRTime accepts the date precisions FHIR allows on a date field.
func parseFHIRTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized FHIR date: %q", s)
}
