package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Domain metrics cover the document pipeline: store scans, deep extraction,
// remote FHIR calls and table builds.
var (
	indexScanDuration    prometheus.Histogram
	indexDocsIndexed     prometheus.Counter
	indexDocsSkipped     prometheus.Counter
	extractionDuration   *prometheus.HistogramVec
	extractionEndpoints  *prometheus.CounterVec
	fhirRequestsTotal    *prometheus.CounterVec
	fhirRequestDuration  *prometheus.HistogramVec
	tableRowsBuilt       *prometheus.CounterVec
	tableCoveragePercent *prometheus.HistogramVec
)

func initializeDomainMetrics() {
	if indexScanDuration != nil {
		return
	}

	indexScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "document_index_scan_duration_seconds",
			Help:    "Time spent scanning the document store",
			Buckets: prometheus.DefBuckets,
		},
	)

	indexDocsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "document_index_documents_indexed_total",
			Help: "Total number of documents admitted to the patient index",
		},
	)

	indexDocsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "document_index_documents_skipped_total",
			Help: "Total number of documents excluded during scanning",
		},
	)

	extractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "endpoint_extraction_duration_seconds",
			Help:    "Time spent on deep endpoint extraction per section",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"section"},
	)

	extractionEndpoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "endpoint_extraction_entries_total",
			Help: "Total number of entries processed by deep extraction",
		},
		[]string{"section"},
	)

	fhirRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_http_requests_total",
			Help: "Total number of HTTP requests to the FHIR source",
		},
		[]string{"operation", "status"},
	)

	fhirRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fhir_http_request_duration_seconds",
			Help:    "Time spent on HTTP requests to the FHIR source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	tableRowsBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinical_table_rows_total",
			Help: "Total number of clinical table rows built",
		},
		[]string{"section"},
	)

	tableCoveragePercent = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinical_table_coverage_percent",
			Help:    "Average endpoint coverage of built tables",
			Buckets: []float64{0, 10, 25, 50, 75, 90, 100},
		},
		[]string{"section"},
	)

	mm := GetInstance()
	mm.registry.MustRegister(
		indexScanDuration,
		indexDocsIndexed,
		indexDocsSkipped,
		extractionDuration,
		extractionEndpoints,
		fhirRequestsTotal,
		fhirRequestDuration,
		tableRowsBuilt,
		tableCoveragePercent,
	)
}

// RecordIndexScan records one completed document store scan.
func RecordIndexScan(duration time.Duration, indexed, skipped int) {
	if !businessMetricsEnabled() {
		return
	}
	initializeDomainMetrics()

	indexScanDuration.Observe(duration.Seconds())
	indexDocsIndexed.Add(float64(indexed))
	indexDocsSkipped.Add(float64(skipped))
}

// RecordExtraction records one deep extraction pass over a section.
func RecordExtraction(section string, entries int, duration time.Duration) {
	if !businessMetricsEnabled() {
		return
	}
	initializeDomainMetrics()

	extractionDuration.WithLabelValues(section).Observe(duration.Seconds())
	extractionEndpoints.WithLabelValues(section).Add(float64(entries))
}

// RecordFHIRRequest records one HTTP call to the remote FHIR source.
func RecordFHIRRequest(operation, status string, duration time.Duration) {
	if !businessMetricsEnabled() {
		return
	}
	initializeDomainMetrics()

	fhirRequestsTotal.WithLabelValues(operation, status).Inc()
	fhirRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTableBuild records one built clinical table.
func RecordTableBuild(section string, rows int, avgCoverage float64) {
	if !businessMetricsEnabled() {
		return
	}
	initializeDomainMetrics()

	tableRowsBuilt.WithLabelValues(section).Add(float64(rows))
	tableCoveragePercent.WithLabelValues(section).Observe(avgCoverage)
}
