package config

import (
	"time"

	"github.com/caarlos0/env"
)

// Config carries all runtime settings, parsed from the environment.
type Config struct {
	StoreRoot     string        `env:"DOCUMENT_STORE_ROOT" envDefault:"/data/documents"`
	IndexPath     string        `env:"PATIENT_INDEX_PATH" envDefault:"/data/patient_index.json"`
	FHIRBaseURL   string        `env:"FHIR_BASE_URL" envDefault:"https://hapi.fhir.org/baseR4"`
	FHIRTimeout   time.Duration `env:"FHIR_TIMEOUT" envDefault:"30s"`
	FHIRRetries   int           `env:"FHIR_RETRIES" envDefault:"1"`
	ScanWorkers   int           `env:"SCAN_WORKERS" envDefault:"4"`
	APIPort       string        `env:"API_PORT" envDefault:"8080"`
	ElasticURL    string        `env:"ELASTICSEARCH_URL"`
	UseLocalStore bool          `env:"USE_LOCAL_STORE" envDefault:"true"`
	UseRemoteFHIR bool          `env:"USE_REMOTE_FHIR" envDefault:"false"`
}

// New parses the environment into a Config.
func New() (*Config, error) {
	cfg := &Config{}
	return cfg, env.Parse(cfg)
}
