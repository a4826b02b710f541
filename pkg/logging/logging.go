package logging

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var serviceName string
var setServiceNameOnce sync.Once
var setupOnce sync.Once

// ElasticsearchWriter ships each log line to an Elasticsearch index.
type ElasticsearchWriter struct {
	URL string
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	resp, err := http.Post(
		ew.URL+"/_doc",
		"application/json",
		bytes.NewBuffer(p),
	)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}

	return len(p), nil
}

func setup(elasticURL string) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout}

	if elasticURL == "" {
		log.Logger = zerolog.New(consoleWriter).With().Str("service", serviceName).
			Timestamp().Logger()
		return
	}

	// ECS format to Elasticsearch, pretty output to the console
	ecsLogger := ecszerolog.New(&ElasticsearchWriter{
		URL: elasticURL + "/logs",
	})

	multi := zerolog.MultiLevelWriter(
		ecsLogger,
		consoleWriter,
	)

	log.Logger = zerolog.New(multi).With().Str("service", serviceName).
		Timestamp().Logger()
}

// SetServiceName sets the service tag attached to every log record.
// Call before Setup.
func SetServiceName(name string) {
	setServiceNameOnce.Do(func() {
		serviceName = name
	})
}

// Setup configures the global zerolog logger. With an empty Elasticsearch
// URL the logger writes to the console only.
func Setup(elasticURL string) {
	setupOnce.Do(func() {
		setup(elasticURL)
	})
}
