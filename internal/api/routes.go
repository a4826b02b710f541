package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crossmed.eu/ncpcore/internal/config"
	"crossmed.eu/ncpcore/internal/index"
	"crossmed.eu/ncpcore/internal/match"
	"crossmed.eu/ncpcore/internal/metrics"
	"crossmed.eu/ncpcore/internal/table"
)

// Server bundles the dependencies the handlers need.
type Server struct {
	cfg      *config.Config
	index    *index.Service
	resolver *match.Resolver
	builder  *table.Builder
}

// NewServer creates the HTTP surface over the given services.
func NewServer(cfg *config.Config, idx *index.Service, resolver *match.Resolver) *Server {
	return &Server{
		cfg:      cfg,
		index:    idx,
		resolver: resolver,
		builder:  table.NewBuilder(),
	}
}

// SetupRoutes configures and returns the HTTP router
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware to all routes
	r.Use(metrics.Middleware)

	r.HandleFunc("/health", HealthHandler).Methods("GET")

	// Patient document endpoints
	r.HandleFunc("/patients/{country}/{id}/documents", s.DocumentsHandler).Methods("GET")
	r.HandleFunc("/patients/{country}/{id}/summary", s.SummaryHandler).Methods("GET")
	r.HandleFunc("/patients/{country}/{id}/sections/{code}/table", s.SectionTableHandler).Methods("GET")

	// Index maintenance endpoint
	r.HandleFunc("/index/refresh", s.RefreshHandler).Methods("POST")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods("GET")

	return r
}
