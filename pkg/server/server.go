package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adfharrison1/go-securedocs/pkg/api"
	"github.com/adfharrison1/go-securedocs/pkg/config"
	"github.com/adfharrison1/go-securedocs/pkg/domain"
	"github.com/adfharrison1/go-securedocs/pkg/handler"
	"github.com/adfharrison1/go-securedocs/pkg/keys"
	"github.com/adfharrison1/go-securedocs/pkg/metrics"
	"github.com/adfharrison1/go-securedocs/pkg/schema"
)

// Server holds references to storage, router, etc.
type Server struct {
	router   *mux.Router
	store    domain.DocumentStore
	backend  string
	closer   func(context.Context) error
	registry *prometheus.Registry
}

// NewServer opens the configured backend, loads the key and schemas, and
// builds the router. Close releases the backend.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := newServer(cfg, store, closer)
	if err != nil {
		if cerr := closer(context.Background()); cerr != nil {
			log.Printf("WARN: Failed to close %s backend: %v", cfg.Backend, cerr)
		}
		return nil, err
	}
	return s, nil
}

func newServer(cfg *config.Config, store domain.DocumentStore, closer func(context.Context) error) (*Server, error) {
	schemas, err := schema.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []handler.SetOption{handler.WithDecorator(metrics.New(registry).Decorator())}
	if cfg.Validate {
		opts = append(opts, handler.WithValidator(schema.NewValidator(schemas)))
	} else {
		log.Printf("WARN: Schema validation disabled")
	}
	if cfg.Encrypt {
		manager, err := keys.Initialize(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		log.Printf("INFO: Field encryption enabled with key %s", cfg.KeyFile)
		opts = append(opts, handler.WithCipher(manager))
	} else {
		log.Printf("WARN: Field encryption disabled - documents are stored in plaintext")
	}

	set, err := handler.NewSet(store, schemas.Names(), opts...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   mux.NewRouter(),
		store:    store,
		backend:  cfg.Backend,
		closer:   closer,
		registry: registry,
	}
	s.routes(set)

	// Use the logging middleware for all routes
	s.router.Use(requestLoggerMiddleware)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("WARN: No route found for %s %s", r.Method, r.URL.Path)
		api.WriteJSONError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})

	log.Printf("INFO: Serving %d collections from the %s backend", len(set.Collections()), cfg.Backend)
	return s, nil
}

// routes defines all REST endpoints.
func (s *Server) routes(set *handler.Set) {
	apiOpts := []api.Option{api.WithBackend(s.backend)}
	if p, ok := s.store.(api.Pinger); ok {
		apiOpts = append(apiOpts, api.WithPinger(p))
	}
	if r, ok := s.store.(api.StatsReporter); ok {
		apiOpts = append(apiOpts, api.WithStats(r))
	}
	api.NewHandler(set, apiOpts...).RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
}

// requestLoggerMiddleware logs the method, URL path, status and duration for each request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("INFO: Request %s %s -> %d took %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close flushes and disconnects the backend.
func (s *Server) Close(ctx context.Context) error {
	return s.closer(ctx)
}
