// Package web serves the harvest http api and keeps track of queued jobs.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
	"github.com/hoanhv-vvt/thamdinh-extensions/web/middleware"
)

const defaultHarvestTimeout = 60 * time.Second

// Harvester runs one synchronous extraction.
type Harvester interface {
	Harvest(ctx context.Context, req harvest.Request) (harvest.Response, error)
}

type Server struct {
	srv            *http.Server
	svc            *Service
	harvester      Harvester
	harvestTimeout time.Duration
	apiKey         string
	log            *zap.Logger
}

type ServerOption func(*Server)

// WithHarvester enables the synchronous harvest endpoint.
func WithHarvester(h Harvester) ServerOption {
	return func(s *Server) {
		s.harvester = h
	}
}

func WithHarvestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.harvestTimeout = d
		}
	}
}

// WithAPIKey requires "Authorization: Bearer <key>" on the /api/v1 routes.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func New(svc *Service, addr string, opts ...ServerOption) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}

	ans := Server{
		svc:            svc,
		harvestTimeout: defaultHarvestTimeout,
		log:            zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&ans)
	}

	ans.srv = &http.Server{
		Addr:              addr,
		Handler:           ans.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      ans.harvestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &ans, nil
}

// Handler returns the routed api with its middlewares.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BearerToken(s.apiKey, s.log))
	api.HandleFunc("/harvest", s.harvest).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.createJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", s.listJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.getJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", s.deleteJob).Methods(http.MethodDelete)
	api.HandleFunc("/jobs/{id}/download", s.download).Methods(http.MethodGet)

	return middleware.Chain(router,
		middleware.Recover(s.log),
		middleware.RequestLogger(s.log),
		middleware.SecurityHeaders,
		middleware.CORS,
	)
}

// Start serves until ctx is done, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("server shutdown", zap.Error(err))
		}
	}()

	s.log.Info("api listening", zap.String("addr", s.srv.Addr))

	err := s.srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
