// Package api exposes the holder check and ticket issuance over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/validation"
	"pgt-ticketing/internal/issuance"
)

const maxBodyBytes = 64 << 10

// IssuanceService is satisfied by *issuance.Service.
type IssuanceService interface {
	Mode() issuance.Mode
	CheckHolder(ctx context.Context, walletAddress string) (*issuance.HolderResult, error)
	Claim(ctx context.Context, req issuance.ClaimRequest) (*issuance.ClaimResponse, error)
	GeneratePass(ctx context.Context, req issuance.PassRequest) (*issuance.PassResponse, error)
}

// ReadinessCheck returns nil when a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Service        IssuanceService
	Validator      *validation.Validator
	Logger         logger.Logger
	AllowedOrigins []string
	Readiness      map[string]ReadinessCheck
	// MetricsHandler defaults to the global Prometheus registry.
	MetricsHandler http.Handler
	ReadyTimeout   time.Duration
}

type Server struct {
	service        IssuanceService
	validator      *validation.Validator
	logger         logger.Logger
	allowedOrigins []string
	readiness      map[string]ReadinessCheck
	metrics        http.Handler
	readyTimeout   time.Duration
}

func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("issuance service is required")
	}
	v := opts.Validator
	if v == nil {
		var err error
		if v, err = validation.NewValidator(); err != nil {
			return nil, err
		}
	}
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Second
	}
	return &Server{
		service:        opts.Service,
		validator:      v,
		logger:         logger.ForComponent(opts.Logger, "http"),
		allowedOrigins: opts.AllowedOrigins,
		readiness:      opts.Readiness,
		metrics:        metricsHandler,
		readyTimeout:   readyTimeout,
	}, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.observeMiddleware, s.recoverMiddleware)

	r.HandleFunc("/api/auth/pgt", s.handleCheckHolder).Methods(http.MethodPost)
	r.HandleFunc("/api/claim-ticket", s.handleClaimTicket).Methods(http.MethodPost)
	r.HandleFunc("/api/generate-qr", s.handleGeneratePass).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Code: "NOT_FOUND", Message: "No such route"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"})
	})

	return s.cors(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "ok",
		"mode":    string(s.service.Mode()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.readiness))
	for name := range s.readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := s.readiness[name](ctx); err != nil {
			ready = false
			checks[name] = "unavailable"
			s.logger.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err})
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	msg := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		msg = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"success": ready,
		"message": msg,
		"mode":    string(s.service.Mode()),
		"checks":  checks,
	})
}
