// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package server is the pipeline's HTTP surface: a small chi router wiring
// the Orchestrator, Registry, Schema Cache and metadata Consolidator to
// JSON-over-HTTP endpoints, plus an SSE progress feed relaying the monitor's
// stage events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/querymesh/loomquery/pkg/domain"
	"github.com/querymesh/loomquery/pkg/metadata"
	"github.com/querymesh/loomquery/pkg/orchestration"
	"github.com/querymesh/loomquery/pkg/registry"
	"github.com/querymesh/loomquery/pkg/schemacache"
)

// CORSConfig holds CORS configuration for the HTTP surface.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns a permissive CORS configuration suitable for a
// local or trusted-network deployment.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:         86400,
	}
}

// Config wires the HTTP server's dependencies. Monitor must be the same
// instance whose Callback() was registered as the Orchestrator's
// ProgressCallback at construction, so that Subscribe(requestID) here
// observes the stage transitions Run publishes there.
type Config struct {
	Orchestrator *orchestration.Orchestrator
	Monitor      *orchestration.Monitor
	Registry     *registry.Registry
	SchemaCache  *schemacache.Cache
	Consolidator *metadata.Consolidator

	// Metrics, when non-nil, is mounted at GET /metrics for Prometheus
	// scraping. Nil disables the endpoint entirely rather than serving an
	// empty registry.
	Metrics *prometheus.Registry

	Addr string
	CORS CORSConfig
	Logger *zap.Logger
	Auth   UserIDConfig // RequireUserID off by default; see interceptors.go
}

// HTTPServer is the query pipeline's REST + SSE surface.
type HTTPServer struct {
	cfg        Config
	httpServer *http.Server
	logger     *zap.Logger

	broker *sse.Server
}

// New builds the chi router and wraps it in an *http.Server. The server is
// not started until Start is called.
func New(cfg Config) *HTTPServer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	broker := sse.New()
	broker.AutoReplay = false
	broker.CreateStream("progress")

	s := &HTTPServer{cfg: cfg, logger: cfg.Logger, broker: broker}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams never time out on write
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Use(UserIDMiddleware(s.cfg.Auth))

	if s.cfg.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
			AllowedMethods:   s.cfg.CORS.AllowedMethods,
			AllowedHeaders:   s.cfg.CORS.AllowedHeaders,
			ExposedHeaders:   s.cfg.CORS.ExposedHeaders,
			AllowCredentials: s.cfg.CORS.AllowCredentials,
			MaxAge:           s.cfg.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", s.handleHealthz)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Metrics, promhttp.HandlerOpts{}))
	}
	r.Post("/query", s.handleQuery)
	r.Get("/query/stream", s.handleQueryStream)
	r.Get("/databases", s.handleListDatabases)
	r.Get("/databases/{id}/schema", s.handleBackendSchema)
	r.Get("/databases/merged-schema", s.handleMergedSchema)
	r.Post("/databases/extract-all-schemas", s.handleExtractSchemas)
	return r
}

// Start runs the HTTP server until the process is shut down; it blocks the
// calling goroutine, returning nil on a graceful Shutdown and any other
// listen error otherwise.
func (s *HTTPServer) Start() error {
	s.logger.Info("server: listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown closes the SSE broker, ending open progress streams, then drains
// in-flight requests up to ctx's deadline (30s from the default config).
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	s.broker.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("user_id", UserIDFromContext(r.Context())),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// queryRequest is the wire shape of POST /query.
type queryRequest struct {
	Utterance string                 `json:"utterance" validate:"required,max=4000"`
	BackendID string                 `json:"backend_id,omitempty"`
	Mode      string                 `json:"mode,omitempty" validate:"omitempty,oneof=route coordinate collaborate"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

var bodyValidator = validator.New()

func (s *HTTPServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Envelope{
			Status: domain.StatusError,
			Errors: []domain.ErrorDetail{{Code: "BadRequest", Message: err.Error()}},
		})
		return
	}
	if err := bodyValidator.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.Envelope{
			Status: domain.StatusError,
			Errors: []domain.ErrorDetail{{Code: "BadRequest", Message: err.Error()}},
		})
		return
	}

	mode := orchestration.ModeCoordinate
	if req.Mode != "" {
		mode = orchestration.Mode(req.Mode)
	}

	requestID := uuid.NewString()
	orchReq := orchestration.Request{
		Utterance: req.Utterance,
		BackendID: req.BackendID,
		Mode:      mode,
	}

	envelope := s.cfg.Orchestrator.Run(r.Context(), requestID, orchReq)

	status := http.StatusOK
	if envelope.Status == domain.StatusError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, envelope)
}

// handleQueryStream runs the same pipeline as handleQuery but over SSE,
// relaying each ProgressEvent the Monitor observes for this request id,
// followed by the terminal envelope as a "done" event.
func (s *HTTPServer) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode := orchestration.ModeCoordinate
	if req.Mode != "" {
		mode = orchestration.Mode(req.Mode)
	}

	requestID := uuid.NewString()
	streamID := requestID
	s.broker.CreateStream(streamID)
	defer s.broker.RemoveStream(streamID)

	events, unsubscribeOnce := s.cfg.Monitor.Subscribe(requestID)
	var once sync.Once
	unsubscribe := func() { once.Do(unsubscribeOnce) }
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range events {
			data, _ := json.Marshal(evt.Payload)
			s.broker.Publish(streamID, &sse.Event{Event: []byte(string(evt.Payload.Stage)), Data: data})
		}
	}()

	go func() {
		envelope := s.cfg.Orchestrator.Run(r.Context(), requestID, orchestration.Request{
			Utterance: req.Utterance,
			BackendID: req.BackendID,
			Mode:      mode,
		})
		unsubscribe()
		wg.Wait()
		data, _ := json.Marshal(envelope)
		s.broker.Publish(streamID, &sse.Event{Event: []byte("done"), Data: data})
	}()

	r.URL.RawQuery = "stream=" + streamID
	s.broker.ServeHTTP(w, r)
}

// backendView is the wire shape of one entry in GET /databases.
type backendView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ReadOnly bool   `json:"readonly"`
	Enabled  bool   `json:"enabled"`
}

func (s *HTTPServer) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	backends := s.cfg.Registry.List(false)
	views := make([]backendView, 0, len(backends))
	for _, b := range backends {
		views = append(views, backendView{
			ID:       b.ID,
			Name:     b.DisplayName,
			Type:     string(b.Dialect),
			ReadOnly: b.ReadOnly,
			Enabled:  b.Enabled,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": views})
}

func (s *HTTPServer) handleBackendSchema(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.cfg.SchemaCache.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, domain.Envelope{
			Status: domain.StatusError,
			Errors: []domain.ErrorDetail{{Code: "SchemaError", Message: err.Error()}},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": snap})
}

func (s *HTTPServer) handleMergedSchema(w http.ResponseWriter, r *http.Request) {
	merged, err := s.cfg.SchemaCache.Merged(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, domain.Envelope{
			Status: domain.StatusError,
			Errors: []domain.ErrorDetail{{Code: "SchemaError", Message: err.Error()}},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": merged})
}

// handleExtractSchemas consolidates every registered backend's current
// snapshot into the five metadata tables on the default backend.
func (s *HTTPServer) handleExtractSchemas(w http.ResponseWriter, r *http.Request) {
	target, err := s.cfg.Registry.Get(domain.DefaultBackendID)
	if err != nil {
		writeJSON(w, http.StatusFailedDependency, domain.Envelope{
			Status: domain.StatusError,
			Errors: []domain.ErrorDetail{{Code: "SchemaError", Message: "no default backend configured for metadata export: " + err.Error()}},
		})
		return
	}

	merged, err := s.cfg.SchemaCache.Merged(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, domain.Envelope{
			Status: domain.StatusError,
			Errors: []domain.ErrorDetail{{Code: "SchemaError", Message: err.Error()}},
		})
		return
	}

	if err := s.cfg.Consolidator.EnsureTables(r.Context(), target); err != nil {
		writeJSON(w, http.StatusInternalServerError, domain.Envelope{
			Status: domain.StatusError,
			Errors: []domain.ErrorDetail{{Code: "ExecutionError", Message: err.Error()}},
		})
		return
	}
	if err := s.cfg.Consolidator.Write(r.Context(), target, s.cfg.Registry.List(false), merged); err != nil {
		writeJSON(w, http.StatusInternalServerError, domain.Envelope{
			Status: domain.StatusError,
			Errors: []domain.ErrorDetail{{Code: "ExecutionError", Message: err.Error()}},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
