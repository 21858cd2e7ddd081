package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hivemindhq/decision-engine/decisiontable"
	"github.com/hivemindhq/decision-engine/internal/config"
	"github.com/hivemindhq/decision-engine/internal/logger"
	"github.com/hivemindhq/decision-engine/internal/metrics"
)

type Server struct {
	cfg       *config.Config
	db        *sql.DB // nil when running on the in-memory store
	engine    *decisiontable.Engine
	collector *metrics.Collector
	router    *chi.Mux
}

func NewServer(cfg *config.Config) (*Server, error) {
	var db *sql.DB
	var store decisiontable.DefinitionStore

	if cfg.Database.URL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store = decisiontable.NewPostgresDefinitionStore(db, cfg.Database.TenantID)
	} else {
		logger.Warn("no database configured, using in-memory definition store")
		store = decisiontable.NewInMemoryDefinitionStore()
	}

	engine := decisiontable.NewEngine(store)

	s := &Server{
		cfg:    cfg,
		db:     db,
		engine: engine,
	}

	if cfg.Metrics.Enabled {
		s.collector = metrics.NewCollector(&cfg.Metrics, nil, func() float64 {
			return float64(engine.Registry().Len())
		})
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	if s.collector != nil {
		r.Use(s.statusMetrics)
	}

	r.Get("/api/v1/health", s.handleHealth)
	if s.collector != nil {
		r.Method(http.MethodGet, "/metrics", s.collector.Handler())
	}

	// Everything below requires client credentials.
	r.Group(func(r chi.Router) {
		r.Use(s.clientAuth)

		r.Post("/api/v1/evaluate", s.handleEvaluate)

		r.Route("/api/v1/tables", func(r chi.Router) {
			r.Get("/", s.handleListTables)
			r.Post("/", s.handleCreateTable)

			r.Route("/{tableId}", func(r chi.Router) {
				r.Get("/", s.handleGetTable)
				r.Put("/", s.handleUpdateTable)
				r.Delete("/", s.handleDeleteTable)
			})
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// clientAuth validates the shared client id/secret headers that identify
// the calling system.
func (s *Server) clientAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Client-Id")
		secret := r.Header.Get("X-Client-Secret")

		idOK := subtle.ConstantTimeCompare([]byte(id), []byte(s.cfg.Auth.ClientID)) == 1
		secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.Auth.ClientSecret)) == 1
		if !idOK || !secretOK {
			respondError(w, http.StatusUnauthorized, "invalid client credentials", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) statusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.collector.RecordResponse(ww.Status())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"tablesRegistered": s.engine.Registry().Len(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.TableID == "" {
		respondError(w, http.StatusBadRequest, "tableId is required", nil)
		return
	}
	if req.Inputs == nil {
		req.Inputs = map[string]any{}
	}

	// Compile (or fetch the cached compilation) up front so input keys can
	// be checked against the declared columns before evaluating.
	ct, err := s.engine.Compiled(req.TableID)
	if err != nil {
		s.respondEvaluateError(w, req.TableID, err)
		return
	}
	for name := range req.Inputs {
		if !ct.DeclaredInput(name) {
			if s.collector != nil {
				s.collector.RecordEvaluation(metrics.OutcomeError, 0)
			}
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("input %q is not declared by table %s", name, req.TableID), nil)
			return
		}
	}

	start := time.Now()
	result, err := s.engine.Evaluate(req.TableID, req.Inputs)
	elapsed := time.Since(start)

	if err != nil {
		s.respondEvaluateError(w, req.TableID, err)
		return
	}

	if s.collector != nil {
		outcome := metrics.OutcomeNoMatch
		switch {
		case result.Matched && result.Default:
			outcome = metrics.OutcomeDefault
		case result.Matched:
			outcome = metrics.OutcomeMatched
		}
		s.collector.RecordEvaluation(outcome, elapsed)
	}

	if !result.Matched {
		logger.Info("decision table produced no match",
			"table", req.TableID, "inputs", result.Inputs)
	}

	respondJSON(w, http.StatusOK, EvaluateResponse{
		TableID:        result.TableID,
		Matched:        result.Matched,
		Default:        result.Default,
		Outputs:        result.Outputs,
		EvaluationTime: elapsed.String(),
	})
}

func (s *Server) respondEvaluateError(w http.ResponseWriter, tableID string, err error) {
	var verr *decisiontable.ValidationError

	switch {
	case errors.Is(err, decisiontable.ErrTableNotFound):
		if s.collector != nil {
			s.collector.RecordEvaluation(metrics.OutcomeNotFound, 0)
		}
		respondError(w, http.StatusNotFound, "table not found", err)
	case errors.As(err, &verr):
		if s.collector != nil {
			s.collector.RecordEvaluation(metrics.OutcomeError, 0)
		}
		respondError(w, http.StatusBadRequest, "stored table definition is invalid", err)
	default:
		if s.collector != nil {
			s.collector.RecordEvaluation(metrics.OutcomeError, 0)
		}
		logger.Error("evaluation failed", "table", tableID, "error", err)
		respondError(w, http.StatusBadRequest, "evaluation failed", err)
	}
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req CreateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	def := &decisiontable.Definition{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Inputs:  req.Inputs,
		Outputs: req.Outputs,
		Rows:    req.Rows,
	}

	if err := s.engine.AddTable(def); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add table", err)
		return
	}

	respondJSON(w, http.StatusCreated, tableResponse(def))
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	defs, err := s.engine.ListTables()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tables", err)
		return
	}

	resp := TablesListResponse{Tables: make([]TableResponse, 0, len(defs))}
	for _, def := range defs {
		resp.Tables = append(resp.Tables, tableResponse(def))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")

	def, err := s.engine.GetTable(tableID)
	if err != nil {
		respondError(w, http.StatusNotFound, "table not found", err)
		return
	}

	respondJSON(w, http.StatusOK, tableResponse(def))
}

func (s *Server) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")

	var req UpdateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	def := &decisiontable.Definition{
		ID:      tableID,
		Name:    req.Name,
		Inputs:  req.Inputs,
		Outputs: req.Outputs,
		Rows:    req.Rows,
	}

	if err := s.engine.UpdateTable(def); err != nil {
		if errors.Is(err, decisiontable.ErrTableNotFound) {
			respondError(w, http.StatusNotFound, "table not found", err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to update table", err)
		return
	}

	respondJSON(w, http.StatusOK, tableResponse(def))
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")

	if err := s.engine.DeleteTable(tableID); err != nil {
		if errors.Is(err, decisiontable.ErrTableNotFound) {
			respondError(w, http.StatusNotFound, "table not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete table", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	if level, err := logger.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Server.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
