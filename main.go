package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"kblookup/app"
	"kblookup/config"
	"kblookup/internal/observability"
	"kblookup/rag"
)

// maxQueryBody caps the size of a query request body.
const maxQueryBody = 64 << 10

// embedderHealth is what the readiness probe needs from the embedder.
type embedderHealth interface {
	Init() error
	Ready() bool
}

type Server struct {
	retriever *rag.Retriever
	embedder  embedderHealth
	logger    *zap.Logger
	validate  *validator.Validate
}

func NewServer(retriever *rag.Retriever, embedder embedderHealth, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		retriever: retriever,
		embedder:  embedder,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Routes builds the HTTP handler with the standard middleware stack.
func (s *Server) Routes(corsOrigins []string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readyHandler)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.queryHandler)
	})
	return r
}

// GET /healthz
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readiness struct {
	Entries       int  `json:"entries"`
	Embedded      int  `json:"embedded"`
	Dimension     int  `json:"dimension"`
	EmbedderReady bool `json:"embedder_ready"`
}

// GET /readyz. Initializes the embedder if no query has done so yet.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	base := s.retriever.KnowledgeBase()
	status := readiness{
		Entries:   base.Len(),
		Embedded:  base.EmbeddedCount(),
		Dimension: base.Dimension(),
	}
	if err := s.embedder.Init(); err != nil {
		s.logger.Warn("embedder not ready", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "not_ready",
			Message: "embedding provider unavailable",
		})
		return
	}
	status.EmbedderReady = s.embedder.Ready()
	writeOK(w, status)
}

type queryRequest struct {
	Query string `json:"query" validate:"required,max=4096"`
}

type queryResponse struct {
	Status string   `json:"status"`
	Answer string   `json:"answer"`
	ID     string   `json:"id,omitempty"`
	Score  *float64 `json:"score,omitempty"`
}

// POST /api/v1/query  { "query": "your question" }
func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", validationMessage(err))
		return
	}

	ans, err := s.retriever.Answer(r.Context(), req.Query)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	resp := queryResponse{
		Status: ans.Status.String(),
		Answer: ans.Message(),
	}
	if ans.Found() {
		score := ans.Score
		resp.ID = ans.ID
		resp.Score = &score
	}
	writeOK(w, resp)
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "bad_request", "query is required")
	case errors.Is(err, rag.ErrProviderUnavailable):
		s.logger.Warn("query failed: provider unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "provider_unavailable", "embedding provider unavailable, try again later")
	default:
		s.logger.Error("query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "query could not be processed")
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "query is required"
	case "max":
		return fmt.Sprintf("query must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("query failed on '%s'", fe.Tag())
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() && cfg.Embedder.Provider == "local" {
		logger.Warn("local embedder is a hashed bag of words; configure openai or gemini for production")
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}

	srv := NewServer(deps.Retriever, deps.Embedder, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.Routes(cfg.Server.CORSAllowedOrigins, cfg.Server.WriteTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", httpServer.Addr),
			zap.String("environment", cfg.Environment))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
