package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/config"
	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/relay"
	"github.com/pagerelay/pagerelay/internal/scrape"
)

// maxBatchSize caps /scrape-multi fan-out per request.
const maxBatchSize = 20

// Server wires HTTP handlers to the scrape service.
type Server struct {
	router  chi.Router
	service *scrape.Service
	clock   relay.Clock
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service *scrape.Service, clock relay.Clock, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(timeout))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/scrape", s.scrapeOne)
	r.Post("/scrape-multi", s.scrapeMulti)
	r.Post("/scrape-spider", s.scrapeSpider)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": s.clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) scrapeOne(w http.ResponseWriter, r *http.Request) {
	var req relay.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.service.Scrape(r.Context(), req)
	if err != nil {
		s.writeTaxonomyError(w, req.Query, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

type multiRequest struct {
	Queries []string `json:"queries"`
}

func (s *Server) scrapeMulti(w http.ResponseWriter, r *http.Request) {
	var req multiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "queries required")
		return
	}
	if len(req.Queries) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "too many queries in one batch")
		return
	}
	items := s.service.ScrapeAll(r.Context(), req.Queries)
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

type spiderRequest struct {
	URL   string `json:"url"`
	Query string `json:"query"`
}

func (s *Server) scrapeSpider(w http.ResponseWriter, r *http.Request) {
	var req spiderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	target := req.URL
	if target == "" {
		target = req.Query
	}
	result, err := s.service.Spider(r.Context(), target)
	if err != nil {
		s.writeTaxonomyError(w, target, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeTaxonomyError maps relay sentinel errors to HTTP status codes.
func (s *Server) writeTaxonomyError(w http.ResponseWriter, target string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, relay.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, relay.ErrQuotaExhausted), errors.Is(err, relay.ErrNoCredentials):
		status = http.StatusTooManyRequests
	case errors.Is(err, relay.ErrUpstreamAuth):
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("scrape failed", zap.String("url", target), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, duration)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
