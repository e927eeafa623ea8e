package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runixer/shastrarthi/internal/auth"
	"github.com/runixer/shastrarthi/internal/config"
	"github.com/runixer/shastrarthi/internal/gemini"
	"github.com/runixer/shastrarthi/internal/publish"
	"github.com/runixer/shastrarthi/internal/ratelimit"
	"github.com/runixer/shastrarthi/internal/storage"
)

const (
	msgInvalidJSON        = "Invalid JSON in request body"
	msgRateLimited        = "Rate limit exceeded. Please try again shortly."
	msgInternalError      = "Internal server error"
	msgNotFound           = "Not found"
	msgChatNotConfigured  = "AI service is not configured. Please contact support."
	msgToolsNotConfigured = "AI service is not configured."

	// generationLogsKeep is how many audit rows are kept per prompt config.
	generationLogsKeep = 200
	metricsInterval    = time.Hour
	requestIDHeader    = "X-Request-ID"
)

// getClientIP extracts the real client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers (set by reverse proxies like traefik),
// falling back to RemoteAddr if no proxy headers are present.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs: "client, proxy1, proxy2"
	// The first one is the original client IP
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	// Fallback to RemoteAddr (strips port if present)
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// Deps are the collaborators of the HTTP API. Maintenance is optional.
type Deps struct {
	Texts       storage.TextRepository
	Datasets    storage.DatasetRepository
	Pages       storage.PublicPageRepository
	Maintenance storage.MaintenanceRepository
	Generator   gemini.Client
	Limiter     ratelimit.Limiter
	Verifier    auth.Verifier
	Publisher   *publish.Deduper
}

type Server struct {
	cfg         *config.Config
	texts       storage.TextRepository
	datasets    storage.DatasetRepository
	pages       storage.PublicPageRepository
	maintenance storage.MaintenanceRepository
	generator   gemini.Client
	limiter     ratelimit.Limiter
	verifier    auth.Verifier
	publisher   *publish.Deduper
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewServer(logger *slog.Logger, cfg *config.Config, deps Deps) (*Server, error) {
	switch {
	case deps.Texts == nil, deps.Datasets == nil, deps.Pages == nil:
		return nil, errors.New("web: repositories are required")
	case deps.Generator == nil:
		return nil, errors.New("web: generator is required")
	case deps.Limiter == nil:
		return nil, errors.New("web: rate limiter is required")
	case deps.Verifier == nil:
		return nil, errors.New("web: identity verifier is required")
	case deps.Publisher == nil:
		return nil, errors.New("web: publisher is required")
	}

	return &Server{
		cfg:         cfg,
		texts:       deps.Texts,
		datasets:    deps.Datasets,
		pages:       deps.Pages,
		maintenance: deps.Maintenance,
		generator:   deps.Generator,
		limiter:     deps.Limiter,
		verifier:    deps.Verifier,
		publisher:   deps.Publisher,
		logger:      logger.With("component", "web_server"),
	}, nil
}

// Handler returns the routed and instrumented API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/chat", s.protected("chat", s.chatHandler))
	mux.Handle("POST /api/tools", s.protected("tools", s.toolsHandler))
	mux.Handle("POST /api/synthesize", s.protected("synthesize", s.synthesizeHandler))
	mux.Handle("GET /api/explore/{slug}", instrumentHandler("explore", http.HandlerFunc(s.exploreHandler)))

	mux.Handle("/healthz", instrumentHandler("healthz", http.HandlerFunc(s.healthzHandler)))
	mux.Handle("/metrics", promhttp.Handler())

	// Chain: RequestID -> Logging -> Mux
	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// protected requires an authenticated user for h.
func (s *Server) protected(name string, h http.HandlerFunc) http.Handler {
	return instrumentHandler(name, auth.RequireUser(s.verifier, s.logger, h))
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.cfg.Server.ListenPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown failed", "error", err)
		}
	}()

	// Update metrics immediately on startup, then periodically
	s.updateMetrics()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(metricsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()

	s.logger.Info("Starting web server", "port", s.cfg.Server.ListenPort)
	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	s.wg.Wait()
	return nil
}

func (s *Server) updateMetrics() {
	if s.maintenance == nil {
		return
	}

	dbSize, err := s.maintenance.GetDBSize()
	if err != nil {
		s.logger.Error("failed to get DB size", "error", err)
	} else {
		storage.SetStorageSize(dbSize)
	}

	tableSizes, err := s.maintenance.GetTableSizes()
	if err != nil {
		s.logger.Error("failed to get table sizes", "error", err)
	} else {
		for _, ts := range tableSizes {
			storage.SetTableSize(ts.Name, ts.Bytes)
		}
	}

	deleted, err := s.maintenance.CleanupGenerationLogs(generationLogsKeep)
	if err != nil {
		s.logger.Error("failed to cleanup generation_logs", "error", err)
		return
	}
	if deleted > 0 {
		storage.RecordCleanupDeleted("generation_logs", deleted)
		s.logger.Info("cleaned up generation_logs", "deleted", deleted)
	}
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// checkRateLimit counts the request against the caller's window and writes the
// 429 response when the window is exhausted. A failing counter store lets the
// request through.
func (s *Server) checkRateLimit(w http.ResponseWriter, r *http.Request, userID string) bool {
	key := ratelimit.Key(userID, getClientIP(r))
	res, err := s.limiter.Check(r.Context(), key, s.cfg.RateLimit.GetWindow(), s.cfg.RateLimit.GetMaxRequests())
	if err != nil {
		s.logger.Warn("rate limit check failed, allowing request", "key", key, "error", err)
		return true
	}

	ratelimit.SetHeaders(w.Header(), res)
	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds))
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return false
	}
	return true
}

// userID returns the caller set by auth.RequireUser.
func userID(r *http.Request) string {
	id, _ := auth.UserFromContext(r.Context())
	return id
}

// decodeBody decodes a JSON object from the request body into v.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

// requestIDMiddleware propagates X-Request-ID, generating one when absent.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Log healthz and metrics at debug level, other requests at info level
		if path == "/healthz" || path == "/metrics" {
			s.logger.Debug("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
			)
		} else {
			s.logger.Info("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
				"user_agent", r.UserAgent(),
				"request_id", requestID(r.Context()),
			)
		}
		next.ServeHTTP(w, r)
	})
}

// generationError maps a failed generation call onto a status and message.
func generationError(err error) (int, string) {
	if gerr, ok := gemini.AsError(err); ok {
		return gerr.HTTPStatus(), gerr.Message
	}
	return http.StatusInternalServerError, msgInternalError
}
