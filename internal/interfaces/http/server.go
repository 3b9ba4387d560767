// Package http exposes crewrun operations as a JSON and XLSX API.
package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/application"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Server represents the crewrun HTTP server
type Server struct {
	router  *mux.Router
	server  *http.Server
	svc     *application.Service
	metrics *MetricsRegistry
	hub     *Hub
	health  *HealthHandler
	config  ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "127.0.0.1", // Local-only by default
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxUploadBytes: 10 << 20,
	}
}

// NewServer creates a server over svc. The metrics registry and event hub
// are registered as service hooks.
func NewServer(config ServerConfig, svc *application.Service, metrics *MetricsRegistry, hub *Hub, health *HealthHandler) *Server {
	if metrics == nil {
		metrics = NewMetricsRegistry()
	}
	if hub == nil {
		hub = NewHub()
	}
	if health == nil {
		health = NewHealthHandler(svc, "dev")
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}
	hub.OnCount = func(n int) { metrics.WSClients.Set(float64(n)) }
	svc.AddHook(metrics)
	svc.AddHook(metrics.Wrap("events", hub))

	s := &Server{
		router:  mux.NewRouter(),
		svc:     svc,
		metrics: metrics,
		hub:     hub,
		health:  health,
		config:  config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.metrics.middleware)
	s.router.Use(s.corsMiddleware)

	s.router.Handle("/health", s.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	// no timeout: the feed stays open
	s.router.Handle("/ws/events", s.hub).Methods(http.MethodGet)

	// every api route accepts OPTIONS so corsMiddleware answers the preflight
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/roster", s.getRoster).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/gate", s.getGate).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/doctor", s.getDoctor).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/views/{view}", s.getView).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/exports/{view}.xlsx", s.getExport).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/targets", s.getTargets).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/targets", s.putTarget).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/plan", s.postPlan).Methods(http.MethodPost, http.MethodOptions)

	api.HandleFunc("/assignments/auto", s.postAuto).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/assignments/manual", s.postManual).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/assignments", s.deleteAssignments).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/reset", s.postReset).Methods(http.MethodPost, http.MethodOptions)

	api.HandleFunc("/executions/complete", s.postComplete).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/executions/revert", s.postRevert).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/executions/url", s.putURL).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/executions/upload", s.postUpload).Methods(http.MethodPost, http.MethodOptions)

	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)
}

// requestIDMiddleware adds unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// requestLoggingMiddleware logs all requests with structured format
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := wrapResponse(w)
		next.ServeHTTP(wrapper, r)

		log.Info().
			Str("request_id", requestID(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// timeoutMiddleware enforces request timeouts
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.RequestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// corsMiddleware adds CORS headers for a presentation layer served locally
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isLocalOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// jsonContentTypeMiddleware sets JSON content type for API responses
func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the event hub.
func (s *Server) Hub() *Hub { return s.hub }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("port %d is busy or unavailable: %w", s.config.Port, err)
	}
	log.Info().Str("addr", s.Address()).Msg("starting HTTP server")

	errc := make(chan error, 1)
	go func() { errc <- s.server.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
}

func wrapResponse(w http.ResponseWriter) *responseWrapper {
	if rw, ok := w.(*responseWrapper); ok {
		return rw
	}
	return &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWrapper) WriteHeader(code int) {
	if !rw.wrote {
		rw.statusCode = code
		rw.wrote = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
