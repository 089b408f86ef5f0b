// Package api exposes the screener over HTTP: REST endpoints for the table,
// detail view and chart, the /api/yahoo pass-through, a websocket session per
// browser tab, and the static front-end.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"nse-screener/config"
	"nse-screener/gateway"
)

const shutdownTimeout = 15 * time.Second

// Server is the HTTP server.
type Server struct {
	router  chi.Router
	handler *Handler
	cfg     config.ServerConfig
	logger  *slog.Logger
}

func NewServer(h *Handler, cfg config.ServerConfig) *Server {
	s := &Server{handler: h, cfg: cfg, logger: h.logger}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	h := s.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&requestLogger{logger: s.logger}))
	r.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// The websocket outlives any request timeout.
	r.Get("/ws", h.WebSocket)

	r.Group(func(r chi.Router) {
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}

		r.Get("/health", h.Health)
		r.Get("/search", h.Search)
		r.Get("/api/yahoo", gateway.Handler(h.Gateway))

		r.Route("/api", func(r chi.Router) {
			r.Get("/stocks", h.Stocks)
			r.Get("/stocks/export", h.Export)
			r.Get("/overview", h.Overview)
			r.Post("/reload", h.Reload)
			r.Get("/stock/{symbol}", h.GetStock)
			r.Get("/chart/{symbol}", h.Chart)
			r.Get("/chart/{symbol}/tooltip", h.Tooltip)
		})
	})

	if s.cfg.StaticDir != "" {
		r.Handle("/*", noCache(http.FileServer(http.Dir(s.cfg.StaticDir))))
	}
	return r
}

// requestLogger writes one access line per request through the server's
// slog logger.
type requestLogger struct {
	logger *slog.Logger
}

func (l *requestLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestEntry{logger: l.logger.With(
		"method", r.Method,
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
		"request_id", middleware.GetReqID(r.Context()),
	)}
}

type requestEntry struct {
	logger *slog.Logger
}

func (e *requestEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra any) {
	e.logger.Info("request", "status", status, "bytes", bytes, "elapsed", elapsed)
}

func (e *requestEntry) Panic(v any, stack []byte) {
	e.logger.Error("request panicked", "panic", v, "stack", string(stack))
}

// noCache serves static files with caching disabled so front-end edits show
// up on reload.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
