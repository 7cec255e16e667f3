// Package debugserver exposes a read-only HTTP/JSON introspection endpoint
// over the router's current state: the routing table and a small set of
// counters. Every handler runs wrapped in logging and panic recovery
// middleware.
package debugserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/ripnet/ripd/internal/router"
)

// ErrPanicRecovered indicates a handler panicked and was recovered.
var ErrPanicRecovered = errors.New("panic recovered in debug handler")

// Server serves the read-only debug HTTP API over a Router's live state.
type Server struct {
	rtr    *router.Router
	logger *slog.Logger
	http   *http.Server
}

// New constructs a Server that will listen on addr once Serve is called.
func New(addr string, rtr *router.Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{rtr: rtr, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/routes", s.handleRoutes)
	mux.HandleFunc("/stats", s.handleStats)

	s.http = &http.Server{
		Addr:    addr,
		Handler: recoveryMiddleware(logger, loggingMiddleware(logger, mux)),
	}
	return s
}

// Handler returns the server's http.Handler, for tests that want to drive it
// through httptest.NewServer without binding Serve's own listener.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve blocks, serving the debug API until ctx is canceled, at which point
// it shuts the HTTP server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("debugserver: listen %s: %w", s.http.Addr, err)
	}

	errc := make(chan error, 1)
	go func() { errc <- s.http.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type routesResponse struct {
	Routes []routeJSON `json:"routes"`
}

type routeJSON struct {
	Addr    string `json:"addr"`
	Len     uint8  `json:"len"`
	IfIndex int    `json:"if_index"`
	NextHop string `json:"next_hop"`
	Metric  uint8  `json:"metric"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	snap := s.rtr.Snapshot()
	resp := routesResponse{Routes: make([]routeJSON, len(snap.Routes))}
	for i, e := range snap.Routes {
		resp.Routes[i] = routeJSON{
			Addr:    formatIPv4(e.Addr),
			Len:     e.Len,
			IfIndex: e.IfIndex,
			NextHop: formatIPv4(e.NextHop),
			Metric:  e.Metric,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	RouteCount    int `json:"route_count"`
	DirectCount   int `json:"direct_count"`
	LearnedCount  int `json:"learned_count"`
	PoisonedCount int `json:"poisoned_count"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.rtr.Snapshot()
	resp := statsResponse{RouteCount: len(snap.Routes)}
	for _, e := range snap.Routes {
		switch {
		case e.Metric >= 16:
			resp.PoisonedCount++
		case e.NextHop == 0:
			resp.DirectCount++
		default:
			resp.LearnedCount++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func formatIPv4(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// loggingMiddleware logs every request with its path, duration, and status.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		duration := time.Since(start)

		attrs := []slog.Attr{
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("duration", duration),
		}
		if sw.status >= 400 {
			logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed with error", attrs...)
		} else {
			logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// recoveryMiddleware recovers from panics in handlers, logging the panic
// value and stack trace and returning 500.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				logger.ErrorContext(r.Context(), "panic recovered in debug handler",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
					slog.String("stack", string(buf[:n])),
				)
				http.Error(w, ErrPanicRecovered.Error(), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
