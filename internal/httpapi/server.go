// Package httpapi exposes the session controller and reports over a JSON
// API and serves the bundled web client.
package httpapi

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Tiliavir/time-tracking-app/internal/report"
	"github.com/Tiliavir/time-tracking-app/internal/session"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
)

//go:embed web/*
var web embed.FS

const shutdownTimeout = 5 * time.Second

// Server routes API calls to the session controller and reporter.
type Server struct {
	sessions *session.Controller
	reports  *report.Reporter
	logger   *slog.Logger
	static   fs.FS
	index    []byte
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithStatic replaces the embedded web client. fsys must contain index.html.
func WithStatic(fsys fs.FS) Option {
	return func(s *Server) { s.static = fsys }
}

// New returns a Server. It fails only when the static files lack index.html.
func New(sessions *session.Controller, reports *report.Reporter, opts ...Option) (*Server, error) {
	static, err := fs.Sub(web, "web")
	if err != nil {
		return nil, err
	}
	s := &Server{
		sessions: sessions,
		reports:  reports,
		logger:   slog.New(slog.DiscardHandler),
		static:   static,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.index, err = fs.ReadFile(s.static, "index.html")
	if err != nil {
		return nil, fmt.Errorf("loading web client: %w", err)
	}
	return s, nil
}

// Handler returns the complete HTTP handler including middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/clock-in", s.handle("Error clocking in", s.clockIn))
	mux.Handle("POST /api/clock-out", s.handle("Error clocking out", s.clockOut))
	mux.Handle("GET /api/is-clocked-in", s.handle("Error checking clock-in status", s.isClockedIn))
	mux.Handle("GET /api/last-clock-in", s.handle("Error retrieving last clock-in time", s.lastClockIn))
	mux.Handle("GET /api/today", s.handle("Error retrieving today's entries", s.today))
	mux.Handle("GET /api/previous", s.handle("Error retrieving previous entries", s.previous))
	mux.Handle("GET /api/current-week", s.handle("Error retrieving current week entries", s.currentWeek))
	mux.Handle("DELETE /api/clock-entry/{id}", s.handle("Error deleting entry", s.deleteEntry))
	mux.HandleFunc("GET /", s.serveStatic)

	return s.logRequests(cors(mux))
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// errorHandler is an http.Handler that may fail. Failures that are not
// an *httpError become a 500 carrying the route's generic message.
type errorHandler func(w http.ResponseWriter, r *http.Request) error

// httpError is a failure the client is told about.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func (s *Server) handle(failure string, h errorHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		var he *httpError
		if errors.As(err, &he) {
			writeJSON(w, he.status, map[string]string{"message": he.message})
			return
		}
		s.logger.ErrorContext(r.Context(), failure,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": failure})
	})
}

func (s *Server) clockIn(w http.ResponseWriter, r *http.Request) error {
	entry, err := s.sessions.ClockIn(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, struct {
		Message     string    `json:"message"`
		ClockInTime time.Time `json:"clockInTime"`
	}{"Clocked in", entry.ClockIn})
	return nil
}

func (s *Server) clockOut(w http.ResponseWriter, r *http.Request) error {
	if _, err := s.sessions.ClockOut(r.Context()); err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			return &httpError{http.StatusBadRequest, "No active clock-in session found"}
		}
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Clocked out"})
	return nil
}

func (s *Server) isClockedIn(w http.ResponseWriter, r *http.Request) error {
	status, err := s.sessions.Status(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, status)
	return nil
}

func (s *Server) lastClockIn(w http.ResponseWriter, r *http.Request) error {
	status, err := s.sessions.Status(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, struct {
		ClockInTime *time.Time `json:"clockInTime"`
	}{status.ClockInTime})
	return nil
}

func (s *Server) today(w http.ResponseWriter, r *http.Request) error {
	summary, err := s.reports.Today(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, summary)
	return nil
}

func (s *Server) previous(w http.ResponseWriter, r *http.Request) error {
	groups, err := s.reports.Previous(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, groups)
	return nil
}

func (s *Server) currentWeek(w http.ResponseWriter, r *http.Request) error {
	groups, err := s.reports.CurrentWeek(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, groups)
	return nil
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &httpError{http.StatusNotFound, "Entry not found"}
		}
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Entry deleted"})
	return nil
}

// serveStatic serves files of the web client and falls back to index.html
// for every other path so client-side routes resolve.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name != "" && name != "index.html" {
		if info, err := fs.Stat(s.static, name); err == nil && !info.IsDir() {
			http.FileServerFS(s.static).ServeHTTP(w, r)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.index)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
