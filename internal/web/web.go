// Package web serves the generated calendar artifacts for subscription.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"untiscal/internal/config"
	appLog "untiscal/internal/log"
	syncer "untiscal/internal/sync"
)

// StatusProvider exposes the outcome of the most recent sync run.
type StatusProvider interface {
	LastResult() (syncer.Result, bool)
}

// Server exposes /health, the two calendar artifacts, and a status API.
type Server struct {
	cfg    *config.Config
	status StatusProvider
	mux    *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, status StatusProvider) *Server {
	s := &Server{
		cfg:    cfg,
		status: status,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/calendar.ics", s.artifactHandler(func() string { return s.cfg.CalendarPath }))
	s.mux.HandleFunc("/exams.ics", s.artifactHandler(func() string { return s.cfg.ExamCalendarPath }))
	s.mux.HandleFunc("/api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// artifactHandler serves the persisted artifact bytes as written by the
// last sync run. No caching: the files are small and overwritten in place.
func (s *Server) artifactHandler(path func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		data, err := os.ReadFile(path())
		if err != nil {
			http.Error(w, "calendar not generated yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

type statusResponse struct {
	Synced     bool       `json:"synced"`
	RanAt      *time.Time `json:"ran_at,omitempty"`
	Events     int        `json:"events"`
	MainEvents int        `json:"main_events"`
	ExamEvents int        `json:"exam_events"`
	Changes    int        `json:"changes"`
	Notified   bool       `json:"notified"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var resp statusResponse
	if s.status != nil {
		if res, ok := s.status.LastResult(); ok {
			resp = statusResponse{
				Synced:     true,
				RanAt:      &res.RanAt,
				Events:     res.Events,
				MainEvents: res.MainEvents,
				ExamEvents: res.ExamEvents,
				Changes:    res.Changes,
				Notified:   res.Notified,
			}
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="untiscal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
