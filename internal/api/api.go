// Package api exposes the read-side queries as a small JSON API for
// the chat-bot collaborator. It is strictly read-only.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sukhanovai/monitoring-sub002/internal/storage"
)

// Server serves the query endpoints.
type Server struct {
	store *storage.Store
	loc   *time.Location
	log   *zap.Logger
}

// New creates a Server over an open store. loc is the timezone used
// for "today" queries.
func New(store *storage.Store, loc *time.Location, log *zap.Logger) *Server {
	return &Server{store: store, loc: loc, log: log}
}

// Router builds the HTTP route table.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/today", s.handleToday)
		r.Get("/recent", s.handleRecent)
		r.Get("/failed", s.handleFailed)
		r.Get("/hosts", s.handleHosts)
		r.Get("/hosts/{host}", s.handleHostRecent)
		r.Get("/databases", s.handleDatabaseStats)
		r.Get("/databases/{type}", s.handleDatabaseDetails)
		r.Get("/stale", s.handleStale)
		r.Get("/coverage", s.handleCoverage)
	})

	return r
}

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("query api listening", zap.String("addr", addr))
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.TodayStatus(s.loc)
	s.respond(w, counts, err)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 16)
	backups, err := s.store.RecentBackups(hours)
	s.respond(w, backups, err)
}

func (s *Server) handleFailed(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	backups, err := s.store.FailedBackups(days)
	s.respond(w, backups, err)
}

func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.store.Hosts()
	s.respond(w, hosts, err)
}

func (s *Server) handleHostRecent(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	backups, err := s.store.HostRecent(host, 5)
	s.respond(w, backups, err)
}

func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.DatabaseStats()
	s.respond(w, stats, err)
}

func (s *Server) handleDatabaseDetails(w http.ResponseWriter, r *http.Request) {
	backupType := chi.URLParam(r, "type")
	details, err := s.store.DatabaseDetails(backupType, 10)
	s.respond(w, details, err)
}

func (s *Server) handleStale(w http.ResponseWriter, r *http.Request) {
	threshold := time.Duration(queryInt(r, "hours", 48)) * time.Hour

	hosts, err := s.store.StaleHosts(threshold)
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	databases, err := s.store.StaleDatabases(threshold)
	if err != nil {
		s.respond(w, nil, err)
		return
	}

	s.respond(w, map[string]any{
		"hosts":     hosts,
		"databases": databases,
	}, nil)
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	coverage, err := s.store.Coverage()
	s.respond(w, coverage, err)
}

func (s *Server) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		s.log.Error("query failed", zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
