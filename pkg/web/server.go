// Package web serves the consolidated chat table through a small set of
// read-only views: a statistics dashboard, a paginated transcript, search
// and a JSON API.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/testsabirweb/chat_archive/pkg/store"
)

// Server represents the web server
type Server struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewServer creates a new web server backed by the given store
func NewServer(st *store.Store, logger zerolog.Logger) *Server {
	return &Server{
		store:  st,
		logger: logger,
	}
}

// Router returns the HTTP handler for the server
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/messages", s.handleMessages).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/messages", s.handleAPIMessages).Methods(http.MethodGet)

	r.Use(requestLogging(s.logger))

	return withCORS(r)
}

// withCORS wraps the handler with permissive CORS headers
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// handleHealth returns the health status of the server
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status":  "healthy",
		"service": "chat-archive",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
