// Package api exposes profiles and the leaderboard over HTTP.
package api

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/verte-zerg/typex/internal/store"
)

// NewRouter registers the REST routes backed by the given stores.
func NewRouter(profiles store.ProfileStore, board store.LeaderboardStore) *mux.Router {
	s := &server{profiles: profiles, board: board}
	r := mux.NewRouter()

	r.HandleFunc("/api/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{username}", s.getUser).Methods(http.MethodGet)
	r.HandleFunc("/api/users", s.saveUser).Methods(http.MethodPost)
	r.HandleFunc("/api/leaderboard", s.getLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/api/leaderboard", s.addEntry).Methods(http.MethodPost)

	return r
}

// Wrap adds request logging to out and permissive CORS for browser clients.
func Wrap(h http.Handler, out io.Writer) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.LoggingHandler(out, cors(h))
}
