package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/store"
)

// maxBodyBytes caps request bodies; a full profile is a few kilobytes.
const maxBodyBytes = 64 << 10

type server struct {
	profiles store.ProfileStore
	board    store.LeaderboardStore
}

type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The client went away; nothing left to report to.
		_ = err
	}
}

// decodeBody reads a JSON body of at most maxBodyBytes into v. On failure
// it writes the error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, what string, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, message{Message: what + " too large"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, message{Message: "invalid " + what + ": " + err.Error()})
	return false
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) getUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	if err := model.ValidateUsername(username); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: err.Error()})
		return
	}
	p, err := s.profiles.Load(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, message{Message: "User not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, message{Message: "Server error"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) saveUser(w http.ResponseWriter, r *http.Request) {
	var p model.UserProfile
	if !decodeBody(w, r, "profile", &p) {
		return
	}
	if err := model.ValidateUsername(p.Username); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: err.Error()})
		return
	}
	if p.Level < 1 {
		p.Level = 1
	}
	if p.HighScores == nil {
		p.HighScores = []model.ScoreRecord{}
	}
	if p.UnlockedAbbreviations == nil {
		p.UnlockedAbbreviations = []model.Abbreviation{}
	}
	if err := s.profiles.Save(r.Context(), p); err != nil {
		writeJSON(w, http.StatusInternalServerError, message{Message: "Server error"})
		return
	}
	writeJSON(w, http.StatusCreated, message{Message: "User data saved successfully"})
}

func (s *server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	level := 0
	if raw := r.URL.Query().Get("level"); raw != "" && raw != "all" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, message{Message: "level must be a positive integer or all"})
			return
		}
		level = n
	}
	entries, err := s.board.Query(r.Context(), level)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, message{Message: "Server error"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) addEntry(w http.ResponseWriter, r *http.Request) {
	var e model.LeaderboardEntry
	if !decodeBody(w, r, "entry", &e) {
		return
	}
	if err := model.ValidateUsername(e.Username); err != nil {
		writeJSON(w, http.StatusBadRequest, message{Message: err.Error()})
		return
	}
	if e.Level < 1 || e.WPM < 0 || e.Accuracy < 0 || e.Accuracy > 100 || e.AbbreviationsUsed < 0 {
		writeJSON(w, http.StatusBadRequest, message{Message: "entry out of range"})
		return
	}
	if err := s.board.Append(r.Context(), e); err != nil {
		writeJSON(w, http.StatusInternalServerError, message{Message: "Server error"})
		return
	}
	writeJSON(w, http.StatusCreated, message{Message: "Score added to leaderboard"})
}
