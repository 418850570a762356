package store

import (
	"context"
	"sort"
	"sync"

	"github.com/verte-zerg/typex/internal/model"
)

// Memory is an in-process store. It is the last-resort fallback when no
// database can be opened.
type Memory struct {
	mu       sync.Mutex
	profiles map[string]model.UserProfile
	board    []model.LeaderboardEntry
}

var (
	_ ProfileStore     = (*Memory)(nil)
	_ LeaderboardStore = (*Memory)(nil)
)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{profiles: map[string]model.UserProfile{}}
}

// Load returns a copy of the stored profile or ErrNotFound.
func (m *Memory) Load(_ context.Context, username string) (model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[username]
	if !ok {
		return model.UserProfile{}, ErrNotFound
	}
	return p.Clone(), nil
}

// Save replaces the stored profile.
func (m *Memory) Save(_ context.Context, p model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Username] = p.Clone()
	return nil
}

// Append adds entry unless an identical one exists.
func (m *Memory) Append(_ context.Context, e model.LeaderboardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.board {
		if sameEntry(existing, e) {
			return nil
		}
	}
	m.board = append(m.board, e)
	return nil
}

// Query returns up to model.MaxLeaderboardEntries entries by WPM descending.
func (m *Memory) Query(_ context.Context, level int) ([]model.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.LeaderboardEntry{}
	for _, e := range m.board {
		if level == 0 || e.Level == level {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].WPM > out[j].WPM
	})
	if len(out) > model.MaxLeaderboardEntries {
		out = out[:model.MaxLeaderboardEntries]
	}
	return out, nil
}

func sameEntry(a, b model.LeaderboardEntry) bool {
	return a.Username == b.Username &&
		a.Level == b.Level &&
		a.WPM == b.WPM &&
		a.Accuracy == b.Accuracy &&
		a.Timestamp.Equal(b.Timestamp)
}
