package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typex/internal/model"
)

var when = time.Date(2024, 2, 3, 4, 5, 6, 7000, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "typex.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return s
}

func sampleProfile() model.UserProfile {
	p := model.NewProfile("ada")
	p.Level = 3
	p.HighScores = []model.ScoreRecord{
		{Level: 2, WPM: 44, Accuracy: 97, Timestamp: when, AbbreviationsUsed: 1},
		{Level: 1, WPM: 31, Accuracy: 90, Timestamp: when.Add(-time.Hour)},
	}
	p.UnlockedAbbreviations = []model.Abbreviation{
		{ID: "abbr2", Trigger: ";addr", Expansion: "123 Main St", Description: "Address", UnlockTier: 2},
		{ID: "abbr1", Trigger: ";em", Expansion: "a@b.c", Description: "Email", UnlockTier: 1},
	}
	last := p.UnlockedAbbreviations[0]
	p.LastUnlockedAbbreviation = &last
	return p
}

func backends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"sqlite": openTestStore(t),
		"memory": NewMemory(),
	}
}

func assertSameProfile(t *testing.T, want, got model.UserProfile) {
	t.Helper()
	assert.Equal(t, want.Username, got.Username)
	assert.Equal(t, want.Level, got.Level)
	assert.Equal(t, want.UnlockedAbbreviations, got.UnlockedAbbreviations)
	assert.Equal(t, want.LastUnlockedAbbreviation, got.LastUnlockedAbbreviation)
	require.Len(t, got.HighScores, len(want.HighScores))
	for i := range want.HighScores {
		w, g := want.HighScores[i], got.HighScores[i]
		assert.True(t, w.Timestamp.Equal(g.Timestamp), "timestamp %d", i)
		w.Timestamp, g.Timestamp = time.Time{}, time.Time{}
		assert.Equal(t, w, g)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Load(ctx, "ada")
			require.ErrorIs(t, err, ErrNotFound)

			p := sampleProfile()
			require.NoError(t, b.Save(ctx, p))
			got, err := b.Load(ctx, "ada")
			require.NoError(t, err)
			assertSameProfile(t, p, got)

			// Saving again is an upsert.
			p.Level = 4
			p.HighScores = p.HighScores[:1]
			p.LastUnlockedAbbreviation = nil
			require.NoError(t, b.Save(ctx, p))
			require.NoError(t, b.Save(ctx, p))
			got, err = b.Load(ctx, "ada")
			require.NoError(t, err)
			assertSameProfile(t, p, got)
		})
	}
}

func TestFreshProfileLoadsEmptySlices(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Save(ctx, model.NewProfile("bob")))
			got, err := b.Load(ctx, "bob")
			require.NoError(t, err)
			assert.NotNil(t, got.HighScores)
			assert.NotNil(t, got.UnlockedAbbreviations)
			assert.Nil(t, got.LastUnlockedAbbreviation)
			assert.Equal(t, 1, got.Level)
		})
	}
}

func TestLeaderboardOrderFilterAndDedup(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			entries := []model.LeaderboardEntry{
				{Username: "ada", Level: 1, WPM: 30, Accuracy: 95, Timestamp: when},
				{Username: "bob", Level: 2, WPM: 55, Accuracy: 91, Timestamp: when},
				{Username: "cy", Level: 1, WPM: 42, Accuracy: 99, Timestamp: when},
			}
			for _, e := range entries {
				require.NoError(t, b.Append(ctx, e))
			}
			require.NoError(t, b.Append(ctx, entries[0]))

			all, err := b.Query(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []int{55, 42, 30}, []int{all[0].WPM, all[1].WPM, all[2].WPM})

			lvl1, err := b.Query(ctx, 1)
			require.NoError(t, err)
			require.Len(t, lvl1, 2)
			assert.Equal(t, "cy", lvl1[0].Username)

			none, err := b.Query(ctx, 9)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestLeaderboardCapped(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < model.MaxLeaderboardEntries+5; i++ {
				e := model.LeaderboardEntry{Username: "ada", Level: 1, WPM: i, Accuracy: 100, Timestamp: when}
				require.NoError(t, b.Append(ctx, e))
			}
			got, err := b.Query(ctx, 0)
			require.NoError(t, err)
			require.Len(t, got, model.MaxLeaderboardEntries)
			assert.Equal(t, model.MaxLeaderboardEntries+4, got[0].WPM)
			assert.Equal(t, 5, got[len(got)-1].WPM)
		})
	}
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "typex.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleProfile()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()
	got, err := s.Load(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Level)
}
