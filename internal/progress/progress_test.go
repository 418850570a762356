package progress

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typex/internal/catalog"
	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/session"
	"github.com/verte-zerg/typex/internal/unlock"
)

var now = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*Resolver, *catalog.Catalog) {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewResolver(c), c
}

func level(t *testing.T, c *catalog.Catalog, id int) model.Level {
	t.Helper()
	l, ok := c.LevelByID(id)
	require.True(t, ok)
	return l
}

func syncedProfile(t *testing.T, c *catalog.Catalog, lvl int) model.UserProfile {
	t.Helper()
	p := model.NewProfile("ada")
	p.Level = lvl
	p, _ = unlock.New(c).Sync(p)
	return p
}

func TestMergeHighScoresKeepsTopTen(t *testing.T) {
	var scores []model.ScoreRecord
	for i := 0; i < 10; i++ {
		scores = append(scores, model.ScoreRecord{Level: 1, WPM: 50 + i})
	}
	merged := MergeHighScores(scores, model.ScoreRecord{Level: 1, WPM: 10})
	require.Len(t, merged, 10)
	for _, rec := range merged {
		assert.NotEqual(t, 10, rec.WPM)
	}
	assert.Equal(t, 59, merged[0].WPM)
	assert.Len(t, scores, 10, "input must not be modified")
}

func TestMergeHighScoresStableTies(t *testing.T) {
	scores := []model.ScoreRecord{{Level: 1, WPM: 40}, {Level: 2, WPM: 40}}
	merged := MergeHighScores(scores, model.ScoreRecord{Level: 3, WPM: 40})
	require.Len(t, merged, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{merged[0].Level, merged[1].Level, merged[2].Level})
}

func TestAdvanceLevel(t *testing.T) {
	assert.Equal(t, 2, AdvanceLevel(1, 1, nil))
	assert.Equal(t, 5, AdvanceLevel(5, 2, nil))
	assert.Equal(t, 8, AdvanceLevel(2, 3, []model.ScoreRecord{{Level: 7}}))
}

func TestResolveFailedAttempt(t *testing.T) {
	r, c := setup(t)
	p := syncedProfile(t, c, 2)
	lvl := level(t, c, 2)

	out := r.Resolve(p, lvl, session.Result{WPM: 29, Accuracy: 93, AbbreviationsUsed: 1}, now)
	assert.False(t, out.Passed)
	assert.Equal(t, 2, out.Profile.Level)
	require.Len(t, out.Profile.HighScores, 1)
	assert.Equal(t, model.ScoreRecord{Level: 2, WPM: 29, Accuracy: 93, Timestamp: now, AbbreviationsUsed: 1}, out.Profile.HighScores[0])
	assert.Nil(t, out.NewlyUnlocked)
	assert.Nil(t, out.Announced)
	assert.Equal(t, model.LeaderboardEntry{Username: "ada", Level: 2, WPM: 29, Accuracy: 93, Timestamp: now, AbbreviationsUsed: 1}, out.Entry)
	assert.Empty(t, p.HighScores, "input profile must not be modified")
}

func TestResolvePassUnlocksRewardWithDisplayLag(t *testing.T) {
	r, c := setup(t)
	p := model.NewProfile("ada")
	lvl := level(t, c, 1)

	out := r.Resolve(p, lvl, session.Result{WPM: 20, Accuracy: 100}, now)
	require.True(t, out.Passed)
	assert.Equal(t, 2, out.Profile.Level)

	require.NotNil(t, out.NewlyUnlocked)
	assert.Equal(t, "abbr1", out.NewlyUnlocked.ID)
	require.NotNil(t, out.Profile.LastUnlockedAbbreviation)
	assert.Equal(t, "abbr1", out.Profile.LastUnlockedAbbreviation.ID)
	require.NotNil(t, out.Announced)
	assert.Equal(t, "abbr2", out.Announced.ID, "announcement shows the next level's reward")

	assert.True(t, out.Profile.HasAbbreviation("abbr1"))
	assert.True(t, out.Profile.HasAbbreviation("abbr2"), "tier invariant for the new level")
}

func TestResolvePassWithRewardOwnedUsesTierSync(t *testing.T) {
	r, c := setup(t)
	p := syncedProfile(t, c, 1)
	lvl := level(t, c, 1)

	out := r.Resolve(p, lvl, session.Result{WPM: 45, Accuracy: 98}, now)
	require.True(t, out.Passed)
	assert.Nil(t, out.NewlyUnlocked)
	require.Len(t, out.Synced, 1)
	assert.Equal(t, "abbr2", out.Synced[0].ID)
	assert.True(t, out.Profile.HasAbbreviation("abbr2"))
	assert.Nil(t, out.Profile.LastUnlockedAbbreviation, "tier grants leave the last unlock alone")
	assert.Nil(t, out.Announced)
}

func TestResolveTierSyncKeepsPreviousLastUnlocked(t *testing.T) {
	r, c := setup(t)
	p := syncedProfile(t, c, 3)
	prev, ok := c.AbbreviationByID("abbr1")
	require.True(t, ok)
	p.LastUnlockedAbbreviation = &prev

	out := r.Resolve(p, level(t, c, 3), session.Result{WPM: 60, Accuracy: 97}, now)
	require.True(t, out.Passed)
	assert.Nil(t, out.NewlyUnlocked)
	require.NotNil(t, out.Profile.LastUnlockedAbbreviation)
	assert.Equal(t, "abbr1", out.Profile.LastUnlockedAbbreviation.ID)
	assert.Nil(t, out.Announced)
}

func TestResolveReplayingOldLevelChangesNothingButScores(t *testing.T) {
	r, c := setup(t)
	p := syncedProfile(t, c, 5)
	lvl := level(t, c, 2)

	out := r.Resolve(p, lvl, session.Result{WPM: 90, Accuracy: 99}, now)
	require.True(t, out.Passed)
	assert.Equal(t, 5, out.Profile.Level)
	assert.Nil(t, out.NewlyUnlocked)
	assert.Empty(t, out.Synced)
	assert.Nil(t, out.Announced)
	assert.Len(t, out.Profile.UnlockedAbbreviations, 5)
}

func TestResolveLastLevelHasNoAnnouncement(t *testing.T) {
	r, c := setup(t)
	p := syncedProfile(t, c, 9)
	lvl := level(t, c, 10)

	out := r.Resolve(p, lvl, session.Result{WPM: 80, Accuracy: 99}, now)
	require.True(t, out.Passed)
	require.NotNil(t, out.NewlyUnlocked)
	assert.Equal(t, "abbr10", out.NewlyUnlocked.ID)
	assert.Nil(t, out.Announced)
	assert.Equal(t, 11, out.Profile.Level)
}

func TestLevelNeverDecreases(t *testing.T) {
	r, c := setup(t)
	rnd := rand.New(rand.NewSource(7))
	p := syncedProfile(t, c, 1)

	prev := p.Level
	for i := 0; i < 200; i++ {
		lvl := level(t, c, 1+rnd.Intn(c.MaxLevel()))
		res := session.Result{WPM: rnd.Intn(120), Accuracy: rnd.Intn(101)}
		p = r.Resolve(p, lvl, res, now.Add(time.Duration(i)*time.Minute)).Profile
		require.GreaterOrEqual(t, p.Level, prev)
		require.LessOrEqual(t, len(p.HighScores), model.MaxHighScores)
		for _, a := range c.AbbreviationsUpToTier(p.Level) {
			require.True(t, p.HasAbbreviation(a.ID))
		}
		prev = p.Level
	}
}
