package game

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typex/internal/catalog"
	"github.com/verte-zerg/typex/internal/guard"
	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/unlock"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct {
	profiles []model.UserProfile
	entries  []model.LeaderboardEntry
}

func (r *recorder) Commit(p model.UserProfile, e model.LeaderboardEntry) {
	r.profiles = append(r.profiles, p)
	r.entries = append(r.entries, e)
}

func newController(t *testing.T, p model.UserProfile, opts ...Option) (*Controller, *recorder, *fakeClock) {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	p, _ = unlock.New(c).Sync(p)
	rec := &recorder{}
	clock := &fakeClock{t: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(c, p, rec, opts...), rec, clock
}

// play types one rune per target rune, spreading them over elapsed.
func play(ctl *Controller, clock *fakeClock, elapsed time.Duration) {
	n := len(ctl.Session().Target())
	ctl.Press('x')
	clock.Advance(elapsed)
	for i := 1; i < n; i++ {
		ctl.Press('x')
	}
}

func TestEnterUnknownAndLockedLevels(t *testing.T) {
	ctl, _, _ := newController(t, model.NewProfile("ada"))
	assert.ErrorIs(t, ctl.Enter(99), ErrLevelNotFound)
	assert.ErrorIs(t, ctl.Enter(3), ErrLevelLocked)
	assert.Equal(t, PhaseIdle, ctl.Phase())
	assert.ErrorIs(t, ctl.Restart(), ErrNoSession)
	assert.False(t, ctl.Press('a'))

	require.NoError(t, ctl.Enter(1))
	assert.Equal(t, PhaseReady, ctl.Phase())
	assert.Equal(t, 1, ctl.Level().ID)
}

func TestPassCommitsAndAdvances(t *testing.T) {
	ctl, rec, clock := newController(t, model.NewProfile("ada"))
	require.NoError(t, ctl.Enter(1))
	require.Nil(t, ctl.LastUnlocked())
	lvl, _ := ctl.catalog.LevelByID(1)
	assert.Equal(t, lvl.BaseText, string(ctl.Session().Target()), "no augmentation without an unlock")

	play(ctl, clock, time.Minute)
	require.Equal(t, PhaseFinished, ctl.Phase())
	require.Len(t, rec.entries, 1)
	assert.Equal(t, 27, rec.entries[0].WPM)
	assert.True(t, ctl.Committed())

	out, ok := ctl.Outcome()
	require.True(t, ok)
	assert.True(t, out.Passed)
	assert.Equal(t, 2, ctl.Profile().Level)
	assert.True(t, ctl.Accessible(2))
	require.NotNil(t, ctl.LastUnlocked())

	require.NoError(t, ctl.NextLevel())
	assert.Equal(t, 2, ctl.Level().ID)
	assert.Equal(t, PhaseReady, ctl.Phase())
	target := string(ctl.Session().Target())
	assert.True(t, strings.HasSuffix(target, "You need to type email@example.com in this text. Try using the ;em abbreviation to type it more quickly."))
}

func TestFailRecordsScoreWithoutAdvancing(t *testing.T) {
	ctl, rec, clock := newController(t, model.NewProfile("ada"))
	require.NoError(t, ctl.Enter(1))
	play(ctl, clock, 2*time.Minute)

	out, ok := ctl.Outcome()
	require.True(t, ok)
	assert.False(t, out.Passed)
	require.Len(t, rec.entries, 1)
	p := ctl.Profile()
	assert.Equal(t, 1, p.Level)
	assert.Len(t, p.HighScores, 1)
	assert.Nil(t, ctl.LastUnlocked())
	assert.False(t, ctl.Accessible(3))
	require.NoError(t, ctl.NextLevel(), "a score on level 1 opens level 2")
	assert.Equal(t, 2, ctl.Level().ID)
}

func TestImplausibleResultIsHeld(t *testing.T) {
	ctl, rec, clock := newController(t, model.NewProfile("ada"))
	require.NoError(t, ctl.Enter(1))
	play(ctl, clock, time.Second)

	require.Equal(t, PhaseVerifying, ctl.Phase())
	assert.Empty(t, rec.entries)
	assert.False(t, ctl.Committed())
	assert.Equal(t, 1, ctl.Profile().Level, "held results do not advance the profile")

	assert.ErrorIs(t, ctl.Verify("I didn't cheat"), guard.ErrVerificationFailed)
	assert.Equal(t, PhaseVerifying, ctl.Phase())

	require.NoError(t, ctl.Verify(" I did not cheat "))
	assert.Equal(t, PhaseFinished, ctl.Phase())
	require.Len(t, rec.entries, 1)
	assert.Equal(t, 2, ctl.Profile().Level)
	assert.True(t, ctl.Committed())
}

func TestCustomGateThreshold(t *testing.T) {
	ctl, rec, clock := newController(t, model.NewProfile("ada"), WithGate(guard.WithThreshold(20)))
	require.NoError(t, ctl.Enter(1))
	play(ctl, clock, time.Minute)
	assert.Equal(t, PhaseVerifying, ctl.Phase())
	assert.Empty(t, rec.entries)
}

func TestRestartDropsHeldResult(t *testing.T) {
	ctl, rec, clock := newController(t, model.NewProfile("ada"))
	require.NoError(t, ctl.Enter(1))
	play(ctl, clock, time.Second)
	require.Equal(t, PhaseVerifying, ctl.Phase())

	require.NoError(t, ctl.Restart())
	assert.Equal(t, PhaseReady, ctl.Phase())
	assert.Empty(t, rec.entries)
	_, ok := ctl.Outcome()
	assert.False(t, ok)
	assert.ErrorIs(t, ctl.Verify("I did not cheat"), guard.ErrNothingPending)

	ctl.Leave()
	assert.Equal(t, PhaseIdle, ctl.Phase())
	assert.Nil(t, ctl.Session())
}

func TestInsertStartsSession(t *testing.T) {
	ctl, _, _ := newController(t, model.NewProfile("ada"))
	require.NoError(t, ctl.Enter(1))
	require.True(t, ctl.Insert("abbr1"))
	assert.Equal(t, PhasePlaying, ctl.Phase())
	assert.Equal(t, "email@example.com", string(ctl.Session().Typed()))
	assert.Equal(t, 1, ctl.Session().AbbreviationsUsed())
	assert.False(t, ctl.Insert("abbr5"), "locked abbreviation")
	require.True(t, ctl.Backspace())
	assert.Equal(t, "email@example.co", string(ctl.Session().Typed()))
}

func TestLastUnlockedSurvivesRestart(t *testing.T) {
	p := model.NewProfile("ada")
	p.LastUnlockedAbbreviation = &model.Abbreviation{ID: "abbr1", Trigger: ";em", Expansion: "email@example.com", UnlockTier: 1}
	ctl, _, _ := newController(t, p)

	require.NoError(t, ctl.Enter(1))
	want := " You need to type Practice makes perfect. in this text."
	assert.True(t, strings.HasSuffix(string(ctl.Session().Target()), want))

	require.NoError(t, ctl.Restart())
	assert.True(t, strings.HasSuffix(string(ctl.Session().Target()), want))
}

func TestAccessibilityAndLevels(t *testing.T) {
	p := model.NewProfile("ada")
	p.Level = 2
	p.HighScores = []model.ScoreRecord{
		{Level: 4, WPM: 30},
		{Level: 1, WPM: 25},
	}
	ctl, _, _ := newController(t, p)

	assert.True(t, ctl.Accessible(1))
	assert.True(t, ctl.Accessible(2))
	assert.True(t, ctl.Accessible(5), "score on the previous level")
	assert.False(t, ctl.Accessible(6))
	assert.False(t, ctl.Accessible(0))

	levels := ctl.Levels()
	require.Len(t, levels, 10)
	assert.True(t, levels[0].Completed)
	assert.Equal(t, 25, levels[0].BestWPM)
	assert.False(t, levels[1].Completed)
	assert.True(t, levels[3].Completed, "any score counts")
	assert.Equal(t, 30, levels[3].BestWPM)
	assert.True(t, levels[4].Accessible)
	assert.False(t, levels[5].Accessible)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "verifying", PhaseVerifying.String())
	assert.Equal(t, "idle", PhaseIdle.String())
}
