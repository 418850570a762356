package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typex/internal/model"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var (
	email = model.Abbreviation{ID: "abbr1", Trigger: ";em", Expansion: "email@example.com", UnlockTier: 1}
	addr  = model.Abbreviation{ID: "abbr2", Trigger: ";addr", Expansion: "123 Main St", UnlockTier: 2}
)

func newSession(text string, available ...model.Abbreviation) (*Session, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	lvl := model.Level{ID: 2, Name: "Test", BaseText: text, RequiredWPM: 10}
	return New(lvl, available, WithClock(clock.Now), WithID("s-1")), clock
}

func typeString(s *Session, text string) {
	for _, r := range text {
		s.Press(r)
	}
}

func TestFirstKeystrokeStartsSession(t *testing.T) {
	s, _ := newSession("hello")
	require.Equal(t, Ready, s.State())
	assert.True(t, s.StartedAt().IsZero())

	require.True(t, s.Press('h'))
	assert.Equal(t, Playing, s.State())
	assert.False(t, s.StartedAt().IsZero())
	assert.Equal(t, "h", string(s.Typed()))
	assert.Equal(t, 0, s.Errors())
}

func TestApplyInputIgnoredOutsidePlaying(t *testing.T) {
	s, _ := newSession("ab")
	assert.False(t, s.ApplyInput("a"))
	assert.Equal(t, Ready, s.State())
	assert.Empty(t, s.Typed())

	s.Start()
	require.True(t, s.ApplyInput("ab"))
	require.Equal(t, Finished, s.State())
	assert.False(t, s.ApplyInput("abc"))
	assert.Equal(t, "ab", string(s.Typed()))
}

func TestCountErrors(t *testing.T) {
	assert.Equal(t, 1, CountErrors([]rune("abc"), []rune("abd")))
	assert.Equal(t, 2, CountErrors([]rune("abcd"), []rune("ab")))
	assert.Equal(t, 0, CountErrors(nil, []rune("ab")))
	// An inserted rune shifts everything after it.
	assert.Equal(t, 3, CountErrors([]rune("axbc"), []rune("abcd")))
}

func TestErrorsRecountedEachDelta(t *testing.T) {
	s, _ := newSession("abcdef")
	s.Start()
	s.ApplyInput("abx")
	assert.Equal(t, 1, s.Errors())
	s.Backspace()
	assert.Equal(t, 0, s.Errors())
	s.ApplyInput("abc")
	assert.Equal(t, 0, s.Errors())
}

func TestCompletionByLengthKeepsTrailingErrors(t *testing.T) {
	s, clock := newSession("abd")
	s.Start()
	clock.Advance(6 * time.Second)
	s.ApplyInput("abc")

	require.Equal(t, Finished, s.State())
	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 3, res.Characters)
	assert.Equal(t, 67, res.Accuracy)
	assert.Equal(t, 6, res.WPM)
	assert.Equal(t, 2, res.LevelID)
	assert.Equal(t, "s-1", res.SessionID)
	assert.Equal(t, 6*time.Second, res.FinishedAt.Sub(res.StartedAt))
}

func TestWPMFromElapsedTime(t *testing.T) {
	text := strings.Repeat("a", 250)
	s, clock := newSession(text)
	s.Start()
	clock.Advance(time.Minute)
	s.ApplyInput(text)

	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 50, res.WPM)
	assert.Equal(t, 100, res.Accuracy)
}

func TestZeroElapsedDoesNotDivideByZero(t *testing.T) {
	s, _ := newSession("ab")
	s.Start()
	s.ApplyInput("ab")
	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 0, res.WPM)
}

func TestTriggerExpansion(t *testing.T) {
	target := "Mail email@example.com now"
	s, _ := newSession(target, email, addr)
	typeString(s, "Mail ;em")

	assert.Equal(t, "Mail email@example.com", string(s.Typed()))
	assert.Equal(t, 1, s.AbbreviationsUsed())
	assert.Equal(t, 0, s.Errors())

	typeString(s, " now")
	assert.Equal(t, Finished, s.State())
	res, _ := s.Result()
	assert.Equal(t, 1, res.AbbreviationsUsed)
	assert.Equal(t, 0, res.Errors)
}

func TestTriggerExpansionAtStart(t *testing.T) {
	s, _ := newSession("email@example.com and more", email)
	typeString(s, ";em")
	assert.Equal(t, "email@example.com", string(s.Typed()))
	assert.Equal(t, 1, s.AbbreviationsUsed())
}

func TestTriggerExpansionAfterQuote(t *testing.T) {
	s, _ := newSession(`Write "email@example.com" here`, email)
	typeString(s, `Write ";em`)
	assert.Equal(t, `Write "email@example.com`, string(s.Typed()))
	assert.Equal(t, 1, s.AbbreviationsUsed())
}

func TestTriggerAfterNewline(t *testing.T) {
	s, _ := newSession("x\nemail@example.com tail", email)
	s.Start()
	s.ApplyInput("x\n;em")
	assert.Equal(t, "x\nemail@example.com", string(s.Typed()))
}

func TestTriggerMustMatchWholeToken(t *testing.T) {
	s, _ := newSession("a long target text for testing", email)
	s.Start()
	s.ApplyInput("x;em")
	assert.Equal(t, "x;em", string(s.Typed()))
	assert.Equal(t, 0, s.AbbreviationsUsed())

	s.ApplyInput("a;em")
	assert.Equal(t, 0, s.AbbreviationsUsed())
}

func TestOnlyOneExpansionPerDelta(t *testing.T) {
	s, _ := newSession(strings.Repeat("z", 200), email, addr)
	s.Start()
	s.ApplyInput(";addr ;em")
	assert.Equal(t, ";addr email@example.com", string(s.Typed()))
	assert.Equal(t, 1, s.AbbreviationsUsed())
}

func TestLockedTriggersDoNotExpand(t *testing.T) {
	s, _ := newSession(strings.Repeat("z", 50), email)
	typeString(s, ";addr")
	assert.Equal(t, ";addr", string(s.Typed()))
	assert.Equal(t, 0, s.AbbreviationsUsed())
}

func TestInsertAbbreviation(t *testing.T) {
	s, _ := newSession("to: email@example.com ok", email)
	assert.False(t, s.InsertAbbreviation("abbr1", 0), "insert requires Playing")

	typeString(s, "to: ")
	require.True(t, s.InsertAbbreviation("abbr1", 99))
	assert.Equal(t, "to: email@example.com", string(s.Typed()))
	assert.Equal(t, 1, s.AbbreviationsUsed())
	assert.Equal(t, 0, s.Errors())

	assert.False(t, s.InsertAbbreviation("abbr2", 0), "locked abbreviation")
}

func TestInsertAbbreviationCanFinish(t *testing.T) {
	s, _ := newSession("email@example.com", email)
	s.Start()
	require.True(t, s.InsertAbbreviation("abbr1", 0))
	assert.Equal(t, Finished, s.State())
}

func TestRestartClearsTransientState(t *testing.T) {
	s, _ := newSession("email@example.com!", email)
	typeString(s, ";em")
	s.Press('?')
	require.Equal(t, Finished, s.State())

	s.Restart()
	assert.Equal(t, Ready, s.State())
	assert.Empty(t, s.Typed())
	assert.Equal(t, 0, s.Errors())
	assert.Equal(t, 0, s.AbbreviationsUsed())
	assert.True(t, s.StartedAt().IsZero())
	_, ok := s.Result()
	assert.False(t, ok)
}

func TestProgressAndLiveAccuracy(t *testing.T) {
	s, _ := newSession("abcd")
	typeString(s, "ax")
	assert.Equal(t, 50, s.Progress())
	assert.Equal(t, 50, s.LiveAccuracy())
}

func TestNewAssignsRandomID(t *testing.T) {
	a := New(model.Level{ID: 1, BaseText: "x"}, nil)
	b := New(model.Level{ID: 1, BaseText: "x"}, nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
