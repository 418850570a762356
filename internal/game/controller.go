// Package game drives one player's play-through: entering levels, feeding
// input to the session and committing finished results.
package game

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/verte-zerg/typex/internal/guard"
	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/progress"
	"github.com/verte-zerg/typex/internal/session"
	"github.com/verte-zerg/typex/internal/stats"
	"github.com/verte-zerg/typex/internal/unlock"
)

var (
	// ErrLevelNotFound is returned for ids missing from the catalog.
	ErrLevelNotFound = errors.New("level not found")
	// ErrLevelLocked is returned for levels the player cannot reach yet.
	ErrLevelLocked = errors.New("level locked")
	// ErrNoSession is returned when an action needs an entered level.
	ErrNoSession = errors.New("no level entered")
)

// Phase is what the player is currently looking at.
type Phase int

const (
	// PhaseIdle means no level is entered.
	PhaseIdle Phase = iota
	// PhaseReady waits for the first keystroke.
	PhaseReady
	// PhasePlaying accepts input.
	PhasePlaying
	// PhaseFinished shows results.
	PhaseFinished
	// PhaseVerifying holds an implausible result until confirmed.
	PhaseVerifying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReady:
		return "ready"
	case PhasePlaying:
		return "playing"
	case PhaseFinished:
		return "finished"
	case PhaseVerifying:
		return "verifying"
	default:
		return "unknown"
	}
}

// Catalog is the content the controller reads.
type Catalog interface {
	progress.Catalog
	Levels() []model.Level
}

// LevelStatus describes one level on the level list.
type LevelStatus struct {
	Level      model.Level
	Accessible bool
	// Completed means the level has a recorded score, passed or not.
	Completed bool
	BestWPM   int
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the wall clock for sessions and score timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGate configures the anti-cheat gate.
func WithGate(opts ...guard.Option) Option {
	return func(c *Controller) {
		c.gateOpts = append(c.gateOpts, opts...)
	}
}

// Controller is single-threaded; the UI loop owns it.
type Controller struct {
	catalog   Catalog
	committer guard.Committer
	resolver  *progress.Resolver
	unlocks   *unlock.Resolver
	gate      *guard.Gate
	gateOpts  []guard.Option
	now       func() time.Time
	logger    *slog.Logger

	profile      model.UserProfile
	lastUnlocked *model.Abbreviation
	level        model.Level
	session      *session.Session
	outcome      *progress.Outcome
	committed    bool
}

// New returns a controller for profile. Results are persisted through
// committer once they pass the gate.
func New(c Catalog, profile model.UserProfile, committer guard.Committer, opts ...Option) *Controller {
	ctl := &Controller{
		catalog:   c,
		committer: committer,
		resolver:  progress.NewResolver(c),
		unlocks:   unlock.New(c),
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		profile:   profile.Clone(),
	}
	for _, opt := range opts {
		opt(ctl)
	}
	if profile.LastUnlockedAbbreviation != nil {
		last := *profile.LastUnlockedAbbreviation
		ctl.lastUnlocked = &last
	}
	ctl.gate = guard.New(guard.CommitFunc(ctl.commit), ctl.gateOpts...)
	return ctl
}

func (c *Controller) commit(p model.UserProfile, e model.LeaderboardEntry) {
	c.profile = p.Clone()
	if p.LastUnlockedAbbreviation != nil {
		last := *p.LastUnlockedAbbreviation
		c.lastUnlocked = &last
	}
	c.committed = true
	c.logger.Info("result_committed", "username", e.Username, "level", e.Level, "wpm", e.WPM, "accuracy", e.Accuracy)
	c.committer.Commit(p, e)
}

// Enter starts a fresh session on levelID. Any held result is dropped.
func (c *Controller) Enter(levelID int) error {
	level, ok := c.catalog.LevelByID(levelID)
	if !ok {
		return fmt.Errorf("level %d: %w", levelID, ErrLevelNotFound)
	}
	if !c.Accessible(levelID) {
		return fmt.Errorf("level %d: %w", levelID, ErrLevelLocked)
	}
	c.gate.Discard()
	c.level = level
	c.outcome = nil
	c.committed = false
	played := c.unlocks.AugmentLevelText(level, c.lastUnlocked)
	c.session = session.New(played, c.profile.UnlockedAbbreviations, session.WithClock(c.now))
	c.logger.Debug("level_entered", "level", levelID, "session", c.session.ID())
	return nil
}

// Leave drops the current session and any held result.
func (c *Controller) Leave() {
	c.gate.Discard()
	c.session = nil
	c.outcome = nil
	c.committed = false
}

// Press feeds one keystroke.
func (c *Controller) Press(r rune) bool {
	if c.session == nil {
		return false
	}
	changed := c.session.Press(r)
	c.afterInput()
	return changed
}

// Backspace removes the last typed rune.
func (c *Controller) Backspace() bool {
	if c.session == nil {
		return false
	}
	changed := c.session.Backspace()
	c.afterInput()
	return changed
}

// Insert inserts an unlocked abbreviation's expansion at the end of the
// typed text. The first insertion starts the session.
func (c *Controller) Insert(abbrID string) bool {
	if c.session == nil {
		return false
	}
	if c.session.State() == session.Ready {
		c.session.Start()
	}
	changed := c.session.InsertAbbreviation(abbrID, len(c.session.Typed()))
	c.afterInput()
	return changed
}

// Restart resets the current level. Any held result is dropped.
func (c *Controller) Restart() error {
	if c.session == nil {
		return ErrNoSession
	}
	return c.Enter(c.level.ID)
}

// NextLevel enters the level after the current one.
func (c *Controller) NextLevel() error {
	if c.session == nil {
		return ErrNoSession
	}
	return c.Enter(c.level.ID + 1)
}

// Verify releases a held result when phrase matches.
func (c *Controller) Verify(phrase string) error {
	if err := c.gate.Verify(phrase); err != nil {
		if errors.Is(err, guard.ErrVerificationFailed) {
			c.logger.Warn("verification_failed", "username", c.profile.Username)
		}
		return err
	}
	return nil
}

func (c *Controller) afterInput() {
	if c.outcome != nil || c.session.State() != session.Finished {
		return
	}
	res, ok := c.session.Result()
	if !ok {
		return
	}
	out := c.resolver.Resolve(c.profile, c.level, res, c.now())
	c.outcome = &out
	c.logger.Info("session_finished",
		"session", res.SessionID, "level", res.LevelID, "wpm", res.WPM,
		"accuracy", res.Accuracy, "passed", out.Passed)
	if !c.gate.Submit(out.Profile, out.Entry) {
		c.logger.Warn("result_held", "username", c.profile.Username, "wpm", res.WPM, "threshold", c.gate.Threshold())
	}
}

// Accessible reports whether levelID can be entered. A level is open when
// the profile has reached it, or a score exists for the level before it or
// any later one.
func (c *Controller) Accessible(levelID int) bool {
	if _, ok := c.catalog.LevelByID(levelID); !ok {
		return false
	}
	if c.profile.Level >= levelID {
		return true
	}
	for _, rec := range c.profile.HighScores {
		if rec.Level >= levelID-1 {
			return true
		}
	}
	return false
}

// Levels lists every catalog level with its status for this player.
func (c *Controller) Levels() []LevelStatus {
	best := stats.BestByLevel(c.profile.HighScores)
	levels := c.catalog.Levels()
	out := make([]LevelStatus, 0, len(levels))
	for _, l := range levels {
		wpm, played := best[l.ID]
		out = append(out, LevelStatus{
			Level:      l,
			Accessible: c.Accessible(l.ID),
			Completed:  played,
			BestWPM:    wpm,
		})
	}
	return out
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	if _, held := c.gate.Pending(); held {
		return PhaseVerifying
	}
	if c.session == nil {
		return PhaseIdle
	}
	switch c.session.State() {
	case session.Playing:
		return PhasePlaying
	case session.Finished:
		return PhaseFinished
	default:
		return PhaseReady
	}
}

// Outcome returns the resolved result of the finished session.
func (c *Controller) Outcome() (progress.Outcome, bool) {
	if c.outcome == nil {
		return progress.Outcome{}, false
	}
	return *c.outcome, true
}

// Committed reports whether the finished session's result was persisted.
func (c *Controller) Committed() bool { return c.committed }

// Profile returns the in-memory profile. It only reflects committed results.
func (c *Controller) Profile() model.UserProfile { return c.profile.Clone() }

// Session returns the active session, or nil.
func (c *Controller) Session() *session.Session { return c.session }

// Level returns the catalog level being played.
func (c *Controller) Level() model.Level { return c.level }

// LastUnlocked returns the abbreviation that enables text augmentation.
func (c *Controller) LastUnlocked() *model.Abbreviation { return c.lastUnlocked }

// Gate exposes the anti-cheat gate.
func (c *Controller) Gate() *guard.Gate { return c.gate }
