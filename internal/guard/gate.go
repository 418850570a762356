// Package guard holds implausibly fast results until the player confirms
// them. It is a deterrent only; nothing is verified server-side.
package guard

import (
	"errors"
	"strings"

	"github.com/verte-zerg/typex/internal/model"
)

const (
	// DefaultThreshold is the highest WPM committed without confirmation.
	DefaultThreshold = 200
	// DefaultPhrase must be typed to release a held result.
	DefaultPhrase = "I did not cheat"
)

var (
	// ErrNothingPending is returned by Verify when no result is held.
	ErrNothingPending = errors.New("no result awaiting verification")
	// ErrVerificationFailed is returned when the phrase does not match.
	ErrVerificationFailed = errors.New("verification phrase does not match")
)

// Committer persists a result.
type Committer interface {
	Commit(profile model.UserProfile, entry model.LeaderboardEntry)
}

// CommitFunc adapts a function to Committer.
type CommitFunc func(model.UserProfile, model.LeaderboardEntry)

// Commit calls f.
func (f CommitFunc) Commit(profile model.UserProfile, entry model.LeaderboardEntry) {
	f(profile, entry)
}

// Held is a result withheld pending verification.
type Held struct {
	Profile model.UserProfile
	Entry   model.LeaderboardEntry
}

// Option configures a Gate.
type Option func(*Gate)

// WithThreshold sets the WPM above which results are held.
func WithThreshold(wpm int) Option {
	return func(g *Gate) {
		if wpm > 0 {
			g.threshold = wpm
		}
	}
}

// WithPhrase sets the confirmation phrase.
func WithPhrase(phrase string) Option {
	return func(g *Gate) {
		if phrase != "" {
			g.phrase = phrase
		}
	}
}

// Gate decides whether a result is committed immediately or held.
type Gate struct {
	committer Committer
	threshold int
	phrase    string
	pending   *Held
}

// New returns a Gate that commits through c.
func New(c Committer, opts ...Option) *Gate {
	g := &Gate{committer: c, threshold: DefaultThreshold, phrase: DefaultPhrase}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Threshold returns the configured WPM limit.
func (g *Gate) Threshold() int { return g.threshold }

// Phrase returns the confirmation phrase.
func (g *Gate) Phrase() string { return g.phrase }

// Submit commits the result and returns true, or holds it and returns false
// when entry.WPM exceeds the threshold. A new submission replaces any held one.
func (g *Gate) Submit(profile model.UserProfile, entry model.LeaderboardEntry) bool {
	if entry.WPM > g.threshold {
		g.pending = &Held{Profile: profile, Entry: entry}
		return false
	}
	g.pending = nil
	g.committer.Commit(profile, entry)
	return true
}

// Verify commits the held result when input matches the phrase exactly
// after trimming surrounding whitespace. Failed attempts keep it held.
func (g *Gate) Verify(input string) error {
	if g.pending == nil {
		return ErrNothingPending
	}
	if strings.TrimSpace(input) != g.phrase {
		return ErrVerificationFailed
	}
	held := *g.pending
	g.pending = nil
	g.committer.Commit(held.Profile, held.Entry)
	return nil
}

// Pending returns the held result, if any.
func (g *Gate) Pending() (Held, bool) {
	if g.pending == nil {
		return Held{}, false
	}
	return *g.pending, true
}

// Discard drops the held result without committing it.
func (g *Gate) Discard() {
	g.pending = nil
}
