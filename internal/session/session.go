// Package session implements the typing-session state machine: input
// deltas, inline abbreviation expansion, error counting and completion.
package session

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/stats"
)

// State is the session lifecycle phase.
type State int

const (
	// Ready waits for the first keystroke.
	Ready State = iota
	// Playing accepts input deltas.
	Playing
	// Finished is terminal for the attempt until Restart.
	Finished
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Result holds the metrics of a finished session.
type Result struct {
	SessionID         string
	LevelID           int
	Characters        int
	Errors            int
	AbbreviationsUsed int
	WPM               int
	Accuracy          int
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithID sets the session id instead of a random one.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// Session is one attempt at a level. It is not safe for concurrent use.
type Session struct {
	id        string
	level     model.Level
	target    []rune
	available []model.Abbreviation
	now       func() time.Time

	state             State
	typed             []rune
	errors            int
	abbreviationsUsed int
	startedAt         time.Time
	result            Result
}

// New creates a Ready session for level. available lists the abbreviations
// whose triggers expand inline.
func New(level model.Level, available []model.Abbreviation, opts ...Option) *Session {
	s := &Session{
		level:     level,
		target:    []rune(level.BaseText),
		available: append([]model.Abbreviation(nil), available...),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	return s
}

// Start moves a Ready session to Playing and records the start time.
func (s *Session) Start() bool {
	if s.state != Ready {
		return false
	}
	s.state = Playing
	s.startedAt = s.now()
	s.typed = nil
	s.errors = 0
	return true
}

// Press handles a single keystroke. The first keystroke starts the session.
func (s *Session) Press(r rune) bool {
	if s.state == Ready {
		s.Start()
	}
	if s.state != Playing {
		return false
	}
	return s.ApplyInput(string(s.typed) + string(r))
}

// Backspace removes the last typed rune.
func (s *Session) Backspace() bool {
	if s.state != Playing || len(s.typed) == 0 {
		return false
	}
	return s.ApplyInput(string(s.typed[:len(s.typed)-1]))
}

// ApplyInput replaces the typed text with newTyped, expands a trailing
// trigger, recounts errors and finishes the session once the typed text is
// at least as long as the target. Outside Playing it is a no-op.
func (s *Session) ApplyInput(newTyped string) bool {
	if s.state != Playing {
		return false
	}
	if expanded, ok := s.expandTrailing(newTyped); ok {
		newTyped = expanded
		s.abbreviationsUsed++
	}
	s.typed = []rune(newTyped)
	s.settle()
	return true
}

// InsertAbbreviation inserts an available abbreviation's expansion at rune
// offset at, as if the player picked it from the list.
func (s *Session) InsertAbbreviation(id string, at int) bool {
	if s.state != Playing {
		return false
	}
	abbr, ok := s.lookup(id)
	if !ok {
		return false
	}
	if at < 0 {
		at = 0
	}
	if at > len(s.typed) {
		at = len(s.typed)
	}
	next := make([]rune, 0, len(s.typed)+len(abbr.Expansion))
	next = append(next, s.typed[:at]...)
	next = append(next, []rune(abbr.Expansion)...)
	next = append(next, s.typed[at:]...)
	s.typed = next
	s.abbreviationsUsed++
	s.settle()
	return true
}

// Restart returns the session to Ready and clears all transient fields.
func (s *Session) Restart() {
	s.state = Ready
	s.typed = nil
	s.errors = 0
	s.abbreviationsUsed = 0
	s.startedAt = time.Time{}
	s.result = Result{}
}

func (s *Session) settle() {
	s.errors = CountErrors(s.typed, s.target)
	if len(s.typed) >= len(s.target) {
		s.finish()
	}
}

func (s *Session) finish() {
	finishedAt := s.now()
	wpm, acc := stats.SessionMetrics(len(s.typed), s.errors, finishedAt.Sub(s.startedAt))
	s.state = Finished
	s.result = Result{
		SessionID:         s.id,
		LevelID:           s.level.ID,
		Characters:        len(s.typed),
		Errors:            s.errors,
		AbbreviationsUsed: s.abbreviationsUsed,
		WPM:               wpm,
		Accuracy:          acc,
		StartedAt:         s.startedAt,
		FinishedAt:        finishedAt,
	}
}

// expandTrailing replaces the last whitespace-delimited token when it is a
// trigger, optionally preceded by an opening double quote.
func (s *Session) expandTrailing(text string) (string, bool) {
	cut := 0
	if i := strings.LastIndexFunc(text, unicode.IsSpace); i >= 0 {
		_, size := utf8.DecodeRuneInString(text[i:])
		cut = i + size
	}
	prefix, token := text[:cut], text[cut:]
	if token == "" {
		return text, false
	}
	for _, a := range s.available {
		switch token {
		case a.Trigger:
			return prefix + a.Expansion, true
		case `"` + a.Trigger:
			return prefix + `"` + a.Expansion, true
		}
	}
	return text, false
}

func (s *Session) lookup(id string) (model.Abbreviation, bool) {
	for _, a := range s.available {
		if a.ID == id {
			return a, true
		}
	}
	return model.Abbreviation{}, false
}

// CountErrors counts positions where typed differs from target by prefix
// alignment; every rune past the end of target is an error.
func CountErrors(typed, target []rune) int {
	errors := 0
	for i, r := range typed {
		if i >= len(target) || r != target[i] {
			errors++
		}
	}
	return errors
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle phase.
func (s *Session) State() State { return s.state }

// Level returns the (possibly augmented) level being played.
func (s *Session) Level() model.Level { return s.level }

// Target returns the target text as runes.
func (s *Session) Target() []rune { return s.target }

// Typed returns the typed text as runes.
func (s *Session) Typed() []rune { return s.typed }

// Errors returns the current error count.
func (s *Session) Errors() int { return s.errors }

// AbbreviationsUsed returns how many expansions fired this attempt.
func (s *Session) AbbreviationsUsed() int { return s.abbreviationsUsed }

// Available returns the abbreviations usable in this session.
func (s *Session) Available() []model.Abbreviation { return s.available }

// StartedAt returns the start time, zero while Ready.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Progress returns the typed share of the target in percent, capped at 100.
func (s *Session) Progress() int {
	if len(s.target) == 0 {
		return 100
	}
	p := len(s.typed) * 100 / len(s.target)
	if p > 100 {
		return 100
	}
	return p
}

// LiveAccuracy returns the accuracy shown while typing.
func (s *Session) LiveAccuracy() int {
	return stats.LiveAccuracy(len(s.typed), s.errors)
}

// Result returns the metrics once the session is Finished.
func (s *Session) Result() (Result, bool) {
	if s.state != Finished {
		return Result{}, false
	}
	return s.result, true
}
