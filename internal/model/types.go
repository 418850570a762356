// Package model defines shared data structures.
package model

import (
	"fmt"
	"regexp"
	"time"
)

// MaxHighScores is the number of scores a profile keeps.
const MaxHighScores = 10

// MaxLeaderboardEntries caps leaderboard queries and local leaderboards.
const MaxLeaderboardEntries = 100

// Abbreviation is an immutable catalog entry that expands inline while typing.
type Abbreviation struct {
	ID          string `json:"id" toml:"id" yaml:"id"`
	Trigger     string `json:"abbreviation" toml:"trigger" yaml:"trigger"`
	Expansion   string `json:"expansion" toml:"expansion" yaml:"expansion"`
	Description string `json:"description" toml:"description" yaml:"description"`
	UnlockTier  int    `json:"unlockedAt" toml:"tier" yaml:"tier"`
}

// Level is an immutable catalog entry describing one stage of the game.
type Level struct {
	ID          int    `toml:"id" yaml:"id"`
	Name        string `toml:"name" yaml:"name"`
	Description string `toml:"description" yaml:"description"`
	BaseText    string `toml:"text" yaml:"text"`
	RequiredWPM int    `toml:"required-wpm" yaml:"required-wpm"`
	// UnlockableAbbreviationID is granted when the level is passed.
	UnlockableAbbreviationID string `toml:"unlock" yaml:"unlock"`
	// PracticeAbbreviationID selects the expansion embedded when the level text is augmented.
	PracticeAbbreviationID string `toml:"practice" yaml:"practice"`
}

// ScoreRecord captures one completed session in a profile.
type ScoreRecord struct {
	Level             int       `json:"level"`
	WPM               int       `json:"wpm"`
	Accuracy          int       `json:"accuracy"`
	Timestamp         time.Time `json:"date"`
	AbbreviationsUsed int       `json:"abbreviationsUsed"`
}

// UserProfile is the persisted progression state of a player.
type UserProfile struct {
	Username                 string         `json:"username"`
	Level                    int            `json:"level"`
	HighScores               []ScoreRecord  `json:"highScores"`
	UnlockedAbbreviations    []Abbreviation `json:"unlockedAbbreviations"`
	LastUnlockedAbbreviation *Abbreviation  `json:"lastUnlockedAbbreviation"`
}

// LeaderboardEntry is a committed result on the global leaderboard.
type LeaderboardEntry struct {
	Username          string    `json:"username"`
	Level             int       `json:"level"`
	WPM               int       `json:"wpm"`
	Accuracy          int       `json:"accuracy"`
	Timestamp         time.Time `json:"date"`
	AbbreviationsUsed int       `json:"abbreviationsUsed"`
}

// Config defines play settings resolved from flags and the config file.
type Config struct {
	Username       string
	StartLevel     int
	CatalogPath    string
	ServerURL      string
	DBPath         string
	CheatThreshold int
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateUsername reports whether name is usable as a profile identity.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username is required")
	}
	if !usernamePattern.MatchString(name) {
		return fmt.Errorf("username can only contain letters, numbers, and underscores")
	}
	return nil
}

// NewProfile returns a fresh level-1 profile.
func NewProfile(username string) UserProfile {
	return UserProfile{
		Username:              username,
		Level:                 1,
		HighScores:            []ScoreRecord{},
		UnlockedAbbreviations: []Abbreviation{},
	}
}

// HasAbbreviation reports whether the profile has unlocked the abbreviation id.
func (p UserProfile) HasAbbreviation(id string) bool {
	for _, a := range p.UnlockedAbbreviations {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.HighScores = append([]ScoreRecord{}, p.HighScores...)
	out.UnlockedAbbreviations = append([]Abbreviation{}, p.UnlockedAbbreviations...)
	if p.LastUnlockedAbbreviation != nil {
		last := *p.LastUnlockedAbbreviation
		out.LastUnlockedAbbreviation = &last
	}
	return out
}

// EntryFromScore builds the leaderboard entry for a score record.
func EntryFromScore(username string, rec ScoreRecord) LeaderboardEntry {
	return LeaderboardEntry{
		Username:          username,
		Level:             rec.Level,
		WPM:               rec.WPM,
		Accuracy:          rec.Accuracy,
		Timestamp:         rec.Timestamp,
		AbbreviationsUsed: rec.AbbreviationsUsed,
	}
}
