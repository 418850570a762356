// Package progress turns a finished session into profile updates and a
// leaderboard entry.
package progress

import (
	"sort"
	"time"

	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/session"
	"github.com/verte-zerg/typex/internal/unlock"
)

// Catalog is the lookup surface the resolver needs.
type Catalog interface {
	unlock.Lookup
	LevelByID(id int) (model.Level, bool)
}

// Outcome is everything a finished session changes. It is not persisted
// here; callers hand it to the anti-cheat gate.
type Outcome struct {
	Profile model.UserProfile
	Entry   model.LeaderboardEntry
	Score   model.ScoreRecord
	Passed  bool
	// NewlyUnlocked is the completed level's reward when the profile lacked it.
	NewlyUnlocked *model.Abbreviation
	// Synced lists abbreviations granted by reaching the new level's tier.
	Synced []model.Abbreviation
	// Announced is what the results screen presents as just unlocked. It is
	// the reward of the following level, one level behind NewlyUnlocked.
	Announced *model.Abbreviation
}

// Resolver decides pass/fail, advancement and unlocks.
type Resolver struct {
	catalog Catalog
	unlock  *unlock.Resolver
}

// NewResolver returns a Resolver backed by c.
func NewResolver(c Catalog) *Resolver {
	return &Resolver{catalog: c, unlock: unlock.New(c)}
}

// Resolve applies a finished session to profile.
func (r *Resolver) Resolve(profile model.UserProfile, level model.Level, res session.Result, now time.Time) Outcome {
	updated := profile.Clone()
	score := model.ScoreRecord{
		Level:             level.ID,
		WPM:               res.WPM,
		Accuracy:          res.Accuracy,
		Timestamp:         now,
		AbbreviationsUsed: res.AbbreviationsUsed,
	}
	updated.HighScores = MergeHighScores(profile.HighScores, score)

	out := Outcome{
		Score:  score,
		Entry:  model.EntryFromScore(profile.Username, score),
		Passed: res.WPM >= level.RequiredWPM,
	}

	if out.Passed {
		updated.Level = AdvanceLevel(profile.Level, level.ID, updated.HighScores)

		if id := level.UnlockableAbbreviationID; id != "" && !profile.HasAbbreviation(id) {
			if abbr, ok := r.catalog.AbbreviationByID(id); ok {
				updated.UnlockedAbbreviations = append(updated.UnlockedAbbreviations, abbr)
				out.NewlyUnlocked = &abbr
			}
		}

		synced, _ := r.unlock.Sync(updated)
		for _, a := range synced.UnlockedAbbreviations {
			if !updated.HasAbbreviation(a.ID) {
				out.Synced = append(out.Synced, a)
			}
		}
		updated = synced

		// Tier grants never count as a fresh unlock.
		if out.NewlyUnlocked != nil {
			last := *out.NewlyUnlocked
			updated.LastUnlockedAbbreviation = &last
			out.Announced = r.nextReward(level.ID)
		}
	}

	out.Profile = updated
	return out
}

func (r *Resolver) nextReward(levelID int) *model.Abbreviation {
	next, ok := r.catalog.LevelByID(levelID + 1)
	if !ok || next.UnlockableAbbreviationID == "" {
		return nil
	}
	abbr, ok := r.catalog.AbbreviationByID(next.UnlockableAbbreviationID)
	if !ok {
		return nil
	}
	return &abbr
}

// MergeHighScores appends rec, orders by WPM descending (ties keep
// insertion order) and keeps the top model.MaxHighScores.
func MergeHighScores(scores []model.ScoreRecord, rec model.ScoreRecord) []model.ScoreRecord {
	merged := make([]model.ScoreRecord, 0, len(scores)+1)
	merged = append(merged, scores...)
	merged = append(merged, rec)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].WPM > merged[j].WPM
	})
	if len(merged) > model.MaxHighScores {
		merged = merged[:model.MaxHighScores]
	}
	return merged
}

// AdvanceLevel returns the level after passing completed. It never
// regresses and reflects the highest level present in scores.
func AdvanceLevel(current, completed int, scores []model.ScoreRecord) int {
	next := current
	if completed+1 > next {
		next = completed + 1
	}
	for _, rec := range scores {
		if rec.Level+1 > next {
			next = rec.Level + 1
		}
	}
	return next
}
