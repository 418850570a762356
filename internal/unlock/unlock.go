// Package unlock resolves which abbreviations a player owns and prepares
// level text that prompts the player to use them.
package unlock

import (
	"fmt"

	"github.com/verte-zerg/typex/internal/model"
)

// DefaultPracticeExpansion is embedded when a level has no usable practice abbreviation.
const DefaultPracticeExpansion = "Practice makes perfect."

// Lookup is the catalog surface the resolver needs.
type Lookup interface {
	AbbreviationsUpToTier(tier int) []model.Abbreviation
	AbbreviationByID(id string) (model.Abbreviation, bool)
}

// Resolver computes unlock sets and level augmentation. It performs no I/O.
type Resolver struct {
	catalog Lookup
}

// New returns a Resolver over the given catalog.
func New(c Lookup) *Resolver {
	return &Resolver{catalog: c}
}

// ResolveUnlocked returns current ∪ every abbreviation with tier <= tier,
// deduplicated by id. Entries of current keep their order and come first.
func (r *Resolver) ResolveUnlocked(tier int, current []model.Abbreviation) []model.Abbreviation {
	seen := make(map[string]struct{}, len(current))
	out := make([]model.Abbreviation, 0, len(current))
	for _, a := range current {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	for _, a := range r.catalog.AbbreviationsUpToTier(tier) {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

// Grew reports whether after holds more abbreviations than before.
func Grew(before, after []model.Abbreviation) bool {
	return len(after) > len(before)
}

// Sync brings the profile's unlocked set up to its level. The returned flag
// tells the caller whether the profile needs saving.
func (r *Resolver) Sync(p model.UserProfile) (model.UserProfile, bool) {
	resolved := r.ResolveUnlocked(p.Level, p.UnlockedAbbreviations)
	if !Grew(p.UnlockedAbbreviations, resolved) {
		return p, false
	}
	out := p.Clone()
	out.UnlockedAbbreviations = resolved
	return out, true
}

// AugmentLevelText appends a clause asking the player to type the level's
// practice expansion. The expansion is chosen by level id, not by
// lastUnlocked; lastUnlocked only enables the augmentation.
func (r *Resolver) AugmentLevelText(level model.Level, lastUnlocked *model.Abbreviation) model.Level {
	if lastUnlocked == nil {
		return level
	}
	out := level
	practice, ok := r.catalog.AbbreviationByID(level.PracticeAbbreviationID)
	if level.PracticeAbbreviationID == "" || !ok {
		out.BaseText = fmt.Sprintf("%s You need to type %s in this text.", level.BaseText, DefaultPracticeExpansion)
		return out
	}
	out.BaseText = fmt.Sprintf("%s You need to type %s in this text. Try using the %s abbreviation to type it more quickly.",
		level.BaseText, practice.Expansion, practice.Trigger)
	return out
}
