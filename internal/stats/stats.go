// Package stats contains metric calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/verte-zerg/typex/internal/model"
)

// CharsPerWord is the standard word length used for WPM.
const CharsPerWord = 5.0

// SessionMetrics computes rounded WPM and accuracy for a session. Zero
// elapsed time or zero characters yields 0 WPM; zero characters yields 100%
// accuracy.
func SessionMetrics(chars, errors int, elapsed time.Duration) (wpm, accuracy int) {
	accuracy = 100
	if chars > 0 {
		acc := math.Round(float64(chars-errors) / float64(chars) * 100)
		accuracy = int(math.Max(0, math.Min(100, acc)))
	}
	minutes := float64(elapsed.Milliseconds()) / 60000.0
	if chars == 0 || minutes <= 0 {
		return 0, accuracy
	}
	wpm = int(math.Round((float64(chars) / CharsPerWord) / minutes))
	return wpm, accuracy
}

// LiveAccuracy is the in-session accuracy shown while typing.
func LiveAccuracy(chars, errors int) int {
	den := chars
	if den < 1 {
		den = 1
	}
	acc := 100 - int(math.Round(float64(errors)/float64(den)*100))
	if acc < 0 {
		return 0
	}
	return acc
}

// Summary aggregates a profile for display.
type Summary struct {
	HighestWPM            int
	AverageAccuracy       int
	GamesCompleted        int
	AbbreviationsUnlocked int
}

// Summarize computes profile totals from its high scores.
func Summarize(p model.UserProfile) Summary {
	s := Summary{
		GamesCompleted:        len(p.HighScores),
		AbbreviationsUnlocked: len(p.UnlockedAbbreviations),
	}
	if len(p.HighScores) == 0 {
		return s
	}
	total := 0
	for _, rec := range p.HighScores {
		total += rec.Accuracy
		if rec.WPM > s.HighestWPM {
			s.HighestWPM = rec.WPM
		}
	}
	s.AverageAccuracy = int(math.Round(float64(total) / float64(len(p.HighScores))))
	return s
}

// BestByLevel returns the best WPM per level id among scores.
func BestByLevel(scores []model.ScoreRecord) map[int]int {
	best := map[int]int{}
	for _, rec := range scores {
		if cur, ok := best[rec.Level]; !ok || rec.WPM > cur {
			best[rec.Level] = rec.WPM
		}
	}
	return best
}

// RenderLeaderboard prints ranked leaderboard entries.
func RenderLeaderboard(w io.Writer, entries []model.LeaderboardEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No scores yet.")
		return err
	}
	tbl := newTable(right("#"), left("Player"), right("Level"), right("WPM"), right("Accuracy"), right("Abbrevs"), left("Date"))
	for i, e := range entries {
		tbl.add(LeaderboardRow(i+1, e)...)
	}
	return tbl.write(w)
}

// LeaderboardRow formats a single ranked entry.
func LeaderboardRow(rank int, e model.LeaderboardEntry) []string {
	return []string{
		strconv.Itoa(rank),
		e.Username,
		strconv.Itoa(e.Level),
		strconv.Itoa(e.WPM),
		fmt.Sprintf("%d%%", e.Accuracy),
		strconv.Itoa(e.AbbreviationsUsed),
		e.Timestamp.Local().Format("2006-01-02"),
	}
}

// RenderProfile prints a profile summary, per-level bests and the unlocked
// abbreviations.
func RenderProfile(w io.Writer, p model.UserProfile, levels []model.Level) error {
	s := Summarize(p)
	if _, err := fmt.Fprintf(w,
		"Player: %s\nLevel: %d\nHighest WPM: %d\nAverage Accuracy: %d%%\nGames Completed: %d\nAbbreviations Unlocked: %d\n\n",
		p.Username, p.Level, s.HighestWPM, s.AverageAccuracy, s.GamesCompleted, s.AbbreviationsUnlocked,
	); err != nil {
		return err
	}

	best := BestByLevel(p.HighScores)
	tbl := newTable(right("Level"), left("Name"), right("Required"), right("Best WPM"))
	for _, l := range levels {
		tbl.add(strconv.Itoa(l.ID), l.Name, strconv.Itoa(l.RequiredWPM), bestCell(best, l.ID))
	}
	if err := tbl.write(w); err != nil {
		return err
	}

	if len(p.UnlockedAbbreviations) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	abbrs := newTable(left("Trigger"), left("Expansion"), left("Description"))
	for _, a := range p.UnlockedAbbreviations {
		abbrs.add(a.Trigger, a.Expansion, a.Description)
	}
	return abbrs.write(w)
}

func bestCell(best map[int]int, level int) string {
	if v, ok := best[level]; ok {
		return strconv.Itoa(v)
	}
	return "-"
}

// LevelRow describes one level in a plain level listing.
type LevelRow struct {
	ID          int
	Name        string
	RequiredWPM int
	BestWPM     int
	HasBest     bool
	Accessible  bool
	Completed   bool
}

// RenderLevels prints the level list with per-level status.
func RenderLevels(w io.Writer, levels []LevelRow) error {
	tbl := newTable(right("Level"), left("Name"), right("Required"), right("Best WPM"), left("Status"))
	for _, l := range levels {
		best := "-"
		if l.HasBest {
			best = strconv.Itoa(l.BestWPM)
		}
		status := "locked"
		switch {
		case l.Completed:
			status = "completed"
		case l.Accessible:
			status = "open"
		}
		tbl.add(strconv.Itoa(l.ID), l.Name, strconv.Itoa(l.RequiredWPM), best, status)
	}
	return tbl.write(w)
}
