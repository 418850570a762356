// Package store persists profiles and leaderboard entries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/typex/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a profile does not exist.
var ErrNotFound = errors.New("not found")

// ProfileStore loads and saves user profiles.
type ProfileStore interface {
	Load(ctx context.Context, username string) (model.UserProfile, error)
	Save(ctx context.Context, profile model.UserProfile) error
}

// LeaderboardStore appends and queries leaderboard entries. Query with
// level 0 returns every level.
type LeaderboardStore interface {
	Append(ctx context.Context, entry model.LeaderboardEntry) error
	Query(ctx context.Context, level int) ([]model.LeaderboardEntry, error)
}

// Store wraps SQLite access for profiles and the leaderboard.
type Store struct {
	db *sql.DB
}

var (
	_ ProfileStore     = (*Store)(nil)
	_ LeaderboardStore = (*Store)(nil)
)

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps writes serialized for SQLite.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			level INTEGER NOT NULL,
			last_unlocked TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS high_scores (
			username TEXT NOT NULL,
			position INTEGER NOT NULL,
			level INTEGER NOT NULL,
			wpm INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			played_at TEXT NOT NULL,
			abbreviations_used INTEGER NOT NULL,
			PRIMARY KEY (username, position)
		);`,
		`CREATE TABLE IF NOT EXISTS user_abbreviations (
			username TEXT NOT NULL,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			trigger TEXT NOT NULL,
			expansion TEXT NOT NULL,
			description TEXT NOT NULL,
			tier INTEGER NOT NULL,
			PRIMARY KEY (username, id)
		);`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			level INTEGER NOT NULL,
			wpm INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			played_at TEXT NOT NULL,
			abbreviations_used INTEGER NOT NULL,
			UNIQUE (username, level, wpm, accuracy, played_at)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_wpm ON leaderboard(wpm DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_level ON leaderboard(level);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the profile for username or ErrNotFound.
func (s *Store) Load(ctx context.Context, username string) (model.UserProfile, error) {
	p := model.NewProfile(username)
	var last string
	err := s.db.QueryRowContext(ctx,
		`SELECT level, last_unlocked FROM users WHERE username = ?`, username,
	).Scan(&p.Level, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("load user %s: %w", username, err)
	}
	if last != "" {
		var abbr model.Abbreviation
		if err := json.Unmarshal([]byte(last), &abbr); err != nil {
			return model.UserProfile{}, fmt.Errorf("decode last unlocked: %w", err)
		}
		p.LastUnlockedAbbreviation = &abbr
	}

	scores, err := s.loadScores(ctx, username)
	if err != nil {
		return model.UserProfile{}, err
	}
	p.HighScores = scores

	abbrs, err := s.loadAbbreviations(ctx, username)
	if err != nil {
		return model.UserProfile{}, err
	}
	p.UnlockedAbbreviations = abbrs
	return p, nil
}

func (s *Store) loadScores(ctx context.Context, username string) ([]model.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, wpm, accuracy, played_at, abbreviations_used
		 FROM high_scores WHERE username = ? ORDER BY position ASC`, username)
	if err != nil {
		return nil, fmt.Errorf("load high scores: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	scores := []model.ScoreRecord{}
	for rows.Next() {
		var rec model.ScoreRecord
		var playedAt string
		if err := rows.Scan(&rec.Level, &rec.WPM, &rec.Accuracy, &playedAt, &rec.AbbreviationsUsed); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, playedAt)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = parsed
		scores = append(scores, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

func (s *Store) loadAbbreviations(ctx context.Context, username string) ([]model.Abbreviation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trigger, expansion, description, tier
		 FROM user_abbreviations WHERE username = ? ORDER BY position ASC`, username)
	if err != nil {
		return nil, fmt.Errorf("load abbreviations: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	abbrs := []model.Abbreviation{}
	for rows.Next() {
		var a model.Abbreviation
		if err := rows.Scan(&a.ID, &a.Trigger, &a.Expansion, &a.Description, &a.UnlockTier); err != nil {
			return nil, err
		}
		abbrs = append(abbrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return abbrs, nil
}

// Save upserts the profile by username, replacing its scores and unlocks.
func (s *Store) Save(ctx context.Context, p model.UserProfile) (err error) {
	last := ""
	if p.LastUnlockedAbbreviation != nil {
		raw, err := json.Marshal(p.LastUnlockedAbbreviation)
		if err != nil {
			return fmt.Errorf("encode last unlocked: %w", err)
		}
		last = string(raw)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (username, level, last_unlocked) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET level = excluded.level, last_unlocked = excluded.last_unlocked`,
		p.Username, p.Level, last,
	); err != nil {
		return fmt.Errorf("save user %s: %w", p.Username, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM high_scores WHERE username = ?`, p.Username); err != nil {
		return err
	}
	for i, rec := range p.HighScores {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO high_scores (username, position, level, wpm, accuracy, played_at, abbreviations_used)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.Username, i, rec.Level, rec.WPM, rec.Accuracy, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.AbbreviationsUsed,
		); err != nil {
			return fmt.Errorf("save high score: %w", err)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM user_abbreviations WHERE username = ?`, p.Username); err != nil {
		return err
	}
	for i, a := range p.UnlockedAbbreviations {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_abbreviations (username, position, id, trigger, expansion, description, tier)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.Username, i, a.ID, a.Trigger, a.Expansion, a.Description, a.UnlockTier,
		); err != nil {
			return fmt.Errorf("save abbreviation: %w", err)
		}
	}
	return tx.Commit()
}

// Append adds entry to the leaderboard. Identical entries are ignored.
func (s *Store) Append(ctx context.Context, e model.LeaderboardEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO leaderboard (username, level, wpm, accuracy, played_at, abbreviations_used)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Username, e.Level, e.WPM, e.Accuracy, e.Timestamp.UTC().Format(time.RFC3339Nano), e.AbbreviationsUsed,
	)
	if err != nil {
		return fmt.Errorf("append leaderboard entry: %w", err)
	}
	return nil
}

// Query returns the top entries by WPM, optionally filtered by level.
func (s *Store) Query(ctx context.Context, level int) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, level, wpm, accuracy, played_at, abbreviations_used
		 FROM leaderboard
		 WHERE (? = 0 OR level = ?)
		 ORDER BY wpm DESC, id ASC
		 LIMIT ?`, level, level, model.MaxLeaderboardEntries)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		var playedAt string
		if err := rows.Scan(&e.Username, &e.Level, &e.WPM, &e.Accuracy, &playedAt, &e.AbbreviationsUsed); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, playedAt)
		if err != nil {
			return nil, err
		}
		e.Timestamp = parsed
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
