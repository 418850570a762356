package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/verte-zerg/typex/internal/model"
)

// Backend is a store serving both profiles and the leaderboard.
type Backend interface {
	ProfileStore
	LeaderboardStore
}

// Fallback answers from primary while it is healthy and from a local
// store otherwise. Writes go to both so the local copy stays current.
// Callers cannot tell which store answered.
type Fallback struct {
	primary Backend
	local   Backend
	breaker *Breaker
	logger  *slog.Logger
}

var _ Backend = (*Fallback)(nil)

// NewFallback wraps primary with a breaker and local as the degraded store.
func NewFallback(primary, local Backend, cfg BreakerConfig, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		primary: primary,
		local:   local,
		breaker: NewBreaker("primary-store", cfg, logger),
		logger:  logger,
	}
}

// Breaker exposes the breaker guarding the primary store.
func (f *Fallback) Breaker() *Breaker { return f.breaker }

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Load returns the primary's profile, or the local one when the primary
// fails or does not know the user.
func (f *Fallback) Load(ctx context.Context, username string) (model.UserProfile, error) {
	var p model.UserProfile
	err := f.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		p, err = f.primary.Load(ctx, username)
		return err
	}, isNotFound)
	if err == nil {
		return p, nil
	}
	if !isNotFound(err) {
		f.logger.Warn("store_fallback", "op", "load", "username", username, "error", err.Error())
	}
	return f.local.Load(ctx, username)
}

// Save writes to both stores and fails only when both fail.
func (f *Fallback) Save(ctx context.Context, p model.UserProfile) error {
	perr := f.breaker.Execute(ctx, func(ctx context.Context) error {
		return f.primary.Save(ctx, p)
	}, nil)
	if perr != nil {
		f.logger.Warn("store_fallback", "op", "save", "username", p.Username, "error", perr.Error())
	}
	lerr := f.local.Save(ctx, p)
	if lerr != nil {
		f.logger.Error("local_store_failed", "op", "save", "username", p.Username, "error", lerr.Error())
	}
	if perr != nil && lerr != nil {
		return lerr
	}
	return nil
}

// Append writes to both stores and fails only when both fail.
func (f *Fallback) Append(ctx context.Context, e model.LeaderboardEntry) error {
	perr := f.breaker.Execute(ctx, func(ctx context.Context) error {
		return f.primary.Append(ctx, e)
	}, nil)
	if perr != nil {
		f.logger.Warn("store_fallback", "op", "append", "username", e.Username, "error", perr.Error())
	}
	lerr := f.local.Append(ctx, e)
	if lerr != nil {
		f.logger.Error("local_store_failed", "op", "append", "username", e.Username, "error", lerr.Error())
	}
	if perr != nil && lerr != nil {
		return lerr
	}
	return nil
}

// Query returns the primary's leaderboard, or the local one on failure.
func (f *Fallback) Query(ctx context.Context, level int) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	err := f.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		entries, err = f.primary.Query(ctx, level)
		return err
	}, nil)
	if err == nil {
		return entries, nil
	}
	f.logger.Warn("store_fallback", "op", "query", "level", level, "error", err.Error())
	return f.local.Query(ctx, level)
}
