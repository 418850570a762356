package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/typex/internal/catalog"
	"github.com/verte-zerg/typex/internal/config"
	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/store"
	"github.com/verte-zerg/typex/internal/unlock"
)

type settings struct {
	cfg     model.Config
	timeout time.Duration
	breaker store.BreakerConfig
}

func resolveSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	return buildSettings(cmd, fileCfg)
}

func buildSettings(cmd *cobra.Command, fileCfg config.FileConfig) (settings, error) {
	applyStringConfig(cmd, "user", &playUser, fileCfg.Player.Username)
	applyStringConfig(cmd, "server", &playServer, fileCfg.Store.Server)
	applyStringConfig(cmd, "db", &playDB, fileCfg.Store.DB)
	applyStringConfig(cmd, "catalog", &playCatalog, fileCfg.Game.Catalog)
	applyIntConfig(cmd, "cheat-threshold", &playCheatThreshold, fileCfg.Game.CheatThreshold)

	s := settings{
		cfg: model.Config{
			Username:       playUser,
			StartLevel:     playLevel,
			CatalogPath:    playCatalog,
			ServerURL:      playServer,
			DBPath:         playDB,
			CheatThreshold: playCheatThreshold,
		},
		timeout: store.DefaultTimeout,
		breaker: store.BreakerConfig{MaxFailures: defaultMaxFailures, ResetTimeout: defaultResetTimeout},
	}
	if s.cfg.DBPath == "" {
		s.cfg.DBPath = config.DefaultDBPath()
	}

	timeout, err := config.ParseDuration("store.timeout", fileCfg.Store.Timeout)
	if err != nil {
		return settings{}, err
	}
	if timeout != nil {
		s.timeout = *timeout
	}
	reset, err := config.ParseDuration("store.reset-timeout", fileCfg.Store.ResetTimeout)
	if err != nil {
		return settings{}, err
	}
	if reset != nil {
		s.breaker.ResetTimeout = *reset
	}
	if fileCfg.Store.MaxFailures != nil {
		if *fileCfg.Store.MaxFailures <= 0 {
			return settings{}, fmt.Errorf("invalid store.max-failures: must be positive")
		}
		s.breaker.MaxFailures = *fileCfg.Store.MaxFailures
	}
	return s, nil
}

// newLogger writes structured logs to path and, when extra is set, to extra too.
// The returned func closes the log file.
func newLogger(path string, extra io.Writer) (*slog.Logger, func()) {
	var w io.Writer = io.Discard
	if extra != nil {
		w = extra
	}
	closeFn := func() {}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				if extra != nil {
					w = io.MultiWriter(extra, f)
				} else {
					w = f
				}
				closeFn = func() {
					if cerr := f.Close(); cerr != nil {
						// Best-effort close of the log file.
						_ = cerr
					}
				}
			}
		}
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(h)
	logger.Info("logger_initialized", "file", path)
	return logger, closeFn
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		candidate := config.DefaultCatalogPath()
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path == "" {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load built-in catalog: %w", err)
		}
		return cat, nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return cat, nil
}

const (
	storageServer = "server"
	storageLocal  = "local"
)

// openBackend returns the local database, fronted by the remote server when
// one is configured. A local database that cannot be opened is replaced by
// an in-memory store so play still works. The returned mode reports whether
// the server answered its health check.
func openBackend(s settings, logger *slog.Logger) (store.Backend, string, func()) {
	var local store.Backend
	closeFn := func() {}
	st, err := store.Open(s.cfg.DBPath)
	if err != nil {
		logger.Warn("local_store_unavailable", "db", s.cfg.DBPath, "error", err)
		logErrln("warning: local database unavailable, progress will not be kept:", err)
		local = store.NewMemory()
	} else {
		local = st
		closeFn = func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}
	}
	if s.cfg.ServerURL == "" {
		logger.Info("storage_mode", "mode", storageLocal)
		return local, storageLocal, closeFn
	}
	remote := store.NewRemote(s.cfg.ServerURL, s.timeout)
	return store.NewFallback(remote, local, s.breaker, logger), pingStorage(remote, s.timeout, logger), closeFn
}

func pingStorage(remote *store.Remote, timeout time.Duration, logger *slog.Logger) string {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := remote.Ping(ctx); err != nil {
		logger.Warn("storage_mode", "mode", storageLocal, "error", err)
		return storageLocal
	}
	logger.Info("storage_mode", "mode", storageServer)
	return storageServer
}

type profileSaver interface {
	SaveProfile(model.UserProfile) error
}

// loadProfile loads username or starts a new profile, then grants every
// abbreviation its level entitles it to. Grown profiles are saved through
// saver when one is given.
func loadProfile(ctx context.Context, profiles store.ProfileStore, saver profileSaver, cat *catalog.Catalog, username string) (model.UserProfile, error) {
	p, err := profiles.Load(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = model.NewProfile(username)
	case err != nil:
		return model.UserProfile{}, fmt.Errorf("failed to load profile %s: %w", username, err)
	}
	synced, grew := unlock.New(cat).Sync(p)
	if grew && saver != nil {
		if err := saver.SaveProfile(synced); err != nil {
			return model.UserProfile{}, fmt.Errorf("failed to save profile: %w", err)
		}
	}
	return synced, nil
}
