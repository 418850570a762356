// Package main provides the CLI entrypoint for typex.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/typex/internal/api"
	"github.com/verte-zerg/typex/internal/boardui"
	"github.com/verte-zerg/typex/internal/config"
	"github.com/verte-zerg/typex/internal/game"
	"github.com/verte-zerg/typex/internal/guard"
	"github.com/verte-zerg/typex/internal/model"
	"github.com/verte-zerg/typex/internal/stats"
	"github.com/verte-zerg/typex/internal/store"
	"github.com/verte-zerg/typex/internal/tui"
)

const (
	defaultAddr           = ":8080"
	defaultMaxFailures    = 3
	defaultResetTimeout   = 30 * time.Second
	defaultShutdownPeriod = 5 * time.Second
)

var (
	playUser           string
	playLevel          int
	playServer         string
	playDB             string
	playCatalog        string
	playCheatThreshold int

	boardLevel string
	boardPlain bool

	serveAddr string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "typex",
		Short:         "Typing game with abbreviation expansion",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.PersistentFlags().StringVar(&playUser, "user", "", "player username (letters, digits, underscore)")
	rootCmd.PersistentFlags().StringVar(&playServer, "server", "", "leaderboard server base URL (empty: local only)")
	rootCmd.PersistentFlags().StringVar(&playDB, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&playCatalog, "catalog", "", "level catalog file (.toml or .yaml)")
	rootCmd.Flags().IntVar(&playLevel, "level", 0, "open this level directly")
	rootCmd.Flags().IntVar(&playCheatThreshold, "cheat-threshold", guard.DefaultThreshold, "WPM above which a result needs verification")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLevelsCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	if err := model.ValidateUsername(s.cfg.Username); err != nil {
		return usernameError(err)
	}
	if s.cfg.StartLevel < 0 {
		return fmt.Errorf("--level must be >= 0")
	}
	if s.cfg.CheatThreshold <= 0 {
		return fmt.Errorf("--cheat-threshold must be > 0")
	}

	logger, closeLog := newLogger(config.DefaultLogPath(), nil)
	defer closeLog()

	cat, err := loadCatalog(s.cfg.CatalogPath)
	if err != nil {
		return err
	}
	backend, storageMode, closeBackend := openBackend(s, logger)
	defer closeBackend()

	writer := store.NewWriter(backend, backend, logger, s.timeout)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+defaultShutdownPeriod)
		defer cancel()
		if cerr := writer.Close(ctx); cerr != nil {
			logErrf("failed to flush pending saves: %v\n", cerr)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	profile, err := loadProfile(ctx, backend, writer, cat, s.cfg.Username)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("session_started", "user", profile.Username, "level", profile.Level, "server", s.cfg.ServerURL)

	ctl := game.New(cat, profile, writer,
		game.WithLogger(logger),
		game.WithGate(guard.WithThreshold(s.cfg.CheatThreshold)),
	)
	ui := tui.NewModel(ctl, s.cfg.StartLevel)
	ui.SetStorage(storageMode)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List levels and your progress",
		Args:  cobra.NoArgs,
		RunE:  runLevelsCmd,
	}
}

func runLevelsCmd(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(s.cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(config.DefaultLogPath(), nil)
	defer closeLog()

	profile := model.NewProfile(s.cfg.Username)
	if model.ValidateUsername(s.cfg.Username) == nil {
		backend, _, closeBackend := openBackend(s, logger)
		defer closeBackend()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		profile, err = loadProfile(ctx, backend, nil, cat, s.cfg.Username)
		cancel()
		if err != nil {
			return err
		}
	}

	ctl := game.New(cat, profile, guard.CommitFunc(func(model.UserProfile, model.LeaderboardEntry) {}))
	statuses := ctl.Levels()
	rows := make([]stats.LevelRow, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, stats.LevelRow{
			ID:          st.Level.ID,
			Name:        st.Level.Name,
			RequiredWPM: st.Level.RequiredWPM,
			BestWPM:     st.BestWPM,
			HasBest:     st.Completed,
			Accessible:  st.Accessible,
			Completed:   st.Completed,
		})
	}
	if err := stats.RenderLevels(cmd.OutOrStdout(), rows); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the leaderboard",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
	cmd.Flags().StringVar(&boardLevel, "level", "all", "level filter (number or all)")
	cmd.Flags().BoolVar(&boardPlain, "plain", false, "print a plain table instead of the interactive view")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	level, err := boardui.ParseLevel(boardLevel)
	if err != nil {
		return fmt.Errorf("invalid --level: %w", err)
	}
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(s.cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(config.DefaultLogPath(), nil)
	defer closeLog()
	backend, _, closeBackend := openBackend(s, logger)
	defer closeBackend()

	interactive := !boardPlain && term.IsTerminal(int(os.Stdout.Fd()))
	if !interactive {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		entries, err := backend.Query(ctx, level)
		if err != nil {
			return fmt.Errorf("failed to query leaderboard: %w", err)
		}
		if err := stats.RenderLeaderboard(cmd.OutOrStdout(), entries); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	profile := model.NewProfile(s.cfg.Username)
	if model.ValidateUsername(s.cfg.Username) == nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		profile, err = loadProfile(ctx, backend, nil, cat, s.cfg.Username)
		cancel()
		if err != nil {
			return err
		}
	}
	program := tea.NewProgram(boardui.NewModel(backend, profile, cat.Levels(), level), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run leaderboard TUI: %w", err)
	}
	return nil
}

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show your profile summary",
		Args:  cobra.NoArgs,
		RunE:  runProfileCmd,
	}
}

func runProfileCmd(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	if err := model.ValidateUsername(s.cfg.Username); err != nil {
		return usernameError(err)
	}
	cat, err := loadCatalog(s.cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(config.DefaultLogPath(), nil)
	defer closeLog()
	backend, _, closeBackend := openBackend(s, logger)
	defer closeBackend()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	profile, err := loadProfile(ctx, backend, nil, cat, s.cfg.Username)
	if err != nil {
		return err
	}
	if err := stats.RenderProfile(cmd.OutOrStdout(), profile, cat.Levels()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve profiles and the leaderboard over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", defaultAddr, "listen address")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(config.DefaultLogPath(), os.Stdout)
	defer closeLog()

	st, err := store.Open(s.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           api.Wrap(api.NewRouter(st, st), os.Stdout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", serveAddr, "db", s.cfg.DBPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	logger.Info("server_stopped")
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# typex configuration
# Uncomment a value to enable it. CLI flags override config values.

[player]
# username = "your_name"      # Letters, digits and underscore

[store]
# server = "http://localhost%s"  # Leaderboard server; local database is used when unreachable
# db = %q
# timeout = %q              # Per-request timeout
# max-failures = %d             # Failures before the server is skipped
# reset-timeout = %q        # How long the server is skipped after failures

[game]
# catalog = %q
# cheat-threshold = %d        # WPM above which a result needs verification
`,
		defaultAddr,
		config.DefaultDBPath(),
		store.DefaultTimeout.String(),
		defaultMaxFailures,
		defaultResetTimeout.String(),
		config.DefaultCatalogPath(),
		guard.DefaultThreshold,
	)
}

func usernameError(err error) error {
	lines := []string{
		err.Error(),
		"Pass --user <name> or set it in the config file:",
		"  [player]",
		`  username = "your_name"`,
		"Run: typex config",
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
