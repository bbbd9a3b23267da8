package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"repoparser/internal/backends/git"
	"repoparser/internal/config"
	"repoparser/internal/errors"
	"repoparser/internal/slogutil"
	"repoparser/internal/version"
)

var (
	verbosity int
	quiet     bool
	logFile   string
)

var rootCmd = &cobra.Command{
	Use:   "rp",
	Short: "rp - repository resource parser",
	Long: `rp walks a git work tree, turns typed directories and documentation files
into a tree of resources, and annotates every resource with the time it was
last modified according to git history.`,
	Version:       version.Info(),
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.SetVersionTemplate(version.Full())
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append logs to this file")
}

// session is the state shared by commands that operate on a repository.
type session struct {
	repo   *git.Repo
	cfg    *config.Config
	logger *slog.Logger
	runID  string
	close  func()
}

// openSession locates the repository containing path, loads its
// configuration and builds the run's logger.
func openSession(ctx context.Context, path string) (*session, error) {
	repo, err := git.Open(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(repo.Root())
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	logger = logger.With("runId", runID)

	return &session{
		repo:   repo.WithLogger(logger),
		cfg:    cfg,
		logger: logger,
		runID:  runID,
		close:  closeLog,
	}, nil
}

func loadConfig(repoRoot string) (*config.Config, error) {
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		return nil, errors.NewRpError(errors.ConfigInvalid, "Failed to load configuration", err,
			errors.GetSuggestedFixes(errors.ConfigInvalid))
	}
	if err := cfg.Validate(); err != nil {
		rpErr := errors.NewRpError(errors.ConfigInvalid, err.Error(), err,
			errors.GetSuggestedFixes(errors.ConfigInvalid))
		if cerr, ok := err.(*config.ConfigError); ok {
			rpErr = rpErr.WithDetails(map[string]interface{}{"field": cerr.Field})
		}
		return nil, rpErr
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays parseable. -v/-q win over the
// configured level.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quiet {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}

	logger := slogutil.NewFormatLogger(os.Stderr, level, cfg.Logging.Format)
	if logFile == "" {
		return logger, func() {}, nil
	}

	fileLogger, f, err := slogutil.NewFileLogger(logFile, level)
	if err != nil {
		return nil, nil, errors.NewRpError(errors.InternalError, "Failed to open log file", err, nil).
			WithDetails(map[string]interface{}{"path": logFile})
	}
	tee := slogutil.NewTeeLogger(logger.Handler(), fileLogger.Handler())
	return tee, func() { _ = f.Close() }, nil
}
