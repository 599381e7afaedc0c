package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"healthmate/internal/app"
	"healthmate/internal/config"
	"healthmate/internal/logging"
	"healthmate/internal/storage"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// options are the global flags shared by every command.
type options struct {
	dataDir string
	userID  string
}

// NewRootCmd builds the healthmate command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "healthmate",
		Version: fmt.Sprintf("%s (%s)", Version, Commit),
		Short:   "HealthMate health companion from the command line",
		Long: `HealthMate generates diet suggestions and meal plans, answers health
questions and summarizes medical reports.

Food preferences and the recent plan history are kept locally; generated
suggestions, chats and reports go to the configured database.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Directory for local state (defaults to DATA_PATH/cli)")
	root.PersistentFlags().StringVarP(&opts.userID, "user", "u", "local", "User id to act as")

	root.AddCommand(
		newSuggestCmd(opts),
		newPlanCmd(opts),
		newRegenCmd(opts),
		newPlansCmd(opts),
		newPrefsCmd(opts),
		newChatCmd(opts),
		newAnalyzeCmd(opts),
		newCleanupCmd(),
		newTokenCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// localStore opens the CLI's file store.
func (o *options) localStore() (*storage.LocalStore, error) {
	dir := o.dataDir
	if dir == "" {
		cfg, err := config.NewFromEnv()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(cfg.DataPath, "cli")
	}
	return storage.NewLocalStore(dir)
}

// withApp loads configuration, builds the App and runs fn with it.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
