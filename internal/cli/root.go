package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bunko/bunko/internal/cli/tui"
	"github.com/bunko/bunko/pkg/config"
	"github.com/bunko/bunko/pkg/logging"
	"github.com/bunko/bunko/pkg/setup"
)

var (
	// Version information (set by build)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// Global flags
	cfgFile    string
	verbose    bool
	jsonOutput bool

	// Global config
	bunkoConfig *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bunko",
	Short: "bunko - read and discuss the Aozora Bunko archive",
	Long: `bunko is a terminal reading companion for the Aozora Bunko archive.
Answers cite the works they draw on; citations open the cited passage.

Start an interactive session:
  bunko

Ask a single question:
  bunko ask "夏目漱石の『こころ』の主題は?"

Browse the archive:
  bunko search "猫"
  bunko works 漱石
  bunko read 789`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		paths := []string{config.GlobalConfigPath(), config.ProjectConfigPath()}
		if cfgFile != "" {
			paths = append(paths, cfgFile)
		}
		cfg, err := config.LoadFrom(paths...)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		bunkoConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runInteractive(cmdContext(cmd))
		}
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "extra config file applied last (default: ~/.bunko/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(worksCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bunko %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Build: %s\n", BuildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", GitCommit)
	},
}

// openStack builds the runtime stack and the logger behind it. The returned
// func releases both.
func openStack(ctx context.Context) (*setup.Stack, func(), error) {
	logger, closeLog, err := setup.NewLogger(bunkoConfig.Logging)
	if err != nil {
		return nil, nil, err
	}
	logging.SetGlobalLogger(logger)

	stack, err := setup.Build(ctx, bunkoConfig, logger)
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	return stack, func() {
		if err := stack.Close(); err != nil {
			logger.Warn("failed to close stack", logging.Err(err))
		}
		closeLog()
	}, nil
}

// runInteractive starts the TUI
func runInteractive(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stack, release, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer release()

	go func() {
		if err := stack.ServeMetrics(ctx); err != nil {
			stack.Logger.Warn("metrics server stopped", logging.Err(err))
		}
	}()

	sess, err := stack.NewSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.Close()

	watcher, err := config.NewWatcher(stack.Logger, config.GlobalConfigPath(), config.ProjectConfigPath())
	if err != nil {
		stack.Logger.Warn("config reload disabled", logging.Err(err))
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	// a missing provider is reported inside the TUI
	provider, _ := stack.Providers.Default()

	return tui.Run(ctx, tui.Options{
		Session:  sess,
		Provider: provider,
		Config:   bunkoConfig,
		Watcher:  watcher,
		Logger:   stack.Logger,
		Version:  Version,
	})
}
