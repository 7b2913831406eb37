package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevehiehn/spren/internal/config"
	"github.com/stevehiehn/spren/internal/logging"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	cfgFile    string
	jsonOutput bool
	verbose    bool
	shellName  string
	assumeYes  bool

	cfg    *config.Config
	logger = zap.NewNop()
)

// skipConfig marks commands that must work without a loadable config.
const skipConfig = "skip-config"

var rootCmd = &cobra.Command{
	Use:   "spren",
	Short: "Turn requests into reviewed, step-by-step shell plans",
	Long: `spren asks a model for a plan of shell commands, shows it, and runs it
one step at a time with confirmation for anything dangerous.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			cfg = config.Default()
			return nil
		}
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if shellName != "" {
			c.Shell.Profile = shellName
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = c

		l, err := logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logger = l
		if cfg.File != "" {
			logger.Debug("config loaded", zap.String("file", cfg.File))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/spren/config.yaml)")
	pf.BoolVar(&jsonOutput, "json", false, "Output raw JSON")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	pf.StringVar(&shellName, "shell", "", "Shell profile: posix, cmd, powershell or auto")
	pf.BoolVarP(&assumeYes, "yes", "y", false, "Approve every confirmation")
	rootCmd.Version = Version
}

// Execute runs the root command. An interrupt cancels the running plan.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
