package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// logLevelFlag implements pflag.Value for slog.Level so --log-level
// validates its input at parse time.
type logLevelFlag struct {
	level slog.Level
}

func (f *logLevelFlag) String() string { return strings.ToLower(f.level.String()) }
func (f *logLevelFlag) Type() string   { return "string" }
func (f *logLevelFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug":
		f.level = slog.LevelDebug
	case "info":
		f.level = slog.LevelInfo
	case "warn":
		f.level = slog.LevelWarn
	case "error":
		f.level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
	return nil
}

func (f *logLevelFlag) Level() slog.Level { return f.level }

var (
	globalLogLevel = &logLevelFlag{level: slog.LevelWarn}
	globalNoColor  bool
	globalCatalog  string
	globalConfig   string
)

var rootCmd = &cobra.Command{
	Use:   "hatstart",
	Short: "Cross-platform developer-tooling bootstrapper",
	Long: `hatstart resolves a dependency graph of developer tools and produces
an installation plan: what to install, in what order, and which
installs can run in parallel.

It detects and automatically remediates version conflicts, circular
dependencies, platform incompatibilities, and mutually exclusive tool
combinations before handing the plan to a platform-specific installer.
hatstart itself never installs anything; it only plans.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: globalLogLevel.Level()})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Var(globalLogLevel, "log-level", "Log level (debug, info, warn, error)")
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.PersistentFlags().BoolVar(&globalNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&globalCatalog, "catalog", "", "Tool catalog directory (default: config's catalogDir)")
	rootCmd.PersistentFlags().StringVar(&globalConfig, "config", "", "Path to a config.cue/.yaml file (default: ~/.config/hatstart/config.cue)")

	rootCmd.AddCommand(
		versionCmd,
		planCmd,
		detectCmd,
		catalogCmd,
	)
}
