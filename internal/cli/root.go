// Package cli implements the pulse command line.
package cli

import (
	"fmt"
	"os"

	"github.com/opencode-ai/pulse/internal/config"
	"github.com/opencode-ai/pulse/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	logLevel       string
	logFormat      string
	jsonOutput     bool
	jsonlOutput    bool
	noColor        bool
	noProgress     bool
	nonInteractive bool

	appConfig *config.Config
)

// Build information, set by Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Cooperative polling action scheduler",
	Long: `pulse runs a fixed set of named actions on a polling loop.

Each pass decides, from elapsed time and stop requests, which actions start,
tick or stop. Actions and their handlers are declared in pulse.yaml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["skipConfig"] == "true" {
			return initLogging(nil)
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg
		return initLogging(cfg)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: ./pulse.yaml or ~/.config/pulse/pulse.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: console or json")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt; use defaults")
}

// Execute runs the root command.
func Execute(version, commit, date string) {
	buildVersion, buildCommit, buildDate = version, commit, date

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// GetConfig returns the loaded configuration, or nil before PersistentPreRun.
func GetConfig() *config.Config {
	return appConfig
}

func initLogging(cfg *config.Config) error {
	lc := logging.Config{Level: "info", Format: "console"}
	if cfg != nil {
		lc.Level = cfg.Logging.Level
		lc.Format = cfg.Logging.Format
	}
	if logLevel != "" {
		lc.Level = logLevel
	}
	if logFormat != "" {
		lc.Format = logFormat
	}
	if lc.Format != "console" && lc.Format != "json" {
		return fmt.Errorf("unknown log format %q (want console or json)", lc.Format)
	}
	logging.Init(lc)
	return nil
}

func printError(err error) {
	var preflight *PreflightError
	if asPreflight(err, &preflight) {
		fmt.Fprintln(os.Stderr, colorize("Error: "+preflight.Message, colorRed))
		if preflight.Hint != "" {
			fmt.Fprintln(os.Stderr, "Hint: "+preflight.Hint)
		}
		if preflight.NextStep != "" {
			fmt.Fprintln(os.Stderr, "Next: "+preflight.NextStep)
		}
		return
	}
	fmt.Fprintln(os.Stderr, colorize("Error: "+err.Error(), colorRed))
}
