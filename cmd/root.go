// =============================================================================
// Transmittal Log - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (transmittal)
//   ├── serve        run the HTTP API
//   ├── sources      list registered sources
//   ├── search       find line items by reference number
//   ├── allocate     reserve a transmittal number
//   ├── submit       record a transmittal from a YAML/JSON file
//   ├── preview      write the HTML document for a submission
//   ├── pending      list transmittals without a document
//   ├── reconcile    render documents for pending transmittals
//   ├── init         create empty registry and log workbooks
//   ├── config init  write the default configuration file
//   └── version
//
// CONFIGURATION:
//   The root command loads the configuration (--config, TRANSMITTAL_* env)
//   and builds the zap logger before any subcommand runs.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/transmittal-log/internal/config"
	"github.com/ginjaninja78/transmittal-log/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// cfg and zlog are set by loadConfig before a subcommand runs.
var (
	cfg  *config.Config
	zlog *zap.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "transmittal",
	Short: "Transmittal Log - record document transmittals in a central log",
	Long: `Transmittal Log backs a transmittal form: it looks up line items in
external source workbooks, hands out unique transmittal numbers, appends
submitted transmittals to a central log workbook and renders a PDF document
for each one.

Example Usage:
  transmittal serve                          # Run the HTTP API
  transmittal search --source payables RFP-1 # Find line items
  transmittal submit form.yaml               # Record a transmittal
  transmittal reconcile                      # Render missing documents`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipsConfig(cmd) {
			return nil
		}
		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if zlog != nil {
			_ = zlog.Sync()
		}
	},
	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// loadConfig reads the configuration and builds the logger.
func loadConfig() error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = c.Log.Level
	logCfg.Format = c.Log.Format
	logCfg.Output = c.Log.Output
	if verbose {
		logCfg.Level = "debug"
	}
	l, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	cfg = c
	zlog = l.With(zap.String("app", c.App.Name), zap.String("env", c.App.Env))
	zlog.Debug("configuration loaded", zap.String("file", cfgFile))
	return nil
}

// skipsConfig reports whether cmd runs without a loaded configuration.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["config"] == "skip" {
			return true
		}
	}
	return false
}
