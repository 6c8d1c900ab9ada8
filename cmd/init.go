package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ginjaninja78/transmittal-log/internal/config"
	"github.com/ginjaninja78/transmittal-log/internal/ledger"
	"github.com/ginjaninja78/transmittal-log/internal/registry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var overwrite bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create empty registry and central log workbooks",
	Long: `Create the registry workbook, the central log workbook with its header
row, and the sources and documents directories named in the configuration.
Existing workbooks are kept unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, dir := range []string{
			filepath.Dir(cfg.Registry.Path),
			filepath.Dir(cfg.Ledger.Path),
			cfg.Sources.Dir,
		} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}

		reg := registry.NewReader(cfg.Registry.Path, cfg.Registry.Sheet,
			registry.WithColumns(registry.Columns{
				ID:        cfg.Registry.IDColumn,
				Label:     cfg.Registry.LabelColumn,
				Tabs:      cfg.Registry.TabsColumn,
				HeaderRow: cfg.Registry.HeaderRow,
			}))
		if err := reg.Init(overwrite); err != nil {
			return err
		}
		zlog.Info("registry created", zap.String("path", cfg.Registry.Path))

		log := ledger.New(cfg.Ledger.Path, cfg.Ledger.Sheet, ledger.WithHeaderRow(cfg.Ledger.HeaderRow))
		if err := log.Init(overwrite); err != nil {
			return err
		}
		zlog.Info("central log created", zap.String("path", cfg.Ledger.Path))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Manage the configuration file",
	Annotations: map[string]string{"config": "skip"},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(cfgFile, overwrite); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfgFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd, configCmd)
	configCmd.AddCommand(configInitCmd)

	initCmd.Flags().BoolVar(&overwrite, "force", false, "Overwrite existing workbooks")
	configInitCmd.Flags().BoolVar(&overwrite, "force", false, "Overwrite an existing file")
}
