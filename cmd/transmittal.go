package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/csvparser"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	searchSource string
	itemsCSV     string
	outputFile   string
	allocateNew  bool
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sources, err := a.service.ListSources(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sources)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <reference-number>",
	Short: "Find line items by reference number in one source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			items, err := a.service.Search(ctx, args[0], searchSource)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		})
	},
}

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Reserve a new transmittal number",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSharedLock(cfg); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			no, err := a.service.Allocate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), no)
			return nil
		})
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <submission.yaml|json>",
	Short: "Record a transmittal in the central log",
	Long: `Read a submission from a YAML or JSON file and append it to the central
log. Line items may come from the file or from a CSV export (--items). With
--allocate a fresh transmittal number replaces the one in the file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSharedLock(cfg); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sub, err := loadSubmission(args[0])
			if err != nil {
				return err
			}
			if allocateNew {
				if sub.TransmittalNo, err = a.service.Allocate(ctx); err != nil {
					return err
				}
			}

			result, err := a.service.Append(ctx, sub)
			if err != nil {
				if details := validation.Details(err); len(details) > 0 {
					fmt.Fprint(cmd.ErrOrStderr(), validation.FormatErrors(details))
				}
				if result == nil {
					return err
				}
				zlog.Warn("transmittal saved without document; run 'transmittal reconcile'",
					zap.String("transmittal_no", result.TransmittalNo), zap.Error(err))
				if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
					return perr
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <submission.yaml|json>",
	Short: "Write the HTML document for a submission without recording it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			sub, err := loadSubmission(args[0])
			if err != nil {
				return err
			}
			if len(sub.Items) == 0 {
				return apperr.EmptySubmission(sub.TransmittalNo)
			}
			html, err := a.service.Preview(ctx, sub)
			if err != nil {
				return err
			}
			if outputFile == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), html)
				return err
			}
			return os.WriteFile(outputFile, []byte(html), 0o644)
		})
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List transmittals whose document was not generated",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			nos, err := a.service.Pending(ctx)
			if err != nil {
				return err
			}
			for _, no := range nos {
				fmt.Fprintln(cmd.OutOrStdout(), no)
			}
			return nil
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [transmittal-no]",
	Short: "Render documents for pending transmittals",
	Long: `Render and store the document of every transmittal still marked pending,
or of the one given, and record its URL in the central log.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSharedLock(cfg); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if len(args) == 1 {
				result, err := a.service.Rerender(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}

			results, err := a.service.Reconcile(ctx)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "  ✗ %s: %v\n", r.TransmittalNo, r.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s -> %s\n", r.TransmittalNo, r.Result.DocumentURL)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rendered: %d  Failed: %d\n", len(results)-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d document(s) could not be generated", failed)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd, searchCmd, allocateCmd, submitCmd, previewCmd, pendingCmd, reconcileCmd)

	searchCmd.Flags().StringVarP(&searchSource, "source", "s", "", "Registry id of the source to search")

	for _, c := range []*cobra.Command{submitCmd, previewCmd} {
		c.Flags().StringVar(&itemsCSV, "items", "", "CSV file with the line items")
	}
	submitCmd.Flags().BoolVar(&allocateNew, "allocate", false, "Allocate a new transmittal number")
	previewCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the HTML to this file")
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// withApp wires the components, runs fn and releases them.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// loadSubmission reads a submission file. JSON is accepted as YAML. Items
// from --items replace the file's items.
func loadSubmission(path string) (types.Submission, error) {
	var sub types.Submission

	data, err := os.ReadFile(path)
	if err != nil {
		return sub, fmt.Errorf("failed to read submission: %w", err)
	}
	if err := yaml.Unmarshal(data, &sub); err != nil {
		return sub, fmt.Errorf("failed to parse submission %s: %w", path, err)
	}

	if itemsCSV != "" {
		items, err := csvparser.LoadLineItems(itemsCSV, cfg.CSV, cfg.Sources.ReferenceHeader, cfg.Sources.Columns)
		if err != nil {
			return sub, err
		}
		sub.Items = items
	}

	sub.TransmittalNo = strings.TrimSpace(sub.TransmittalNo)
	return sub, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
