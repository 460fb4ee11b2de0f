package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/guardianship-cli/internal/batch"
	"github.com/sells-group/guardianship-cli/internal/export"
	"github.com/sells-group/guardianship-cli/internal/model"
	"github.com/sells-group/guardianship-cli/pkg/box"
)

var (
	batchInput     string
	batchBoxFileID string
	batchColumn    string
	batchBy        string
	batchOutput    string
	batchLimit     int
	batchPersist   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Look up every case listed in a CSV, XLSX or Box spreadsheet",
	Example: `  guardianship-cli batch --input cases.csv --output results.csv
  guardianship-cli batch --box-file-id 1476681059130 --by party-id --output results.xlsx --persist`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg.Batch.Persist = cfg.Batch.Persist || batchPersist
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		mode, err := parseLookupMode(batchBy)
		if err != nil {
			return err
		}
		column := batchColumn
		if column == "" {
			column = defaultColumn(mode)
		}

		var source string
		var ids []string
		if batchBoxFileID != "" {
			if err := cfg.Validate("box"); err != nil {
				return err
			}
			bc, err := newBoxClient(cfg.Box)
			if err != nil {
				return err
			}
			source = "box:" + batchBoxFileID
			ids, err = readBoxIdentifiers(ctx, bc, batchBoxFileID, column)
			if err != nil {
				return err
			}
		} else {
			source = batchInput
			ids, err = batch.ReadInput(ctx, batchInput, column)
			if err != nil {
				return err
			}
		}
		if batchLimit > 0 && len(ids) > batchLimit {
			ids = ids[:batchLimit]
		}

		looker, err := newLooker(cfg.Registry)
		if err != nil {
			return err
		}

		opts := []batch.Option{batch.WithProgressEvery(cfg.Batch.ProgressEvery)}
		if cfg.Batch.Persist {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			opts = append(opts, batch.WithStore(st))
		}

		res, runErr := batch.NewRunner(looker, mode, opts...).Run(ctx, source, ids)
		if res == nil {
			return runErr
		}

		if err := writeBatchOutput(cmd.OutOrStdout(), batchOutput, res.Records); err != nil {
			return err
		}
		formatBatchSummary(cmd.ErrOrStderr(), res)
		return runErr
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "CSV or XLSX file listing the identifiers")
	batchCmd.Flags().StringVar(&batchBoxFileID, "box-file-id", "", "read the identifiers from this Box spreadsheet instead of --input")
	batchCmd.Flags().StringVar(&batchColumn, "column", "", "identifier column (default case_number, or registry_id with --by party-id)")
	batchCmd.Flags().StringVar(&batchBy, "by", string(model.LookupByCaseNumber), "lookup mode: case-number or party-id")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "output file (.csv, .xlsx, .json, .yaml); CSV to stdout when empty")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of rows to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchPersist, "persist", false, "save the run, records and failures to the result store")
	batchCmd.MarkFlagsMutuallyExclusive("input", "box-file-id")
	batchCmd.MarkFlagsOneRequired("input", "box-file-id")
	rootCmd.AddCommand(batchCmd)
}

func parseLookupMode(s string) (model.LookupMode, error) {
	switch m := model.LookupMode(s); m {
	case model.LookupByCaseNumber, model.LookupByPartyID:
		return m, nil
	default:
		return "", eris.Errorf("batch: unknown lookup mode %q (want %s or %s)", s, model.LookupByCaseNumber, model.LookupByPartyID)
	}
}

func defaultColumn(mode model.LookupMode) string {
	if mode == model.LookupByPartyID {
		return batch.PartyIDColumn
	}
	return batch.CaseNumberColumn
}

func readBoxIdentifiers(ctx context.Context, bc box.Client, fileID, column string) ([]string, error) {
	rows, err := bc.ReadSpreadsheet(ctx, fileID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("batch: read box spreadsheet", zap.String("file_id", fileID), zap.Int("rows", len(rows)))
	return batch.IdentifiersFromRows(rows, column)
}

func writeBatchOutput(stdout io.Writer, path string, records []model.CaseRecord) error {
	if path == "" {
		return export.WriteCSV(stdout, records)
	}
	if err := export.WriteFile(path, records); err != nil {
		return err
	}
	zap.L().Info("batch: wrote output", zap.String("path", path), zap.Int("records", len(records)))
	return nil
}

// formatBatchSummary writes the run totals to w.
func formatBatchSummary(out io.Writer, res *batch.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if res.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	}
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", res.Stats.Total)
	_, _ = fmt.Fprintf(w, "Found:\t%d\n", res.Stats.Found)
	_, _ = fmt.Fprintf(w, "Not found:\t%d\n", res.Stats.NotFound)
	_, _ = fmt.Fprintf(w, "Errors:\t%d\n", res.Stats.Errored)
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", res.Elapsed.Round(time.Second))
	_ = w.Flush()
}
