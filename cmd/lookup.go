package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/guardianship-cli/internal/export"
	"github.com/sells-group/guardianship-cli/internal/model"
	"github.com/sells-group/guardianship-cli/internal/registry"
)

var (
	lookupCaseNumber string
	lookupPartyID    string
	lookupFormat     string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up a single guardianship case",
	Example: `  guardianship-cli lookup --case-number 49D08-1901-GU-000123
  guardianship-cli lookup --party-id 1234567 --format yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("lookup"); err != nil {
			return err
		}

		format, err := export.ParseFormat(lookupFormat)
		if err != nil {
			return err
		}
		if format == export.FormatXLSX {
			return eris.New("lookup: xlsx output is only supported by batch --output")
		}

		id, err := lookupIdentifier(lookupCaseNumber, lookupPartyID)
		if err != nil {
			return err
		}

		looker, err := newLooker(cfg.Registry)
		if err != nil {
			return err
		}

		return runLookup(cmd.Context(), looker, id, format, cmd.OutOrStdout())
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupCaseNumber, "case-number", "", "court case number to search for")
	lookupCmd.Flags().StringVar(&lookupPartyID, "party-id", "", "registry party id to fetch directly")
	lookupCmd.Flags().StringVar(&lookupFormat, "format", "json", "output format (json, yaml, csv)")
	lookupCmd.MarkFlagsMutuallyExclusive("case-number", "party-id")
	lookupCmd.MarkFlagsOneRequired("case-number", "party-id")
	rootCmd.AddCommand(lookupCmd)
}

func lookupIdentifier(caseNumber, partyID string) (registry.Identifier, error) {
	switch {
	case caseNumber != "" && partyID != "":
		return nil, eris.New("lookup: give --case-number or --party-id, not both")
	case caseNumber != "":
		return registry.CaseNumber(caseNumber), nil
	case partyID != "":
		return registry.PartyID(partyID), nil
	default:
		return nil, registry.ErrEmptyIdentifier
	}
}

// runLookup prints the record for id. The record is printed even when the
// lookup fails, so the output always has the full column set.
func runLookup(ctx context.Context, looker registry.Looker, id registry.Identifier, format export.Format, w io.Writer) error {
	rec, lookupErr := looker.Lookup(ctx, id)
	if lookupErr != nil {
		zap.L().Warn("lookup: failed",
			zap.String("mode", string(id.Mode())),
			zap.String("identifier", id.Value()),
			zap.Error(lookupErr),
		)
	}

	if err := export.Write(w, format, []model.CaseRecord{rec}); err != nil {
		return err
	}
	if lookupErr != nil {
		return eris.Wrap(lookupErr, "lookup")
	}
	return nil
}
