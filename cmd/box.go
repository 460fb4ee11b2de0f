package main

import (
	"encoding/csv"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var boxCmd = &cobra.Command{
	Use:   "box",
	Short: "Download files and read spreadsheets from Box",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("box")
	},
}

var boxDownloadCmd = &cobra.Command{
	Use:   "download <file-id> <path>",
	Short: "Download a Box file to a local path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := newBoxClient(cfg.Box)
		if err != nil {
			return err
		}
		n, err := bc.Download(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", n, args[1])
		return nil
	},
}

var boxReadCmd = &cobra.Command{
	Use:   "read <file-id>",
	Short: "Print the first sheet of a Box XLSX file as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bc, err := newBoxClient(cfg.Box)
		if err != nil {
			return err
		}
		rows, err := bc.ReadSpreadsheet(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := csv.NewWriter(cmd.OutOrStdout())
		if err := w.WriteAll(rows); err != nil {
			return eris.Wrap(err, "box read: write csv")
		}
		return nil
	},
}

func init() {
	boxCmd.AddCommand(boxDownloadCmd)
	boxCmd.AddCommand(boxReadCmd)
	rootCmd.AddCommand(boxCmd)
}
