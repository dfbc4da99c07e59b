package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/export"
)

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the archive directory",
	Long:  "Writes every stored record, ordered by sort name, as CSV, XLSX or JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		formatFlag, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		if format == export.XLSX && outPath == "-" {
			return eris.New("archive export: xlsx needs --out with a file path")
		}

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListRecords(ctx)
		if err != nil {
			return eris.Wrap(err, "archive export: list records")
		}

		var w io.Writer = os.Stdout
		if outPath != "-" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrap(err, "archive export: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if err := export.Write(w, format, records); err != nil {
			return err
		}
		zap.L().Info("archive exported",
			zap.String("format", string(format)),
			zap.String("out", outPath),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	archiveExportCmd.Flags().String("format", "csv", "output format: csv, xlsx or json")
	archiveExportCmd.Flags().String("out", "-", "output file path (- for stdout)")
	archiveCmd.AddCommand(archiveExportCmd)
}
