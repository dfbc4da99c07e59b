package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nationalarchives/wa-frontend/internal/model"
	"github.com/nationalarchives/wa-frontend/internal/store"
)

var archiveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive sync history",
	Long:  "Displays the most recent archive sync runs with their statistics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")
		if output != "table" && output != "yaml" {
			return eris.Errorf("archive status: --output must be table or yaml (got %q)", output)
		}

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "archive status")
		}
		if len(runs) == 0 {
			zap.L().Info("no sync runs found, run 'archive sync' to populate the directory")
			return nil
		}

		if output == "yaml" {
			return writeRunsYAML(os.Stdout, runs)
		}
		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	archiveStatusCmd.Flags().Int("limit", store.DefaultRunLimit, "number of runs to show")
	archiveStatusCmd.Flags().String("output", "table", "output format: table or yaml")
	archiveCmd.AddCommand(archiveStatusCmd)
}

// formatRuns writes a tabular representation of sync runs to out.
func formatRuns(out io.Writer, runs []model.SyncRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMODE\tSTATUS\tSTARTED\tDURATION\tCREATED\tUPDATED\tSKIPPED\tDELETED\tERRORS\tMESSAGE")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t--------\t-------\t-------\t-------\t-------\t------\t-------")

	for _, r := range runs {
		dur := "-"
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		mode := "live"
		if r.DryRun {
			mode = "dry-run"
		}

		created, updated, skipped, deleted, errs := "-", "-", "-", "-", "-"
		if s := r.Stats; s != nil {
			created = fmt.Sprint(s.Created)
			updated = fmt.Sprint(s.Updated)
			skipped = fmt.Sprint(s.Skipped)
			deleted = fmt.Sprint(s.Deleted)
			if s.Deleted == model.DeleteFailed {
				deleted = "failed"
			}
			errs = fmt.Sprint(s.ValidationErrors + s.DatabaseErrors)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID),
			mode,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			created, updated, skipped, deleted, errs,
			truncate(r.Error, 60),
		)
	}
	_ = w.Flush()
}

func writeRunsYAML(out io.Writer, runs []model.SyncRun) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return eris.Wrap(err, "archive status: encode yaml")
	}
	return eris.Wrap(enc.Close(), "archive status: flush yaml")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
