package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/archive"
	"github.com/nationalarchives/wa-frontend/internal/fetcher"
	"github.com/nationalarchives/wa-frontend/internal/metrics"
	"github.com/nationalarchives/wa-frontend/internal/model"
)

var archiveSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the archive directory from its JSON snapshot",
	Long: `Fetch the full archive snapshot, validate every entry, save new and changed
records in commit batches and remove records that are no longer in the snapshot.

The snapshot URL comes from --url, then archive.source_url, then ARCHIVE_JSON_URL.
Use --dry-run to report what would change without writing records or clearing the cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		log := zap.L().With(zap.String("command", "archive.sync"))

		opts, err := parseArchiveSyncOpts(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c, err := initCache(st)
		if err != nil {
			return err
		}

		source := fetcher.NewSnapshotSource(
			fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				UserAgent:  cfg.Archive.UserAgent,
				Timeout:    cfg.Archive.FetchTimeout(),
				MaxRetries: cfg.Archive.FetchRetries,
			}),
			fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: cfg.Archive.FetchTimeout()}),
			cfg.Archive.TempDir,
		)

		log.Info("starting archive sync",
			zap.String("url", opts.SourceURL),
			zap.Bool("dry_run", opts.DryRun),
			zap.Int("validation_batch_size", opts.ValidationBatchSize),
			zap.Int("commit_batch_size", opts.CommitBatchSize),
		)

		stats, runErr := archive.NewSyncer(st, source, c).Run(ctx, opts)
		pushMetrics(ctx, log)
		if runErr != nil {
			return eris.Wrap(runErr, "archive sync")
		}

		printSyncSummary(os.Stdout, opts.DryRun, stats)
		return nil
	},
}

func init() {
	f := archiveSyncCmd.Flags()
	f.String("url", "", "snapshot URL (default from archive.source_url or ARCHIVE_JSON_URL)")
	f.Bool("dry-run", false, "report changes without writing records or clearing the cache")
	f.Int("validation-batch-size", archive.DefaultValidationBatchSize, "entries validated per batch")
	f.Int("commit-batch-size", archive.DefaultCommitBatchSize, "records saved per transaction")
	archiveCmd.AddCommand(archiveSyncCmd)
}

// parseArchiveSyncOpts resolves flags against config. Flags left at their
// defaults fall back to the configured batch sizes.
func parseArchiveSyncOpts(cmd *cobra.Command) (archive.Options, error) {
	url, _ := cmd.Flags().GetString("url")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	vbs, _ := cmd.Flags().GetInt("validation-batch-size")
	cbs, _ := cmd.Flags().GetInt("commit-batch-size")

	if url == "" {
		url = cfg.Archive.SourceURL
	}
	if url == "" {
		return archive.Options{}, eris.New("archive sync: no source URL (use --url, archive.source_url or ARCHIVE_JSON_URL)")
	}
	if !cmd.Flags().Changed("validation-batch-size") && cfg.Archive.ValidationBatchSize > 0 {
		vbs = cfg.Archive.ValidationBatchSize
	}
	if !cmd.Flags().Changed("commit-batch-size") && cfg.Archive.CommitBatchSize > 0 {
		cbs = cfg.Archive.CommitBatchSize
	}
	if vbs <= 0 || cbs <= 0 {
		return archive.Options{}, eris.Errorf("archive sync: batch sizes must be positive (validation=%d, commit=%d)", vbs, cbs)
	}

	return archive.Options{
		SourceURL:           url,
		DryRun:              dryRun,
		ValidationBatchSize: vbs,
		CommitBatchSize:     cbs,
	}, nil
}

// pushMetrics sends run metrics to the push-gateway when one is configured.
func pushMetrics(ctx context.Context, log *zap.Logger) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := metrics.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}
}

// printSyncSummary writes the run statistics as a two-column table.
func printSyncSummary(out io.Writer, dryRun bool, s model.SyncStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "MODE\t%s\n", metrics.Mode(dryRun))
	_, _ = fmt.Fprintf(w, "TOTAL\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "CREATED\t%d\n", s.Created)
	_, _ = fmt.Fprintf(w, "UPDATED\t%d\n", s.Updated)
	_, _ = fmt.Fprintf(w, "SKIPPED\t%d\n", s.Skipped)
	if s.Deleted == model.DeleteFailed {
		_, _ = fmt.Fprintln(w, "DELETED\tfailed")
	} else {
		_, _ = fmt.Fprintf(w, "DELETED\t%d\n", s.Deleted)
	}
	_, _ = fmt.Fprintf(w, "VALIDATION ERRORS\t%d\n", s.ValidationErrors)
	_, _ = fmt.Fprintf(w, "DATABASE ERRORS\t%d\n", s.DatabaseErrors)
	_ = w.Flush()
}
