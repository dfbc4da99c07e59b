package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nationalarchives/wa-frontend/internal/archive"
)

// purger is implemented by the caches backed by a database table.
type purger interface {
	Purge(ctx context.Context) (int, error)
}

var archiveClearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Clear the cached archive views",
	Long:  "Removes the cached character list and every cached records bucket from the shared cache. Expired entries are purged as well.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "archive.clear_cache"))
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if err := cfg.Validate("cache"); err != nil {
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

		archive.NewInvalidator(c).Invalidate(ctx, dryRun)

		if p, ok := c.(purger); ok && !dryRun {
			n, err := p.Purge(ctx)
			if err != nil {
				log.Warn("purge expired cache entries", zap.Error(err))
			} else {
				log.Info("purged expired cache entries", zap.Int("count", n))
			}
		}
		return nil
	},
}

func init() {
	archiveClearCacheCmd.Flags().Bool("dry-run", false, "log what would be cleared without clearing it")
	archiveCmd.AddCommand(archiveClearCacheCmd)
}
