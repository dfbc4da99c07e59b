package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var archiveMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply archive schema migrations",
	Long:  "Creates or upgrades the archive_records, archive_sync_log and archive_cache tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fmt.Println("Migrations complete")
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveMigrateCmd)
}
