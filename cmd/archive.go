package main

import (
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the web archive directory",
	Long:  "Synchronises the archive directory from its source snapshot and maintains its cache, run log and schema.",
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
