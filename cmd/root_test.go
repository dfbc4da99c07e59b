//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"archive", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "wa-frontend", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestArchiveCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range archiveCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"sync", "clear-cache", "status", "export", "migrate"} {
		assert.True(t, names[name], "expected archive subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestArchiveSyncCommand_Flags(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"url", ""},
		{"dry-run", "false"},
		{"validation-batch-size", "5000"},
		{"commit-batch-size", "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := archiveSyncCmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestArchiveStatusCommand_Flags(t *testing.T) {
	limit := archiveStatusCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "20", limit.DefValue)

	output := archiveStatusCmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "table", output.DefValue)
}

func TestArchiveExportCommand_Flags(t *testing.T) {
	format := archiveExportCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "csv", format.DefValue)

	out := archiveExportCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "-", out.DefValue)
}

func TestArchiveClearCacheCommand_Flags(t *testing.T) {
	flag := archiveClearCacheCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
