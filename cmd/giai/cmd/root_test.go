package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_SmartDefault_IndexesEmptyDir(t *testing.T) {
	// Given: an empty project directory
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() { _ = os.Chdir(oldDir) }()

	// When: executing with no arguments
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--skip-check"})

	_ = cmd.Execute()

	output := buf.String()
	assert.Contains(t, output, "Indexing", "Should report that indexing started")
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing with --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()

	// Then: it should show usage information
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "giai", "Help should mention program name")
	assert.Contains(t, output, "Usage:", "Help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	// Given: a root command

	// When: executing with --version
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	err := cmd.Execute()

	// Then: it should show version
	require.NoError(t, err)
	output := buf.String()
	// Accept either semantic version (0.1.x) or "dev" for test builds without ldflags
	hasVersion := strings.Contains(output, "0.1") || strings.Contains(output, "dev")
	assert.True(t, hasVersion, "Version output should contain version number (0.1.x) or 'dev'")
	assert.Contains(t, output, "giai", "Version output should mention program name")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: a root command

	// When: checking available commands
	cmd := NewRootCmd()
	subcommands := cmd.Commands()

	var commandNames []string
	for _, subcmd := range subcommands {
		commandNames = append(commandNames, subcmd.Name())
	}

	assert.Contains(t, commandNames, "index", "Should have index subcommand")
	assert.Contains(t, commandNames, "query", "Should have query subcommand")
	assert.Contains(t, commandNames, "graph", "Should have graph subcommand")
	assert.Contains(t, commandNames, "dsr", "Should have dsr subcommand")
	assert.Contains(t, commandNames, "init", "Should have init subcommand")
	assert.Contains(t, commandNames, "doctor", "Should have doctor subcommand")
	assert.Contains(t, commandNames, "status", "Should have status subcommand")
	assert.NotContains(t, commandNames, "serve", "Should not have a server subcommand")
}

func TestRootCmd_HasReindexFlag(t *testing.T) {
	// Given: a root command
	cmd := NewRootCmd()

	// Then: it should have --reindex flag
	flag := cmd.Flags().Lookup("reindex")
	assert.NotNil(t, flag, "Should have --reindex flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestIndexCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing index --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", "--help"})

	err := cmd.Execute()

	// Then: it should show index usage
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "index", "Index help should mention index")
}

func TestQueryCmd_ShowsHelp(t *testing.T) {
	// Given: a root command

	// When: executing query --help
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"query", "--help"})

	err := cmd.Execute()

	// Then: it should show query usage
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "query", "Query help should mention query")
}
