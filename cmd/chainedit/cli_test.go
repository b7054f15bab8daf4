package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so runs do not leak into
// each other through the package-level flag structs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CHAINEDIT_HOME", home)
	return home
}

func TestVersionCommand(t *testing.T) {
	withHome(t)
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestCatalogCommand(t *testing.T) {
	withHome(t)

	out, err := runCLI(t, "catalog", "--category", "web", "--filter", `severity == "critical"`)
	require.NoError(t, err)
	assert.Contains(t, out, "sql_injection")
	assert.Contains(t, out, "file_upload_bypass")
	assert.NotContains(t, out, "xss_attack")

	out, err = runCLI(t, "catalog", "--search", "zzz-nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "no templates match")

	out, err = runCLI(t, "catalog", "--presets")
	require.NoError(t, err)
	assert.Contains(t, out, "basic_pentest")
	assert.Contains(t, out, "port_scanning → network_sniffing")

	_, err = runCLI(t, "catalog", "--filter", "severity ==")
	assert.Error(t, err)
}

func TestBuildInspectExportFile(t *testing.T) {
	home := withHome(t)
	docPath := filepath.Join(home, "chain.json")

	out, err := runCLI(t, "build", "--preset", "basic_pentest", "-o", docPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+docPath)
	assert.Contains(t, out, "Basic Penetration Test")
	_, err = os.Stat(docPath)
	require.NoError(t, err)

	out, err = runCLI(t, "inspect", docPath)
	require.NoError(t, err)
	assert.Regexp(t, `nodes\s+4`, out)
	assert.Regexp(t, `edges\s+3`, out)
	assert.Regexp(t, `risk\s+critical`, out)
	assert.Regexp(t, `verdict\s+valid`, out)

	out, err = runCLI(t, "export", docPath, "--format", "mermaid", "--clusters")
	require.NoError(t, err)
	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, "subgraph")

	out, err = runCLI(t, "export", docPath, "--jq", ".nodes | length")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	out, err = runCLI(t, "export", docPath, "--format", "ascii")
	require.NoError(t, err)
	assert.Contains(t, out, "Port Scanning")

	pngPath := filepath.Join(home, "chain.png")
	_, err = runCLI(t, "export", docPath, "--format", "png", "-o", pngPath)
	require.NoError(t, err)
	png, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = runCLI(t, "inspect", docPath, "--strict")
	require.NoError(t, err)
}

func TestInspectStrictEmptyChain(t *testing.T) {
	home := withHome(t)
	docPath := filepath.Join(home, "empty.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{"version":1,"id":"empty","name":"Empty","nodes":[],"edges":[]}`), 0o644))

	out, err := runCLI(t, "inspect", docPath)
	require.NoError(t, err)
	assert.Regexp(t, `verdict\s+error`, out)
	assert.Contains(t, out, "chain has no nodes")

	_, err = runCLI(t, "inspect", docPath, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain has no nodes")
}

func TestBuildSaveAndExportByID(t *testing.T) {
	withHome(t)

	out, err := runCLI(t, "build", "--preset", "web_app_audit", "--name", "Audit", "--layout", "layered", "--save")
	require.NoError(t, err)
	m := regexp.MustCompile(`saved chain (\S+)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	chainID := m[1]

	out, err = runCLI(t, "export", chainID, "--jq", ".name")
	require.NoError(t, err)
	assert.Equal(t, "\"Audit\"\n", out)

	out, err = runCLI(t, "inspect", chainID)
	require.NoError(t, err)
	assert.Contains(t, out, "Audit")
	assert.Regexp(t, `nodes\s+5`, out)

	out, err = runCLI(t, "history", chainID)
	require.NoError(t, err)
	assert.Regexp(t, `1\s+manual\s+5\s+4`, out)

	out, err = runCLI(t, "export", chainID, "--revision", "1", "--jq", ".edges | length")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	_, err = runCLI(t, "export", chainID, "--revision", "7")
	assert.Error(t, err)

	_, err = runCLI(t, "history", "missing-chain")
	assert.Error(t, err)

	out, err = runCLI(t, "delete", chainID, "--vacuum")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted chain "+chainID)
	assert.Contains(t, out, "database compacted")

	_, err = runCLI(t, "export", chainID)
	assert.Error(t, err)

	_, err = runCLI(t, "delete", chainID)
	assert.Error(t, err)
}

func TestCommandErrors(t *testing.T) {
	withHome(t)

	_, err := runCLI(t, "build", "--preset", "nope")
	assert.Error(t, err)

	_, err = runCLI(t, "build", "--preset", "basic_pentest", "--layout", "circle")
	assert.Error(t, err)

	_, err = runCLI(t, "build")
	assert.Error(t, err, "preset is required")

	_, err = runCLI(t, "export", "missing-chain")
	assert.Error(t, err)

	_, err = runCLI(t, "export", "missing-chain", "--format", "mermaid", "--jq", ".")
	assert.Error(t, err)

	_, err = runCLI(t, "version", "--log-level", "loud")
	assert.Error(t, err)
}
