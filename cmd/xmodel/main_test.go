package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/xmodel/cmd/internal/workspacecfg"
	"github.com/lexcodex/xmodel/framework/model"
)

const libDoc = `<?model rules?>
<rules>
  <module target-namespace="sales">
    <rule name="ApplyTax"/>
  </module>
</rules>
`

const callerDoc = `<?model rules?>
<rules>
  <rule name="Caller">
    <action name="rule" rule-name="sales.ApplyTax"/>
    <action name="rule" rule-name="Nope"/>
  </rule>
</rules>
`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"lib.xml":            libDoc,
		"calls/main.xml":     callerDoc,
		"node_modules/x.xml": callerDoc,
	}
	for rel, text := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckTextReportsErrors(t *testing.T) {
	root := writeWorkspace(t)
	out, err := execute(t, "check", root)
	require.ErrorIs(t, err, errFoundErrors)
	assert.Contains(t, out, filepath.Join("calls", "main.xml")+":5:")
	assert.Contains(t, out, "error ROC0001")
	assert.Contains(t, out, "2 files checked:")
	assert.NotContains(t, out, "node_modules")
}

func TestCheckJSON(t *testing.T) {
	root := writeWorkspace(t)
	out, err := execute(t, "check", root, "--format", "json")
	require.ErrorIs(t, err, errFoundErrors)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Files)
	assert.False(t, report.Truncated)
	var unresolved int
	for _, d := range report.Diagnostics {
		if d.Code == "ROC0001" {
			unresolved++
			assert.Equal(t, model.PathToURI(filepath.Join(root, "calls", "main.xml")), d.URI)
		}
	}
	assert.Equal(t, 1, unresolved)
}

func TestCheckCapMarksTruncated(t *testing.T) {
	root := writeWorkspace(t)
	// The exit status depends on which diagnostic survives the cap.
	out, _ := execute(t, "check", root, "--format", "json", "--max", "1")

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Truncated)
	assert.Len(t, report.Diagnostics, 1)
}

func TestCheckRejectsBadFlags(t *testing.T) {
	root := writeWorkspace(t)
	_, err := execute(t, "check", root, "--format", "yaml")
	require.ErrorContains(t, err, "unknown format")

	_, err = execute(t, "check", root, "--level", "everything")
	require.ErrorContains(t, err, "unknown detail level")
}

func TestWriteTextWithoutColor(t *testing.T) {
	var out bytes.Buffer
	report := checkReport{
		Files: 1,
		Diagnostics: []model.Diagnostic{{
			URI:      model.PathToURI("/ws/a.xml"),
			Range:    model.Range{Start: model.Position{Line: 1, Character: 2}},
			Severity: model.SeverityWarning,
			Code:     "DC0002",
			Message:  "variable x is never used",
		}},
		Truncated: true,
	}
	writeText(&out, "/ws", report, false)
	assert.Equal(t, "a.xml:2:3: warning DC0002: variable x is never used\n"+
		"1 files checked: 0 errors, 1 warnings, 0 information (truncated)\n", out.String())
}

func TestSymbols(t *testing.T) {
	root := writeWorkspace(t)
	out, err := execute(t, "symbols", root, "--query", "sales.")
	require.NoError(t, err)
	assert.Contains(t, out, "sales.ApplyTax")
	assert.Contains(t, out, "lib.xml:4:")
	assert.NotContains(t, out, "Caller")

	out, err = execute(t, "symbols", root, "--query", "caller", "--exact")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInitWritesDefaults(t *testing.T) {
	root := t.TempDir()
	out, err := execute(t, "init", root)
	require.NoError(t, err)
	assert.Contains(t, out, workspacecfg.ConfigFileName)

	cfg, err := workspacecfg.Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{".xml"}, cfg.Extensions)
	assert.Equal(t, workspacecfg.DriverMemory, cfg.Store.Driver)

	_, err = execute(t, "init", root)
	require.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", root, "--force")
	require.NoError(t, err)
}
