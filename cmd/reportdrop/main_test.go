package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Cleanup(func() { templateDir = "" })
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestKindsCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	out := execute(t, "kinds", "--templates", "/srv/reports")
	assert.Contains(t, out, "Fire Hydrant")
	assert.Contains(t, out, filepath.Join("/srv/reports", "hydrants"))
}

func TestSweepCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	root := t.TempDir()
	dir := filepath.Join(root, "alarm")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	stale := filepath.Join(dir, "0b7d3e8a-4c1f-4a56-9b2e-7f7e2a1d9c30.json")
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	keep := filepath.Join(dir, "reportController.js")
	require.NoError(t, os.WriteFile(keep, []byte(""), 0o644))
	require.NoError(t, os.Chtimes(keep, old, old))

	out := execute(t, "sweep", "--templates", root, "--max-age", "1h")
	assert.Contains(t, out, "removed "+stale)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, keep)
}
