package staging

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/ReportDrop/internal/catalog"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newFixtureCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "common", catalog.ContactPartialFile), `<b>{{data.clientName}}</b>`)
	writeFixture(t, filepath.Join(root, "common", catalog.BlankFile), `<html></html>`)
	writeFixture(t, filepath.Join(root, "alarm", catalog.ControllerFile), `$http.get("./data.json"); // data.json metadata.json`)
	writeFixture(t, filepath.Join(root, "alarm", catalog.IndexFile), `<script src="reportController.js"></script>`)
	writeFixture(t, filepath.Join(root, "alarm", catalog.HeaderFile), `<h1>{{{header-contactInfo}}} {{data.logoDir}}</h1>`)
	writeFixture(t, filepath.Join(root, "qrcodes", catalog.ControllerFile), `load("data.json")`)
	writeFixture(t, filepath.Join(root, "qrcodes", catalog.IndexFile), `<script src="reportController.js"></script>`)
	return catalog.New(root, map[string]string{"Alarm": "alarm"})
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRewrite(t *testing.T) {
	src := `get("data.json"); get('./data.json'); mydata.json data.jsonp data_json`
	out := Rewrite(src, Binding{Placeholder: "data.json", Target: "tok.json"})
	assert.Equal(t, `get("tok.json"); get('./tok.json'); mydata.json data.jsonp data_json`, out)

	t.Run("idempotent", func(t *testing.T) {
		again := Rewrite(out, Binding{Placeholder: "data.json", Target: "tok.json"})
		assert.Equal(t, out, again)
	})
}

func TestNamespace(t *testing.T) {
	a := NewNamespace("/tmp/x")
	b := NewNamespace("/tmp/x")
	assert.NotEqual(t, a.Token, b.Token)
	assert.Equal(t, a.Token+"header.html", a.File(ArtifactHeader))
	assert.Equal(t, filepath.Join("/tmp/x", a.Token+".json"), a.Path(ArtifactData))
	assert.Empty(t, a.Files())
	assert.True(t, IsArtifact(a.File(ArtifactController)))
	assert.True(t, IsArtifact(a.File(ArtifactHeader)))
	assert.False(t, IsArtifact("index.html"))
	assert.False(t, IsArtifact(a.Token+".pdf"))
}

func TestStageReportBundle(t *testing.T) {
	c := newFixtureCatalog(t)
	bundle := c.Resolve("Alarm")
	before := listDir(t, bundle.Dir)

	ns := NewNamespace(bundle.Dir)
	err := NewWriter(c).Stage(context.Background(), bundle, ns, Input{
		Data:   []byte(`{"clientName":"Acme"}`),
		Fields: map[string]any{"clientName": "Acme", "logoDir": ""},
	})
	require.NoError(t, err)

	files := ns.Files()
	require.Len(t, files, 4)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f, ns.Token), f)
		assert.FileExists(t, filepath.Join(bundle.Dir, f))
	}

	ctrl, _ := os.ReadFile(ns.Path(ArtifactController))
	assert.Equal(t, `$http.get("./`+ns.Token+`.json"); // `+ns.Token+`.json metadata.json`, string(ctrl))
	index, _ := os.ReadFile(ns.Path(ArtifactIndex))
	assert.Equal(t, `<script src="`+ns.Token+`.js"></script>`, string(index))
	header, _ := os.ReadFile(ns.Path(ArtifactHeader))
	assert.Equal(t, `<h1><b>Acme</b> </h1>`, string(header))
	data, _ := os.ReadFile(ns.Path(ArtifactData))
	assert.JSONEq(t, `{"clientName":"Acme"}`, string(data))

	assert.Empty(t, Remove(ns.Dir, files))
	assert.Equal(t, before, listDir(t, bundle.Dir))
}

func TestStageQRBundle(t *testing.T) {
	c := newFixtureCatalog(t)
	bundle := c.QRCodes()
	ns := NewNamespace(bundle.Dir)
	require.NoError(t, NewWriter(c).Stage(context.Background(), bundle, ns, Input{Data: []byte(`[1,2,3]`)}))

	assert.Equal(t, []string{ns.Token + ".js", ns.Token + ".html", ns.Token + ".json"}, ns.Files())
	assert.NoFileExists(t, ns.Path(ArtifactHeader))
	assert.Empty(t, Remove(ns.Dir, ns.Files()))
}

func TestStageUnknownBundle(t *testing.T) {
	c := newFixtureCatalog(t)
	bundle := c.Resolve("Elevator")
	ns := NewNamespace(bundle.Dir)
	err := NewWriter(c).Stage(context.Background(), bundle, ns, Input{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStaging))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Empty(t, ns.Files())
}

func TestStageMissingHeaderLeavesCleanablePartialSet(t *testing.T) {
	c := newFixtureCatalog(t)
	bundle := c.Resolve("Alarm")
	require.NoError(t, os.Remove(filepath.Join(bundle.Dir, catalog.HeaderFile)))
	before := listDir(t, bundle.Dir)

	ns := NewNamespace(bundle.Dir)
	err := NewWriter(c).Stage(context.Background(), bundle, ns, Input{Data: []byte(`{}`)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStaging))
	assert.Len(t, ns.Files(), 2)

	assert.Empty(t, Remove(ns.Dir, ns.Files()))
	assert.Equal(t, before, listDir(t, bundle.Dir))
}

func TestStageCancelled(t *testing.T) {
	c := newFixtureCatalog(t)
	bundle := c.Resolve("Alarm")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ns := NewNamespace(bundle.Dir)
	err := NewWriter(c).Stage(ctx, bundle, ns, Input{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, ns.Files())
}

func TestRemoveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "a.json"), "{}")
	assert.Empty(t, Remove(dir, []string{"a.json", "missing.html"}))
	assert.Empty(t, Remove(dir, []string{"a.json"}))
	assert.NoFileExists(t, filepath.Join(dir, "a.json"))
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	stale := NewNamespace(dir)
	fresh := NewNamespace(dir)
	writeFixture(t, stale.Path(ArtifactIndex), "old")
	writeFixture(t, stale.Path(ArtifactHeader), "old")
	writeFixture(t, fresh.Path(ArtifactIndex), "new")
	writeFixture(t, filepath.Join(dir, catalog.IndexFile), "template")
	old := now.Add(-2 * time.Hour)
	for _, p := range []string{stale.Path(ArtifactIndex), stale.Path(ArtifactHeader), filepath.Join(dir, catalog.IndexFile)} {
		require.NoError(t, os.Chtimes(p, old, old))
	}

	res := Sweep([]string{dir, filepath.Join(dir, "missing")}, time.Hour, now)
	assert.Empty(t, res.Errors)
	assert.ElementsMatch(t, []string{stale.Path(ArtifactIndex), stale.Path(ArtifactHeader)}, res.Removed)
	assert.FileExists(t, fresh.Path(ArtifactIndex))
	assert.FileExists(t, filepath.Join(dir, catalog.IndexFile))
}
