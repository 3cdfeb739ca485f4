package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/ReportDrop/internal/metrics"
	"github.com/dharsanguruparan/ReportDrop/internal/queue"
)

const token = "0b7d3e8a-4c1f-4a56-9b2e-7f7e2a1d9c30"

func TestHandleSweep(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := now.Add(-time.Hour)
	for _, name := range []string{token + ".js", token + ".json", "index.html"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, old, old))
	}
	fresh := filepath.Join(dir, "1a2b3c4d-0000-4000-8000-000000000000.html")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	m := metrics.New("test")
	p := NewProcessor([]string{dir, filepath.Join(dir, "missing")}, m, nil)
	p.now = func() time.Time { return now }

	task, err := queue.NewSweepTask(30 * time.Minute)
	require.NoError(t, err)
	require.NoError(t, p.handleSweep(context.Background(), task))

	assert.NoFileExists(t, filepath.Join(dir, token+".js"))
	assert.NoFileExists(t, filepath.Join(dir, token+".json"))
	assert.FileExists(t, filepath.Join(dir, "index.html"))
	assert.FileExists(t, fresh)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SweptArtifacts))
}

func TestHandleSweepRejectsBadPayload(t *testing.T) {
	p := NewProcessor(nil, nil, nil)
	err := p.handleSweep(context.Background(), asynq.NewTask(queue.SweepStagingTask, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.handleSweep(context.Background(), asynq.NewTask(queue.SweepStagingTask, []byte(`{"max_age_seconds":0}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleSweepWithoutMetrics(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, token+".html")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	p := NewProcessor([]string{dir}, nil, nil)
	task, err := queue.NewSweepTask(time.Minute)
	require.NoError(t, err)
	require.NoError(t, p.handleSweep(context.Background(), task))
	assert.NoFileExists(t, stale)
}
