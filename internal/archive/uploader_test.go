package archive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/ReportDrop/internal/metrics"
	"github.com/dharsanguruparan/ReportDrop/internal/model"
	"github.com/dharsanguruparan/ReportDrop/internal/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func TestKey(t *testing.T) {
	assert.Equal(t, "reports/alarm/tok.pdf", Key("alarm", "tok"))
}

func TestUploaderArchivesAndRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger := storage.NewMemoryStore(0)
	require.NoError(t, ledger.Create(ctx, &model.Run{Token: "t1"}))
	store := &fakeStore{}
	m := metrics.New("test")

	u := NewUploader(store, ledger, 1, nil, m)
	u.Start(ctx)
	require.True(t, u.Submit(Job{Token: "t1", Key: Key("alarm", "t1"), Data: []byte("%PDF-1.4 truncated")}))

	assert.Eventually(t, func() bool { return store.has("reports/alarm/t1.pdf") }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		run, err := ledger.Get(ctx, "t1")
		return err == nil && run.ArchiveKey == "reports/alarm/t1.pdf"
	}, time.Second, 10*time.Millisecond)

	cancel()
	u.Wait()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchiveTotal.WithLabelValues("stored")))
}

func TestUploaderUploadFailure(t *testing.T) {
	ctx := context.Background()
	ledger := storage.NewMemoryStore(0)
	require.NoError(t, ledger.Create(ctx, &model.Run{Token: "t1"}))
	m := metrics.New("test")
	u := NewUploader(&fakeStore{err: errors.New("bucket gone")}, ledger, 1, nil, m)

	u.process(ctx, Job{Token: "t1", Key: "k", Data: []byte("x")})

	run, err := ledger.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, run.ArchiveKey)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchiveTotal.WithLabelValues("failed")))
}

func TestUploaderDropsWhenFull(t *testing.T) {
	u := NewUploader(&fakeStore{}, storage.NewMemoryStore(0), 1, nil, nil)
	for i := 0; i < 4; i++ {
		require.True(t, u.Submit(Job{Token: "t"}))
	}
	assert.False(t, u.Submit(Job{Token: "overflow"}))
}
