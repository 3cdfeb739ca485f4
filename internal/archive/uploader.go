package archive

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/ReportDrop/internal/metrics"
	pdfutil "github.com/dharsanguruparan/ReportDrop/internal/pdf"
)

// ObjectStore receives archived PDFs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Recorder notes archived PDFs in the run ledger.
type Recorder interface {
	MarkArchived(ctx context.Context, token, key string, pages int) error
}

// Job is one PDF to archive.
type Job struct {
	Token string
	Key   string
	Data  []byte
}

// Uploader archives PDFs on a fixed pool of goroutines so the request that
// produced them does not wait on object storage.
type Uploader struct {
	store   ObjectStore
	ledger  Recorder
	logger  *zap.Logger
	metrics *metrics.Metrics
	queue   chan Job
	workers int
	wg      sync.WaitGroup
}

// NewUploader builds an Uploader with queue capacity tied to worker count.
// m may be nil.
func NewUploader(store ObjectStore, ledger Recorder, workers int, logger *zap.Logger, m *metrics.Metrics) *Uploader {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		store:   store,
		ledger:  ledger,
		logger:  logger,
		metrics: m,
		queue:   make(chan Job, workers*4),
		workers: workers,
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (u *Uploader) Start(ctx context.Context) {
	for i := 0; i < u.workers; i++ {
		u.wg.Add(1)
		go u.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (u *Uploader) Wait() {
	u.wg.Wait()
}

// Submit queues a job. When the queue is full the job is dropped and false is
// returned.
func (u *Uploader) Submit(job Job) bool {
	select {
	case u.queue <- job:
		return true
	default:
		u.logger.Warn("archive queue full, dropping job", zap.String("token", job.Token))
		u.count("dropped")
		return false
	}
}

func (u *Uploader) worker(ctx context.Context) {
	defer u.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-u.queue:
			u.process(ctx, job)
		}
	}
}

func (u *Uploader) process(ctx context.Context, job Job) {
	pages, err := pdfutil.PageCount(job.Data)
	if err != nil {
		// Still archived: the bytes are what the client received.
		u.logger.Warn("archived pdf did not parse", zap.String("token", job.Token), zap.Error(err))
	}
	if err := u.store.Put(ctx, job.Key, job.Data); err != nil {
		u.logger.Error("archive upload failed", zap.String("token", job.Token), zap.String("key", job.Key), zap.Error(err))
		u.count("failed")
		return
	}
	if err := u.ledger.MarkArchived(ctx, job.Token, job.Key, pages); err != nil {
		u.logger.Warn("record archive failed", zap.String("token", job.Token), zap.Error(err))
	}
	u.count("stored")
	u.logger.Info("report archived",
		zap.String("token", job.Token),
		zap.String("key", job.Key),
		zap.Int("pages", pages),
		zap.Int("bytes", len(job.Data)))
}

func (u *Uploader) count(result string) {
	if u.metrics != nil {
		u.metrics.ArchiveTotal.WithLabelValues(result).Inc()
	}
}
