// Package pipeline turns a report submission into a PDF: it resolves the
// bundle, merges stored assets, stages per-request copies of the bundle,
// renders them and removes the copies again.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/ReportDrop/internal/archive"
	"github.com/dharsanguruparan/ReportDrop/internal/assets"
	"github.com/dharsanguruparan/ReportDrop/internal/catalog"
	"github.com/dharsanguruparan/ReportDrop/internal/metrics"
	"github.com/dharsanguruparan/ReportDrop/internal/model"
	"github.com/dharsanguruparan/ReportDrop/internal/render"
	"github.com/dharsanguruparan/ReportDrop/internal/staging"
)

// ErrUnsupportedPayload is returned for submissions the pipeline cannot
// interpret, such as a QR batch that is not a JSON array.
var ErrUnsupportedPayload = errors.New("unsupported payload")

// Ledger records run state. Errors are logged by the pipeline and never fail a
// run.
type Ledger interface {
	Create(ctx context.Context, run *model.Run) error
	MarkState(ctx context.Context, token string, state model.RunState) error
	MarkFailed(ctx context.Context, token, msg string) error
	MarkRendered(ctx context.Context, token string, state model.RunState, bytes int64, msg string) error
}

// Archiver accepts streamed PDFs for asynchronous upload.
type Archiver interface {
	Submit(job archive.Job) bool
}

// TokenReceiver is implemented by writers that want the run token before any
// PDF bytes arrive, for example to expose it in a response header.
type TokenReceiver interface {
	ReceiveToken(token string)
}

// Config holds the settings the pipeline needs from the process configuration.
type Config struct {
	// BaseURL is where the renderer reaches the /static/ file server.
	BaseURL        string
	QRDelayPerItem time.Duration
}

// Deps are the collaborators of a Pipeline. Catalog, Enricher and Renderer
// are required; the rest may be nil.
type Deps struct {
	Catalog  *catalog.Catalog
	Enricher *assets.Enricher
	Renderer render.Renderer
	Ledger   Ledger
	Archiver Archiver
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Pipeline runs report and QR sheet generation.
type Pipeline struct {
	cfg      Config
	catalog  *catalog.Catalog
	writer   *staging.Writer
	enricher *assets.Enricher
	renderer render.Renderer
	ledger   Ledger
	archiver Archiver
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New builds a Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Catalog == nil || deps.Enricher == nil || deps.Renderer == nil {
		return nil, errors.New("pipeline: catalog, enricher and renderer are required")
	}
	if deps.Ledger == nil {
		deps.Ledger = nopLedger{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		catalog:  deps.Catalog,
		writer:   staging.NewWriter(deps.Catalog),
		enricher: deps.Enricher,
		renderer: deps.Renderer,
		ledger:   deps.Ledger,
		archiver: deps.Archiver,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}, nil
}

// Result describes a finished run.
type Result struct {
	Token  string
	Kind   string
	Bundle string
	// Bytes is the number of PDF bytes written to the caller.
	Bytes int64
	// State is the terminal pipeline state before cleanup.
	State model.RunState
}

// GenerateReport renders one inspection report into w. The returned Result is
// non-nil whenever a token was allocated, including on failure.
func (p *Pipeline) GenerateReport(ctx context.Context, req *model.ReportRequest, w io.Writer) (*Result, error) {
	bundle := p.catalog.Resolve(req.Kind())
	ns := staging.NewNamespace(bundle.Dir)
	res := &Result{Token: ns.Token, Kind: bundle.Kind, Bundle: bundle.Name, State: model.StateReceived}
	announce(w, ns.Token)
	p.record(res, p.ledger.Create(ledgerCtx(ctx), &model.Run{
		Token:    ns.Token,
		Kind:     bundle.Kind,
		ClientID: req.ClientID,
		RecordID: req.ID,
		State:    model.StateReceived,
	}))

	req.FormatModifiedAt()
	p.enricher.Enrich(ctx, req)
	p.transition(ctx, res, model.StateEnriched)

	data, err := json.Marshal(req)
	if err != nil {
		return res, p.abort(ctx, res, fmt.Errorf("encode report: %w", err))
	}
	fields, err := req.Fields()
	if err != nil {
		return res, p.abort(ctx, res, err)
	}

	job := run{
		bundle: bundle,
		ns:     ns,
		input:  staging.Input{Data: data, Fields: fields},
		options: func(ns *staging.Namespace) render.Options {
			return render.ReportOptions(p.pageURL(bundle.Name, ns.File(staging.ArtifactHeader)), p.blankURL())
		},
	}
	return res, p.execute(ctx, res, job, w)
}

// GenerateQRCodes renders a QR code sheet for items, which must be a JSON
// array. The page gets a JavaScript delay proportional to the item count so
// every code is drawn before printing.
func (p *Pipeline) GenerateQRCodes(ctx context.Context, items json.RawMessage, w io.Writer) (*Result, error) {
	trimmed := bytes.TrimSpace(items)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: qr codes must be a JSON array", ErrUnsupportedPayload)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedPayload, err)
	}

	bundle := p.catalog.QRCodes()
	ns := staging.NewNamespace(bundle.Dir)
	res := &Result{Token: ns.Token, Kind: bundle.Kind, Bundle: bundle.Name, State: model.StateReceived}
	announce(w, ns.Token)
	p.record(res, p.ledger.Create(ledgerCtx(ctx), &model.Run{
		Token: ns.Token,
		Kind:  bundle.Kind,
		State: model.StateReceived,
	}))

	job := run{
		bundle: bundle,
		ns:     ns,
		input:  staging.Input{Data: trimmed},
		options: func(*staging.Namespace) render.Options {
			return render.QRCodeOptions(p.blankURL(), len(list), p.cfg.QRDelayPerItem)
		},
	}
	return res, p.execute(ctx, res, job, w)
}

type run struct {
	bundle  catalog.Bundle
	ns      *staging.Namespace
	input   staging.Input
	options func(*staging.Namespace) render.Options
}

// execute stages, renders and cleans up. Cleanup runs whatever happened once
// staging has started.
func (p *Pipeline) execute(ctx context.Context, res *Result, job run, w io.Writer) error {
	defer p.cleanup(ctx, res, job.ns)

	if err := p.writer.Stage(ctx, job.bundle, job.ns, job.input); err != nil {
		return p.abort(ctx, res, err)
	}
	p.transition(ctx, res, model.StateStaged)

	url := p.pageURL(job.bundle.Name, job.ns.File(staging.ArtifactIndex))
	opts := job.options(job.ns)
	p.transition(ctx, res, model.StateRendering)

	out := &countingWriter{w: w}
	var archived *bytes.Buffer
	if p.archiver != nil {
		archived = &bytes.Buffer{}
		out.w = io.MultiWriter(w, archived)
	}

	start := time.Now()
	err := p.renderer.Render(ctx, url, opts, out)
	elapsed := time.Since(start)
	res.Bytes = out.n
	if p.metrics != nil {
		p.metrics.RenderDuration.WithLabelValues(bundleLabel(res.Bundle)).Observe(elapsed.Seconds())
		p.metrics.RenderedBytes.Add(float64(out.n))
	}

	if err != nil {
		res.State = model.StateRenderFailed
		p.logger.Error("render failed",
			zap.String("token", res.Token),
			zap.String("bundle", res.Bundle),
			zap.String("url", url),
			zap.Int64("bytes", out.n),
			zap.Error(err))
		p.record(res, p.ledger.MarkRendered(ledgerCtx(ctx), res.Token, res.State, out.n, err.Error()))
		p.count(res)
		return err
	}

	res.State = model.StateStreamed
	msg := ""
	if archived != nil && !p.archiver.Submit(archive.Job{
		Token: res.Token,
		Key:   archive.Key(res.Bundle, res.Token),
		Data:  archived.Bytes(),
	}) {
		msg = "archive skipped: queue full"
	}
	p.record(res, p.ledger.MarkRendered(ledgerCtx(ctx), res.Token, res.State, out.n, msg))
	p.count(res)
	p.logger.Info("report streamed",
		zap.String("token", res.Token),
		zap.String("bundle", res.Bundle),
		zap.Int64("bytes", out.n),
		zap.Duration("render", elapsed))
	return nil
}

func (p *Pipeline) cleanup(ctx context.Context, res *Result, ns *staging.Namespace) {
	errs := staging.Remove(ns.Dir, ns.Files())
	for _, err := range errs {
		p.logger.Error("staging cleanup failed",
			zap.String("token", res.Token),
			zap.String("dir", ns.Dir),
			zap.Error(err))
		if p.metrics != nil {
			p.metrics.CleanupFailures.Inc()
		}
	}
	p.record(res, p.ledger.MarkState(ledgerCtx(ctx), res.Token, model.StateCleaned))
}

// abort records a failure before rendering started and returns err.
func (p *Pipeline) abort(ctx context.Context, res *Result, err error) error {
	res.State = model.StateFailed
	p.logger.Warn("report aborted",
		zap.String("token", res.Token),
		zap.String("kind", res.Kind),
		zap.Error(err))
	p.record(res, p.ledger.MarkFailed(ledgerCtx(ctx), res.Token, err.Error()))
	p.count(res)
	return err
}

func (p *Pipeline) transition(ctx context.Context, res *Result, state model.RunState) {
	res.State = state
	p.record(res, p.ledger.MarkState(ledgerCtx(ctx), res.Token, state))
}

func (p *Pipeline) record(res *Result, err error) {
	if err != nil {
		p.logger.Warn("run ledger update failed",
			zap.String("token", res.Token),
			zap.String("state", string(res.State)),
			zap.Error(err))
	}
}

func (p *Pipeline) count(res *Result) {
	if p.metrics != nil {
		p.metrics.ReportsTotal.WithLabelValues(bundleLabel(res.Bundle), string(res.State)).Inc()
	}
}

func (p *Pipeline) pageURL(bundle, file string) string {
	return p.cfg.BaseURL + "/static/" + bundle + "/" + file
}

func (p *Pipeline) blankURL() string {
	return p.pageURL(catalog.CommonDir, catalog.BlankFile)
}

func announce(w io.Writer, token string) {
	if tr, ok := w.(TokenReceiver); ok {
		tr.ReceiveToken(token)
	}
}

func bundleLabel(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}

// ledgerCtx keeps ledger writes going after the caller disconnects so the
// final states are still recorded.
func ledgerCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

type nopLedger struct{}

func (nopLedger) Create(context.Context, *model.Run) error                { return nil }
func (nopLedger) MarkState(context.Context, string, model.RunState) error { return nil }
func (nopLedger) MarkFailed(context.Context, string, string) error        { return nil }
func (nopLedger) MarkRendered(context.Context, string, model.RunState, int64, string) error {
	return nil
}
