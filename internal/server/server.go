// Package server exposes the report pipeline over HTTP and serves the bundle
// directory the renderer loads staged pages from.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/ReportDrop/internal/catalog"
	"github.com/dharsanguruparan/ReportDrop/internal/config"
	"github.com/dharsanguruparan/ReportDrop/internal/metrics"
	"github.com/dharsanguruparan/ReportDrop/internal/model"
	"github.com/dharsanguruparan/ReportDrop/internal/pipeline"
	"github.com/dharsanguruparan/ReportDrop/internal/render"
	"github.com/dharsanguruparan/ReportDrop/internal/signing"
	"github.com/dharsanguruparan/ReportDrop/internal/staging"
)

// RunReader looks up ledger records.
type RunReader interface {
	Get(ctx context.Context, token string) (*model.Run, error)
}

// ArchiveReader opens archived PDFs.
type ArchiveReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

// Deps are the collaborators of a Server. Archive and Metrics may be nil.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Catalog  *catalog.Catalog
	Runs     RunReader
	Archive  ArchiveReader
	Signer   *signing.Signer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Server hosts the HTTP endpoints.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	catalog  *catalog.Catalog
	runs     RunReader
	archive  ArchiveReader
	signer   *signing.Signer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		pipeline: deps.Pipeline,
		catalog:  deps.Catalog,
		runs:     deps.Runs,
		archive:  deps.Archive,
		signer:   deps.Signer,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// Handler returns the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/reports/qrcodes", s.handleQRCodes)
	mux.HandleFunc("/reports/kinds", s.handleKinds)
	mux.HandleFunc("/reports/runs/", s.handleRun)
	mux.HandleFunc("/download", s.handleDownload)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.catalog.Root()))))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", zap.String("address", s.cfg.Address), zap.String("public_url", s.cfg.PublicBaseURL))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	var req model.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid report: "+err.Error())
		return
	}
	out := &pdfWriter{w: w, filename: "report.pdf"}
	res, err := s.pipeline.GenerateReport(detach(r), &req, out)
	s.finish(w, out, res, err)
}

func (s *Server) handleQRCodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	out := &pdfWriter{w: w, filename: "qrcodes.pdf"}
	res, err := s.pipeline.GenerateQRCodes(detach(r), body, out)
	s.finish(w, out, res, err)
}

// detach keeps a dispatched run going after the client disconnects; it always
// reaches a terminal state and cleans up. The renderer timeout bounds it.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// finish answers a failed run with a JSON error as long as no PDF bytes were
// sent. Once streaming has begun the status line is gone and the failure is
// only logged.
func (s *Server) finish(w http.ResponseWriter, out *pdfWriter, res *pipeline.Result, err error) {
	if err == nil {
		if !out.started {
			// The engine succeeded without output.
			respondError(w, http.StatusInternalServerError, "renderer produced no output")
		}
		return
	}
	if out.started {
		s.logger.Warn("render failed mid-stream", zap.String("token", out.token), zap.Error(err))
		return
	}
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, pipeline.ErrUnsupportedPayload):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, staging.ErrStaging):
		msg = "failed to stage report: " + err.Error()
	case errors.Is(err, render.ErrRender):
		msg = "failed to render report"
	}
	payload := map[string]string{"error": msg}
	if res != nil {
		payload["token"] = res.Token
	}
	respondJSON(w, status, payload)
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"kinds": s.catalog.Kinds()})
}

type runResponse struct {
	*model.Run
	DownloadURL string `json:"downloadUrl,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/reports/runs/")
	if token == "" || strings.Contains(token, "/") {
		http.NotFound(w, r)
		return
	}
	run, err := s.runs.Get(r.Context(), token)
	if err != nil {
		if errors.Is(err, model.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("load run failed", zap.String("token", token), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	resp := runResponse{Run: run}
	if run.ArchiveKey != "" && s.archive != nil {
		resp.DownloadURL = s.signer.Link(s.cfg.PublicBaseURL, run.Token, s.cfg.SignedURLTTL)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("run")
	expires := r.URL.Query().Get("expires")
	signature := r.URL.Query().Get("signature")
	if token == "" || expires == "" || signature == "" {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}
	expiryUnix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		http.Error(w, "invalid expires", http.StatusBadRequest)
		return
	}
	if time.Unix(expiryUnix, 0).Before(time.Now()) {
		http.Error(w, "url expired", http.StatusUnauthorized)
		return
	}
	if !s.signer.Validate(token, expires, signature) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	if s.archive == nil {
		http.Error(w, "archive disabled", http.StatusNotFound)
		return
	}
	run, err := s.runs.Get(r.Context(), token)
	if err != nil || run.ArchiveKey == "" {
		http.Error(w, "report not archived", http.StatusNotFound)
		return
	}
	obj, size, err := s.archive.Open(r.Context(), run.ArchiveKey)
	if err != nil {
		s.logger.Error("open archive failed", zap.String("token", token), zap.String("key", run.ArchiveKey), zap.Error(err))
		http.Error(w, "report unavailable", http.StatusInternalServerError)
		return
	}
	defer obj.Close()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+token+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		s.logger.Warn("download interrupted", zap.String("token", token), zap.Error(err))
	}
}

// pdfWriter defers the response headers until the first PDF byte so a run
// that fails early can still answer with a JSON error.
type pdfWriter struct {
	w        http.ResponseWriter
	filename string
	token    string
	started  bool
}

func (p *pdfWriter) ReceiveToken(token string) {
	p.token = token
	p.w.Header().Set("X-Report-Token", token)
}

func (p *pdfWriter) Write(b []byte) (int, error) {
	if !p.started {
		if len(b) == 0 {
			return 0, nil
		}
		p.started = true
		p.w.Header().Set("Content-Type", "application/pdf")
		p.w.Header().Set("Content-Disposition", `inline; filename="`+p.filename+`"`)
		p.w.WriteHeader(http.StatusOK)
	}
	return p.w.Write(b)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
