package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Minute

// WkhtmltopdfConfig configures the wkhtmltopdf backend.
type WkhtmltopdfConfig struct {
	// BinaryPath is an absolute path or a name looked up in PATH.
	BinaryPath string
	// Timeout bounds one render, including the JavaScript delay.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Wkhtmltopdf renders by running wkhtmltopdf with the PDF written to stdout.
type Wkhtmltopdf struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewWkhtmltopdf resolves the binary and returns a renderer.
func NewWkhtmltopdf(cfg WkhtmltopdfConfig) (*Wkhtmltopdf, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "wkhtmltopdf"
	}
	binary, err := resolveBinary(cfg.BinaryPath)
	if err != nil {
		return nil, NewError(CodeBinaryNotFound, "wkhtmltopdf binary not found: "+cfg.BinaryPath, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Wkhtmltopdf{binary: binary, timeout: cfg.Timeout, logger: cfg.Logger}, nil
}

func resolveBinary(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return exec.LookPath(path)
}

// Render runs wkhtmltopdf against url. Stdout is connected to w, so the PDF
// reaches the caller while the engine is still writing it.
func (r *Wkhtmltopdf) Render(ctx context.Context, url string, opts Options, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append([]string{"--quiet"}, opts.Args()...)
	args = append(args, url, "-")
	r.logger.Debug("executing wkhtmltopdf", zap.String("binary", r.binary), zap.Strings("args", args))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = w
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	diag := strings.TrimSpace(stderr.String())
	var renderErr *Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		renderErr = NewError(CodeTimeout, fmt.Sprintf("wkhtmltopdf timed out after %v", r.timeout), err)
	case errors.Is(ctx.Err(), context.Canceled):
		renderErr = NewError(CodeTimeout, "wkhtmltopdf cancelled", err)
	default:
		renderErr = NewError(CodeFailed, "wkhtmltopdf failed", err)
	}
	renderErr.Stderr = diag
	return renderErr
}

var _ Renderer = (*Wkhtmltopdf)(nil)
