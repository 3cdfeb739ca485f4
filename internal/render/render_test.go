package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportOptionsArgs(t *testing.T) {
	opts := ReportOptions("http://h/static/alarm/tokheader.html", "http://h/static/common/blank.html")
	assert.Equal(t, []string{
		"--page-size", "Letter",
		"--header-html", "http://h/static/alarm/tokheader.html",
		"--footer-html", "http://h/static/common/blank.html",
		"--footer-spacing", "2",
	}, opts.Args())
}

func TestQRCodeOptions(t *testing.T) {
	opts := QRCodeOptions("http://h/static/common/blank.html", 10, 50*time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, opts.JavaScriptDelay)
	assert.Equal(t, []string{
		"--page-size", "Letter",
		"--margin-left", "0.71cm",
		"--margin-right", "0cm",
		"--header-html", "http://h/static/common/blank.html",
		"--header-spacing", "6",
		"--javascript-delay", "500",
	}, opts.Args())

	assert.Empty(t, QRCodeOptions("", 0, 50*time.Millisecond).JavaScriptDelay)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewError(CodeFailed, "wkhtmltopdf failed", cause)
	err.Stderr = "Exit with code 1 due to network error"

	assert.True(t, errors.Is(err, ErrRender))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "wkhtmltopdf failed (Exit with code 1 due to network error): exit status 1", err.Error())

	var target *Error
	require.True(t, errors.As(error(err), &target))
	assert.Equal(t, CodeFailed, target.Code)
}

func TestInches(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0.71cm", 0.71 / 2.54},
		{"0cm", 0},
		{"25.4mm", 1},
		{"1in", 1},
		{"254", 10},
	}
	for _, tt := range tests {
		got, err := inches(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
	_, err := inches("wide")
	assert.Error(t, err)
}

func TestPrintParams(t *testing.T) {
	params, err := printParams(QRCodeOptions("", 1, time.Millisecond), "<div>h</div>", "")
	require.NoError(t, err)
	assert.Equal(t, 8.5, params.PaperWidth)
	assert.Equal(t, 11.0, params.PaperHeight)
	assert.True(t, params.DisplayHeaderFooter)
	assert.Equal(t, "<div>h</div>", params.HeaderTemplate)
	assert.Equal(t, "<span></span>", params.FooterTemplate)

	_, err = printParams(Options{PageSize: "Tabloid"}, "", "")
	assert.Error(t, err)
}

// fakeBinary writes a shell script standing in for wkhtmltopdf.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "wkhtmltopdf")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestWkhtmltopdfStreamsStdout(t *testing.T) {
	bin := fakeBinary(t, `printf '%%PDF-1.4 '; echo "$@"`)
	r, err := NewWkhtmltopdf(WkhtmltopdfConfig{BinaryPath: bin})
	require.NoError(t, err)

	var out bytes.Buffer
	err = r.Render(context.Background(), "http://h/static/alarm/tok.html", Options{PageSize: "Letter"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 --quiet --page-size Letter http://h/static/alarm/tok.html -\n", out.String())
}

func TestWkhtmltopdfFailure(t *testing.T) {
	bin := fakeBinary(t, `printf '%%PDF'; echo "network error" >&2; exit 1`)
	r, err := NewWkhtmltopdf(WkhtmltopdfConfig{BinaryPath: bin})
	require.NoError(t, err)

	var out bytes.Buffer
	err = r.Render(context.Background(), "http://h/x.html", Options{}, &out)
	require.Error(t, err)
	assert.Equal(t, "%PDF", out.String())

	var renderErr *Error
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, CodeFailed, renderErr.Code)
	assert.Equal(t, "network error", renderErr.Stderr)
}

func TestWkhtmltopdfTimeout(t *testing.T) {
	bin := fakeBinary(t, `exec sleep 5`)
	r, err := NewWkhtmltopdf(WkhtmltopdfConfig{BinaryPath: bin, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	err = r.Render(context.Background(), "http://h/x.html", Options{}, &bytes.Buffer{})
	var renderErr *Error
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, CodeTimeout, renderErr.Code)
	assert.True(t, strings.Contains(renderErr.Error(), "timed out"))
}

func TestNewWkhtmltopdfMissingBinary(t *testing.T) {
	_, err := NewWkhtmltopdf(WkhtmltopdfConfig{BinaryPath: filepath.Join(t.TempDir(), "nope")})
	var renderErr *Error
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, CodeBinaryNotFound, renderErr.Code)
}
