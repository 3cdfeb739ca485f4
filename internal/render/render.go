// Package render drives an external HTML to PDF engine against staged pages.
//
// Two backends are provided:
//   - Wkhtmltopdf execs the wkhtmltopdf binary and streams its stdout.
//   - Chromedp prints the page from a headless Chrome over the DevTools protocol.
//
// Both load the page by URL, so the staged bundle must be reachable over HTTP
// when Render is called.
package render

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"
)

// Renderer converts the page at url to PDF and writes it to w as it is
// produced. Bytes written before a failure are not taken back.
type Renderer interface {
	Render(ctx context.Context, url string, opts Options, w io.Writer) error
}

// Options are the page settings of one render. Lengths use wkhtmltopdf units
// ("2", "0.71cm"); unitless values are millimetres.
type Options struct {
	PageSize      string
	HeaderURL     string
	FooterURL     string
	HeaderSpacing string
	FooterSpacing string
	MarginLeft    string
	MarginRight   string
	// JavaScriptDelay is a fixed wait after load so page scripts can finish
	// filling the document.
	JavaScriptDelay time.Duration
}

// ReportOptions are the settings of a single inspection report.
func ReportOptions(headerURL, blankURL string) Options {
	return Options{
		PageSize:      "Letter",
		HeaderURL:     headerURL,
		FooterURL:     blankURL,
		FooterSpacing: "2",
	}
}

// QRCodeOptions are the settings of a QR code sheet with items entries.
func QRCodeOptions(blankURL string, items int, perItem time.Duration) Options {
	return Options{
		PageSize:        "Letter",
		MarginLeft:      "0.71cm",
		MarginRight:     "0cm",
		HeaderURL:       blankURL,
		HeaderSpacing:   "6",
		JavaScriptDelay: time.Duration(items) * perItem,
	}
}

// Args returns the wkhtmltopdf flags for o.
func (o Options) Args() []string {
	var args []string
	add := func(flag, value string) {
		if value != "" {
			args = append(args, flag, value)
		}
	}
	add("--page-size", o.PageSize)
	add("--margin-left", o.MarginLeft)
	add("--margin-right", o.MarginRight)
	add("--header-html", o.HeaderURL)
	add("--header-spacing", o.HeaderSpacing)
	add("--footer-html", o.FooterURL)
	add("--footer-spacing", o.FooterSpacing)
	if o.JavaScriptDelay > 0 {
		args = append(args, "--javascript-delay", strconv.FormatInt(o.JavaScriptDelay.Milliseconds(), 10))
	}
	return args
}

// ErrRender is matched by every *Error.
var ErrRender = errors.New("render failed")

// Error codes.
const (
	CodeBinaryNotFound = "BINARY_NOT_FOUND"
	CodeTimeout        = "RENDER_TIMEOUT"
	CodeFailed         = "RENDER_FAILED"
	CodeWrite          = "WRITE_FAILED"
)

// Error describes a failed render.
type Error struct {
	Code    string
	Message string
	// Stderr is the engine's diagnostic output, when it produced any.
	Stderr string
	Cause  error
}

// NewError creates an Error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Stderr != "" {
		msg += " (" + e.Stderr + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrRender}
	}
	return []error{ErrRender, e.Cause}
}
