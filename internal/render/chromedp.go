package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromedpConfig configures the Chrome backend.
type ChromedpConfig struct {
	// RemoteURL is the DevTools websocket URL of a running Chrome. When empty a
	// local headless Chrome is launched.
	RemoteURL string
	// NoSandbox is needed when Chrome runs as root inside a container.
	NoSandbox bool
	Timeout   time.Duration
	// HTTPClient fetches header and footer documents; defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Chromedp renders with headless Chrome. Header and footer pages are fetched
// and passed to Chrome as print templates.
type Chromedp struct {
	cfg         ChromedpConfig
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a Chrome allocator. Chrome itself starts lazily on the
// first render.
func NewChromedp(cfg ChromedpConfig) *Chromedp {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := &Chromedp{cfg: cfg}
	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// Render prints url to PDF and writes the document to w once Chrome returns it.
func (r *Chromedp) Render(ctx context.Context, url string, opts Options, w io.Writer) error {
	header, err := r.fetch(ctx, opts.HeaderURL)
	if err != nil {
		return NewError(CodeFailed, "fetch header", err)
	}
	footer, err := r.fetch(ctx, opts.FooterURL)
	if err != nil {
		return NewError(CodeFailed, "fetch footer", err)
	}
	params, err := printParams(opts, header, footer)
	if err != nil {
		return NewError(CodeFailed, "print options", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.cfg.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var pdf []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(opts.JavaScriptDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.Do(ctx)
			pdf = data
			return err
		}),
	)
	if err != nil {
		if ctx.Err() != nil || tabCtx.Err() != nil {
			return NewError(CodeTimeout, "chrome render interrupted", err)
		}
		return NewError(CodeFailed, "chrome render failed", err)
	}
	r.cfg.Logger.Debug("chrome rendered pdf", zap.String("url", url), zap.Int("bytes", len(pdf)))
	if _, err := w.Write(pdf); err != nil {
		return NewError(CodeWrite, "write pdf", err)
	}
	return nil
}

// Close shuts the browser down.
func (r *Chromedp) Close() error {
	r.allocCancel()
	return nil
}

func (r *Chromedp) fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// paperSizes in inches.
var paperSizes = map[string][2]float64{
	"letter": {8.5, 11},
	"legal":  {8.5, 14},
	"a4":     {8.27, 11.69},
	"a5":     {5.83, 8.27},
}

func printParams(opts Options, header, footer string) (*page.PrintToPDFParams, error) {
	params := page.PrintToPDF().WithPrintBackground(true)
	if opts.PageSize != "" {
		size, ok := paperSizes[strings.ToLower(opts.PageSize)]
		if !ok {
			return nil, fmt.Errorf("unsupported page size %q", opts.PageSize)
		}
		params = params.WithPaperWidth(size[0]).WithPaperHeight(size[1])
	}
	if opts.MarginLeft != "" {
		v, err := inches(opts.MarginLeft)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginLeft(v)
	}
	if opts.MarginRight != "" {
		v, err := inches(opts.MarginRight)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginRight(v)
	}
	if header != "" || footer != "" {
		// Chrome substitutes a default template for an empty string.
		if header == "" {
			header = "<span></span>"
		}
		if footer == "" {
			footer = "<span></span>"
		}
		params = params.WithDisplayHeaderFooter(true).
			WithHeaderTemplate(header).
			WithFooterTemplate(footer)
	}
	return params, nil
}

// inches converts a wkhtmltopdf length to inches.
func inches(length string) (float64, error) {
	units := []struct {
		suffix string
		factor float64
	}{
		{"mm", 1 / 25.4},
		{"cm", 1 / 2.54},
		{"in", 1},
	}
	s := strings.TrimSpace(length)
	factor := 1 / 25.4
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSuffix(s, u.suffix)
			factor = u.factor
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q: %w", length, err)
	}
	return v * factor, nil
}

var _ Renderer = (*Chromedp)(nil)
