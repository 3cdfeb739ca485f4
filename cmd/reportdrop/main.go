// Command reportdrop renders reports from the command line and runs
// maintenance tasks against a ReportDrop deployment.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/ReportDrop/internal/app"
	"github.com/dharsanguruparan/ReportDrop/internal/catalog"
	"github.com/dharsanguruparan/ReportDrop/internal/config"
	"github.com/dharsanguruparan/ReportDrop/internal/logging"
	"github.com/dharsanguruparan/ReportDrop/internal/model"
	"github.com/dharsanguruparan/ReportDrop/internal/pipeline"
	"github.com/dharsanguruparan/ReportDrop/internal/queue"
	"github.com/dharsanguruparan/ReportDrop/internal/staging"
)

var templateDir string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "reportdrop: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reportdrop",
		Short: "ReportDrop command line",
		Long: `reportdrop renders inspection reports and QR code sheets to PDF without the HTTP API,
lists the known report kinds, and sweeps staged artifacts left behind by interrupted runs.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&templateDir, "templates", "t", "", "Template bundle directory (overrides REPORTDROP_TEMPLATE_DIR)")
	cmd.AddCommand(
		newRenderCmd(),
		newQRCodesCmd(),
		newKindsCmd(),
		newSweepCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if templateDir != "" {
		cfg.TemplateDir = templateDir
	}
	return cfg, nil
}

func newRenderCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one report JSON document to PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(input)
			if err != nil {
				return err
			}
			var req model.ReportRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}
			return runLocal(cmd.Context(), output, func(p *pipeline.Pipeline, w io.Writer) (*pipeline.Result, error) {
				return p.GenerateReport(cmd.Context(), &req, w)
			})
		},
	}
	cmd.Flags().StringVarP(&input, "in", "i", "-", "Report JSON file, - for stdin")
	cmd.Flags().StringVarP(&output, "out", "o", "report.pdf", "PDF output file, - for stdout")
	return cmd
}

func newQRCodesCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "qrcodes",
		Short: "Render a JSON array of QR items to a PDF sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(input)
			if err != nil {
				return err
			}
			return runLocal(cmd.Context(), output, func(p *pipeline.Pipeline, w io.Writer) (*pipeline.Result, error) {
				return p.GenerateQRCodes(cmd.Context(), data, w)
			})
		},
	}
	cmd.Flags().StringVarP(&input, "in", "i", "-", "QR items JSON file, - for stdin")
	cmd.Flags().StringVarP(&output, "out", "o", "qrcodes.pdf", "PDF output file, - for stdout")
	return cmd
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List report kinds and their bundle directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat := catalog.New(cfg.TemplateDir, nil)
			for _, kind := range cat.Kinds() {
				b := cat.Resolve(kind)
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", kind, b.Dir)
			}
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var maxAge time.Duration
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove staged artifacts older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if maxAge <= 0 {
				maxAge = cfg.SweepMaxAge
			}
			if enqueue {
				client := asynq.NewClient(asynq.RedisClientOpt{
					Addr:     cfg.RedisAddr,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				})
				defer client.Close()
				if err := queue.EnqueueSweep(cmd.Context(), client, maxAge); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "sweep enqueued")
				return nil
			}
			res := staging.Sweep(catalog.New(cfg.TemplateDir, nil).Dirs(), maxAge, time.Now())
			for _, path := range res.Removed {
				fmt.Fprintln(cmd.OutOrStdout(), "removed", path)
			}
			return errors.Join(res.Errors...)
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Minimum artifact age (defaults to REPORTDROP_SWEEP_MAX_AGE)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Hand the sweep to the worker through asynq instead of running it here")
	return cmd
}

type generateFunc func(p *pipeline.Pipeline, w io.Writer) (*pipeline.Result, error)

// runLocal serves the template directory on a loopback port for the renderer,
// runs generate against it and writes the PDF to output.
func runLocal(ctx context.Context, output string, generate generateFunc) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: "console"})
	defer logger.Sync()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.TemplateDir))))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("static server stopped", zap.Error(err))
		}
	}()
	defer srv.Close()
	cfg.PublicBaseURL = "http://" + ln.Addr().String()
	// Uploads run in the background and would be cut off when the command exits.
	cfg.ArchiveEnabled = false

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out, closeOut, err := openOutput(output)
	if err != nil {
		return err
	}
	res, genErr := generate(a.Pipeline, out)
	if err := closeOut(); err != nil && genErr == nil {
		genErr = fmt.Errorf("close output: %w", err)
	}
	if genErr != nil {
		return genErr
	}
	logger.Info("pdf written", zap.String("out", output), zap.Int64("bytes", res.Bytes), zap.String("token", res.Token))
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
