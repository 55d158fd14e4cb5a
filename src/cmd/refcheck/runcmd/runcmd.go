package runcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"refcheck/src/cmd/refcheck/cmdutil"
	"refcheck/src/internal/config"
	"refcheck/src/internal/extract"
	"refcheck/src/internal/metrics"
	"refcheck/src/internal/pipeline"
	"refcheck/src/internal/report"
	"refcheck/src/internal/schema"
)

// Overridable in tests; nil means the pipeline's HTTP clients.
var (
	newExtractor func(s pipeline.Settings) extract.Extractor
	newValidator func(s pipeline.Settings, logger *zap.Logger) pipeline.Validator
)

type options struct {
	output      string
	format      string
	windowSize  int
	overlap     int
	contact     string
	model       string
	metricsAddr string
	quiet       bool
}

// New returns the run command which extracts, validates and reports the
// citations of one document.
func New() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Extract and validate every citation in a document (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cmdutil.Load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			applyFlags(cmd, &o, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			text, source, err := cmdutil.ReadInput(cmd, args)
			if err != nil {
				return err
			}
			return run(cmd, cfg, logger, text, source, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "", "Write the report to this file instead of stdout")
	f.StringVar(&o.format, "format", "", "Report format: yaml, json or bibtex")
	f.IntVar(&o.windowSize, "window-size", 0, "Window size in characters")
	f.IntVar(&o.overlap, "overlap", 0, "Overlap between windows in characters")
	f.StringVar(&o.contact, "contact", "", "Contact email sent to CrossRef and PubMed")
	f.StringVar(&o.model, "model", "", "Extraction model name")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "Do not print progress to stderr")
	return cmd
}

func applyFlags(cmd *cobra.Command, o *options, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("format") {
		cfg.Format = strings.ToLower(o.format)
	}
	if f.Changed("window-size") {
		cfg.WindowSize = o.windowSize
	}
	if f.Changed("overlap") {
		cfg.Overlap = o.overlap
	}
	if f.Changed("contact") {
		cfg.ContactEmail = o.contact
	}
	if f.Changed("model") {
		cfg.Extraction.Model = o.model
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
}

func run(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, text, source string, o options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		mctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(mctx, cfg.MetricsAddr, logger); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	settings := cfg.Settings()
	st := pipeline.NewState()
	in := pipeline.Input{
		State:    st,
		Settings: settings,
		FullText: text,
		Logger:   logger,
	}
	if !o.quiet {
		stderr := cmd.ErrOrStderr()
		in.Callbacks.OnProgress = func(p pipeline.Progress) {
			fmt.Fprintf(stderr, "window %d/%d, %d citations\n", p.Window, p.Total, p.Extractions)
		}
		in.Callbacks.OnWindowError = func(w schema.Window, err error) {
			fmt.Fprintf(stderr, "window %d failed: %v\n", w.Index+1, err)
		}
	}
	if newExtractor != nil {
		in.Extractor = newExtractor(settings)
	}
	if newValidator != nil {
		in.Validator = newValidator(settings, logger)
	}

	res, err := pipeline.Run(ctx, in)
	if err != nil {
		return err
	}
	rep := report.Build(st, res, source)
	out := cmd.OutOrStdout()
	if o.output != "" {
		fh, err := os.Create(o.output)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer fh.Close()
		out = fh
	}
	if err := report.Write(out, cfg.Format, rep); err != nil {
		return err
	}
	if !o.quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), report.SummaryLine(rep.Summary))
	}
	if res.Cancelled {
		return fmt.Errorf("run cancelled after %d windows; report is partial", res.Windows)
	}
	return nil
}
