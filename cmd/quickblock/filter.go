package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/quickblock/internal/config"
	"github.com/nao1215/quickblock/internal/fetch"
	"github.com/nao1215/quickblock/internal/model"
	"github.com/nao1215/quickblock/internal/pipeline"
	"github.com/nao1215/quickblock/internal/report"
	"github.com/spf13/cobra"
)

// errPagesFailed is returned when at least one page could not be filtered.
var errPagesFailed = errors.New("some pages could not be filtered")

// NewFilterCmd creates the filter command.
func NewFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <file|url>...",
		Short: "Hide blocked channels in saved or fetched pages",
		Long: `Filter runs every page through one full reconciliation pass against the
blocklist and reports what was hidden.

Pages are read from HTML files or fetched when the argument is an http(s)
URL. Hidden fragments keep their markup and are marked with the
yt-blocked-item class; block controls are injected next to every channel
name. With --out-dir the filtered documents are written there.

Examples:
  # Report what would be hidden on a saved page
  quickblock filter watch.html

  # Write filtered copies of several pages
  quickblock filter --out-dir filtered *.html

  # Fetch a page through a SOCKS5 proxy and write a Markdown report
  quickblock filter --proxy 127.0.0.1:1080 -m -o report.md https://www.youtube.com/watch?v=abc`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFilterCmd,
	}

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of pages filtered concurrently")
	cmd.Flags().StringP("out-dir", "d", "",
		"Write filtered HTML documents into this directory")
	cmd.Flags().StringP("location", "l", pipeline.DefaultLocation,
		"Page address assumed for HTML files")
	cmd.Flags().Bool("panel", false,
		"Mount the blocklist panel into filtered documents")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page request")
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy for page requests (host:port)")

	addReportFlags(cmd)

	return cmd
}

// addReportFlags adds the report format and destination flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// readReportFlags copies the report flags into cfg.
func readReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("output")
	return err
}

// buildFilterConfig applies the filter flags on top of the loaded config.
func buildFilterConfig(cmd *cobra.Command, cfg *config.Config) (panel bool, err error) {
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return false, err
	}
	if cfg.OutDir, err = cmd.Flags().GetString("out-dir"); err != nil {
		return false, err
	}
	if cfg.Location, err = cmd.Flags().GetString("location"); err != nil {
		return false, err
	}
	if panel, err = cmd.Flags().GetBool("panel"); err != nil {
		return false, err
	}
	// Flags left at their defaults keep the values from the config file.
	if cmd.Flags().Changed("timeout") {
		if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
			return false, err
		}
	}
	if cmd.Flags().Changed("proxy") {
		if cfg.ProxyAddress, err = cmd.Flags().GetString("proxy"); err != nil {
			return false, err
		}
	}
	return panel, readReportFlags(cmd, cfg)
}

func runFilterCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	panel, err := buildFilterConfig(cmd, cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg)

	e, err := openStore(cmd, cfg, logger)
	if err != nil {
		return err
	}
	identities := e.store.List()
	e.close()

	fetcher, err := fetch.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting filter",
		"pages", len(args),
		"blocklist", len(identities),
		"batchSize", cfg.BatchSize,
		"outDir", cfg.OutDir,
	)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(fetcher, identities,
				[]pipeline.Option{
					pipeline.WithLogger(logger),
				},
				pipeline.WithPipelineLocation(cfg.Location),
				pipeline.WithPipelineOutDir(cfg.OutDir),
				pipeline.WithPipelinePanel(panel),
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	start := time.Now()
	reports, err := bp.ProcessBatch(ctx, args)
	if err != nil {
		return err
	}
	logger.Debug("filter finished", "elapsed", time.Since(start).Round(time.Millisecond))

	if err := outputReports(cmd, cfg, reports); err != nil {
		return err
	}
	if s := model.Summarize(reports); s.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", errPagesFailed, s.Failed, s.Pages)
	}
	return nil
}

// outputReports writes reports in the format selected by cfg, to the
// report file or to standard output. A single report is written without
// the batch summary.
func outputReports(cmd *cobra.Command, cfg *config.Config, reports []*model.FilterReport) error {
	var output io.Writer = cmd.OutOrStdout()
	if cfg.ReportFile != "" {
		if err := ensureDir(cfg.ReportFile); err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	if len(reports) == 1 {
		_, err := w.Write(reports[0])
		return err
	}
	_, err := w.WriteBatch(reports)
	return err
}
