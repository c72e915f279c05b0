package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/crawler"
	"github.com/nao1215/sitescan/internal/database"
	"github.com/nao1215/sitescan/internal/detector"
	sitelog "github.com/nao1215/sitescan/internal/log"
	"github.com/nao1215/sitescan/internal/model"
	"github.com/nao1215/sitescan/internal/pipeline"
	"github.com/nao1215/sitescan/internal/report"
)

// errInterrupted is returned when the scan was cancelled by a signal.
// The partial report has been written by then.
var errInterrupted = errors.New("scan interrupted")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <config-file> [output-file]",
		Short: "Crawl the configured sites and report security exposures",
		Long: `Scan crawls every site listed in the configuration file and writes one
report covering all of them.

Each site is crawled breadth-first within its scope. Every fetched page is
inspected by the detectors, and well-known sensitive paths (.git/config,
.env, backups, admin consoles) are probed on the site's host.

The report goes to stdout unless an output file is given. Its format is
taken from --format, or from the output file extension (.yaml, .json, .md,
.txt). Press Ctrl+C to stop early: the report of what was crawled so far
is still written.

Examples:
  # Scan and print a YAML report
  sitescan scan .sitescan.yaml

  # Write a Markdown report
  sitescan scan .sitescan.yaml report.md

  # Two sites at a time, at most 5 requests per second overall
  sitescan scan --parallel 2 --rate 5 .sitescan.yaml report.json

  # Route all requests through a SOCKS5 proxy
  sitescan scan --proxy socks5://127.0.0.1:1080 .sitescan.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runScanCmd,
	}

	// Run flags
	cmd.Flags().StringP("format", "f", "",
		"Report format: yaml, json, markdown or text (default: from output file extension, else yaml)")
	cmd.Flags().IntP("parallel", "P", config.DefaultParallelism,
		"Number of sites crawled at the same time")
	cmd.Flags().Float64P("rate", "r", 0,
		"Maximum requests per second across all sites (0 means unlimited)")
	cmd.Flags().String("proxy", "",
		"Upstream proxy URL (socks5://, socks5h://, http:// or https://)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the scan history database")
	cmd.Flags().Bool("no-db", false,
		"Do not record fetches and reports in the history database")

	// Overrides of the configuration file
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Concurrent requests per site")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of fetches per site, probes included")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Maximum link depth from the seed URL")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout of each request, redirects included")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := sitelog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbosity)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig creates a Config from the command line. Crawl flags only
// override the configuration file when they were given explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.ConfigFilePath = args[0]
	if len(args) > 1 {
		cfg.ReportFile = args[1]
	}
	cfg.Verbosity = getVerbosity(cmd)

	var err error
	flags := cmd.Flags()

	if cfg.Format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.Parallelism, err = flags.GetInt("parallel"); err != nil {
		return nil, err
	}
	if cfg.Rate, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	if flags.Changed("workers") {
		if cfg.Overrides.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.Overrides.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-depth") {
		depth, err := flags.GetInt("max-depth")
		if err != nil {
			return nil, err
		}
		cfg.Overrides.MaxDepth = &depth
	}
	if flags.Changed("timeout") {
		if cfg.Overrides.RequestTimeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// runScan crawls every configured target and writes the report to the
// configured file, or to stdout. The report is written also when ctx is
// cancelled, and then covers the targets crawled so far.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	file, err := config.LoadConfigFile(cfg.ConfigFilePath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", cfg.ConfigFilePath, err)
	}
	targets, err := file.Targets(cfg.Overrides)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	detectors := detector.NewPipeline(detector.WithLogger(logger))
	for _, t := range targets {
		if err := detectors.Validate(t.Detectors); err != nil {
			return fmt.Errorf("configuration error: site %s: %w", t.Name, err)
		}
	}

	agg := report.NewAggregator()
	for _, t := range targets {
		agg.Register(t.Name, t.BaseURL)
	}

	schedOpts := []crawler.Option{crawler.WithLogger(logger)}
	if cfg.ProxyURL != "" {
		schedOpts = append(schedOpts, crawler.WithProxy(cfg.ProxyURL))
	}
	if cfg.Rate > 0 {
		schedOpts = append(schedOpts, crawler.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Rate), 1)))
	}

	// store stays a nil interface when history is disabled.
	var store pipeline.HistoryStore
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		schedOpts = append(schedOpts, crawler.WithRecorder(db))
		store = db
	}

	scheduler := crawler.NewScheduler(detectors, agg, schedOpts...)

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.DefaultPipeline(scheduler, agg, store, pipeline.WithLogger(logger))
		},
		pipeline.WithConcurrency(cfg.Parallelism),
		pipeline.WithBatchLogger(logger),
	)

	logger.Info("starting scan",
		"targets", len(targets),
		"run_id", agg.RunID(),
		"parallel", cfg.Parallelism,
		"save_to_db", cfg.SaveToDB,
	)

	runs, batchErr := bp.ProcessBatch(ctx, targets)
	for _, run := range runs {
		if run != nil && run.Err != nil {
			fmt.Fprintf(stderr, "Scan error for %s: %v\n", run.Target.Name, run.Err)
		}
	}

	result := agg.Report()
	if err := writeReport(cfg, result, stdout); err != nil {
		return err
	}
	if cfg.ReportFile != "" {
		fmt.Fprintf(stderr, "Report written to %s (%d findings, %d targets)\n",
			cfg.ReportFile, result.TotalFindings(), len(result.Targets))
	}

	if batchErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", errInterrupted, batchErr)
		}
		return batchErr
	}
	return nil
}

// writeReport writes result in the configured format to the report file,
// or to stdout when none is configured.
func writeReport(cfg *config.Config, result *model.Report, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports quote leaked secrets, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w, err := report.NewWriter(cfg.ResolveFormat(), output)
	if err != nil {
		return err
	}
	if _, err := w.Write(result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
