package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/fetch"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/pipeline"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/nao1215/sitemapper/internal/tor"
	"github.com/spf13/cobra"
)

// defaultOutDir receives the per-seed directories unless --out-dir or
// SITEMAPPER_OUTPUT_DIR says otherwise.
const defaultOutDir = "."

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl a website and build its sitemap",
		Long: `Crawl fetches the seed URL, follows the absolute links of every page up to
the maximum depth and records each page's outbound links.

For every seed the following is written below --out-dir:
- sitemap.json: page URL to list of outbound links
- crawl_summary.json: depths, failures and timing of the crawl
- keyword, SEO, content organization and readability analysis

The crawl is also stored in the history database so it can be compared
with later crawls ('sitemapper compare').

A seed without a scheme is probed over HTTPS first and falls back to HTTP.

Examples:
  # Crawl a site two levels deep
  sitemapper crawl https://example.com

  # Crawl deeper with fewer concurrent fetches
  sitemapper crawl -d 4 -n 4 example.com

  # Stop after one minute and keep what was found
  sitemapper crawl --budget 1m example.com

  # Crawl several sites, two at a time
  sitemapper crawl -b 2 example.com example.org

  # Route all requests through a SOCKS5 proxy
  sitemapper crawl --proxy 127.0.0.1:9050 example.com

  # Print a Markdown report instead of the terminal summary
  sitemapper crawl -m -o report.md example.com

Configuration file (.sitemapper) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      depth: 3
      ignorePatterns:
        - "/logout"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum number of hops from the seed (0 fetches the seed only)")
	cmd.Flags().IntP("threads", "n", config.DefaultThreads,
		"Maximum number of concurrent fetches per crawl")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	cmd.Flags().Duration("budget", 0,
		"Wall-clock limit for each crawl; the partial sitemap is kept (0 disables)")
	cmd.Flags().Duration("crawl-delay", 0,
		"Minimum interval between two requests of a crawl")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages per crawl (0 means no limit)")
	cmd.Flags().String("key-policy", config.DefaultKeyPolicy,
		"URL deduplication policy: exact or lenient")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Batch crawling flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemapper in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Persistence flags
	cmd.Flags().String("out-dir", defaultOutDir,
		"Directory receiving the sitemap and analysis files (empty disables writing)")
	cmd.Flags().Bool("no-analysis", false,
		"Skip keyword, SEO and readability analysis")
	cmd.Flags().Bool("no-db", false,
		"Do not record the crawl in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	// Proxy flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig layers defaults, SITEMAPPER_* variables, the config file and
// the flags the user actually set, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.OutputDir = defaultOutDir
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	var err error

	if flags.Changed("depth") {
		if cfg.CrawlDepth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
		cfg.Explicit.Depth = true
	}
	if flags.Changed("threads") {
		if cfg.Threads, err = flags.GetInt("threads"); err != nil {
			return nil, err
		}
		cfg.Explicit.Threads = true
	}
	if flags.Changed("key-policy") {
		if cfg.KeyPolicy, err = flags.GetString("key-policy"); err != nil {
			return nil, err
		}
		cfg.Explicit.KeyPolicy = true
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("out-dir") {
		if cfg.OutputDir, err = flags.GetString("out-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}

	if cfg.Budget, err = flags.GetDuration("budget"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("crawl-delay"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.NoAnalysis, err = flags.GetBool("no-analysis"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogJSON = getLogJSONFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	cfg.Targets = args
	return cfg, nil
}

// loadSiteConfigs reads the config file into cfg.SiteConfigs. A missing
// file is an error only when its path was given explicitly.
func loadSiteConfigs(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
		return nil
	}

	siteConfigs, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.SiteConfigs = siteConfigs
	return nil
}

// runCrawl crawls every target and writes the reports. stdout receives the
// report unless cfg.ReportFile is set; progress goes to stderr.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"depth", cfg.CrawlDepth,
		"threads", cfg.Threads,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	dial, stopProxy, err := setupProxy(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer stopProxy()

	// Open database connection if saving is enabled
	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	deps := pipeline.Deps{
		NewFetcher: pipeline.NewFetcherFactory(cfg, dial, logger),
		DB:         db,
		Logger:     logger,
	}
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.NewSitemapPipeline(cfg, deps)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	fmt.Fprintf(stderr, "Crawling %d site(s) (depth %d, %d threads)...\n",
		len(cfg.Targets), cfg.CrawlDepth, cfg.Threads)
	startTime := time.Now()

	reports, batchErr := bp.ProcessBatch(ctx, cfg.Targets)

	fmt.Fprintf(stderr, "Crawl completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))

	if err := outputReports(cfg, reports, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if batchErr != nil {
		return batchErr
	}
	return failedSeeds(reports)
}

// setupProxy returns the dial function for fetches and a cleanup func.
// A nil dial function means direct connections.
func setupProxy(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (fetch.DialContextFunc, func(), error) {
	noop := func() {}

	switch {
	case cfg.ProxyAddress != "":
		dialer, err := tor.NewDialer(cfg.ProxyAddress)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy dialer: %w", err)
		}
		if status := dialer.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %w (make sure the proxy is running at %s)",
				status.Err(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", dialer.Address())
		return dialer.DialContext, noop, nil

	case cfg.UseTor:
		return startEmbeddedTor(ctx, cfg, logger, stderr)

	default:
		return nil, noop, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon and returns a dial
// function through its SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (fetch.DialContextFunc, func(), error) {
	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithLogger(logger),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	stop := func() {
		logger.Info("stopping embedded Tor daemon...")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	dialer, err := embeddedTor.Dialer()
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor dialer: %w", err)
	}
	if status := dialer.CheckConnection(ctx); status != tor.ProxyStatusOK {
		stop()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}

	fmt.Fprintf(stderr, "SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())
	return dialer.DialContext, stop, nil
}

// outputReports writes every report in the requested format.
func outputReports(cfg *config.Config, reports []*model.SiteReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may carry cookies in URLs, so keep them owner-readable.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	for _, r := range reports {
		if r == nil {
			continue
		}
		if _, err := writer.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// failedSeeds returns an error naming how many seeds failed, or nil.
func failedSeeds(reports []*model.SiteReport) error {
	failed := 0
	for _, r := range reports {
		if r != nil && r.Error != nil {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d seed(s) failed", failed, len(reports))
}
