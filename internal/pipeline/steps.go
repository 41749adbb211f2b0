package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nao1215/sitemapper/internal/analysis"
	"github.com/nao1215/sitemapper/internal/config"
	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/database"
	"github.com/nao1215/sitemapper/internal/fetch"
	"github.com/nao1215/sitemapper/internal/model"
	"github.com/nao1215/sitemapper/internal/report"
	"github.com/nao1215/sitemapper/internal/urlnorm"
)

// FetcherFactory builds the fetcher for one seed from its resolved
// settings, so per-site cookies and headers reach the requests.
type FetcherFactory func(settings config.Settings) crawler.Fetcher

// NewFetcherFactory returns a factory creating fetch.Clients from cfg.
// dial routes connections through a proxy when non-nil.
func NewFetcherFactory(cfg *config.Config, dial fetch.DialContextFunc, logger *slog.Logger) FetcherFactory {
	return func(settings config.Settings) crawler.Fetcher {
		return fetch.New(fetch.Config{
			UserAgent:   cfg.UserAgent,
			Headers:     settings.Headers,
			Cookie:      settings.Cookie,
			MaxBodySize: cfg.MaxBodySize,
			CrawlDelay:  cfg.CrawlDelay,
			DialContext: dial,
			Logger:      logger,
		})
	}
}

// idleCloser is implemented by fetchers that pool connections.
type idleCloser interface {
	CloseIdleConnections()
}

func closeIdle(f crawler.Fetcher) {
	if c, ok := f.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}

// CrawlStep explores the site from report.Seed and stores the sitemap.
// It replaces report.Seed with the normalized seed.
type CrawlStep struct {
	cfg        *config.Config
	newFetcher FetcherFactory
	sink       crawler.PageSink
	logger     *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithPageSink keeps fetched bodies for the later steps.
func WithPageSink(sink crawler.PageSink) CrawlStepOption {
	return func(s *CrawlStep) {
		s.sink = sink
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(cfg *config.Config, newFetcher FetcherFactory, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		cfg:        cfg,
		newFetcher: newFetcher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step.
func (s *CrawlStep) Do(ctx context.Context, rep *model.SiteReport) error {
	settings := s.cfg.SettingsFor(rep.Seed)
	fetcher := s.newFetcher(settings)
	defer closeIdle(fetcher)

	prober, _ := fetcher.(urlnorm.Prober)
	opts := []crawler.Option{
		crawler.WithMaxDepth(settings.Depth),
		crawler.WithMaxThreads(settings.Threads),
		crawler.WithFetchTimeout(s.cfg.Timeout),
		crawler.WithBudget(s.cfg.Budget),
		crawler.WithMaxPages(s.cfg.MaxPages),
		crawler.WithKeyPolicy(settings.KeyPolicy),
		crawler.WithIgnorePatterns(settings.IgnorePatterns),
		crawler.WithFollowPatterns(settings.FollowPatterns),
		crawler.WithNormalizer(urlnorm.New(prober,
			urlnorm.WithProbeTimeout(s.cfg.ProbeTimeout),
			urlnorm.WithLogger(s.logger),
		)),
		crawler.WithLogger(s.logger),
	}
	if s.sink != nil {
		opts = append(opts, crawler.WithPageSink(s.sink))
	}

	result, err := crawler.New(fetcher, opts...).Crawl(ctx, rep.Seed)
	if err != nil {
		return fmt.Errorf("crawl %s: %w", rep.Seed, err)
	}

	rep.Seed = result.Seed
	rep.DateCrawled = result.Stats.StartedAt
	rep.MaxDepth = settings.Depth
	rep.MaxThreads = settings.Threads
	rep.Crawl = result
	if rep.CrawlID == "" {
		rep.CrawlID = uuid.NewString()
	}
	return nil
}

// AnalyzeStep runs the content analyzers over the crawled sitemap.
type AnalyzeStep struct {
	cfg        *config.Config
	newFetcher FetcherFactory
	store      *analysis.PageStore
	analyzers  []analysis.Analyzer
	logger     *slog.Logger
}

// AnalyzeStepOption configures an AnalyzeStep.
type AnalyzeStepOption func(*AnalyzeStep)

// WithAnalyzeLogger sets a custom logger for the analyze step.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.logger = logger
	}
}

// WithAnalyzers replaces the default analyzers.
func WithAnalyzers(analyzers ...analysis.Analyzer) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.analyzers = analyzers
	}
}

// NewAnalyzeStep creates an analyze step. store holds the bodies kept by
// the crawl; it may be nil, in which case every page is fetched again.
func NewAnalyzeStep(cfg *config.Config, newFetcher FetcherFactory, store *analysis.PageStore, opts ...AnalyzeStepOption) *AnalyzeStep {
	s := &AnalyzeStep{
		cfg:        cfg,
		newFetcher: newFetcher,
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Do executes the analyze step.
func (s *AnalyzeStep) Do(ctx context.Context, rep *model.SiteReport) error {
	if rep.Crawl == nil {
		s.logger.Debug("skipping analysis, nothing was crawled", "seed", rep.Seed)
		return nil
	}

	settings := s.cfg.SettingsFor(rep.Seed)
	fetcher := s.newFetcher(settings)
	defer closeIdle(fetcher)

	opts := []analysis.Option{
		analysis.WithConcurrency(settings.Threads),
		analysis.WithFetchTimeout(s.cfg.AnalysisTimeout),
		analysis.WithLogger(s.logger),
	}
	if s.store != nil {
		opts = append(opts, analysis.WithPageStore(s.store))
	}
	if s.analyzers != nil {
		opts = append(opts, analysis.WithAnalyzers(s.analyzers...))
	}

	result, err := analysis.NewRunner(fetcher, opts...).Run(ctx, rep.Seed, rep.Crawl.Sitemap)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", rep.Seed, err)
	}
	rep.Analysis = result
	s.logger.Info("analysis completed",
		"seed", rep.Seed,
		"pages", len(result.Pages),
		"skipped", len(result.Skipped),
		"keywords", len(result.Keywords),
	)
	return nil
}

// PersistStep writes the sitemap and analysis files below a directory.
type PersistStep struct {
	persister *report.Persister
	logger    *slog.Logger
}

// NewPersistStep creates a persist step rooted at baseDir.
func NewPersistStep(baseDir string, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{
		persister: report.NewPersister(baseDir),
		logger:    logger,
	}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the persist step.
func (s *PersistStep) Do(_ context.Context, rep *model.SiteReport) error {
	dir, err := s.persister.Save(rep)
	if err != nil {
		return fmt.Errorf("persist %s: %w", rep.Seed, err)
	}
	rep.OutputDir = dir
	s.logger.Info("results written", "seed", rep.Seed, "dir", dir)
	return nil
}

// HistoryStep records the crawl in the history database.
type HistoryStep struct {
	db     *database.CrawlDB
	bodies database.BodySource
	logger *slog.Logger
}

// NewHistoryStep creates a history step. bodies may be nil, in which case
// no content hashes are stored.
func NewHistoryStep(db *database.CrawlDB, bodies database.BodySource, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{
		db:     db,
		bodies: bodies,
		logger: logger,
	}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do executes the history step.
func (s *HistoryStep) Do(ctx context.Context, rep *model.SiteReport) error {
	if rep.Crawl == nil {
		return report.ErrNoCrawl
	}
	record, pages := database.NewCrawlRecord(rep, s.bodies)
	id, err := s.db.SaveCrawl(ctx, record, pages)
	if err != nil {
		return fmt.Errorf("save history of %s: %w", rep.Seed, err)
	}
	rep.CrawlID = id
	s.logger.Debug("crawl recorded", "seed", rep.Seed, "crawl_id", id)
	return nil
}

// Deps are the shared resources of the pipelines of one run.
type Deps struct {
	// NewFetcher builds per-seed fetchers. Nil means NewFetcherFactory
	// without a proxy.
	NewFetcher FetcherFactory

	// DB receives crawl history when cfg.SaveToDB is set. Nil disables
	// the history step.
	DB *database.CrawlDB

	Logger *slog.Logger
}

// NewSitemapPipeline assembles the steps cfg asks for. It is called once
// per seed; the page store it creates is private to that seed.
func NewSitemapPipeline(cfg *config.Config, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newFetcher := deps.NewFetcher
	if newFetcher == nil {
		newFetcher = NewFetcherFactory(cfg, nil, logger)
	}
	saveHistory := cfg.SaveToDB && deps.DB != nil

	var store *analysis.PageStore
	crawlOpts := []CrawlStepOption{WithCrawlLogger(logger)}
	if !cfg.NoAnalysis || saveHistory {
		store = analysis.NewPageStore()
		crawlOpts = append(crawlOpts, WithPageSink(store))
	}

	p := New(WithLogger(logger))
	p.AddStep(NewCrawlStep(cfg, newFetcher, crawlOpts...))
	if !cfg.NoAnalysis {
		p.AddStep(NewAnalyzeStep(cfg, newFetcher, store, WithAnalyzeLogger(logger)))
	}
	if cfg.OutputDir != "" {
		p.AddStep(NewPersistStep(cfg.OutputDir, logger))
	}
	if saveHistory {
		p.AddStep(NewHistoryStep(deps.DB, store, logger))
	}
	return p
}
