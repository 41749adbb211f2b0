package analysis

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/sitemapper/internal/crawler"
	"github.com/nao1215/sitemapper/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFetchTimeout bounds each fetch of a page missing from the store.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultConcurrency is the number of pages loaded or analyzed at once.
	DefaultConcurrency = 10
)

// Fetcher downloads pages that the crawl did not keep.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (string, error)
}

// Runner analyzes every page of a sitemap.
type Runner struct {
	fetcher      Fetcher
	store        *PageStore
	analyzers    []Analyzer
	concurrency  int
	timeout      time.Duration
	keywordCount int
	logger       *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPageStore supplies bodies captured during the crawl.
func WithPageStore(store *PageStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithAnalyzers replaces the default per-page analyzers.
func WithAnalyzers(analyzers ...Analyzer) Option {
	return func(r *Runner) {
		r.analyzers = analyzers
	}
}

// WithConcurrency sets how many pages are processed at once. Values below
// 1 are ignored.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithFetchTimeout sets the timeout for pages missing from the store.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithKeywordCount sets how many site-wide keywords are extracted.
func WithKeywordCount(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.keywordCount = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner. fetcher may be nil, in which case only pages
// in the store are analyzed.
func NewRunner(fetcher Fetcher, opts ...Option) *Runner {
	r := &Runner{
		fetcher:      fetcher,
		analyzers:    DefaultAnalyzers(),
		concurrency:  DefaultConcurrency,
		timeout:      DefaultFetchTimeout,
		keywordCount: DefaultKeywordCount,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run analyzes every page of sitemap and runs the SEO checklist on seed.
// Pages that cannot be loaded are logged and listed in Skipped; they never
// fail the run. Only cancellation of ctx returns an error.
func (r *Runner) Run(ctx context.Context, seed string, sitemap crawler.Sitemap) (*model.SiteAnalysis, error) {
	urls := sitemap.URLs()

	pages, err := r.loadPages(ctx, urls)
	if err != nil {
		return nil, err
	}

	result := &model.SiteAnalysis{
		Keywords: ExtractKeywords(corpus(pages), r.keywordCount),
		Pages:    make([]model.PageAnalysis, 0, len(pages)),
	}
	for _, u := range urls {
		if _, ok := pages[u]; !ok {
			result.Skipped = append(result.Skipped, u)
		}
	}

	site := &SiteContext{Keywords: result.Keywords}
	if err := r.analyzePages(ctx, pages, site, result); err != nil {
		return nil, err
	}

	if seedPage, ok := pages[seed]; ok {
		seo, err := SEO(seedPage)
		if err != nil {
			r.logger.Warn("SEO analysis failed", "url", seed, "error", err)
			seo = UnreachableSEO(seed)
		}
		result.SEO = seo
	} else {
		result.SEO = UnreachableSEO(seed)
	}
	return result, nil
}

// loadPages parses each URL's body, taking it from the store when present
// and fetching it otherwise.
func (r *Runner) loadPages(ctx context.Context, urls []string) (map[string]*Page, error) {
	var (
		mu    sync.Mutex
		pages = make(map[string]*Page, len(urls))
		g     errgroup.Group
	)
	g.SetLimit(r.concurrency)

	for _, u := range urls {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			body, ok := r.body(ctx, u)
			if !ok {
				return nil
			}
			page, err := ParsePage(u, body)
			if err != nil {
				r.logger.Warn("skipping page", "url", u, "error", err)
				return nil
			}
			mu.Lock()
			pages[u] = page
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *Runner) body(ctx context.Context, url string) (string, bool) {
	if r.store != nil {
		if body, ok := r.store.Body(url); ok {
			return body, true
		}
	}
	if r.fetcher == nil {
		r.logger.Debug("page not stored and no fetcher configured", "url", url)
		return "", false
	}
	body, err := r.fetcher.Fetch(ctx, url, r.timeout)
	if err != nil {
		r.logger.Warn("failed to fetch page for analysis", "url", url, "error", err)
		return "", false
	}
	return body, true
}

func (r *Runner) analyzePages(ctx context.Context, pages map[string]*Page, site *SiteContext, result *model.SiteAnalysis) error {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.concurrency)

	for url, page := range pages {
		g.Go(func() error {
			pa := model.PageAnalysis{URL: url}
			for _, a := range r.analyzers {
				if ctx.Err() != nil {
					return nil
				}
				if err := a.Analyze(ctx, page, site, &pa); err != nil {
					r.logger.Warn("analyzer failed", "analyzer", a.Name(), "url", url, "error", err)
				}
			}
			mu.Lock()
			result.Pages = append(result.Pages, pa)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	if err := ctx.Err(); err != nil {
		return err
	}
	result.SortPages()
	return nil
}

// corpus returns the page texts in URL order so keyword ranking is
// deterministic.
func corpus(pages map[string]*Page) []string {
	urls := make([]string, 0, len(pages))
	for u := range pages {
		urls = append(urls, u)
	}
	slices.Sort(urls)
	docs := make([]string, 0, len(urls))
	for _, u := range urls {
		docs = append(docs, pages[u].Text())
	}
	return docs
}
