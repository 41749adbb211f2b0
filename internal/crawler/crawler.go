package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitemapper/internal/fetch"
	"github.com/nao1215/sitemapper/internal/urlnorm"
)

// Default crawl settings.
const (
	// DefaultMaxDepth is the number of hops followed from the seed.
	DefaultMaxDepth = 2

	// DefaultMaxThreads is the number of concurrent fetches.
	DefaultMaxThreads = 10

	// DefaultFetchTimeout bounds every single fetch.
	DefaultFetchTimeout = 20 * time.Second
)

// Fetcher retrieves the body of a page.
// *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (string, error)
}

// PageSink receives the body of every successfully fetched page.
// StorePage is called from worker goroutines and must be safe for
// concurrent use.
type PageSink interface {
	StorePage(url string, depth int, body string)
}

// Crawler coordinates one or more crawls. Its settings are fixed at
// construction, and every Crawl call keeps its own state, so a Crawler may
// run several crawls at once.
type Crawler struct {
	fetcher    Fetcher
	extractor  Extractor
	normalizer *urlnorm.Normalizer
	sink       PageSink
	logger     *slog.Logger

	maxDepth     int
	maxThreads   int
	fetchTimeout time.Duration
	budget       time.Duration
	maxPages     int
	keyPolicy    urlnorm.KeyPolicy
	filter       pathFilter
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxDepth sets how many hops from the seed are fetched.
// 0 = only the seed, 1 = the seed and the pages it links to, etc.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) {
		c.maxDepth = depth
	}
}

// WithMaxThreads sets the number of workers, which is also the maximum
// number of fetches in flight.
func WithMaxThreads(n int) Option {
	return func(c *Crawler) {
		c.maxThreads = n
	}
}

// WithFetchTimeout sets the timeout applied to each fetch.
// Zero selects DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.fetchTimeout = d
	}
}

// WithBudget sets a wall-clock limit for the whole crawl. When it expires
// no more pages are fetched and Crawl returns what it has with
// Result.Partial set. Zero means no limit.
func WithBudget(d time.Duration) Option {
	return func(c *Crawler) {
		c.budget = d
	}
}

// WithMaxPages caps the number of URLs claimed in one crawl.
// Zero means no limit.
func WithMaxPages(n int) Option {
	return func(c *Crawler) {
		c.maxPages = n
	}
}

// WithKeyPolicy sets how URLs are compared for deduplication.
func WithKeyPolicy(p urlnorm.KeyPolicy) Option {
	return func(c *Crawler) {
		c.keyPolicy = p
	}
}

// WithIgnorePatterns sets URL path patterns that are never followed.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.filter.ignore = patterns
	}
}

// WithFollowPatterns restricts following to links whose path matches at
// least one pattern. An empty slice allows every link.
func WithFollowPatterns(patterns []string) Option {
	return func(c *Crawler) {
		c.filter.follow = patterns
	}
}

// WithExtractor replaces the HTML link extractor.
func WithExtractor(e Extractor) Option {
	return func(c *Crawler) {
		c.extractor = e
	}
}

// WithNormalizer replaces the seed normalizer.
func WithNormalizer(n *urlnorm.Normalizer) Option {
	return func(c *Crawler) {
		c.normalizer = n
	}
}

// WithPageSink hands every fetched body to sink.
func WithPageSink(sink PageSink) Option {
	return func(c *Crawler) {
		c.sink = sink
	}
}

// WithLogger sets the logger. Per-page failures are logged at Warn.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler that fetches through fetcher. When fetcher can
// also probe (urlnorm.Prober), it is used to pick the scheme of bare seeds.
func New(fetcher Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:      fetcher,
		extractor:    HTMLExtractor{},
		maxDepth:     DefaultMaxDepth,
		maxThreads:   DefaultMaxThreads,
		fetchTimeout: DefaultFetchTimeout,
		keyPolicy:    urlnorm.PolicyExact,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.normalizer == nil {
		prober, _ := fetcher.(urlnorm.Prober)
		c.normalizer = urlnorm.New(prober, urlnorm.WithLogger(c.logger))
	}
	if c.fetchTimeout == 0 {
		c.fetchTimeout = DefaultFetchTimeout
	}
	return c
}

// Crawl is a convenience wrapper that crawls seed with a default
// fetch.Client and the given limits.
func Crawl(ctx context.Context, seed string, maxDepth, maxThreads int, timeout time.Duration) (*Result, error) {
	client := fetch.New(fetch.Config{})
	defer client.CloseIdleConnections()

	c := New(client,
		WithMaxDepth(maxDepth),
		WithMaxThreads(maxThreads),
		WithFetchTimeout(timeout),
	)
	return c.Crawl(ctx, seed)
}

func (c *Crawler) validate(seed string) error {
	if c.fetcher == nil {
		return ErrNilFetcher
	}
	if c.maxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, c.maxDepth)
	}
	if c.maxThreads < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidThreads, c.maxThreads)
	}
	if c.fetchTimeout < 0 || c.budget < 0 {
		return ErrInvalidTimeout
	}
	if strings.TrimSpace(seed) == "" {
		return ErrEmptySeed
	}
	return nil
}

// Crawl normalizes seed and explores the site from it. Per-page failures
// are reported in Result.Failures; the returned error is non-nil only for
// invalid configuration. All workers have exited when Crawl returns.
func (c *Crawler) Crawl(ctx context.Context, seed string) (*Result, error) {
	if err := c.validate(seed); err != nil {
		return nil, err
	}

	started := time.Now()
	seedURL := c.normalizer.Normalize(ctx, seed)

	if c.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.budget)
		defer cancel()
	}

	run := &crawlRun{
		crawler:  c,
		ctx:      ctx,
		frontier: NewFrontier(c.keyPolicy, c.maxPages),
		graph:    NewGraph(),
		pool:     newWorkerPool(c.maxThreads),
	}

	c.logger.Info("crawl started",
		"seed", seedURL,
		"max_depth", c.maxDepth,
		"max_threads", c.maxThreads,
	)

	run.pool.submit(task{url: seedURL, depth: 0})
	if err := run.pool.run(run.visit); err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}

	result := run.result(seedURL, started)
	c.logger.Info("crawl finished",
		"seed", seedURL,
		"pages", len(result.Sitemap),
		"failures", len(result.Failures),
		"partial", result.Partial,
		"elapsed", result.Stats.Elapsed,
	)
	return result, nil
}

// crawlRun is the state of a single Crawl call.
type crawlRun struct {
	crawler  *Crawler
	ctx      context.Context
	frontier *Frontier
	graph    *Graph
	pool     *workerPool

	mu       sync.Mutex
	failures []Failure

	fetched     atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
	interrupted atomic.Bool
}

// visit is the body of one task. It never panics out of the worker and
// never blocks on other tasks.
func (r *crawlRun) visit(t task) {
	c := r.crawler

	defer func() {
		if p := recover(); p != nil {
			r.fail(t, FailureInternal, fmt.Errorf("panic while visiting: %v", p))
		}
	}()

	if t.depth > c.maxDepth {
		return
	}
	if r.ctx.Err() != nil {
		r.interrupted.Store(true)
		return
	}
	if !r.frontier.TryClaim(t.url) {
		return
	}

	body, err := r.fetch(t.url)
	if err != nil {
		kind := fetchFailureKind(err)
		if r.ctx.Err() != nil {
			// Budget expiry or caller cancellation, not a site fault.
			r.interrupted.Store(true)
			kind = FailureCanceled
		}
		r.fail(t, kind, err)
		return
	}
	r.fetched.Add(1)

	if c.sink != nil {
		c.sink.StorePage(t.url, t.depth, body)
	}

	links, err := c.extractor.ExtractLinks(body)
	if err != nil {
		r.fail(t, FailureParse, err)
		return
	}
	r.graph.Record(t.url, t.depth, links)

	if t.depth >= c.maxDepth {
		return
	}
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		if !c.filter.allows(link) {
			continue
		}
		if r.ctx.Err() != nil {
			r.interrupted.Store(true)
			return
		}
		if r.frontier.Claimed(link) {
			continue
		}
		r.pool.submit(task{url: link, depth: t.depth + 1})
	}
}

func (r *crawlRun) fetch(url string) (string, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		peak := r.maxInFlight.Load()
		if n <= peak || r.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	return r.crawler.fetcher.Fetch(r.ctx, url, r.crawler.fetchTimeout)
}

// fail records url with no links and appends a Failure.
// An empty kind is derived from err.
func (r *crawlRun) fail(t task, kind FailureKind, err error) {
	if kind == "" {
		kind = fetchFailureKind(err)
	}
	r.graph.Record(t.url, t.depth, nil)

	f := Failure{
		URL:        t.url,
		Depth:      t.depth,
		Kind:       kind,
		Detail:     fetch.KindOf(err).String(),
		StatusCode: fetch.StatusCodeOf(err),
		Error:      err.Error(),
	}
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()

	r.crawler.logger.Warn("page failed",
		"url", t.url,
		"depth", t.depth,
		"kind", string(kind),
		"error", err,
	)
}

func (r *crawlRun) result(seed string, started time.Time) *Result {
	r.mu.Lock()
	failures := append([]Failure(nil), r.failures...)
	r.mu.Unlock()
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].URL < failures[j].URL
	})

	finished := time.Now()
	return &Result{
		Seed:     seed,
		Sitemap:  r.graph.Sitemap(),
		Depths:   r.graph.Depths(),
		Failures: failures,
		Partial:  r.interrupted.Load() || r.frontier.LimitReached(),
		Stats: Stats{
			Claimed:     r.frontier.Len(),
			Fetched:     int(r.fetched.Load()),
			Failed:      len(failures),
			MaxInFlight: int(r.maxInFlight.Load()),
			StartedAt:   started,
			FinishedAt:  finished,
			Elapsed:     finished.Sub(started),
		},
	}
}

// fetchFailureKind maps a fetch error onto the crawl failure taxonomy.
func fetchFailureKind(err error) FailureKind {
	switch fetch.KindOf(err) {
	case fetch.KindHTTPStatus:
		return FailureHTTPStatus
	case fetch.KindInvalidResponse:
		return FailureParse
	default:
		if errors.Is(err, context.Canceled) {
			return FailureCanceled
		}
		return FailureNetwork
	}
}
